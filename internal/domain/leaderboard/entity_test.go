package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

func total(id string, t ledger.ActivityType, points int64) ledger.TypeTotal {
	return ledger.TypeTotal{StudentID: shared.StudentID(id), ActivityType: t, Points: points}
}

func TestBuild_RanksAndBreakdown(t *testing.T) {
	totals := []ledger.TypeTotal{
		total("d", ledger.ActivitySessionAttendance, 50),
		total("c", ledger.ActivityProjectAward, 80),
		total("a", ledger.ActivityAssessmentCompletion, 10),
		total("a", ledger.ActivitySessionAttendance, 20),
		total("a", ledger.ActivityLevelCompletion, 30),
		total("a", ledger.ActivityProjectMembership, 25),
		total("a", ledger.ActivityDailyStreak, 15),
		total("b", ledger.ActivityCourseCompletion, 80),
	}

	r := Build(totals)
	require.Equal(t, 4, r.Count())

	top := r.Top(0)
	got := make([]string, len(top))
	for i, e := range top {
		got[i] = e.String()
	}
	assert.Equal(t, []string{"#1 a (100 XP)", "#2 b (80 XP)", "#3 c (80 XP)", "#4 d (50 XP)"}, got)

	a := r.GetByID("a")
	require.NotNil(t, a)
	assert.Equal(t, int64(10), a.Breakdown[ledger.CategoryAssessments])
	assert.Equal(t, int64(20), a.Breakdown[ledger.CategorySessions])
	assert.Equal(t, int64(30), a.Breakdown[ledger.CategoryLevels])
	assert.Equal(t, int64(25), a.Breakdown[ledger.CategoryProjects])
	assert.Equal(t, int64(15), a.Breakdown[ledger.CategoryAchievements])

	// course completion is shown under levels
	assert.Equal(t, int64(80), r.GetByID("b").Breakdown[ledger.CategoryLevels])
}

func TestBuild_OrderIndependentOfInput(t *testing.T) {
	forward := []ledger.TypeTotal{
		total("x", ledger.ActivitySessionAttendance, 40),
		total("y", ledger.ActivitySessionAttendance, 40),
		total("z", ledger.ActivitySessionAttendance, 40),
	}
	reversed := []ledger.TypeTotal{forward[2], forward[1], forward[0]}

	assert.Equal(t,
		StudentIDs(Build(forward).Top(0)),
		StudentIDs(Build(reversed).Top(0)),
	)
	assert.Equal(t, []shared.StudentID{"x", "y", "z"}, StudentIDs(Build(reversed).Top(0)))
}

func TestTop_Truncates(t *testing.T) {
	r := Build([]ledger.TypeTotal{
		total("a", ledger.ActivitySessionAttendance, 3),
		total("b", ledger.ActivitySessionAttendance, 2),
		total("c", ledger.ActivitySessionAttendance, 1),
	})

	assert.Len(t, r.Top(2), 2)
	assert.Len(t, r.Top(10), 3)
	assert.Empty(t, Build(nil).Top(5))
}

func TestScopeKey(t *testing.T) {
	assert.Equal(t, "*:*", Scope{}.Key())
	assert.Equal(t, "inst:*", Scope{InstitutionID: "inst"}.Key())
	assert.Equal(t, "inst:7A", Scope{InstitutionID: "inst", ClassID: "7A"}.Key())
	assert.True(t, Scope{}.IsGlobal())
	assert.True(t, Scope{ClassID: "7A"}.IsClass())
}

func TestEntryClone_OwnsBreakdown(t *testing.T) {
	e := &Entry{Rank: 1, StudentID: "s1", TotalPoints: 10, Breakdown: ledger.Breakdown{ledger.CategoryProjects: 10}}

	c := e.Clone()
	c.Breakdown[ledger.CategoryProjects] = 999
	c.TotalPoints = 999

	assert.Equal(t, int64(10), e.Breakdown[ledger.CategoryProjects])
	assert.Equal(t, int64(10), e.TotalPoints)

	var empty Entry
	assert.Nil(t, empty.Clone().Breakdown)
}

package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

func TestParseActivityType(t *testing.T) {
	got, err := ParseActivityType("  Session_Attendance ")
	require.NoError(t, err)
	assert.Equal(t, ActivitySessionAttendance, got)

	_, err = ParseActivityType("karaoke")
	assert.ErrorIs(t, err, shared.ErrUnknownActivityType)
	assert.True(t, shared.IsValidation(err))
}

func TestEveryTypeHasCategory(t *testing.T) {
	for _, at := range AllActivityTypes() {
		_, ok := at.Category()
		assert.True(t, ok, at)
	}
}

func TestQualifiesForStreak(t *testing.T) {
	assert.True(t, ActivitySessionAttendance.QualifiesForStreak())
	assert.True(t, ActivityCourseCompletion.QualifiesForStreak())
	assert.False(t, ActivityDailyStreak.QualifiesForStreak())
	assert.False(t, ActivityStreakMilestone.QualifiesForStreak())
	assert.False(t, ActivityBadgeReward.QualifiesForStreak())
	assert.False(t, ActivityType("karaoke").QualifiesForStreak())
}

func TestIsDerived(t *testing.T) {
	for _, at := range AllActivityTypes() {
		want := at == ActivityDailyStreak || at == ActivityStreakMilestone || at == ActivityBadgeReward
		assert.Equal(t, want, at.IsDerived(), at)
	}
}

func TestBreakdownFromTotals(t *testing.T) {
	b := BreakdownFromTotals(map[ActivityType]int64{
		ActivityAssessmentCompletion: 10,
		ActivityAssessmentPass:       25,
		ActivityProjectMembership:    100,
		ActivityCourseCompletion:     500,
		ActivityType("legacy"):       7,
	})

	assert.Equal(t, Breakdown{
		CategorySessions:     0,
		CategoryProjects:     100,
		CategoryAssessments:  35,
		CategoryLevels:       500,
		CategoryAchievements: 0,
	}, b)
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		ID:            "tx-1",
		StudentID:     "s1",
		InstitutionID: "inst",
		ActivityType:  ActivitySessionAttendance,
		ActivityID:    "session-1",
		Points:        5,
		EarnedAt:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		EarnedDate:    shared.NewCalendarDate(2024, time.March, 1),
	}
	require.NoError(t, valid.Validate())
	assert.True(t, valid.HasActivityID())

	tx := valid
	tx.StudentID = " "
	assert.ErrorIs(t, tx.Validate(), shared.ErrMissingStudent)

	tx = valid
	tx.Points = -1
	assert.ErrorIs(t, tx.Validate(), shared.ErrNegativePoints)

	tx = valid
	tx.EarnedDate = shared.CalendarDate{}
	assert.ErrorIs(t, tx.Validate(), shared.ErrInvalidState)
}

func TestPolicy_Merge(t *testing.T) {
	base := DefaultPolicy()
	merged := base.Merge(Policy{
		Points:     map[ActivityType]int{ActivitySessionAttendance: 8},
		Milestones: map[int]int{14: 40},
	})

	assert.Equal(t, 8, merged.PointsFor(ActivitySessionAttendance))
	assert.Equal(t, 10, merged.PointsFor(ActivityAssessmentCompletion))
	assert.Equal(t, []int{14}, merged.MilestoneDays())

	// the receiver is untouched
	assert.Equal(t, 5, base.PointsFor(ActivitySessionAttendance))
	assert.Equal(t, []int{7, 30, 100}, base.MilestoneDays())

	// no milestones in the overlay keeps the base ones
	assert.Equal(t, []int{7, 30, 100}, base.Merge(Policy{}).MilestoneDays())
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	err := Policy{Points: map[ActivityType]int{"karaoke": 1}}.Validate()
	assert.ErrorIs(t, err, shared.ErrUnknownActivityType)

	err = Policy{Points: map[ActivityType]int{ActivityLevelCompletion: -5}}.Validate()
	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	err = Policy{Milestones: map[int]int{0: 10}}.Validate()
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestPolicy_MilestoneBonus(t *testing.T) {
	p := DefaultPolicy()
	bonus, ok := p.MilestoneBonus(30)
	assert.True(t, ok)
	assert.Equal(t, 75, bonus)

	_, ok = p.MilestoneBonus(8)
	assert.False(t, ok)
}

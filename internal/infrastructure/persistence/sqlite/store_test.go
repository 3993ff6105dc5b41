package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
	"github.com/alem-hub/alem-gamification/internal/domain/student"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var day1 = shared.NewCalendarDate(2024, time.March, 1)

func newTx(id string, studentID shared.StudentID, activityType ledger.ActivityType, activityID string, points int) ledger.Transaction {
	return ledger.Transaction{
		ID:            id,
		StudentID:     studentID,
		InstitutionID: "inst-1",
		ActivityType:  activityType,
		ActivityID:    activityID,
		Points:        points,
		EarnedAt:      time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC),
		EarnedDate:    day1,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

func TestLedgerStore_AppendIsIdempotentOnActivityKey(t *testing.T) {
	store := NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	inserted, err := store.Append(ctx, newTx("t1", "s1", ledger.ActivityAssessmentCompletion, "a1", 10))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Append(ctx, newTx("t2", "s1", ledger.ActivityAssessmentCompletion, "a1", 10))
	require.NoError(t, err)
	assert.False(t, inserted)

	total, err := store.SumByStudent(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
}

func TestLedgerStore_EmptyActivityIDIsNotDeduplicated(t *testing.T) {
	store := NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"t1", "t2"} {
		inserted, err := store.Append(ctx, newTx(id, "s1", ledger.ActivityCourseCompletion, "", 50))
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	n, err := store.CountByType(ctx, "s1", ledger.ActivityCourseCompletion)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLedgerStore_OneDailyStreakPerDate(t *testing.T) {
	store := NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	inserted, err := store.Append(ctx, newTx("t1", "s1", ledger.ActivityDailyStreak, "x", 2))
	require.NoError(t, err)
	assert.True(t, inserted)

	// A different activity id on the same date still collides.
	inserted, err = store.Append(ctx, newTx("t2", "s1", ledger.ActivityDailyStreak, "y", 2))
	require.NoError(t, err)
	assert.False(t, inserted)

	has, err := store.HasTransactionOnDate(ctx, "s1", ledger.ActivityDailyStreak, day1)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasTransactionOnDate(ctx, "s1", ledger.ActivityDailyStreak, day1.AddDays(1))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestLedgerStore_Aggregates(t *testing.T) {
	store := NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	txs := []ledger.Transaction{
		newTx("t1", "s1", ledger.ActivityProjectMembership, "p1", 30),
		newTx("t2", "s1", ledger.ActivityProjectMembership, "p2", 30),
		newTx("t3", "s1", ledger.ActivitySessionAttendance, "sess-1", 5),
		newTx("t4", "s2", ledger.ActivityProjectMembership, "p1", 30),
	}
	for _, tx := range txs {
		_, err := store.Append(ctx, tx)
		require.NoError(t, err)
	}

	distinct, err := store.CountDistinctActivities(ctx, "s1", ledger.ActivityProjectMembership)
	require.NoError(t, err)
	assert.Equal(t, int64(2), distinct)

	sum, err := store.SumByStudent(ctx, "s1", ledger.TypeFilter(ledger.ActivitySessionAttendance))
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum)

	sums, err := store.SumsByType(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[ledger.ActivityType]int64{
		ledger.ActivityProjectMembership: 60,
		ledger.ActivitySessionAttendance: 5,
	}, sums)

	history, err := store.Transactions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, day1, history[0].EarnedDate)
	assert.Equal(t, "p1", history[0].ActivityID)
}

func TestLedgerStore_UnknownStudentSumsToZero(t *testing.T) {
	store := NewLedgerStore(setupTestDB(t))

	total, err := store.SumByStudent(context.Background(), "nobody", nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestLedgerStore_RejectsInvalidTransaction(t *testing.T) {
	store := NewLedgerStore(setupTestDB(t))

	tx := newTx("t1", "s1", ledger.ActivityType("bogus"), "a", 1)
	_, err := store.Append(context.Background(), tx)
	assert.ErrorIs(t, err, shared.ErrUnknownActivityType)
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

func TestBadgeStore_DefinitionsAndAwards(t *testing.T) {
	store := NewBadgeStore(setupTestDB(t))
	ctx := context.Background()

	defs := []badge.Definition{
		{ID: "xp-100", Name: "Century", XPReward: 10, IsActive: true,
			Criteria: badge.Criteria{Type: badge.CriteriaPoints, Threshold: badge.Threshold(100)}},
		{ID: "retired", Name: "Old", IsActive: false,
			Criteria: badge.Criteria{Type: badge.CriteriaStreak, Threshold: badge.Threshold(3)}},
	}
	require.NoError(t, store.UpsertDefinitions(ctx, defs))

	active, err := store.ListDefinitions(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "xp-100", active[0].ID)
	require.NotNil(t, active[0].Criteria.Threshold)
	assert.Equal(t, 100.0, *active[0].Criteria.Threshold)

	all, err := store.ListDefinitions(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	earnedAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	inserted, err := store.Insert(ctx, badge.StudentBadge{StudentID: "s1", BadgeID: "xp-100", InstitutionID: "inst-1", EarnedAt: earnedAt})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Insert(ctx, badge.StudentBadge{StudentID: "s1", BadgeID: "xp-100", InstitutionID: "inst-1", EarnedAt: earnedAt.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, inserted)

	ids, err := store.EarnedIDs(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, ids, "xp-100")

	earned, err := store.ListEarned(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.True(t, earnedAt.Equal(earned[0].EarnedAt))

	counts, err := store.CountByStudents(ctx, []shared.StudentID{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, map[shared.StudentID]int{"s1": 1}, counts)
}

func TestBadgeStore_UpsertReplacesDefinition(t *testing.T) {
	store := NewBadgeStore(setupTestDB(t))
	ctx := context.Background()

	def := badge.Definition{ID: "b", Name: "First", IsActive: true,
		Criteria: badge.Criteria{Type: badge.CriteriaAttendance, Threshold: badge.Threshold(5)}}
	require.NoError(t, store.UpsertDefinitions(ctx, []badge.Definition{def}))

	def.Name = "Renamed"
	def.IsActive = false
	require.NoError(t, store.UpsertDefinitions(ctx, []badge.Definition{def}))

	all, err := store.ListDefinitions(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Renamed", all[0].Name)
	assert.False(t, all[0].IsActive)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS
// ══════════════════════════════════════════════════════════════════════════════

func TestStreakStore_GetMissingReturnsFresh(t *testing.T) {
	store := NewStreakStore(setupTestDB(t))

	st, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, st.Exists())
	assert.Equal(t, shared.StudentID("s1"), st.StudentID)
}

func TestStreakStore_SaveChecksVersion(t *testing.T) {
	store := NewStreakStore(setupTestDB(t))
	ctx := context.Background()

	fresh, _ := streak.New("s1").Record(day1)
	saved, err := store.Save(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	// A second writer that also started from "no row" loses.
	_, err = store.Save(ctx, fresh)
	assert.True(t, errors.Is(err, shared.ErrStreakConflict))

	next, _ := saved.Record(day1.AddDays(1))
	saved2, err := store.Save(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved2.Version)

	// Stale version.
	_, err = store.Save(ctx, next)
	assert.ErrorIs(t, err, shared.ErrStreakConflict)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Current)
	assert.Equal(t, 2, got.Longest)
	assert.Equal(t, day1.AddDays(1), got.LastActivityDate)

	many, err := store.GetMany(ctx, []shared.StudentID{"s1", "s2"})
	require.NoError(t, err)
	assert.Len(t, many, 1)
	assert.Equal(t, 2, many["s1"].Current)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER AND LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestStudentStore_Upsert(t *testing.T) {
	store := NewStudentStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []student.Student{
		{ID: "s1", Name: "Aida", InstitutionID: "inst-1", ClassID: "c1"},
	}))
	require.NoError(t, store.Upsert(ctx, []student.Student{
		{ID: "s1", Name: "Aida B.", InstitutionID: "inst-1", ClassID: "c2"},
	}))

	got, err := store.GetByIDs(ctx, []shared.StudentID{"s1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Aida B.", got["s1"].Name)
	assert.Equal(t, shared.ClassID("c2"), got["s1"].ClassID)
}

func TestLeaderboardStore_TotalsInScope(t *testing.T) {
	db := setupTestDB(t)
	ledgerStore := NewLedgerStore(db)
	roster := NewStudentStore(db)
	boards := NewLeaderboardStore(db)
	ctx := context.Background()

	require.NoError(t, roster.Upsert(ctx, []student.Student{
		{ID: "s1", Name: "A", InstitutionID: "inst-1", ClassID: "c1"},
		{ID: "s2", Name: "B", InstitutionID: "inst-1", ClassID: "c2"},
	}))

	other := newTx("t3", "s3", ledger.ActivityLevelCompletion, "l1", 40)
	other.InstitutionID = "inst-2"
	for _, tx := range []ledger.Transaction{
		newTx("t1", "s1", ledger.ActivityLevelCompletion, "l1", 20),
		newTx("t2", "s2", ledger.ActivityLevelCompletion, "l1", 20),
		other,
	} {
		_, err := ledgerStore.Append(ctx, tx)
		require.NoError(t, err)
	}

	all, err := boards.TotalsInScope(ctx, leaderboard.Scope{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inst, err := boards.TotalsInScope(ctx, leaderboard.Scope{InstitutionID: "inst-1"})
	require.NoError(t, err)
	assert.Len(t, inst, 2)

	class, err := boards.TotalsInScope(ctx, leaderboard.Scope{InstitutionID: "inst-1", ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, class, 1)
	assert.Equal(t, shared.StudentID("s1"), class[0].StudentID)
	assert.Equal(t, int64(20), class[0].Points)
}

func TestVersionAfterOpen(t *testing.T) {
	db := setupTestDB(t)

	v, err := Version(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

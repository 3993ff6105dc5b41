package sqlite

import (
	"context"
	"database/sql"

	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// LeaderboardStore implements leaderboard.Repository on SQLite.
type LeaderboardStore struct {
	db *sql.DB
}

// NewLeaderboardStore creates a new LeaderboardStore.
func NewLeaderboardStore(db *sql.DB) *LeaderboardStore {
	return &LeaderboardStore{db: db}
}

// TotalsInScope sums points per (student, activity type). A class scope
// selects students by roster membership.
func (s *LeaderboardStore) TotalsInScope(ctx context.Context, scope leaderboard.Scope) ([]ledger.TypeTotal, error) {
	query := `SELECT t.student_id, t.activity_type, SUM(t.points) FROM xp_transactions t`
	var args []any

	if scope.IsClass() {
		query += ` JOIN students s ON s.id = t.student_id AND s.class_id = ?`
		args = append(args, scope.ClassID.String())
	}
	if !scope.InstitutionID.IsEmpty() {
		query += ` WHERE t.institution_id = ?`
		args = append(args, scope.InstitutionID.String())
	}
	query += ` GROUP BY t.student_id, t.activity_type`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.Unavailable("leaderboard", "TotalsInScope", err)
	}
	defer rows.Close()

	totals := make([]ledger.TypeTotal, 0)
	for rows.Next() {
		var (
			studentID, activityType string
			points                  int64
		)
		if err := rows.Scan(&studentID, &activityType, &points); err != nil {
			return nil, shared.Unavailable("leaderboard", "TotalsInScope", err)
		}
		totals = append(totals, ledger.TypeTotal{
			StudentID:    shared.StudentID(studentID),
			ActivityType: ledger.ActivityType(activityType),
			Points:       points,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("leaderboard", "TotalsInScope", err)
	}
	return totals, nil
}

var _ leaderboard.Repository = (*LeaderboardStore)(nil)

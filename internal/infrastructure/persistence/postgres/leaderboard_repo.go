package postgres

import (
	"context"

	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// Rankings are computed from the ledger on demand; nothing is materialized.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// TotalsInScope sums points per (student, activity type). Empty scope fields
// match everything; the class filter goes through roster membership.
func (r *LeaderboardRepository) TotalsInScope(ctx context.Context, scope leaderboard.Scope) ([]ledger.TypeTotal, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT t.student_id, t.activity_type, SUM(t.points)
		FROM xp_transactions t
		LEFT JOIN students s ON s.id = t.student_id
		WHERE ($1 = '' OR t.institution_id = $1)
		  AND ($2 = '' OR s.class_id = $2)
		GROUP BY t.student_id, t.activity_type`,
		scope.InstitutionID.String(), scope.ClassID.String(),
	)
	if err != nil {
		return nil, storageError("leaderboard", "TotalsInScope", err)
	}
	defer rows.Close()

	totals := make([]ledger.TypeTotal, 0)
	for rows.Next() {
		var (
			studentID, activityType string
			points                  int64
		)
		if err := rows.Scan(&studentID, &activityType, &points); err != nil {
			return nil, storageError("leaderboard", "TotalsInScope", err)
		}
		totals = append(totals, ledger.TypeTotal{
			StudentID:    shared.StudentID(studentID),
			ActivityType: ledger.ActivityType(activityType),
			Points:       points,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("leaderboard", "TotalsInScope", err)
	}
	return totals, nil
}

var _ leaderboard.Repository = (*LeaderboardRepository)(nil)

package postgres

import (
	"context"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository for PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// Append inserts tx; the partial unique indexes turn duplicates into no-ops.
func (r *LedgerRepository) Append(ctx context.Context, tx ledger.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}

	var activityID *string
	if tx.HasActivityID() {
		activityID = &tx.ActivityID
	}

	tag, err := r.conn.Exec(ctx, `
		INSERT INTO xp_transactions (
			id, student_id, institution_id, activity_type, activity_id,
			points, earned_at, earned_date, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`,
		tx.ID,
		tx.StudentID.String(),
		tx.InstitutionID.String(),
		tx.ActivityType.String(),
		activityID,
		tx.Points,
		tx.EarnedAt.UTC(),
		tx.EarnedDate.Time(),
		tx.Description,
	)
	if err != nil {
		return false, storageError("ledger", "Append", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SumByStudent returns the student's point total, optionally for one type.
func (r *LedgerRepository) SumByStudent(ctx context.Context, studentID shared.StudentID, activityType *ledger.ActivityType) (int64, error) {
	var typeFilter *string
	if activityType != nil {
		s := activityType.String()
		typeFilter = &s
	}

	var total int64
	err := r.conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0)
		FROM xp_transactions
		WHERE student_id = $1 AND ($2::text IS NULL OR activity_type = $2)`,
		studentID.String(), typeFilter,
	).Scan(&total)
	if err != nil {
		return 0, storageError("ledger", "SumByStudent", err)
	}
	return total, nil
}

// SumsByType returns per-type totals in one query.
func (r *LedgerRepository) SumsByType(ctx context.Context, studentID shared.StudentID) (map[ledger.ActivityType]int64, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT activity_type, SUM(points)
		FROM xp_transactions
		WHERE student_id = $1
		GROUP BY activity_type`,
		studentID.String(),
	)
	if err != nil {
		return nil, storageError("ledger", "SumsByType", err)
	}
	defer rows.Close()

	sums := make(map[ledger.ActivityType]int64)
	for rows.Next() {
		var (
			activityType string
			sum          int64
		)
		if err := rows.Scan(&activityType, &sum); err != nil {
			return nil, storageError("ledger", "SumsByType", err)
		}
		sums[ledger.ActivityType(activityType)] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ledger", "SumsByType", err)
	}
	return sums, nil
}

// CountByType counts the student's transactions of one type.
func (r *LedgerRepository) CountByType(ctx context.Context, studentID shared.StudentID, activityType ledger.ActivityType) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM xp_transactions WHERE student_id = $1 AND activity_type = $2`,
		studentID.String(), activityType.String(),
	).Scan(&n)
	if err != nil {
		return 0, storageError("ledger", "CountByType", err)
	}
	return n, nil
}

// CountDistinctActivities counts distinct activity IDs of one type.
func (r *LedgerRepository) CountDistinctActivities(ctx context.Context, studentID shared.StudentID, activityType ledger.ActivityType) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(DISTINCT activity_id)
		FROM xp_transactions
		WHERE student_id = $1 AND activity_type = $2 AND activity_id IS NOT NULL`,
		studentID.String(), activityType.String(),
	).Scan(&n)
	if err != nil {
		return 0, storageError("ledger", "CountDistinctActivities", err)
	}
	return n, nil
}

// HasTransactionOnDate reports whether a transaction of the type exists for the date.
func (r *LedgerRepository) HasTransactionOnDate(ctx context.Context, studentID shared.StudentID, activityType ledger.ActivityType, date shared.CalendarDate) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM xp_transactions
			WHERE student_id = $1 AND activity_type = $2 AND earned_date = $3
		)`,
		studentID.String(), activityType.String(), date.Time(),
	).Scan(&exists)
	if err != nil {
		return false, storageError("ledger", "HasTransactionOnDate", err)
	}
	return exists, nil
}

var _ ledger.Repository = (*LedgerRepository)(nil)

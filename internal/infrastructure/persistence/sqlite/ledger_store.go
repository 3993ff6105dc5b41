package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// LedgerStore implements ledger.Repository on SQLite.
type LedgerStore struct {
	db *sql.DB
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Append inserts the transaction unless one with the same idempotency key exists.
func (s *LedgerStore) Append(ctx context.Context, tx ledger.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO xp_transactions (
			id, student_id, institution_id, activity_type, activity_id,
			points, earned_at, earned_date, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		tx.ID,
		tx.StudentID.String(),
		tx.InstitutionID.String(),
		tx.ActivityType.String(),
		nullString(tx.ActivityID),
		tx.Points,
		formatTime(tx.EarnedAt),
		tx.EarnedDate.String(),
		tx.Description,
	)
	if err != nil {
		return false, shared.Unavailable("ledger", "Append", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, shared.Unavailable("ledger", "Append", err)
	}
	return n == 1, nil
}

// SumByStudent returns the student's point total, optionally for one type.
func (s *LedgerStore) SumByStudent(ctx context.Context, studentID shared.StudentID, activityType *ledger.ActivityType) (int64, error) {
	query := `SELECT COALESCE(SUM(points), 0) FROM xp_transactions WHERE student_id = ?`
	args := []any{studentID.String()}
	if activityType != nil {
		query += ` AND activity_type = ?`
		args = append(args, activityType.String())
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, shared.Unavailable("ledger", "SumByStudent", err)
	}
	return total, nil
}

// SumsByType returns per-type totals in one query.
func (s *LedgerStore) SumsByType(ctx context.Context, studentID shared.StudentID) (map[ledger.ActivityType]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_type, SUM(points)
		FROM xp_transactions
		WHERE student_id = ?
		GROUP BY activity_type`,
		studentID.String(),
	)
	if err != nil {
		return nil, shared.Unavailable("ledger", "SumsByType", err)
	}
	defer rows.Close()

	sums := make(map[ledger.ActivityType]int64)
	for rows.Next() {
		var (
			activityType string
			sum          int64
		)
		if err := rows.Scan(&activityType, &sum); err != nil {
			return nil, shared.Unavailable("ledger", "SumsByType", err)
		}
		sums[ledger.ActivityType(activityType)] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("ledger", "SumsByType", err)
	}
	return sums, nil
}

// CountByType counts the student's transactions of one type.
func (s *LedgerStore) CountByType(ctx context.Context, studentID shared.StudentID, activityType ledger.ActivityType) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM xp_transactions WHERE student_id = ? AND activity_type = ?`,
		studentID.String(), activityType.String(),
	).Scan(&n)
	if err != nil {
		return 0, shared.Unavailable("ledger", "CountByType", err)
	}
	return n, nil
}

// CountDistinctActivities counts distinct activity IDs of one type.
func (s *LedgerStore) CountDistinctActivities(ctx context.Context, studentID shared.StudentID, activityType ledger.ActivityType) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT activity_id)
		FROM xp_transactions
		WHERE student_id = ? AND activity_type = ? AND activity_id IS NOT NULL`,
		studentID.String(), activityType.String(),
	).Scan(&n)
	if err != nil {
		return 0, shared.Unavailable("ledger", "CountDistinctActivities", err)
	}
	return n, nil
}

// HasTransactionOnDate reports whether a transaction of the type exists for the date.
func (s *LedgerStore) HasTransactionOnDate(ctx context.Context, studentID shared.StudentID, activityType ledger.ActivityType, date shared.CalendarDate) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM xp_transactions
			WHERE student_id = ? AND activity_type = ? AND earned_date = ?
		)`,
		studentID.String(), activityType.String(), date.String(),
	).Scan(&exists)
	if err != nil {
		return false, shared.Unavailable("ledger", "HasTransactionOnDate", err)
	}
	return exists, nil
}

// Transactions lists a student's transactions oldest first. Used by the
// admin export and tests; not part of the repository contract.
func (s *LedgerStore) Transactions(ctx context.Context, studentID shared.StudentID) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, institution_id, activity_type, activity_id,
		       points, earned_at, earned_date, description
		FROM xp_transactions
		WHERE student_id = ?
		ORDER BY earned_at, id`,
		studentID.String(),
	)
	if err != nil {
		return nil, shared.Unavailable("ledger", "Transactions", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var (
			tx                               ledger.Transaction
			studentIDCol, institution, aType string
			activityID                       sql.NullString
			earnedAt, earnedDate             string
		)
		if err := rows.Scan(&tx.ID, &studentIDCol, &institution, &aType, &activityID,
			&tx.Points, &earnedAt, &earnedDate, &tx.Description); err != nil {
			return nil, shared.Unavailable("ledger", "Transactions", err)
		}
		tx.StudentID = shared.StudentID(studentIDCol)
		tx.InstitutionID = shared.InstitutionID(institution)
		tx.ActivityType = ledger.ActivityType(aType)
		tx.ActivityID = activityID.String
		if tx.EarnedAt, err = parseTime(earnedAt); err != nil {
			return nil, err
		}
		if tx.EarnedDate, err = shared.ParseCalendarDate(earnedDate); err != nil {
			return nil, fmt.Errorf("parse earned_date: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("ledger", "Transactions", err)
	}
	return out, nil
}

var _ ledger.Repository = (*LedgerStore)(nil)

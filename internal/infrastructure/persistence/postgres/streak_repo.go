package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// Optimistic concurrency: every write is conditional on the version read.
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	conn *Connection
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection) *StreakRepository {
	return &StreakRepository{conn: conn}
}

const selectStreak = `
	SELECT student_id, current_streak, longest_streak, last_activity_date, version
	FROM student_streaks`

// Get returns the student's streak or a fresh one when none is stored.
func (r *StreakRepository) Get(ctx context.Context, studentID shared.StudentID) (streak.Streak, error) {
	row := r.conn.QueryRow(ctx, selectStreak+` WHERE student_id = $1`, studentID.String())
	st, err := scanStreak(row)
	if IsNoRows(err) {
		return streak.New(studentID), nil
	}
	if err != nil {
		return streak.Streak{}, storageError("streak", "Get", err)
	}
	return st, nil
}

// GetMany returns stored streaks for the given students.
func (r *StreakRepository) GetMany(ctx context.Context, studentIDs []shared.StudentID) (map[shared.StudentID]streak.Streak, error) {
	out := make(map[shared.StudentID]streak.Streak, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}

	rows, err := r.conn.Query(ctx, selectStreak+` WHERE student_id = ANY($1)`, idStrings(studentIDs))
	if err != nil {
		return nil, storageError("streak", "GetMany", err)
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanStreak(rows)
		if err != nil {
			return nil, storageError("streak", "GetMany", err)
		}
		out[st.StudentID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("streak", "GetMany", err)
	}
	return out, nil
}

// Save writes st if the stored version still equals st.Version.
func (r *StreakRepository) Save(ctx context.Context, st streak.Streak) (streak.Streak, error) {
	var lastDate *time.Time
	if !st.LastActivityDate.IsZero() {
		t := st.LastActivityDate.Time()
		lastDate = &t
	}

	var (
		affected int64
		err      error
	)
	if st.Version == 0 {
		tag, execErr := r.conn.Exec(ctx, `
			INSERT INTO student_streaks (
				student_id, current_streak, longest_streak, last_activity_date, version, updated_at
			) VALUES ($1, $2, $3, $4, 1, NOW())
			ON CONFLICT (student_id) DO NOTHING`,
			st.StudentID.String(), st.Current, st.Longest, lastDate,
		)
		affected, err = tag.RowsAffected(), execErr
	} else {
		tag, execErr := r.conn.Exec(ctx, `
			UPDATE student_streaks SET
				current_streak = $2,
				longest_streak = $3,
				last_activity_date = $4,
				version = version + 1,
				updated_at = NOW()
			WHERE student_id = $1 AND version = $5`,
			st.StudentID.String(), st.Current, st.Longest, lastDate, st.Version,
		)
		affected, err = tag.RowsAffected(), execErr
	}
	if err != nil {
		return streak.Streak{}, storageError("streak", "Save", err)
	}
	if affected == 0 {
		return streak.Streak{}, shared.ErrStreakConflict
	}

	st.Version++
	return st, nil
}

func scanStreak(row pgx.Row) (streak.Streak, error) {
	var (
		st        streak.Streak
		studentID string
		lastDate  *time.Time
	)
	if err := row.Scan(&studentID, &st.Current, &st.Longest, &lastDate, &st.Version); err != nil {
		return streak.Streak{}, err
	}
	st.StudentID = shared.StudentID(studentID)
	if lastDate != nil {
		st.LastActivityDate = shared.DateOf(*lastDate, time.UTC)
	}
	return st, nil
}

var _ streak.Repository = (*StreakRepository)(nil)

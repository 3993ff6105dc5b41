package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
)

// StreakStore implements streak.Repository on SQLite with optimistic versioning.
type StreakStore struct {
	db *sql.DB
}

// NewStreakStore creates a new StreakStore.
func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

// Get returns the student's streak or a fresh one when none is stored.
func (s *StreakStore) Get(ctx context.Context, studentID shared.StudentID) (streak.Streak, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT student_id, current_streak, longest_streak, last_activity_date, version
		FROM student_streaks
		WHERE student_id = ?`,
		studentID.String(),
	)
	st, err := scanStreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return streak.New(studentID), nil
	}
	if err != nil {
		return streak.Streak{}, shared.Unavailable("streak", "Get", err)
	}
	return st, nil
}

// GetMany returns stored streaks for the given students.
func (s *StreakStore) GetMany(ctx context.Context, studentIDs []shared.StudentID) (map[shared.StudentID]streak.Streak, error) {
	out := make(map[shared.StudentID]streak.Streak, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, current_streak, longest_streak, last_activity_date, version
		FROM student_streaks
		WHERE student_id IN (`+placeholders(len(studentIDs))+`)`,
		stringArgs(studentIDs)...,
	)
	if err != nil {
		return nil, shared.Unavailable("streak", "GetMany", err)
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanStreak(rows)
		if err != nil {
			return nil, shared.Unavailable("streak", "GetMany", err)
		}
		out[st.StudentID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("streak", "GetMany", err)
	}
	return out, nil
}

// Save writes st if the stored version still equals st.Version.
func (s *StreakStore) Save(ctx context.Context, st streak.Streak) (streak.Streak, error) {
	now := formatTime(time.Now())

	var (
		res sql.Result
		err error
	)
	if st.Version == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO student_streaks (
				student_id, current_streak, longest_streak, last_activity_date, version, updated_at
			) VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT (student_id) DO NOTHING`,
			st.StudentID.String(), st.Current, st.Longest, st.LastActivityDate.String(), now,
		)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE student_streaks SET
				current_streak = ?,
				longest_streak = ?,
				last_activity_date = ?,
				version = version + 1,
				updated_at = ?
			WHERE student_id = ? AND version = ?`,
			st.Current, st.Longest, st.LastActivityDate.String(), now,
			st.StudentID.String(), st.Version,
		)
	}
	if err != nil {
		return streak.Streak{}, shared.Unavailable("streak", "Save", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return streak.Streak{}, shared.Unavailable("streak", "Save", err)
	}
	if n == 0 {
		return streak.Streak{}, shared.ErrStreakConflict
	}

	st.Version++
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStreak(row rowScanner) (streak.Streak, error) {
	var (
		st        streak.Streak
		studentID string
		lastDate  string
	)
	if err := row.Scan(&studentID, &st.Current, &st.Longest, &lastDate, &st.Version); err != nil {
		return streak.Streak{}, err
	}
	st.StudentID = shared.StudentID(studentID)
	if lastDate != "" {
		d, err := shared.ParseCalendarDate(lastDate)
		if err != nil {
			return streak.Streak{}, fmt.Errorf("parse last_activity_date: %w", err)
		}
		st.LastActivityDate = d
	}
	return st, nil
}

var _ streak.Repository = (*StreakStore)(nil)

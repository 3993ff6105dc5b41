package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/student"
)

// StudentStore implements student.Repository (the roster) on SQLite.
type StudentStore struct {
	db *sql.DB
}

// NewStudentStore creates a new StudentStore.
func NewStudentStore(db *sql.DB) *StudentStore {
	return &StudentStore{db: db}
}

// GetByIDs returns roster records for the given IDs.
func (s *StudentStore) GetByIDs(ctx context.Context, ids []shared.StudentID) (map[shared.StudentID]student.Student, error) {
	out := make(map[shared.StudentID]student.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, institution_id, class_id FROM students
		 WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, shared.Unavailable("student", "GetByIDs", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, institution, class string
		if err := rows.Scan(&id, &name, &institution, &class); err != nil {
			return nil, shared.Unavailable("student", "GetByIDs", err)
		}
		st := student.Student{
			ID:            shared.StudentID(id),
			Name:          name,
			InstitutionID: shared.InstitutionID(institution),
			ClassID:       shared.ClassID(class),
		}
		out[st.ID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("student", "GetByIDs", err)
	}
	return out, nil
}

// Upsert creates or updates roster records in one transaction.
func (s *StudentStore) Upsert(ctx context.Context, students []student.Student) error {
	for _, st := range students {
		if err := st.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return shared.Unavailable("student", "Upsert", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for _, st := range students {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO students (id, name, institution_id, class_id, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				institution_id = excluded.institution_id,
				class_id = excluded.class_id,
				updated_at = excluded.updated_at`,
			st.ID.String(), st.Name, st.InstitutionID.String(), st.ClassID.String(), now,
		)
		if err != nil {
			return shared.Unavailable("student", "Upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return shared.Unavailable("student", "Upsert", err)
	}
	return nil
}

var _ student.Repository = (*StudentStore)(nil)

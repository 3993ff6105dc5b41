package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT (ROSTER) REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// GetByIDs returns roster records for the given IDs.
func (r *StudentRepository) GetByIDs(ctx context.Context, ids []shared.StudentID) (map[shared.StudentID]student.Student, error) {
	out := make(map[shared.StudentID]student.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, name, institution_id, class_id
		FROM students
		WHERE id = ANY($1)`,
		idStrings(ids),
	)
	if err != nil {
		return nil, storageError("student", "GetByIDs", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, institution, class string
		if err := rows.Scan(&id, &name, &institution, &class); err != nil {
			return nil, storageError("student", "GetByIDs", err)
		}
		out[shared.StudentID(id)] = student.Student{
			ID:            shared.StudentID(id),
			Name:          name,
			InstitutionID: shared.InstitutionID(institution),
			ClassID:       shared.ClassID(class),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("student", "GetByIDs", err)
	}
	return out, nil
}

// Upsert creates or updates roster records in one transaction.
func (r *StudentRepository) Upsert(ctx context.Context, students []student.Student) error {
	for _, s := range students {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range students {
			batch.Queue(`
				INSERT INTO students (id, name, institution_id, class_id, updated_at)
				VALUES ($1, $2, $3, $4, NOW())
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					institution_id = EXCLUDED.institution_id,
					class_id = EXCLUDED.class_id,
					updated_at = NOW()`,
				s.ID.String(), s.Name, s.InstitutionID.String(), s.ClassID.String(),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return storageError("student", "Upsert", err)
	}
	return nil
}

var _ student.Repository = (*StudentRepository)(nil)

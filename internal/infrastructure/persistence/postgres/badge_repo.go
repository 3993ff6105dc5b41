package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Definitions
// ─────────────────────────────────────────────────────────────────────────────

// ListDefinitions returns definitions ordered by ID.
func (r *BadgeRepository) ListDefinitions(ctx context.Context, activeOnly bool) ([]badge.Definition, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, description, icon, category, xp_reward, is_active, criteria
		FROM badge_definitions
		WHERE ($1 = FALSE OR is_active)
		ORDER BY id`,
		activeOnly,
	)
	if err != nil {
		return nil, storageError("badge", "ListDefinitions", err)
	}
	defer rows.Close()

	defs := make([]badge.Definition, 0)
	for rows.Next() {
		var (
			d        badge.Definition
			criteria []byte
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Icon, &d.Category,
			&d.XPReward, &d.IsActive, &criteria); err != nil {
			return nil, storageError("badge", "ListDefinitions", err)
		}
		// Undecodable criteria stay empty; the rule engine reports them as malformed.
		_ = json.Unmarshal(criteria, &d.Criteria)
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("badge", "ListDefinitions", err)
	}
	return defs, nil
}

// UpsertDefinitions inserts or replaces definitions in one transaction.
func (r *BadgeRepository) UpsertDefinitions(ctx context.Context, defs []badge.Definition) error {
	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return shared.NewDomainError("badge", "UpsertDefinitions", shared.ErrEmptyValue, "badge id is required")
		}
	}

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, d := range defs {
			criteria, err := json.Marshal(d.Criteria)
			if err != nil {
				return fmt.Errorf("marshal criteria for %s: %w", d.ID, err)
			}
			batch.Queue(`
				INSERT INTO badge_definitions (
					id, name, description, icon, category, xp_reward, is_active, criteria, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					description = EXCLUDED.description,
					icon = EXCLUDED.icon,
					category = EXCLUDED.category,
					xp_reward = EXCLUDED.xp_reward,
					is_active = EXCLUDED.is_active,
					criteria = EXCLUDED.criteria,
					updated_at = NOW()`,
				d.ID, d.Name, d.Description, d.Icon, d.Category, d.XPReward, d.IsActive, criteria,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return storageError("badge", "UpsertDefinitions", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Student badges
// ─────────────────────────────────────────────────────────────────────────────

// Insert records an earned badge; a repeated pair is a no-op.
func (r *BadgeRepository) Insert(ctx context.Context, sb badge.StudentBadge) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO student_badges (student_id, badge_id, institution_id, earned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, badge_id) DO NOTHING`,
		sb.StudentID.String(), sb.BadgeID, sb.InstitutionID.String(), sb.EarnedAt.UTC(),
	)
	if err != nil {
		return false, storageError("badge", "Insert", err)
	}
	return tag.RowsAffected() == 1, nil
}

// EarnedIDs returns the set of badge IDs the student holds.
func (r *BadgeRepository) EarnedIDs(ctx context.Context, studentID shared.StudentID) (map[string]struct{}, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT badge_id FROM student_badges WHERE student_id = $1`, studentID.String())
	if err != nil {
		return nil, storageError("badge", "EarnedIDs", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageError("badge", "EarnedIDs", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ListEarned returns the student's badges ordered by earn time.
func (r *BadgeRepository) ListEarned(ctx context.Context, studentID shared.StudentID) ([]badge.StudentBadge, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT student_id, badge_id, institution_id, earned_at
		FROM student_badges
		WHERE student_id = $1
		ORDER BY earned_at, badge_id`,
		studentID.String(),
	)
	if err != nil {
		return nil, storageError("badge", "ListEarned", err)
	}
	defer rows.Close()

	out := make([]badge.StudentBadge, 0)
	for rows.Next() {
		var (
			student, institution string
			sb                   badge.StudentBadge
			earnedAt             time.Time
		)
		if err := rows.Scan(&student, &sb.BadgeID, &institution, &earnedAt); err != nil {
			return nil, storageError("badge", "ListEarned", err)
		}
		sb.StudentID = shared.StudentID(student)
		sb.InstitutionID = shared.InstitutionID(institution)
		sb.EarnedAt = earnedAt.UTC()
		out = append(out, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("badge", "ListEarned", err)
	}
	return out, nil
}

// CountByStudents returns badge counts for the given students.
func (r *BadgeRepository) CountByStudents(ctx context.Context, studentIDs []shared.StudentID) (map[shared.StudentID]int, error) {
	counts := make(map[shared.StudentID]int, len(studentIDs))
	if len(studentIDs) == 0 {
		return counts, nil
	}

	rows, err := r.conn.Query(ctx, `
		SELECT student_id, COUNT(*)
		FROM student_badges
		WHERE student_id = ANY($1)
		GROUP BY student_id`,
		idStrings(studentIDs),
	)
	if err != nil {
		return nil, storageError("badge", "CountByStudents", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, storageError("badge", "CountByStudents", err)
		}
		counts[shared.StudentID(id)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("badge", "CountByStudents", err)
	}
	return counts, nil
}

// idStrings converts typed IDs for an ANY($n) parameter.
func idStrings(ids []shared.StudentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

var _ badge.Repository = (*BadgeRepository)(nil)

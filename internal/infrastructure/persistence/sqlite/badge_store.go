package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// BadgeStore implements badge.Repository on SQLite.
type BadgeStore struct {
	db *sql.DB
}

// NewBadgeStore creates a new BadgeStore.
func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

// ListDefinitions returns definitions ordered by ID.
func (s *BadgeStore) ListDefinitions(ctx context.Context, activeOnly bool) ([]badge.Definition, error) {
	query := `
		SELECT id, name, description, icon, category, xp_reward, is_active, criteria
		FROM badge_definitions`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, shared.Unavailable("badge", "ListDefinitions", err)
	}
	defer rows.Close()

	defs := make([]badge.Definition, 0)
	for rows.Next() {
		var (
			d        badge.Definition
			criteria string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Icon, &d.Category,
			&d.XPReward, &d.IsActive, &criteria); err != nil {
			return nil, shared.Unavailable("badge", "ListDefinitions", err)
		}
		// Undecodable criteria stay empty; the rule engine reports them as malformed.
		_ = json.Unmarshal([]byte(criteria), &d.Criteria)
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("badge", "ListDefinitions", err)
	}
	return defs, nil
}

// UpsertDefinitions inserts or replaces definitions in one transaction.
func (s *BadgeStore) UpsertDefinitions(ctx context.Context, defs []badge.Definition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return shared.Unavailable("badge", "UpsertDefinitions", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return shared.NewDomainError("badge", "UpsertDefinitions", shared.ErrEmptyValue, "badge id is required")
		}
		criteria, err := json.Marshal(d.Criteria)
		if err != nil {
			return fmt.Errorf("marshal criteria for %s: %w", d.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO badge_definitions (
				id, name, description, icon, category, xp_reward, is_active, criteria, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				icon = excluded.icon,
				category = excluded.category,
				xp_reward = excluded.xp_reward,
				is_active = excluded.is_active,
				criteria = excluded.criteria,
				updated_at = excluded.updated_at`,
			d.ID, d.Name, d.Description, d.Icon, d.Category, d.XPReward, d.IsActive, string(criteria), now,
		)
		if err != nil {
			return shared.Unavailable("badge", "UpsertDefinitions", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return shared.Unavailable("badge", "UpsertDefinitions", err)
	}
	return nil
}

// Insert records an earned badge; a repeated pair is a no-op.
func (s *BadgeStore) Insert(ctx context.Context, sb badge.StudentBadge) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO student_badges (student_id, badge_id, institution_id, earned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (student_id, badge_id) DO NOTHING`,
		sb.StudentID.String(), sb.BadgeID, sb.InstitutionID.String(), formatTime(sb.EarnedAt),
	)
	if err != nil {
		return false, shared.Unavailable("badge", "Insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, shared.Unavailable("badge", "Insert", err)
	}
	return n == 1, nil
}

// EarnedIDs returns the set of badge IDs the student holds.
func (s *BadgeStore) EarnedIDs(ctx context.Context, studentID shared.StudentID) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT badge_id FROM student_badges WHERE student_id = ?`, studentID.String())
	if err != nil {
		return nil, shared.Unavailable("badge", "EarnedIDs", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.Unavailable("badge", "EarnedIDs", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("badge", "EarnedIDs", err)
	}
	return ids, nil
}

// ListEarned returns the student's badges ordered by earn time.
func (s *BadgeStore) ListEarned(ctx context.Context, studentID shared.StudentID) ([]badge.StudentBadge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, badge_id, institution_id, earned_at
		FROM student_badges
		WHERE student_id = ?
		ORDER BY earned_at, badge_id`,
		studentID.String(),
	)
	if err != nil {
		return nil, shared.Unavailable("badge", "ListEarned", err)
	}
	defer rows.Close()

	out := make([]badge.StudentBadge, 0)
	for rows.Next() {
		var (
			sb                   badge.StudentBadge
			student, institution string
			earnedAt             string
		)
		if err := rows.Scan(&student, &sb.BadgeID, &institution, &earnedAt); err != nil {
			return nil, shared.Unavailable("badge", "ListEarned", err)
		}
		sb.StudentID = shared.StudentID(student)
		sb.InstitutionID = shared.InstitutionID(institution)
		if sb.EarnedAt, err = parseTime(earnedAt); err != nil {
			return nil, err
		}
		out = append(out, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("badge", "ListEarned", err)
	}
	return out, nil
}

// CountByStudents returns badge counts for the given students.
func (s *BadgeStore) CountByStudents(ctx context.Context, studentIDs []shared.StudentID) (map[shared.StudentID]int, error) {
	counts := make(map[shared.StudentID]int, len(studentIDs))
	if len(studentIDs) == 0 {
		return counts, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, COUNT(*) FROM student_badges
		 WHERE student_id IN (`+placeholders(len(studentIDs))+`)
		 GROUP BY student_id`,
		stringArgs(studentIDs)...,
	)
	if err != nil {
		return nil, shared.Unavailable("badge", "CountByStudents", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, shared.Unavailable("badge", "CountByStudents", err)
		}
		counts[shared.StudentID(id)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("badge", "CountByStudents", err)
	}
	return counts, nil
}

var _ badge.Repository = (*BadgeStore)(nil)

package badge

import (
	"context"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища бейджей.
type Repository interface {
	// ──────────────────────────────────────────────────────────────────────────
	// DEFINITIONS
	// ──────────────────────────────────────────────────────────────────────────

	// ListDefinitions возвращает все определения (activeOnly=true - только активные).
	ListDefinitions(ctx context.Context, activeOnly bool) ([]Definition, error)

	// UpsertDefinitions создаёт или обновляет определения (импорт каталога).
	UpsertDefinitions(ctx context.Context, defs []Definition) error

	// ──────────────────────────────────────────────────────────────────────────
	// STUDENT BADGES
	// ──────────────────────────────────────────────────────────────────────────

	// Insert записывает получение бейджа. Повторная вставка той же пары
	// (student_id, badge_id) возвращает inserted=false без ошибки.
	Insert(ctx context.Context, sb StudentBadge) (inserted bool, err error)

	// EarnedIDs возвращает множество ID полученных студентом бейджей.
	EarnedIDs(ctx context.Context, studentID shared.StudentID) (map[string]struct{}, error)

	// ListEarned возвращает полученные бейджи по дате получения.
	ListEarned(ctx context.Context, studentID shared.StudentID) ([]StudentBadge, error)

	// CountByStudents возвращает количество бейджей для набора студентов одним запросом.
	// Студенты без бейджей в карте отсутствуют.
	CountByStudents(ctx context.Context, studentIDs []shared.StudentID) (map[shared.StudentID]int, error)
}

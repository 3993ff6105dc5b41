package student

import (
	"context"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository - провайдер ростера.
type Repository interface {
	// GetByIDs возвращает студентов по набору ID одним запросом.
	// Неизвестные ID в карте отсутствуют.
	GetByIDs(ctx context.Context, ids []shared.StudentID) (map[shared.StudentID]Student, error)

	// Upsert создаёт или обновляет записи ростера.
	Upsert(ctx context.Context, students []Student) error
}

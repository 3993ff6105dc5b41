package leaderboard

import (
	"context"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт чтения сумм для построения лидерборда.
type Repository interface {
	// TotalsInScope возвращает суммы очков по (студент, тип активности)
	// для всех студентов области. Фильтр по классу идёт через членство
	// студента в классе (таблица ростера).
	TotalsInScope(ctx context.Context, scope Scope) ([]ledger.TypeTotal, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Board - готовый ответ, который кладётся в кеш.
type Board struct {
	Entries []*Entry `json:"entries"`

	// TotalCount - число студентов в области до усечения.
	TotalCount int `json:"total_count"`
}

// Cache определяет контракт кеша готовых ответов.
// Отделён от основного репозитория для гибкости (Redis, in-memory, none).
//
// Записи привязаны к поколению. Читатель берёт Generation до расчёта и
// сохраняет результат под ним же: если за время расчёта прошёл
// InvalidateAll, запись сразу недостижима.
type Cache interface {
	// Generation возвращает текущее поколение кеша.
	Generation(ctx context.Context) (int64, error)

	// GetTop возвращает закешированный топ. Промах - (nil, false, nil).
	GetTop(ctx context.Context, gen int64, scope Scope, limit int) (*Board, bool, error)

	// SetTop сохраняет топ под поколением gen с TTL.
	SetTop(ctx context.Context, gen int64, scope Scope, limit int, board *Board, ttl time.Duration) error

	// InvalidateAll начинает новое поколение.
	InvalidateAll(ctx context.Context) error
}

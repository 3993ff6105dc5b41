package ledger

import (
	"context"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт журнала начислений.
// Реализации: PostgreSQL (production) и SQLite (встраиваемое хранилище).
//
// Журнал только дополняется: методов обновления и удаления нет намеренно.
type Repository interface {
	// ──────────────────────────────────────────────────────────────────────────
	// WRITE
	// ──────────────────────────────────────────────────────────────────────────

	// Append добавляет запись. Если запись с тем же
	// (student_id, activity_type, activity_id) уже есть, ничего не делает и
	// возвращает inserted=false без ошибки. Проверка и вставка атомарны:
	// уникальность обеспечивает хранилище, а не чтение перед записью.
	Append(ctx context.Context, tx Transaction) (inserted bool, err error)

	// ──────────────────────────────────────────────────────────────────────────
	// AGGREGATES
	// ──────────────────────────────────────────────────────────────────────────

	// SumByStudent возвращает сумму очков студента; при activityType != nil -
	// только по этому типу.
	SumByStudent(ctx context.Context, studentID shared.StudentID, activityType *ActivityType) (int64, error)

	// SumsByType возвращает суммы очков студента по каждому типу одним запросом.
	SumsByType(ctx context.Context, studentID shared.StudentID) (map[ActivityType]int64, error)

	// CountByType возвращает количество записей данного типа.
	CountByType(ctx context.Context, studentID shared.StudentID, activityType ActivityType) (int64, error)

	// CountDistinctActivities возвращает количество различных activity_id данного типа.
	// Записи без activity_id не учитываются.
	CountDistinctActivities(ctx context.Context, studentID shared.StudentID, activityType ActivityType) (int64, error)

	// HasTransactionOnDate проверяет наличие записи данного типа за календарный день.
	HasTransactionOnDate(ctx context.Context, studentID shared.StudentID, activityType ActivityType, date shared.CalendarDate) (bool, error)
}

// TypeFilter - помощник для необязательного фильтра SumByStudent.
func TypeFilter(t ActivityType) *ActivityType {
	return &t
}

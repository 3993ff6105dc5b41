package streak

import (
	"context"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// Repository определяет контракт хранилища серий.
type Repository interface {
	// Get возвращает серию студента. Если записи нет - New(studentID) без ошибки.
	Get(ctx context.Context, studentID shared.StudentID) (Streak, error)

	// GetMany возвращает серии набора студентов одним запросом.
	// Студенты без записи в карте отсутствуют.
	GetMany(ctx context.Context, studentIDs []shared.StudentID) (map[shared.StudentID]Streak, error)

	// Save сохраняет s при условии, что версия в хранилище равна s.Version
	// (0 - записи не было). Возвращает сохранённую серию с новой версией.
	// При конфликте возвращает shared.ErrStreakConflict.
	Save(ctx context.Context, s Streak) (Streak, error)
}

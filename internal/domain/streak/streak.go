// Package streak содержит модель серии ежедневной активности студента.
// Серия - маленький конечный автомат: состояние меняется только через Record,
// конкурентный доступ разрешается номером версии (оптимистичная блокировка).
package streak

import (
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// Streak - текущее состояние серии студента.
type Streak struct {
	StudentID shared.StudentID

	// Current - текущая серия (>= 1 после любой активности).
	Current int

	// Longest - лучшая серия, никогда не уменьшается.
	Longest int

	// LastActivityDate - календарный день последней учтённой активности.
	// Двигается только вперёд.
	LastActivityDate shared.CalendarDate

	// Version - токен оптимистичной блокировки. 0 - записи ещё нет.
	Version int64
}

// New создаёт пустую серию (записи ещё нет).
func New(studentID shared.StudentID) Streak {
	return Streak{StudentID: studentID}
}

// Exists - есть ли у студента сохранённая запись.
func (s Streak) Exists() bool {
	return s.Version > 0 || !s.LastActivityDate.IsZero()
}

// Outcome описывает результат перехода.
type Outcome struct {
	// Advanced - last_activity_date сдвинулась на новый день.
	// Только такой переход даёт ежедневный бонус и проверку вех.
	Advanced bool

	// WasReset - серия прервалась и началась заново.
	WasReset bool

	// Previous - значение Current до перехода.
	Previous int
}

// Record применяет активность за день date и возвращает новое состояние.
//
//   - первой активности: 1/1/date;
//   - тот же день: без изменений;
//   - следующий день: +1, longest = max;
//   - пропуск дня и более: сброс до 1, longest сохраняется;
//   - день раньше последнего (запоздалое событие): без изменений.
func (s Streak) Record(date shared.CalendarDate) (Streak, Outcome) {
	out := Outcome{Previous: s.Current}

	if !s.Exists() {
		s.Current = 1
		s.Longest = max(s.Longest, 1)
		s.LastActivityDate = date
		out.Advanced = true
		return s, out
	}

	gap := s.LastActivityDate.DaysUntil(date)
	switch {
	case gap <= 0:
		return s, out
	case gap == 1:
		s.Current++
	default:
		s.Current = 1
		out.WasReset = true
	}
	s.Longest = max(s.Longest, s.Current)
	s.LastActivityDate = date
	out.Advanced = true
	return s, out
}

// EffectiveCurrent возвращает серию для отображения на дату today.
// Если последняя активность раньше вчерашнего дня, серия уже прервана,
// хотя запись обновится только при следующей активности.
func (s Streak) EffectiveCurrent(today shared.CalendarDate) int {
	if !s.Exists() {
		return 0
	}
	if s.LastActivityDate.DaysUntil(today) > 1 {
		return 0
	}
	return s.Current
}

// IsActiveOn - была ли активность в день today.
func (s Streak) IsActiveOn(today shared.CalendarDate) bool {
	return s.Exists() && s.LastActivityDate.Equal(today)
}

// Package leaderboard содержит доменную модель лидерборда.
// Лидерборд нигде не хранится: это проекция журнала начислений,
// вычисляемая на каждый запрос (кеш в Redis - только кеш ответа).
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию студента в лидерборде.
// Rank начинается с 1 (первое место).
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// Scope - область лидерборда. Пустые поля означают отсутствие фильтра.
// Лидерборд класса и лидерборд учреждения - один алгоритм с разной областью.
type Scope struct {
	InstitutionID shared.InstitutionID
	ClassID       shared.ClassID
}

// IsClass - фильтр по классу.
func (s Scope) IsClass() bool {
	return !s.ClassID.IsEmpty()
}

// IsGlobal - без фильтров.
func (s Scope) IsGlobal() bool {
	return s.InstitutionID.IsEmpty() && s.ClassID.IsEmpty()
}

// Key возвращает стабильный ключ области для кеширования.
func (s Scope) Key() string {
	inst := s.InstitutionID.String()
	if inst == "" {
		inst = "*"
	}
	class := s.ClassID.String()
	if class == "" {
		class = "*"
	}
	return inst + ":" + class
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну запись в лидерборде.
type Entry struct {
	Rank      Rank             `json:"rank"`
	StudentID shared.StudentID `json:"student_id"`

	// Поля обогащения: заполняются только для строк, попавших в лимит.
	StudentName   string               `json:"student_name"`
	InstitutionID shared.InstitutionID `json:"institution_id"`
	ClassID       shared.ClassID       `json:"class_id,omitempty"`
	BadgesEarned  int                  `json:"badges_earned"`
	StreakDays    int                  `json:"streak_days"`

	TotalPoints int64            `json:"total_points"`
	Breakdown   ledger.Breakdown `json:"points_breakdown"`
}

// Clone возвращает копию записи со своей картой Breakdown.
func (e *Entry) Clone() Entry {
	c := *e
	if e.Breakdown != nil {
		c.Breakdown = make(ledger.Breakdown, len(e.Breakdown))
		for k, v := range e.Breakdown {
			c.Breakdown[k] = v
		}
	}
	return c
}

// String возвращает строковое представление для логирования.
func (e *Entry) String() string {
	return fmt.Sprintf("%s %s (%d XP)", e.Rank, e.StudentID, e.TotalPoints)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Ranking - отсортированный список записей.
type Ranking struct {
	entries []*Entry
	byID    map[shared.StudentID]*Entry
}

// Build группирует суммы по (студент, тип активности) в записи,
// сортирует и присваивает ранги. Вход может идти в любом порядке.
func Build(totals []ledger.TypeTotal) *Ranking {
	r := &Ranking{byID: make(map[shared.StudentID]*Entry)}
	for _, t := range totals {
		e, ok := r.byID[t.StudentID]
		if !ok {
			e = &Entry{StudentID: t.StudentID, Breakdown: ledger.NewBreakdown()}
			r.byID[t.StudentID] = e
			r.entries = append(r.entries, e)
		}
		e.TotalPoints += t.Points
		e.Breakdown.Add(t.ActivityType, t.Points)
	}
	r.sortByPoints()
	return r
}

// sortByPoints сортирует по убыванию очков и присваивает позиционные ранги.
// Равные очки упорядочиваются по ID студента, чтобы результат не зависел
// от порядка строк из хранилища.
func (r *Ranking) sortByPoints() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].TotalPoints != r.entries[j].TotalPoints {
			return r.entries[i].TotalPoints > r.entries[j].TotalPoints
		}
		return r.entries[i].StudentID < r.entries[j].StudentID
	})
	for i, e := range r.entries {
		e.Rank = Rank(i + 1)
	}
}

// Top возвращает первые n записей.
func (r *Ranking) Top(n int) []*Entry {
	if n <= 0 || n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]*Entry, n)
	copy(out, r.entries[:n])
	return out
}

// GetByID возвращает запись по ID студента.
func (r *Ranking) GetByID(studentID shared.StudentID) *Entry {
	return r.byID[studentID]
}

// Count возвращает общее количество записей.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// StudentIDs возвращает ID студентов набора записей в порядке рангов.
func StudentIDs(entries []*Entry) []shared.StudentID {
	ids := make([]shared.StudentID, len(entries))
	for i, e := range entries {
		ids[i] = e.StudentID
	}
	return ids
}

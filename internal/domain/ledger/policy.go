package ledger

import (
	"fmt"
	"sort"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINT POLICY
// Таблица очков - это политика, а не механизм. Механизм (идемпотентная запись
// и последующая оценка) не зависит от конкретных чисел.
// ══════════════════════════════════════════════════════════════════════════════

// Policy хранит стоимость каждого типа активности и бонусы за вехи серии.
type Policy struct {
	// Points - очки за тип активности.
	Points map[ActivityType]int

	// Milestones - длина серии в днях -> бонус.
	Milestones map[int]int
}

// DefaultPolicy возвращает значения по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		Points: map[ActivityType]int{
			ActivityAssessmentCompletion: 10,
			ActivityAssessmentPass:       25,
			ActivityAssessmentPerfect:    25,
			ActivitySessionAttendance:    5,
			ActivityLevelCompletion:      100,
			ActivityProjectMembership:    100,
			ActivityProjectAward:         150,
			ActivityCourseCompletion:     500,
			ActivityDailyStreak:          2,
		},
		Milestones: map[int]int{
			7:   25,
			30:  75,
			100: 250,
		},
	}
}

// PointsFor возвращает стоимость типа (0, если не задана).
func (p Policy) PointsFor(t ActivityType) int {
	return p.Points[t]
}

// MilestoneBonus возвращает бонус за серию ровно в days дней.
func (p Policy) MilestoneBonus(days int) (int, bool) {
	bonus, ok := p.Milestones[days]
	return bonus, ok
}

// MilestoneDays возвращает отсортированные длины вех.
func (p Policy) MilestoneDays() []int {
	days := make([]int, 0, len(p.Milestones))
	for d := range p.Milestones {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// Validate проверяет, что политика не содержит отрицательных значений и неизвестных типов.
func (p Policy) Validate() error {
	for t, v := range p.Points {
		if !t.IsKnown() {
			return shared.WrapError("ledger", "ValidatePolicy", shared.ErrInvalidInput,
				fmt.Sprintf("unknown activity type %q", t), shared.ErrUnknownActivityType)
		}
		if v < 0 {
			return shared.NewDomainError("ledger", "ValidatePolicy", shared.ErrNegativeValue,
				fmt.Sprintf("points for %s cannot be negative", t))
		}
	}
	for d, v := range p.Milestones {
		if d <= 0 || v < 0 {
			return shared.NewDomainError("ledger", "ValidatePolicy", shared.ErrValueOutOfRange,
				fmt.Sprintf("invalid milestone %d -> %d", d, v))
		}
	}
	return nil
}

// Merge накладывает непустые значения other поверх p и возвращает копию.
func (p Policy) Merge(other Policy) Policy {
	out := p.Clone()
	for t, v := range other.Points {
		out.Points[t] = v
	}
	if len(other.Milestones) > 0 {
		out.Milestones = make(map[int]int, len(other.Milestones))
		for d, v := range other.Milestones {
			out.Milestones[d] = v
		}
	}
	return out
}

// Clone возвращает глубокую копию.
func (p Policy) Clone() Policy {
	out := Policy{
		Points:     make(map[ActivityType]int, len(p.Points)),
		Milestones: make(map[int]int, len(p.Milestones)),
	}
	for t, v := range p.Points {
		out.Points[t] = v
	}
	for d, v := range p.Milestones {
		out.Milestones[d] = v
	}
	return out
}

// PolicyProvider отдаёт текущую политику. Реализация может перечитывать файл на лету.
type PolicyProvider interface {
	Current() Policy
}

// StaticPolicy - неизменяемый PolicyProvider.
type StaticPolicy Policy

// Current implements PolicyProvider.
func (s StaticPolicy) Current() Policy {
	return Policy(s)
}

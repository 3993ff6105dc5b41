// Package ledger содержит доменную модель журнала начислений XP.
// Журнал - единственный источник истины: итоги и разбивки по категориям
// всегда вычисляются суммированием, никогда не хранятся отдельно.
package ledger

import (
	"strings"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY TYPES
// ══════════════════════════════════════════════════════════════════════════════

// ActivityType - тип активности, за которую начисляются очки.
type ActivityType string

const (
	ActivityAssessmentCompletion ActivityType = "assessment_completion"
	ActivityAssessmentPass       ActivityType = "assessment_pass"
	ActivityAssessmentPerfect    ActivityType = "assessment_perfect_score"
	ActivitySessionAttendance    ActivityType = "session_attendance"
	ActivityLevelCompletion      ActivityType = "level_completion"
	ActivityProjectMembership    ActivityType = "project_membership"
	ActivityProjectAward         ActivityType = "project_award"
	ActivityDailyStreak          ActivityType = "daily_streak"
	ActivityStreakMilestone      ActivityType = "streak_milestone"
	ActivityCourseCompletion     ActivityType = "course_completion"
	ActivityBadgeReward          ActivityType = "badge_reward"
)

// AllActivityTypes возвращает все известные типы в стабильном порядке.
func AllActivityTypes() []ActivityType {
	return []ActivityType{
		ActivityAssessmentCompletion,
		ActivityAssessmentPass,
		ActivityAssessmentPerfect,
		ActivitySessionAttendance,
		ActivityLevelCompletion,
		ActivityProjectMembership,
		ActivityProjectAward,
		ActivityDailyStreak,
		ActivityStreakMilestone,
		ActivityCourseCompletion,
		ActivityBadgeReward,
	}
}

// IsKnown проверяет, что тип входит в перечисление.
func (t ActivityType) IsKnown() bool {
	_, ok := categoryByType[t]
	return ok
}

// IsDerived - строку этого типа порождает само ядро (бонус серии, веха,
// награда за бейдж). Снаружи такие типы не принимаются.
func (t ActivityType) IsDerived() bool {
	switch t {
	case ActivityDailyStreak, ActivityStreakMilestone, ActivityBadgeReward:
		return true
	default:
		return false
	}
}

// QualifiesForStreak - продлевает ли активность серию.
// Бонусы, которые сама серия и бейджи порождают, серию не продлевают.
func (t ActivityType) QualifiesForStreak() bool {
	return t.IsKnown() && !t.IsDerived()
}

// String возвращает строковое представление.
func (t ActivityType) String() string {
	return string(t)
}

// ParseActivityType нормализует и проверяет тип.
func ParseActivityType(value string) (ActivityType, error) {
	t := ActivityType(strings.ToLower(strings.TrimSpace(value)))
	if !t.IsKnown() {
		return "", shared.ErrUnknownActivityType
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORIES
// ══════════════════════════════════════════════════════════════════════════════

// Category - отображаемая категория разбивки очков.
// Несколько сырых типов активности сводятся в одну категорию.
type Category string

const (
	CategorySessions     Category = "sessions"
	CategoryProjects     Category = "projects"
	CategoryAssessments  Category = "assessments"
	CategoryLevels       Category = "levels"
	CategoryAchievements Category = "achievements"
)

// AllCategories возвращает категории в порядке отображения.
func AllCategories() []Category {
	return []Category{
		CategorySessions,
		CategoryProjects,
		CategoryAssessments,
		CategoryLevels,
		CategoryAchievements,
	}
}

var categoryByType = map[ActivityType]Category{
	ActivityAssessmentCompletion: CategoryAssessments,
	ActivityAssessmentPass:       CategoryAssessments,
	ActivityAssessmentPerfect:    CategoryAssessments,
	ActivitySessionAttendance:    CategorySessions,
	ActivityLevelCompletion:      CategoryLevels,
	ActivityCourseCompletion:     CategoryLevels,
	ActivityProjectMembership:    CategoryProjects,
	ActivityProjectAward:         CategoryProjects,
	ActivityDailyStreak:          CategoryAchievements,
	ActivityStreakMilestone:      CategoryAchievements,
	ActivityBadgeReward:          CategoryAchievements,
}

// Category возвращает категорию для типа активности.
func (t ActivityType) Category() (Category, bool) {
	c, ok := categoryByType[t]
	return c, ok
}

// Breakdown - очки по категориям.
type Breakdown map[Category]int64

// NewBreakdown создаёт разбивку со всеми категориями, равными нулю.
func NewBreakdown() Breakdown {
	b := make(Breakdown, len(categoryByType))
	for _, c := range AllCategories() {
		b[c] = 0
	}
	return b
}

// Add добавляет очки типа активности в соответствующую категорию.
// Неизвестные типы игнорируются: они учитываются в итоге, но не в разбивке.
func (b Breakdown) Add(t ActivityType, points int64) {
	if c, ok := t.Category(); ok {
		b[c] += points
	}
}

// BreakdownFromTotals сворачивает суммы по типам в категории.
func BreakdownFromTotals(byType map[ActivityType]int64) Breakdown {
	b := NewBreakdown()
	for t, p := range byType {
		b.Add(t, p)
	}
	return b
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

// Transaction - неизменяемая запись о начислении очков.
// Ключ идемпотентности: (StudentID, ActivityType, ActivityID) при непустом ActivityID.
type Transaction struct {
	ID            string
	StudentID     shared.StudentID
	InstitutionID shared.InstitutionID
	ActivityType  ActivityType

	// ActivityID - ссылка на конкретный экземпляр активности (попытка, занятие, проект).
	// Пустая строка означает "без ключа идемпотентности".
	ActivityID string

	Points      int
	EarnedAt    time.Time
	EarnedDate  shared.CalendarDate
	Description string
}

// HasActivityID - участвует ли запись в проверке идемпотентности.
func (t Transaction) HasActivityID() bool {
	return t.ActivityID != ""
}

// Validate проверяет инварианты записи перед добавлением в журнал.
func (t Transaction) Validate() error {
	if t.StudentID.IsEmpty() {
		return shared.ErrMissingStudent
	}
	if t.InstitutionID.IsEmpty() {
		return shared.ErrMissingInstitution
	}
	if !t.ActivityType.IsKnown() {
		return shared.ErrUnknownActivityType
	}
	if t.Points < 0 {
		return shared.ErrNegativePoints
	}
	if t.ID == "" || t.EarnedAt.IsZero() || t.EarnedDate.IsZero() {
		return shared.NewDomainError("ledger", "Validate", shared.ErrInvalidState, "transaction is not initialized")
	}
	return nil
}

// TypeTotal - сумма очков студента по одному типу активности.
// Это строка результата сгруппированного запроса для лидерборда.
type TypeTotal struct {
	StudentID    shared.StudentID
	ActivityType ActivityType
	Points       int64
}

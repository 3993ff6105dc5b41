// Package badge содержит доменную модель бейджей: определения, условия
// разблокировки и записи о полученных бейджах.
// Правила разблокировки вычисляются чистой функцией Evaluate (rules.go),
// хранилище только отвечает за определения и идемпотентную вставку.
package badge

import (
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// CriteriaType - агрегат, по которому проверяется условие.
type CriteriaType string

const (
	CriteriaPoints      CriteriaType = "points"
	CriteriaStreak      CriteriaType = "streak"
	CriteriaAssessments CriteriaType = "assessments"
	CriteriaProjects    CriteriaType = "projects"
	CriteriaAttendance  CriteriaType = "attendance"
	CriteriaCustom      CriteriaType = "custom"
)

// IsKnown проверяет, что тип условия поддерживается.
func (t CriteriaType) IsKnown() bool {
	switch t {
	case CriteriaPoints, CriteriaStreak, CriteriaAssessments,
		CriteriaProjects, CriteriaAttendance, CriteriaCustom:
		return true
	}
	return false
}

// CustomKind - явный подтип для условий типа custom.
type CustomKind string

const (
	// CustomPerfectScore - количество идеально сданных оценок.
	CustomPerfectScore CustomKind = "perfect_score"
	// CustomProjectAward - количество наград за проекты.
	CustomProjectAward CustomKind = "project_award"
)

// IsKnown проверяет, что подтип поддерживается.
func (k CustomKind) IsKnown() bool {
	return k == CustomPerfectScore || k == CustomProjectAward
}

// Criteria - условие разблокировки бейджа.
type Criteria struct {
	Type CriteriaType `json:"type" yaml:"type"`

	// Threshold - пороговое значение. nil означает, что условие задано некорректно.
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Kind используется только при Type == custom.
	Kind CustomKind `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// ResolveKind определяет подтип custom-условия.
// Старые определения без Kind распознаются по описанию.
func (c Criteria) ResolveKind() (CustomKind, bool) {
	if c.Kind != "" {
		return c.Kind, c.Kind.IsKnown()
	}
	desc := strings.ToLower(c.Description)
	switch {
	case strings.Contains(desc, "100%"):
		return CustomPerfectScore, true
	case strings.Contains(desc, "award"):
		return CustomProjectAward, true
	}
	return "", false
}

// Validate проверяет, что условие можно вычислить.
func (c Criteria) Validate() error {
	if c.Type == "" {
		return shared.WrapError("badge", "Validate", shared.ErrInvalidFormat, "criteria type is missing", shared.ErrMalformedCriteria)
	}
	if !c.Type.IsKnown() {
		return shared.WrapError("badge", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("criteria type %q", c.Type), shared.ErrUnknownCriteriaType)
	}
	if c.Threshold == nil {
		return shared.WrapError("badge", "Validate", shared.ErrInvalidFormat, "criteria threshold is missing", shared.ErrMalformedCriteria)
	}
	if c.Type == CriteriaCustom {
		if _, ok := c.ResolveKind(); !ok {
			return shared.WrapError("badge", "Validate", shared.ErrInvalidFormat,
				"custom criteria kind cannot be resolved", shared.ErrMalformedCriteria)
		}
	}
	return nil
}

// Threshold - помощник для построения условий в коде и тестах.
func Threshold(v float64) *float64 {
	return &v
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION
// ══════════════════════════════════════════════════════════════════════════════

// Definition - определение бейджа. Создаётся администраторами,
// для движка правил только читается.
type Definition struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Icon        string   `json:"icon" yaml:"icon"`
	Category    string   `json:"category" yaml:"category"`
	XPReward    int      `json:"xp_reward" yaml:"xp_reward"`
	IsActive    bool     `json:"is_active" yaml:"is_active"`
	Criteria    Criteria `json:"criteria" yaml:"criteria"`
}

// Validate проверяет определение целиком.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return shared.NewDomainError("badge", "Validate", shared.ErrEmptyValue, "badge id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return shared.NewDomainError("badge", "Validate", shared.ErrEmptyValue, "badge name is required")
	}
	if d.XPReward < 0 {
		return shared.NewDomainError("badge", "Validate", shared.ErrNegativeValue, "xp reward cannot be negative")
	}
	return d.Criteria.Validate()
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT BADGE
// ══════════════════════════════════════════════════════════════════════════════

// StudentBadge - факт получения бейджа. Не более одной записи на (студент, бейдж).
type StudentBadge struct {
	StudentID     shared.StudentID
	BadgeID       string
	InstitutionID shared.InstitutionID
	EarnedAt      time.Time
}

package student

import (
	"strings"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - запись ростера.
type Student struct {
	ID            shared.StudentID     `json:"id" yaml:"id"`
	Name          string               `json:"name" yaml:"name"`
	InstitutionID shared.InstitutionID `json:"institution_id" yaml:"institution_id"`
	ClassID       shared.ClassID       `json:"class_id,omitempty" yaml:"class_id,omitempty"`
}

// Validate проверяет запись перед импортом.
func (s Student) Validate() error {
	if s.ID.IsEmpty() {
		return shared.ErrMissingStudent
	}
	if s.InstitutionID.IsEmpty() {
		return shared.ErrMissingInstitution
	}
	if strings.TrimSpace(s.Name) == "" {
		return shared.NewDomainError("student", "Validate", shared.ErrEmptyValue, "student name is required")
	}
	return nil
}

// DisplayName возвращает имя или ID, если имя не задано.
func (s Student) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.ID.String()
}

// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"strings"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET XP QUERIES
// Total XP and per-category breakdown, always derived from the ledger.
// ══════════════════════════════════════════════════════════════════════════════

// GetTotalXPQuery requests a student's total.
type GetTotalXPQuery struct {
	StudentID string

	// ActivityType optionally restricts the sum to one type.
	ActivityType string
}

// Validate checks the query.
func (q GetTotalXPQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return shared.ErrMissingStudent
	}
	if q.ActivityType != "" {
		if _, err := ledger.ParseActivityType(q.ActivityType); err != nil {
			return err
		}
	}
	return nil
}

// GetTotalXPResult contains the total.
type GetTotalXPResult struct {
	StudentID    string `json:"student_id"`
	ActivityType string `json:"activity_type,omitempty"`
	TotalXP      int64  `json:"total_xp"`
}

// GetXPBreakdownQuery requests a student's per-category breakdown.
type GetXPBreakdownQuery struct {
	StudentID string
}

// GetXPBreakdownResult contains the breakdown.
type GetXPBreakdownResult struct {
	StudentID string           `json:"student_id"`
	TotalXP   int64            `json:"total_xp"`
	Breakdown ledger.Breakdown `json:"breakdown"`

	// ByActivityType holds the raw sums behind the categories.
	ByActivityType map[ledger.ActivityType]int64 `json:"by_activity_type"`
}

// XPHandler serves both XP queries.
type XPHandler struct {
	ledgerRepo ledger.Repository
}

// NewXPHandler creates a new XPHandler.
func NewXPHandler(ledgerRepo ledger.Repository) *XPHandler {
	return &XPHandler{ledgerRepo: ledgerRepo}
}

// GetTotalXP returns the sum of the student's ledger rows.
func (h *XPHandler) GetTotalXP(ctx context.Context, q GetTotalXPQuery) (*GetTotalXPResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var filter *ledger.ActivityType
	if q.ActivityType != "" {
		t, _ := ledger.ParseActivityType(q.ActivityType)
		filter = ledger.TypeFilter(t)
	}

	studentID := shared.StudentID(strings.TrimSpace(q.StudentID))
	total, err := h.ledgerRepo.SumByStudent(ctx, studentID, filter)
	if err != nil {
		return nil, err
	}

	result := &GetTotalXPResult{StudentID: studentID.String(), TotalXP: total}
	if filter != nil {
		result.ActivityType = filter.String()
	}
	return result, nil
}

// GetXPBreakdown returns totals per display category.
func (h *XPHandler) GetXPBreakdown(ctx context.Context, q GetXPBreakdownQuery) (*GetXPBreakdownResult, error) {
	if strings.TrimSpace(q.StudentID) == "" {
		return nil, shared.ErrMissingStudent
	}

	studentID := shared.StudentID(strings.TrimSpace(q.StudentID))
	byType, err := h.ledgerRepo.SumsByType(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range byType {
		total += p
	}

	return &GetXPBreakdownResult{
		StudentID:      studentID.String(),
		TotalXP:        total,
		Breakdown:      ledger.BreakdownFromTotals(byType),
		ByActivityType: byType,
	}, nil
}

package query

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BADGES QUERY
// Earned badges plus locked ones with progress towards their threshold.
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgesQuery requests a student's badges.
type GetBadgesQuery struct {
	StudentID string
}

// BadgeDTO describes one badge from the student's point of view.
type BadgeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	Category    string `json:"category,omitempty"`
	XPReward    int    `json:"xp_reward"`

	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`

	// Progress is set for locked badges only.
	Progress *ProgressDTO `json:"progress,omitempty"`
}

// ProgressDTO is the progress towards a locked badge.
type ProgressDTO struct {
	Current   int64   `json:"current"`
	Threshold float64 `json:"threshold"`
	Percent   int     `json:"percent"`
}

// GetBadgesResult contains earned and locked badges.
type GetBadgesResult struct {
	StudentID string     `json:"student_id"`
	Earned    []BadgeDTO `json:"earned"`
	Locked    []BadgeDTO `json:"locked"`
}

// GetBadgesHandler handles GetBadgesQuery.
type GetBadgesHandler struct {
	badgeRepo badge.Repository
	loader    *badge.AggregateLoader
	logger    *slog.Logger
}

// NewGetBadgesHandler creates a new handler.
func NewGetBadgesHandler(
	badgeRepo badge.Repository,
	ledgerRepo ledger.Repository,
	streakRepo streak.Repository,
	logger *slog.Logger,
) *GetBadgesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetBadgesHandler{
		badgeRepo: badgeRepo,
		loader:    badge.NewAggregateLoader(ledgerRepo, streakRepo),
		logger:    logger,
	}
}

// Handle returns earned badges (newest first) and active locked badges with
// progress. Earned badges whose definition was deactivated are still listed.
func (h *GetBadgesHandler) Handle(ctx context.Context, q GetBadgesQuery) (*GetBadgesResult, error) {
	if strings.TrimSpace(q.StudentID) == "" {
		return nil, shared.ErrMissingStudent
	}
	studentID := shared.StudentID(strings.TrimSpace(q.StudentID))

	defs, err := h.badgeRepo.ListDefinitions(ctx, false)
	if err != nil {
		return nil, err
	}
	earned, err := h.badgeRepo.ListEarned(ctx, studentID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]badge.Definition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	result := &GetBadgesResult{
		StudentID: studentID.String(),
		Earned:    make([]BadgeDTO, 0, len(earned)),
		Locked:    make([]BadgeDTO, 0),
	}

	earnedSet := make(map[string]struct{}, len(earned))
	for _, sb := range earned {
		earnedSet[sb.BadgeID] = struct{}{}
		def, ok := byID[sb.BadgeID]
		if !ok {
			def = badge.Definition{ID: sb.BadgeID, Name: sb.BadgeID}
		}
		dto := toBadgeDTO(def)
		dto.Earned = true
		earnedAt := sb.EarnedAt
		dto.EarnedAt = &earnedAt
		result.Earned = append(result.Earned, dto)
	}
	sort.SliceStable(result.Earned, func(i, j int) bool {
		return result.Earned[i].EarnedAt.After(*result.Earned[j].EarnedAt)
	})

	locked := badge.Candidates(defs, earnedSet)
	if len(locked) == 0 {
		return result, nil
	}

	agg, err := h.loader.Load(ctx, studentID, badge.RequiredMetrics(locked))
	if err != nil {
		// Read paths propagate storage failures as-is.
		return nil, err
	}

	for _, d := range locked {
		dto := toBadgeDTO(d)
		if p, ok := badge.ProgressFor(d, agg); ok {
			dto.Progress = &ProgressDTO{Current: p.Current, Threshold: p.Threshold, Percent: p.Percent}
		} else {
			h.logger.Warn("badge has malformed criteria", "badge_id", d.ID)
		}
		result.Locked = append(result.Locked, dto)
	}
	sort.SliceStable(result.Locked, func(i, j int) bool {
		return result.Locked[i].ID < result.Locked[j].ID
	})

	return result, nil
}

func toBadgeDTO(d badge.Definition) BadgeDTO {
	return BadgeDTO{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		Category:    d.Category,
		XPReward:    d.XPReward,
	}
}

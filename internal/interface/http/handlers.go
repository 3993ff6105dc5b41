package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/alem-hub/alem-gamification/internal/application/command"
	"github.com/alem-hub/alem-gamification/internal/application/query"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/pkg/logger"
	"github.com/alem-hub/alem-gamification/pkg/validation"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		code := http.StatusOK
		if !status.Ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady answers 503 while a critical dependency (the store) is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// awardResponse is the public shape of command.AwardResult.
type awardResponse struct {
	TransactionID  string            `json:"transaction_id"`
	Inserted       bool              `json:"inserted"`
	Points         int               `json:"points"`
	BonusPoints    int               `json:"bonus_points"`
	EarnedDate     string            `json:"earned_date"`
	CurrentStreak  *int              `json:"current_streak,omitempty"`
	UnlockedBadges []string          `json:"unlocked_badges"`
	Warnings       map[string]string `json:"warnings,omitempty"`

	// Degraded is set when the award was recorded but a follow-up step
	// (streak, badges) failed; the next award re-evaluates everything.
	Degraded bool `json:"degraded,omitempty"`
}

// handleAward handles POST /api/v1/awards.
// 201 for a new row, 200 for a duplicate (idempotent replay).
func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	if s.deps.AwardHandler == nil {
		writeNotConfigured(w, r)
		return
	}

	var cmd command.AwardCommand
	dec := json.NewDecoder(io.LimitReader(r.Body, s.config.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error(), nil)
		return
	}
	cmd.CorrelationID = getRequestID(r.Context())

	result, err := s.deps.AwardHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "award failed",
			logger.StudentID(cmd.StudentID), logger.ActivityType(cmd.ActivityType))
		return
	}

	resp := awardResponse{
		TransactionID:  result.Transaction.ID,
		Inserted:       result.Inserted,
		Points:         result.Transaction.Points,
		BonusPoints:    result.BonusPoints,
		EarnedDate:     result.Transaction.EarnedDate.String(),
		UnlockedBadges: make([]string, 0, len(result.UnlockedBadges)),
		Degraded:       result.SideEffectErr != nil,
	}
	if result.Streak != nil {
		current := result.Streak.Streak.Current
		resp.CurrentStreak = &current
	}
	for _, d := range result.UnlockedBadges {
		resp.UnlockedBadges = append(resp.UnlockedBadges, d.ID)
	}
	if len(result.Warnings) > 0 {
		resp.Warnings = make(map[string]string, len(result.Warnings))
		for _, warn := range result.Warnings {
			resp.Warnings[warn.BadgeID] = warn.Err.Error()
		}
	}

	status := http.StatusCreated
	if !result.Inserted {
		status = http.StatusOK
	}
	writeJSON(w, r, status, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetXP handles GET /api/v1/students/{id}/xp[?activity_type=]
func (s *Server) handleGetXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.XPHandler == nil {
		writeNotConfigured(w, r)
		return
	}

	studentID := r.PathValue("id")
	result, err := s.deps.XPHandler.GetTotalXP(r.Context(), query.GetTotalXPQuery{
		StudentID:    studentID,
		ActivityType: strings.TrimSpace(r.URL.Query().Get("activity_type")),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get xp", logger.StudentID(studentID))
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetXPBreakdown handles GET /api/v1/students/{id}/xp/breakdown
func (s *Server) handleGetXPBreakdown(w http.ResponseWriter, r *http.Request) {
	if s.deps.XPHandler == nil {
		writeNotConfigured(w, r)
		return
	}

	studentID := r.PathValue("id")
	result, err := s.deps.XPHandler.GetXPBreakdown(r.Context(), query.GetXPBreakdownQuery{StudentID: studentID})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get xp breakdown", logger.StudentID(studentID))
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetBadges handles GET /api/v1/students/{id}/badges
func (s *Server) handleGetBadges(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetBadgesHandler == nil {
		writeNotConfigured(w, r)
		return
	}

	studentID := r.PathValue("id")
	result, err := s.deps.GetBadgesHandler.Handle(r.Context(), query.GetBadgesQuery{StudentID: studentID})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get badges", logger.StudentID(studentID))
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetStreak handles GET /api/v1/students/{id}/streak
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStreakHandler == nil {
		writeNotConfigured(w, r)
		return
	}

	studentID := r.PathValue("id")
	result, err := s.deps.GetStreakHandler.Handle(r.Context(), query.GetStreakQuery{StudentID: studentID})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get streak", logger.StudentID(studentID))
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard?institution_id=&class_id=&limit=
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeNotConfigured(w, r)
		return
	}

	limit, ok := getQueryParamInt(r, "limit", 0)
	if !ok {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", "limit must be an integer",
			map[string]string{"limit": "limit must be an integer"})
		return
	}

	q := r.URL.Query()
	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), query.GetLeaderboardQuery{
		InstitutionID: q.Get("institution_id"),
		ClassID:       q.Get("class_id"),
		Limit:         limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get leaderboard")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps the error class onto an HTTP status:
// validation 400, not found 404, conflict 409, unavailable 503, else 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, msg string, fields ...logger.Field) {
	log := logger.FromContext(r.Context())

	switch shared.ClassOf(err) {
	case shared.ClassValidation:
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", publicMessage(err), validation.Fields(err))

	case shared.ClassNotFound:
		writeJSONError(w, r, http.StatusNotFound, "not_found", publicMessage(err), nil)

	case shared.ClassConflict:
		writeJSONError(w, r, http.StatusConflict, "conflict", publicMessage(err), nil)

	case shared.ClassUnavailable:
		log.Warn(msg, append(fields, logger.Err(err))...)
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, r, http.StatusServiceUnavailable, "unavailable", "Storage is temporarily unavailable, retry the request", nil)

	default:
		log.Error(msg, append(fields, logger.Err(err))...)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred", nil)
	}
}

// publicMessage returns the human-readable part of a domain error without
// wrapped storage details.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func writeNotConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Endpoint not configured", nil)
}

package query

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
	"github.com/alem-hub/alem-gamification/pkg/timeutil"
)

// GetStreakQuery requests a student's streak.
type GetStreakQuery struct {
	StudentID string
}

// GetStreakResult contains the streak as shown to the student.
type GetStreakResult struct {
	StudentID string `json:"student_id"`

	// CurrentStreak is 0 once a full day was missed, even though the stored
	// record is only reset by the next activity.
	CurrentStreak int `json:"current_streak"`

	// StoredStreak is the value in the streak record.
	StoredStreak     int    `json:"stored_streak"`
	LongestStreak    int    `json:"longest_streak"`
	LastActivityDate string `json:"last_activity_date,omitempty"`
	ActiveToday      bool   `json:"active_today"`
}

// GetStreakHandler handles GetStreakQuery.
type GetStreakHandler struct {
	streakRepo streak.Repository
	clock      timeutil.Clock
	loc        *time.Location
}

// NewGetStreakHandler creates a new handler.
func NewGetStreakHandler(streakRepo streak.Repository, clock timeutil.Clock, loc *time.Location) *GetStreakHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if loc == nil {
		loc = timeutil.AlmatyTZ
	}
	return &GetStreakHandler{streakRepo: streakRepo, clock: clock, loc: loc}
}

// Handle returns the student's streak. A student without activity gets zeros.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) (*GetStreakResult, error) {
	if strings.TrimSpace(q.StudentID) == "" {
		return nil, shared.ErrMissingStudent
	}

	studentID := shared.StudentID(strings.TrimSpace(q.StudentID))
	s, err := h.streakRepo.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	today := shared.DateOf(h.clock.Now(), h.loc)
	return &GetStreakResult{
		StudentID:        studentID.String(),
		CurrentStreak:    s.EffectiveCurrent(today),
		StoredStreak:     s.Current,
		LongestStreak:    s.Longest,
		LastActivityDate: s.LastActivityDate.String(),
		ActiveToday:      s.IsActiveOn(today),
	}, nil
}

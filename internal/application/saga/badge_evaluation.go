// Package saga contains multi-step business processes that orchestrate
// several repositories around one domain decision.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
	"github.com/alem-hub/alem-gamification/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE EVALUATION SAGA
// Flow: Load Definitions → Load Earned → Load Aggregates → Evaluate (pure) →
//
//	Award Badges (parallel, idempotent) → Publish Events
//
// A failure on one badge never aborts the batch: per-badge failures are
// collected into Result.Errors and the rest of the candidates are still awarded.
// ══════════════════════════════════════════════════════════════════════════════

// BadgeEvaluationInput identifies whose badges to evaluate.
type BadgeEvaluationInput struct {
	StudentID     shared.StudentID
	InstitutionID shared.InstitutionID

	// CorrelationID is copied to emitted events.
	CorrelationID string
}

// Validate checks if the input is valid.
func (i BadgeEvaluationInput) Validate() error {
	if i.StudentID.IsEmpty() {
		return shared.ErrMissingStudent
	}
	if i.InstitutionID.IsEmpty() {
		return shared.ErrMissingInstitution
	}
	return nil
}

// BadgeEvaluationResult contains the outcome of one evaluation pass.
type BadgeEvaluationResult struct {
	StudentID shared.StudentID

	// Unlocked holds badges inserted by this pass, ordered by ID.
	// A badge that a concurrent pass inserted first is not listed here.
	Unlocked []badge.Definition

	// Warnings lists badges skipped because their criteria are malformed.
	Warnings []badge.Warning

	// Errors aggregates per-badge failures (nil when every award succeeded).
	Errors error

	ProcessedAt time.Time
}

// HasUnlocks returns true if any badge was newly unlocked.
func (r *BadgeEvaluationResult) HasUnlocks() bool {
	return len(r.Unlocked) > 0
}

// BadgeEvaluationStep represents a step in the saga.
type BadgeEvaluationStep string

const (
	StepLoadDefinitions BadgeEvaluationStep = "load_definitions"
	StepLoadEarned      BadgeEvaluationStep = "load_earned"
	StepLoadAggregates  BadgeEvaluationStep = "load_aggregates"
	StepEvaluate        BadgeEvaluationStep = "evaluate"
	StepAwardBadges     BadgeEvaluationStep = "award_badges"
	StepComplete        BadgeEvaluationStep = "complete"
)

// badgeEvaluationState tracks the current state of one run.
type badgeEvaluationState struct {
	CurrentStep BadgeEvaluationStep
	Input       BadgeEvaluationInput
	Definitions []badge.Definition
	Earned      map[string]struct{}
	Aggregates  badge.Aggregates
	Evaluation  badge.Evaluation
	Errors      error
}

// ══════════════════════════════════════════════════════════════════════════════
// IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeEvaluationSaga runs the rule engine for one student and persists the unlocks.
type BadgeEvaluationSaga struct {
	badgeRepo badge.Repository
	loader    *badge.AggregateLoader
	eventBus  shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger

	parallelism int
}

// BadgeEvaluationConfig contains configuration for the saga.
type BadgeEvaluationConfig struct {
	// Parallelism bounds concurrent badge inserts.
	Parallelism int

	Clock  timeutil.Clock
	Logger *slog.Logger
}

// DefaultBadgeEvaluationConfig returns default configuration.
func DefaultBadgeEvaluationConfig() BadgeEvaluationConfig {
	return BadgeEvaluationConfig{
		Parallelism: 4,
		Clock:       timeutil.SystemClock{},
		Logger:      slog.Default(),
	}
}

// NewBadgeEvaluationSaga creates a new saga with all dependencies.
func NewBadgeEvaluationSaga(
	ledgerRepo ledger.Repository,
	badgeRepo badge.Repository,
	streakRepo streak.Repository,
	eventBus shared.EventPublisher,
	config BadgeEvaluationConfig,
) *BadgeEvaluationSaga {
	defaults := DefaultBadgeEvaluationConfig()
	if config.Parallelism <= 0 {
		config.Parallelism = defaults.Parallelism
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if eventBus == nil {
		eventBus = shared.NopPublisher{}
	}

	return &BadgeEvaluationSaga{
		badgeRepo:   badgeRepo,
		loader:      badge.NewAggregateLoader(ledgerRepo, streakRepo),
		eventBus:    eventBus,
		clock:       config.Clock,
		logger:      config.Logger.With("component", "badge_evaluation"),
		parallelism: config.Parallelism,
	}
}

// Execute evaluates all active badges for the student.
// It returns an error only when the candidate set itself cannot be loaded.
func (s *BadgeEvaluationSaga) Execute(ctx context.Context, input BadgeEvaluationInput) (*BadgeEvaluationResult, error) {
	state := &badgeEvaluationState{
		CurrentStep: StepLoadDefinitions,
		Input:       input,
	}

	if err := input.Validate(); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 1: Load active definitions
	defs, err := s.badgeRepo.ListDefinitions(ctx, true)
	if err != nil {
		return nil, s.wrapError(state, err)
	}
	state.Definitions = defs

	// Step 2: Load already earned badges
	state.CurrentStep = StepLoadEarned
	earned, err := s.badgeRepo.EarnedIDs(ctx, input.StudentID)
	if err != nil {
		return nil, s.wrapError(state, err)
	}
	state.Earned = earned

	candidates := badge.Candidates(state.Definitions, state.Earned)
	if len(candidates) == 0 {
		return s.complete(state), nil
	}

	// Step 3: Load only the aggregates the candidates need
	state.CurrentStep = StepLoadAggregates
	agg, err := s.loader.Load(ctx, input.StudentID, badge.RequiredMetrics(candidates))
	multierr.AppendInto(&state.Errors, err)
	state.Aggregates = agg

	// Step 4: Evaluate. Candidates whose metric failed to load are left out;
	// their failure is already recorded.
	state.CurrentStep = StepEvaluate
	evaluable := make([]badge.Definition, 0, len(candidates))
	for _, d := range candidates {
		if m, err := badge.MetricFor(d.Criteria); err == nil {
			if _, ok := state.Aggregates[m]; !ok {
				continue
			}
		}
		evaluable = append(evaluable, d)
	}
	state.Evaluation = badge.Evaluate(evaluable, state.Earned, state.Aggregates)
	for _, w := range state.Evaluation.Warnings {
		s.logger.Warn("badge skipped: malformed criteria",
			"badge_id", w.BadgeID,
			"student_id", input.StudentID.String(),
			"error", w.Err,
		)
	}

	// Step 5: Award
	state.CurrentStep = StepAwardBadges
	unlocked := s.awardBadges(ctx, state)

	result := s.complete(state)
	result.Unlocked = unlocked
	return result, nil
}

// awardBadges inserts unlocked badges in parallel. Goroutines never return an
// error to the group so one failure cannot cancel the others.
func (s *BadgeEvaluationSaga) awardBadges(ctx context.Context, state *badgeEvaluationState) []badge.Definition {
	var (
		mu       sync.Mutex
		inserted = make(map[string]bool, len(state.Evaluation.Unlocked))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for _, def := range state.Evaluation.Unlocked {
		g.Go(func() error {
			ok, err := s.badgeRepo.Insert(gctx, badge.StudentBadge{
				StudentID:     state.Input.StudentID,
				BadgeID:       def.ID,
				InstitutionID: state.Input.InstitutionID,
				EarnedAt:      s.clock.Now(),
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				multierr.AppendInto(&state.Errors, fmt.Errorf("award badge %s: %w", def.ID, err))
				return nil
			}
			inserted[def.ID] = ok
			return nil
		})
	}
	_ = g.Wait()

	// Keep evaluation order (by ID) for the result and the events.
	unlocked := make([]badge.Definition, 0, len(inserted))
	for _, def := range state.Evaluation.Unlocked {
		if !inserted[def.ID] {
			continue
		}
		unlocked = append(unlocked, def)

		event := shared.NewBadgeUnlockedEvent(
			state.Input.StudentID.String(),
			state.Input.InstitutionID.String(),
			def.ID,
			def.Name,
			def.XPReward,
		)
		if state.Input.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(state.Input.CorrelationID)
		}
		if err := s.eventBus.Publish(event); err != nil {
			multierr.AppendInto(&state.Errors, fmt.Errorf("publish badge %s: %w", def.ID, err))
		}

		s.logger.Info("badge unlocked",
			"student_id", state.Input.StudentID.String(),
			"badge_id", def.ID,
		)
	}
	return unlocked
}

func (s *BadgeEvaluationSaga) complete(state *badgeEvaluationState) *BadgeEvaluationResult {
	state.CurrentStep = StepComplete
	if state.Errors != nil {
		s.logger.Error("badge evaluation finished with errors",
			"student_id", state.Input.StudentID.String(),
			"error", state.Errors,
		)
	}
	return &BadgeEvaluationResult{
		StudentID:   state.Input.StudentID,
		Unlocked:    []badge.Definition{},
		Warnings:    state.Evaluation.Warnings,
		Errors:      state.Errors,
		ProcessedAt: s.clock.Now(),
	}
}

// wrapError wraps an error with saga context.
func (s *BadgeEvaluationSaga) wrapError(state *badgeEvaluationState, err error) error {
	return &BadgeEvaluationError{
		Step:      state.CurrentStep,
		StudentID: state.Input.StudentID,
		Cause:     err,
		Message:   fmt.Sprintf("badge evaluation failed at step '%s': %v", state.CurrentStep, err),
	}
}

// BadgeEvaluationError represents a fatal error during the saga.
type BadgeEvaluationError struct {
	Step      BadgeEvaluationStep
	StudentID shared.StudentID
	Cause     error
	Message   string
}

// Error implements the error interface.
func (e *BadgeEvaluationError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *BadgeEvaluationError) Unwrap() error {
	return e.Cause
}

// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/alem-hub/alem-gamification/internal/application/saga"
	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/pkg/timeutil"
	"github.com/alem-hub/alem-gamification/pkg/validation"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD COMMAND
// The single write path: "student S performed activity A worth P points".
// The ledger append is the first and authoritative step; streak and badge
// effects run only for a genuinely new row.
// ══════════════════════════════════════════════════════════════════════════════

// AwardCommand contains the data of one award.
type AwardCommand struct {
	StudentID     string `json:"student_id" validate:"notblank,max=128"`
	InstitutionID string `json:"institution_id" validate:"notblank,max=128"`
	ActivityType  string `json:"activity_type" validate:"notblank"`

	// ActivityID is the idempotency reference (attempt, session, project).
	// Empty means every call appends a new row.
	ActivityID string `json:"activity_id,omitempty" validate:"max=256"`

	Points      int    `json:"points" validate:"gte=0"`
	Description string `json:"description,omitempty" validate:"max=1024"`

	// OccurredAt is when the activity happened (defaults to now).
	// Backdated events are recorded on their own calendar day; future ones
	// are recorded as now.
	OccurredAt time.Time `json:"occurred_at,omitempty"`

	// CorrelationID for tracing.
	CorrelationID string `json:"-"`
}

// Validate validates the command.
func (c AwardCommand) Validate() error {
	if err := validation.Struct(c); err != nil {
		return shared.WrapError("award", "Validate", shared.ErrValidation, "invalid award command", err)
	}
	t, err := ledger.ParseActivityType(c.ActivityType)
	if err != nil {
		return err
	}
	// Bonus rows are appended by the streak tracker and the badge saga only.
	if t.IsDerived() {
		return shared.ErrDerivedActivityType
	}
	return nil
}

// AwardResult contains the result of an award.
type AwardResult struct {
	// Transaction is the row that was appended, or that would have been
	// appended when Inserted is false.
	Transaction ledger.Transaction

	// Inserted is false for a duplicate: nothing else happened.
	Inserted bool

	// Streak is nil when the activity does not count towards the streak
	// or the streak update failed.
	Streak *StreakUpdate

	// UnlockedBadges lists badges unlocked by this award (all rounds).
	UnlockedBadges []badge.Definition

	// BonusPoints is the sum of daily, milestone and badge reward rows added.
	BonusPoints int

	// Warnings lists badges skipped because of malformed criteria.
	Warnings []badge.Warning

	// SideEffectErr aggregates failures after the ledger commit.
	// The award itself stands; these are for logging and alerting.
	SideEffectErr error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// BadgeEvaluator runs the rule engine for a student.
type BadgeEvaluator interface {
	Execute(ctx context.Context, input saga.BadgeEvaluationInput) (*saga.BadgeEvaluationResult, error)
}

// AwardHandlerConfig contains configuration for the handler.
type AwardHandlerConfig struct {
	// Location is the institution time zone used for calendar dates.
	Location *time.Location

	// EnableBadgeRewards appends badge_reward rows for badges with XPReward > 0.
	EnableBadgeRewards bool

	// MaxEvaluationRounds bounds re-evaluation after badge rewards.
	MaxEvaluationRounds int

	Clock  timeutil.Clock
	Logger *slog.Logger
}

// DefaultAwardHandlerConfig returns default configuration.
func DefaultAwardHandlerConfig() AwardHandlerConfig {
	return AwardHandlerConfig{
		Location:            timeutil.AlmatyTZ,
		EnableBadgeRewards:  true,
		MaxEvaluationRounds: 3,
		Clock:               timeutil.SystemClock{},
		Logger:              slog.Default(),
	}
}

// AwardHandler handles the AwardCommand.
type AwardHandler struct {
	ledgerRepo ledger.Repository
	tracker    *StreakTracker
	evaluator  BadgeEvaluator
	eventBus   shared.EventPublisher
	policy     ledger.PolicyProvider
	config     AwardHandlerConfig
	logger     *slog.Logger
}

// NewAwardHandler creates a new AwardHandler. tracker and evaluator may be nil
// to disable the corresponding side effects.
func NewAwardHandler(
	ledgerRepo ledger.Repository,
	tracker *StreakTracker,
	evaluator BadgeEvaluator,
	eventBus shared.EventPublisher,
	policy ledger.PolicyProvider,
	config AwardHandlerConfig,
) *AwardHandler {
	defaults := DefaultAwardHandlerConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.MaxEvaluationRounds <= 0 {
		config.MaxEvaluationRounds = defaults.MaxEvaluationRounds
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
	if policy == nil {
		policy = ledger.StaticPolicy(ledger.DefaultPolicy())
	}

	return &AwardHandler{
		ledgerRepo: ledgerRepo,
		tracker:    tracker,
		evaluator:  evaluator,
		eventBus:   eventBus,
		policy:     policy,
		config:     config,
		logger:     config.Logger.With("component", "award"),
	}
}

// Policy returns the point policy currently in effect.
func (h *AwardHandler) Policy() ledger.Policy {
	return h.policy.Current()
}

// Handle executes the award command. It is safe to call repeatedly with the
// same (student, type, activity id): only the first call has any effect.
func (h *AwardHandler) Handle(ctx context.Context, cmd AwardCommand) (*AwardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	tx := h.newTransaction(cmd)

	// Step 1: authoritative append. Nothing else runs if this fails.
	inserted, err := h.ledgerRepo.Append(ctx, tx)
	if err != nil {
		if shared.ClassOf(err) == shared.ClassInternal {
			err = shared.Unavailable("award", "Append", err)
		}
		return nil, err
	}

	result := &AwardResult{Transaction: tx, Inserted: inserted}
	if !inserted {
		h.logger.Debug("duplicate award ignored",
			"student_id", tx.StudentID.String(),
			"activity_type", tx.ActivityType.String(),
			"activity_id", tx.ActivityID,
		)
		return result, nil
	}

	h.logger.Info("xp awarded",
		"student_id", tx.StudentID.String(),
		"activity_type", tx.ActivityType.String(),
		"points", tx.Points,
	)

	var sideErr error

	// Step 2: streak (qualifying types only)
	if h.tracker != nil && tx.ActivityType.QualifiesForStreak() {
		update, err := h.tracker.Track(ctx, tx, h.bonusAppender(result, cmd.CorrelationID))
		multierr.AppendInto(&sideErr, err)
		result.Streak = update
	}

	// Step 3: badges, re-evaluated while badge rewards keep adding points
	if h.evaluator != nil {
		multierr.AppendInto(&sideErr, h.evaluateBadges(ctx, tx, cmd.CorrelationID, result))
	}

	// Step 4: announce the row last, so cache invalidation follows every
	// write this award caused.
	multierr.AppendInto(&sideErr, h.publishAwarded(tx, cmd.CorrelationID))

	if sideErr != nil {
		h.logger.Error("award side effects failed",
			"student_id", tx.StudentID.String(),
			"activity_type", tx.ActivityType.String(),
			"error", sideErr,
		)
	}
	result.SideEffectErr = sideErr
	return result, nil
}

// evaluateBadges runs the rule engine until a round unlocks nothing that
// changes the student's points.
func (h *AwardHandler) evaluateBadges(ctx context.Context, tx ledger.Transaction, correlationID string, result *AwardResult) error {
	var errs error
	appendBonus := h.bonusAppender(result, correlationID)

	for round := 0; round < h.config.MaxEvaluationRounds; round++ {
		eval, err := h.evaluator.Execute(ctx, saga.BadgeEvaluationInput{
			StudentID:     tx.StudentID,
			InstitutionID: tx.InstitutionID,
			CorrelationID: correlationID,
		})
		if err != nil {
			multierr.AppendInto(&errs, err)
			return errs
		}
		multierr.AppendInto(&errs, eval.Errors)
		if round == 0 {
			result.Warnings = eval.Warnings
		}
		result.UnlockedBadges = append(result.UnlockedBadges, eval.Unlocked...)

		if !h.config.EnableBadgeRewards {
			return errs
		}

		rewarded := false
		for _, def := range eval.Unlocked {
			if def.XPReward <= 0 {
				continue
			}
			ok, err := appendBonus(ctx, tx, ledger.ActivityBadgeReward, def.ID, def.XPReward,
				fmt.Sprintf("Badge reward: %s", def.Name))
			if err != nil {
				multierr.AppendInto(&errs, fmt.Errorf("badge reward %s: %w", def.ID, err))
				continue
			}
			rewarded = rewarded || ok
		}
		if !rewarded {
			return errs
		}
	}
	return errs
}

// bonusAppender appends derived rows (daily, milestone, badge reward) without
// re-running streak or badge evaluation for them.
func (h *AwardHandler) bonusAppender(result *AwardResult, correlationID string) BonusAppender {
	return func(
		ctx context.Context,
		base ledger.Transaction,
		activityType ledger.ActivityType,
		activityID string,
		points int,
		description string,
	) (bool, error) {
		tx := ledger.Transaction{
			ID:            uuid.NewString(),
			StudentID:     base.StudentID,
			InstitutionID: base.InstitutionID,
			ActivityType:  activityType,
			ActivityID:    activityID,
			Points:        points,
			EarnedAt:      base.EarnedAt,
			EarnedDate:    base.EarnedDate,
			Description:   description,
		}
		inserted, err := h.ledgerRepo.Append(ctx, tx)
		if err != nil || !inserted {
			return false, err
		}
		result.BonusPoints += points
		return true, h.publishAwarded(tx, correlationID)
	}
}

func (h *AwardHandler) newTransaction(cmd AwardCommand) ledger.Transaction {
	// A future timestamp is clamped to now so it cannot move the streak
	// ahead of the calendar.
	now := h.config.Clock.Now()
	earnedAt := cmd.OccurredAt
	if earnedAt.IsZero() || earnedAt.After(now) {
		earnedAt = now
	}
	activityType, _ := ledger.ParseActivityType(cmd.ActivityType)

	return ledger.Transaction{
		ID:            uuid.NewString(),
		StudentID:     shared.StudentID(strings.TrimSpace(cmd.StudentID)),
		InstitutionID: shared.InstitutionID(strings.TrimSpace(cmd.InstitutionID)),
		ActivityType:  activityType,
		ActivityID:    strings.TrimSpace(cmd.ActivityID),
		Points:        cmd.Points,
		EarnedAt:      earnedAt.UTC(),
		EarnedDate:    shared.DateOf(earnedAt, h.config.Location),
		Description:   cmd.Description,
	}
}

func (h *AwardHandler) publishAwarded(tx ledger.Transaction, correlationID string) error {
	event := shared.NewXPAwardedEvent(
		tx.StudentID.String(),
		tx.InstitutionID.String(),
		tx.ActivityType.String(),
		tx.ActivityID,
		tx.Points,
	)
	if correlationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(correlationID)
	}
	return h.eventBus.Publish(event)
}

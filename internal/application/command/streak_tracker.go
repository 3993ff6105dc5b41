package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
	"github.com/alem-hub/alem-gamification/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRACKER
// Advances the per-student streak on the first qualifying activity of a day and
// issues the daily and milestone bonuses. The streak row is guarded by its
// version column; a lost race re-reads the row and re-applies the transition.
// ══════════════════════════════════════════════════════════════════════════════

// milestoneNamespace scopes deterministic milestone activity ids.
var milestoneNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("alem-gamification/streak_milestone"))

// MilestoneActivityID returns the activity id of the milestone bonus for days.
// The same (student, days) always yields the same id, so the ledger's
// idempotency key stops a second award even when the streak update is retried.
func MilestoneActivityID(studentID shared.StudentID, days int) string {
	name := fmt.Sprintf("%s:%s:%d", studentID, ledger.ActivityStreakMilestone, days)
	return uuid.NewSHA1(milestoneNamespace, []byte(name)).String()
}

// DailyStreakActivityID returns the activity id of the daily bonus for date.
func DailyStreakActivityID(date shared.CalendarDate) string {
	return string(ledger.ActivityDailyStreak) + ":" + date.String()
}

// BonusAppender appends a derived transaction without re-running side effects.
type BonusAppender func(
	ctx context.Context,
	base ledger.Transaction,
	activityType ledger.ActivityType,
	activityID string,
	points int,
	description string,
) (inserted bool, err error)

// StreakUpdate is the outcome of Track.
type StreakUpdate struct {
	Streak  streak.Streak
	Outcome streak.Outcome

	DailyBonusAwarded bool

	// MilestoneDays is non-zero when the streak landed exactly on a milestone
	// and this call granted its bonus.
	MilestoneDays int
}

// StreakTrackerConfig contains configuration for the tracker.
type StreakTrackerConfig struct {
	EnableDailyBonus bool
	EnableMilestones bool
	Logger           *slog.Logger
}

// DefaultStreakTrackerConfig returns default configuration.
func DefaultStreakTrackerConfig() StreakTrackerConfig {
	return StreakTrackerConfig{
		EnableDailyBonus: true,
		EnableMilestones: true,
		Logger:           slog.Default(),
	}
}

// StreakTracker owns the streak record of every student.
type StreakTracker struct {
	streakRepo streak.Repository
	ledgerRepo ledger.Repository
	policy     ledger.PolicyProvider
	eventBus   shared.EventPublisher
	retrier    *retry.Retrier
	config     StreakTrackerConfig
	logger     *slog.Logger
}

// NewStreakTracker creates a new StreakTracker.
func NewStreakTracker(
	streakRepo streak.Repository,
	ledgerRepo ledger.Repository,
	policy ledger.PolicyProvider,
	eventBus shared.EventPublisher,
	config StreakTrackerConfig,
) *StreakTracker {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if eventBus == nil {
		eventBus = shared.NopPublisher{}
	}
	if policy == nil {
		policy = ledger.StaticPolicy(ledger.DefaultPolicy())
	}

	return &StreakTracker{
		streakRepo: streakRepo,
		ledgerRepo: ledgerRepo,
		policy:     policy,
		eventBus:   eventBus,
		retrier: retry.ConflictRetrier(func(err error) bool {
			return errors.Is(err, shared.ErrStreakConflict)
		}),
		config: config,
		logger: config.Logger.With("component", "streak_tracker"),
	}
}

// Track applies tx.EarnedDate to the student's streak. Bonuses go through
// appendBonus so they never re-enter streak tracking themselves.
//
// The returned error covers the streak update and the bonuses; the update
// is returned even when a bonus failed.
func (t *StreakTracker) Track(ctx context.Context, tx ledger.Transaction, appendBonus BonusAppender) (*StreakUpdate, error) {
	if !tx.ActivityType.QualifiesForStreak() {
		return nil, nil
	}

	update, err := t.advance(ctx, tx.StudentID, tx.EarnedDate)
	if err != nil {
		return nil, err
	}
	if !update.Outcome.Advanced {
		return update, nil
	}

	event := shared.NewStreakUpdatedEvent(
		tx.StudentID.String(),
		update.Streak.Current,
		update.Streak.Longest,
		update.Outcome.Previous,
		update.Streak.LastActivityDate,
		update.Outcome.WasReset,
	)

	var errs error
	multierr.AppendInto(&errs, t.eventBus.Publish(event))

	policy := t.policy.Current()

	if t.config.EnableDailyBonus {
		awarded, err := t.awardDailyBonus(ctx, tx, policy, appendBonus)
		multierr.AppendInto(&errs, err)
		update.DailyBonusAwarded = awarded
	}

	if t.config.EnableMilestones {
		days, err := t.awardMilestone(ctx, tx, update.Streak.Current, policy, appendBonus)
		multierr.AppendInto(&errs, err)
		update.MilestoneDays = days
	}

	return update, errs
}

// advance runs the read-transition-save cycle until it wins or gives up.
func (t *StreakTracker) advance(ctx context.Context, studentID shared.StudentID, date shared.CalendarDate) (*StreakUpdate, error) {
	return retry.DoWithData(ctx, t.retrier, func(ctx context.Context) (*StreakUpdate, error) {
		current, err := t.streakRepo.Get(ctx, studentID)
		if err != nil {
			return nil, err
		}

		next, outcome := current.Record(date)
		if !outcome.Advanced {
			return &StreakUpdate{Streak: current, Outcome: outcome}, nil
		}

		saved, err := t.streakRepo.Save(ctx, next)
		if err != nil {
			if errors.Is(err, shared.ErrStreakConflict) {
				t.logger.Debug("streak conflict, retrying", "student_id", studentID.String())
			}
			return nil, err
		}
		return &StreakUpdate{Streak: saved, Outcome: outcome}, nil
	})
}

func (t *StreakTracker) awardDailyBonus(
	ctx context.Context,
	tx ledger.Transaction,
	policy ledger.Policy,
	appendBonus BonusAppender,
) (bool, error) {
	points := policy.PointsFor(ledger.ActivityDailyStreak)
	if points <= 0 {
		return false, nil
	}

	// The (student, type, date) unique index makes this race-free; the check
	// only avoids a pointless insert.
	has, err := t.ledgerRepo.HasTransactionOnDate(ctx, tx.StudentID, ledger.ActivityDailyStreak, tx.EarnedDate)
	if err != nil {
		return false, fmt.Errorf("daily bonus check: %w", err)
	}
	if has {
		return false, nil
	}

	inserted, err := appendBonus(ctx, tx, ledger.ActivityDailyStreak,
		DailyStreakActivityID(tx.EarnedDate), points, "Daily streak bonus")
	if err != nil {
		return false, fmt.Errorf("daily bonus: %w", err)
	}
	return inserted, nil
}

func (t *StreakTracker) awardMilestone(
	ctx context.Context,
	tx ledger.Transaction,
	current int,
	policy ledger.Policy,
	appendBonus BonusAppender,
) (int, error) {
	bonus, ok := policy.MilestoneBonus(current)
	if !ok {
		return 0, nil
	}

	inserted, err := appendBonus(ctx, tx, ledger.ActivityStreakMilestone,
		MilestoneActivityID(tx.StudentID, current), bonus,
		fmt.Sprintf("%d-day streak milestone", current))
	if err != nil {
		return 0, fmt.Errorf("milestone %d: %w", current, err)
	}
	if !inserted {
		return 0, nil
	}

	t.logger.Info("streak milestone reached",
		"student_id", tx.StudentID.String(),
		"days", current,
		"points", bonus,
	)
	if err := t.eventBus.Publish(shared.NewStreakMilestoneEvent(tx.StudentID.String(), current, bonus)); err != nil {
		return current, err
	}
	return current, nil
}

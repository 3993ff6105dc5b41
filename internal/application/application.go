// Package application wires commands, queries, sagas and event handlers into
// one object. Process entry points and end-to-end tests build it the same way.
package application

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/alem-gamification/internal/application/command"
	"github.com/alem-hub/alem-gamification/internal/application/eventhandler"
	"github.com/alem-hub/alem-gamification/internal/application/query"
	"github.com/alem-hub/alem-gamification/internal/application/saga"
	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
	"github.com/alem-hub/alem-gamification/internal/domain/student"
	"github.com/alem-hub/alem-gamification/pkg/timeutil"
)

// Repositories are the storage ports.
type Repositories struct {
	Ledger      ledger.Repository
	Badges      badge.Repository
	Streaks     streak.Repository
	Roster      student.Repository
	Leaderboard leaderboard.Repository
}

// Options tune the wiring. Zero values pick defaults.
type Options struct {
	Location *time.Location
	Clock    timeutil.Clock
	Logger   *slog.Logger
	Policy   ledger.PolicyProvider

	// Cache is optional; LeaderboardCacheTTL 0 disables caching too.
	Cache               leaderboard.Cache
	LeaderboardCacheTTL time.Duration

	BadgeParallelism int

	DisableDailyBonus   bool
	DisableMilestones   bool
	DisableBadgeRewards bool
}

// Application holds the wired handlers.
type Application struct {
	Award       *command.AwardHandler
	Streaks     *command.StreakTracker
	XP          *query.XPHandler
	Badges      *query.GetBadgesHandler
	Streak      *query.GetStreakHandler
	Leaderboard *query.GetLeaderboardHandler
}

// New builds the application and subscribes its event handlers to bus.
// bus may be nil: events are then dropped.
func New(repos Repositories, bus shared.EventBus, opts Options) (*Application, error) {
	if opts.Location == nil {
		opts.Location = timeutil.AlmatyTZ
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Policy == nil {
		opts.Policy = ledger.StaticPolicy(ledger.DefaultPolicy())
	}

	var publisher shared.EventPublisher = shared.NopPublisher{}
	if bus != nil {
		publisher = bus
	}

	tracker := command.NewStreakTracker(repos.Streaks, repos.Ledger, opts.Policy, publisher, command.StreakTrackerConfig{
		EnableDailyBonus: !opts.DisableDailyBonus,
		EnableMilestones: !opts.DisableMilestones,
		Logger:           opts.Logger,
	})

	evaluator := saga.NewBadgeEvaluationSaga(repos.Ledger, repos.Badges, repos.Streaks, publisher, saga.BadgeEvaluationConfig{
		Parallelism: opts.BadgeParallelism,
		Clock:       opts.Clock,
		Logger:      opts.Logger,
	})

	award := command.NewAwardHandler(repos.Ledger, tracker, evaluator, publisher, opts.Policy, command.AwardHandlerConfig{
		Location:           opts.Location,
		EnableBadgeRewards: !opts.DisableBadgeRewards,
		Clock:              opts.Clock,
		Logger:             opts.Logger,
	})

	cache := opts.Cache
	if opts.LeaderboardCacheTTL <= 0 {
		cache = nil
	}

	app := &Application{
		Award:   award,
		Streaks: tracker,
		XP:      query.NewXPHandler(repos.Ledger),
		Badges:  query.NewGetBadgesHandler(repos.Badges, repos.Ledger, repos.Streaks, opts.Logger),
		Streak:  query.NewGetStreakHandler(repos.Streaks, opts.Clock, opts.Location),
		Leaderboard: query.NewGetLeaderboardHandler(
			repos.Leaderboard, cache, repos.Roster, repos.Badges, repos.Streaks,
			query.GetLeaderboardConfig{
				CacheTTL: opts.LeaderboardCacheTTL,
				Location: opts.Location,
				Clock:    opts.Clock,
				Logger:   opts.Logger,
			},
		),
	}

	if bus == nil {
		return app, nil
	}

	if cache != nil {
		if err := eventhandler.NewOnXPAwardedHandler(cache, opts.Logger).Register(bus); err != nil {
			return nil, fmt.Errorf("register xp awarded handler: %w", err)
		}
	}
	if err := eventhandler.NewAuditHandler(opts.Logger).Register(bus); err != nil {
		return nil, fmt.Errorf("register audit handler: %w", err)
	}

	return app, nil
}

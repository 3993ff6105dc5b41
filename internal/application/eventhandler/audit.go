package eventhandler

import (
	"log/slog"
	"sync/atomic"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT HANDLER
// Пишет в лог заметные для студента события (бейдж, веха, сброс серии)
// и считает их. Журнал XP остаётся единственным источником истины,
// аудит нужен для разбора обращений "почему мне не дали бейдж".
// ═══════════════════════════════════════════════════════════════════════════

// AuditStats - счётчики событий с момента запуска.
type AuditStats struct {
	BadgesUnlocked    int64 `json:"badges_unlocked"`
	MilestonesReached int64 `json:"milestones_reached"`
	StreakResets      int64 `json:"streak_resets"`
}

// AuditHandler логирует события геймификации.
type AuditHandler struct {
	logger *slog.Logger

	badges     atomic.Int64
	milestones atomic.Int64
	resets     atomic.Int64
}

// NewAuditHandler создаёт обработчик.
func NewAuditHandler(logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{logger: logger.With("handler", "audit")}
}

// Handle реализует shared.EventHandler.
func (h *AuditHandler) Handle(event shared.Event) error {
	switch e := event.(type) {
	case shared.BadgeUnlockedEvent:
		h.badges.Add(1)
		h.logger.Info("badge unlocked",
			"student_id", e.AggregateID(),
			"badge_id", e.BadgeID,
			"xp_reward", e.XPReward,
		)

	case shared.StreakMilestoneEvent:
		h.milestones.Add(1)
		h.logger.Info("streak milestone reached",
			"student_id", e.AggregateID(),
			"days", e.Days,
			"points", e.Points,
		)

	case shared.StreakUpdatedEvent:
		if e.WasReset {
			h.resets.Add(1)
			h.logger.Debug("streak reset",
				"student_id", e.AggregateID(),
				"previous_streak", e.PreviousStreak,
				"date", e.ActivityDate,
			)
		}
	}
	return nil
}

// Stats возвращает снимок счётчиков.
func (h *AuditHandler) Stats() AuditStats {
	return AuditStats{
		BadgesUnlocked:    h.badges.Load(),
		MilestonesReached: h.milestones.Load(),
		StreakResets:      h.resets.Load(),
	}
}

// Register подписывает обработчик на нужные типы событий.
func (h *AuditHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventBadgeUnlocked,
		shared.EventStreakMilestone,
		shared.EventStreakUpdated,
	} {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

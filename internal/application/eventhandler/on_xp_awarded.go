// Package eventhandler содержит обработчики доменных событий.
// Обработчики - реактивная часть системы: они не меняют журнал,
// а только поддерживают производные данные (кеши) в актуальном состоянии.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP AWARDED HANDLER
// Сбрасывает кеш лидерборда после каждой новой записи в журнале, а также
// после смены серии или нового бейджа: они видны в обогащённых строках.
// Дубликаты событий не порождают, поэтому повторные начисления кеш не трогают.
// ═══════════════════════════════════════════════════════════════════════════

// invalidatingEvents меняют содержимое лидерборда.
var invalidatingEvents = []shared.EventType{
	shared.EventXPAwarded,
	shared.EventBadgeUnlocked,
	shared.EventStreakUpdated,
}

// OnXPAwardedHandler инвалидирует кеш лидерборда.
type OnXPAwardedHandler struct {
	cache   leaderboard.Cache
	timeout time.Duration
	logger  *slog.Logger
}

// NewOnXPAwardedHandler создаёт обработчик. cache может быть nil.
func NewOnXPAwardedHandler(cache leaderboard.Cache, logger *slog.Logger) *OnXPAwardedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnXPAwardedHandler{
		cache:   cache,
		timeout: 2 * time.Second,
		logger:  logger.With("handler", "on_xp_awarded"),
	}
}

// Handle обрабатывает событие, меняющее лидерборд.
// Реализует интерфейс shared.EventHandler.
func (h *OnXPAwardedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	// Любое изменение задевает и лидерборд учреждения, и глобальные срезы,
	// поэтому сбрасываем всё.
	if err := h.cache.InvalidateAll(ctx); err != nil {
		h.logger.Error("failed to invalidate leaderboard cache",
			"event_type", event.EventType(),
			"student_id", event.AggregateID(),
			"error", err,
		)
		return fmt.Errorf("invalidate leaderboard cache: %w", err)
	}

	h.logger.Debug("leaderboard cache invalidated",
		"event_type", event.EventType(),
		"student_id", event.AggregateID(),
	)
	return nil
}

// Register подписывает обработчик на шину событий.
func (h *OnXPAwardedHandler) Register(bus shared.EventSubscriber) error {
	for _, eventType := range invalidatingEvents {
		if err := bus.Subscribe(eventType, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Package messaging implements the in-process event bus used to fan out
// gamification events (XP awarded, badge unlocked, streak changes) to
// reactive handlers such as cache invalidation.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("event handler panicked")
	ErrNilHandler     = errors.New("event handler is nil")
	ErrNilEvent       = errors.New("event is nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig configures NewInMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode hands each delivery to a goroutine; Publish returns at once.
	AsyncMode bool
	// WorkerPoolSize bounds concurrent async deliveries. Default 8.
	WorkerPoolSize int
	Logger         *slog.Logger
	EnableMetrics  bool
}

func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 8, EnableMetrics: true}
}

// InMemoryEventBus implements shared.EventBus inside one process.
// A failing or panicking handler is logged and counted; the publisher never
// sees it, since the write that produced the event has already committed.
type InMemoryEventBus struct {
	async   bool
	slots   chan struct{}
	log     *slog.Logger
	metrics *EventBusMetrics

	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool
	done     chan struct{}

	inflight sync.WaitGroup
}

func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 8
	}
	b := &InMemoryEventBus{
		async:  config.AsyncMode,
		slots:  make(chan struct{}, config.WorkerPoolSize),
		log:    config.Logger.With("component", "event_bus"),
		byType: make(map[shared.EventType][]shared.EventHandler),
		done:   make(chan struct{}),
	}
	if config.EnableMetrics {
		b.metrics = NewEventBusMetrics()
	}
	return b
}

func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.register(handler, func() {
		b.byType[eventType] = append(b.byType[eventType], handler)
	})
}

// SubscribeAll registers handler for every event type, after the typed ones.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.register(handler, func() {
		b.wildcard = append(b.wildcard, handler)
	})
}

func (b *InMemoryEventBus) register(handler shared.EventHandler, add func()) error {
	if handler == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// route snapshots the handlers for t so delivery runs without the lock.
// In async mode it also reserves one inflight slot per handler while the
// lock is held, so Close cannot start waiting between the closed check and
// the reservation.
func (b *InMemoryEventBus) route(t shared.EventType) ([]shared.EventHandler, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrEventBusClosed
	}
	typed := b.byType[t]
	out := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	out = append(append(out, typed...), b.wildcard...)
	if b.async {
		b.inflight.Add(len(out))
	}
	return out, nil
}

// Publish delivers event to its subscribers in registration order.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	handlers, err := b.route(event.EventType())
	if err != nil {
		return err
	}
	b.metrics.published(event.EventType())

	for _, h := range handlers {
		if b.async {
			b.deliverAsync(event, h)
		} else {
			b.deliver(event, h)
		}
	}
	return nil
}

// deliverAsync runs h on its own goroutine. The inflight slot was taken by route.
func (b *InMemoryEventBus) deliverAsync(event shared.Event, h shared.EventHandler) {
	go func() {
		defer b.inflight.Done()
		select {
		case b.slots <- struct{}{}:
		case <-b.done:
			return
		}
		defer func() { <-b.slots }()
		b.deliver(event, h)
	}()
}

func (b *InMemoryEventBus) deliver(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := safeCall(event, h)
	b.metrics.handled(time.Since(start), err)
	if err != nil {
		b.log.Error("event handler failed", "event_type", event.EventType(), "async", b.async, "error", err)
	}
}

func safeCall(event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(event)
}

// Wait returns once every async delivery started so far has finished.
// Publishes racing with Wait may or may not be waited for.
func (b *InMemoryEventBus) Wait() { b.inflight.Wait() }

// Close rejects further publishes, drops queued async deliveries that have
// not started yet, and waits for running ones. Closing twice is a no-op.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.inflight.Wait()
	b.log.Info("event bus closed")
	return nil
}

// Metrics is nil unless EnableMetrics was set.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics { return b.metrics }

var _ shared.EventBus = (*InMemoryEventBus)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts publishes per type and handler outcomes.
// Methods on a nil *EventBusMetrics do nothing.
type EventBusMetrics struct {
	mu          sync.Mutex
	perType     map[shared.EventType]int64
	executions  atomic.Int64
	failures    atomic.Int64
	handlerTime atomic.Int64 // nanoseconds
}

func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{perType: make(map[shared.EventType]int64)}
}

func (m *EventBusMetrics) published(t shared.EventType) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.perType[t]++
	m.mu.Unlock()
}

func (m *EventBusMetrics) handled(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.executions.Add(1)
	m.handlerTime.Add(int64(d))
	if err != nil {
		m.failures.Add(1)
	}
}

type EventBusMetricsSnapshot struct {
	Published              map[shared.EventType]int64 `json:"published"`
	HandlerExecutions      int64                      `json:"handler_executions"`
	HandlerFailures        int64                      `json:"handler_failures"`
	AverageHandlerDuration time.Duration              `json:"average_handler_duration"`
}

func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.Lock()
	published := maps.Clone(m.perType)
	m.mu.Unlock()

	snap := EventBusMetricsSnapshot{
		Published:         published,
		HandlerExecutions: m.executions.Load(),
		HandlerFailures:   m.failures.Load(),
	}
	if snap.HandlerExecutions > 0 {
		snap.AverageHandlerDuration = time.Duration(m.handlerTime.Load() / snap.HandlerExecutions)
	}
	return snap
}

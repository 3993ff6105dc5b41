package shared

import (
	"time"
)

// EventType names a domain event on the bus.
type EventType string

const (
	EventXPAwarded       EventType = "gamification.xp_awarded"
	EventBadgeUnlocked   EventType = "gamification.badge_unlocked"
	EventStreakUpdated   EventType = "gamification.streak_updated"
	EventStreakMilestone EventType = "gamification.streak_milestone"
)

// Event - факт, уже зафиксированный в журнале. Агрегат всех событий
// ядра - студент, поэтому AggregateID всегда student id.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent is embedded by every concrete event. Events are values and are
// serialized as JSON with the embedded fields inlined.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	StudentID     string    `json:"student_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func NewBaseEvent(eventType EventType, studentID string) BaseEvent {
	return BaseEvent{Type: eventType, Timestamp: time.Now().UTC(), StudentID: studentID}
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.StudentID }

// WithCorrelationID returns a copy tagged with the request id that caused it.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// События геймификации
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent: в журнал добавлена новая строка. Дубликаты его не порождают.
type XPAwardedEvent struct {
	BaseEvent
	InstitutionID string `json:"institution_id"`
	ActivityType  string `json:"activity_type"`
	ActivityID    string `json:"activity_id,omitempty"`
	Points        int    `json:"points"`
}

func NewXPAwardedEvent(studentID, institutionID, activityType, activityID string, points int) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:     NewBaseEvent(EventXPAwarded, studentID),
		InstitutionID: institutionID,
		ActivityType:  activityType,
		ActivityID:    activityID,
		Points:        points,
	}
}

// BadgeUnlockedEvent: не больше одного на пару (студент, бейдж).
type BadgeUnlockedEvent struct {
	BaseEvent
	InstitutionID string `json:"institution_id"`
	BadgeID       string `json:"badge_id"`
	BadgeName     string `json:"badge_name"`
	XPReward      int    `json:"xp_reward"`
}

func NewBadgeUnlockedEvent(studentID, institutionID, badgeID, badgeName string, xpReward int) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventBadgeUnlocked, studentID),
		InstitutionID: institutionID,
		BadgeID:       badgeID,
		BadgeName:     badgeName,
		XPReward:      xpReward,
	}
}

// StreakUpdatedEvent: серия сдвинулась на новый день (продлена или сброшена).
type StreakUpdatedEvent struct {
	BaseEvent
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	PreviousStreak int    `json:"previous_streak"`
	ActivityDate   string `json:"activity_date"`
	WasReset       bool   `json:"was_reset"`
}

func NewStreakUpdatedEvent(studentID string, current, longest, previous int, date CalendarDate, wasReset bool) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:      NewBaseEvent(EventStreakUpdated, studentID),
		CurrentStreak:  current,
		LongestStreak:  longest,
		PreviousStreak: previous,
		ActivityDate:   date.String(),
		WasReset:       wasReset,
	}
}

// StreakMilestoneEvent: бонус за веху действительно начислен.
type StreakMilestoneEvent struct {
	BaseEvent
	Days   int `json:"days"`
	Points int `json:"points"`
}

func NewStreakMilestoneEvent(studentID string, days, points int) StreakMilestoneEvent {
	return StreakMilestoneEvent{
		BaseEvent: NewBaseEvent(EventStreakMilestone, studentID),
		Days:      days,
		Points:    points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Шина
// ═══════════════════════════════════════════════════════════════════════════

type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	// SubscribeAll receives every event type.
	SubscribeAll(handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}

// NopPublisher discards events; the default when no bus is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }

package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Progression event types. Events are published after the owning transaction commits.
const (
	EventXPAwarded           EventType = "progression.xp_awarded"
	EventLevelUp             EventType = "progression.level_up"
	EventStreakUpdated       EventType = "progression.streak_updated"
	EventStreakFreezeUsed    EventType = "progression.streak_freeze_used"
	EventAchievementUnlocked EventType = "progression.achievement_unlocked"
	EventDailyGoalCompleted  EventType = "progression.daily_goal_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event for a user aggregate.
func NewBaseEvent(eventType EventType, userID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: userID,
		Version:     1,
	}
}

// Correlation returns the correlation ID, empty when unset.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted after an award is committed to the ledger.
type XPAwardedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	Amount        int    `json:"amount"`
	Reason        string `json:"reason"`
	SourceType    string `json:"source_type"`
	SourceID      string `json:"source_id,omitempty"`
	NewTotalXP    int    `json:"new_total_xp"`
	NewLevel      int    `json:"new_level"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": e.TransactionID,
		"amount":         e.Amount,
		"reason":         e.Reason,
		"source_type":    e.SourceType,
		"source_id":      e.SourceID,
		"new_total_xp":   e.NewTotalXP,
		"new_level":      e.NewLevel,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(userID, transactionID string, amount int, reason, sourceType, sourceID string, newTotal, newLevel int, at time.Time) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:     NewBaseEvent(EventXPAwarded, userID, at),
		TransactionID: transactionID,
		Amount:        amount,
		Reason:        reason,
		SourceType:    sourceType,
		SourceID:      sourceID,
		NewTotalXP:    newTotal,
		NewLevel:      newLevel,
	}
}

// LevelUpEvent is emitted when an award moves the user to a higher level.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
	TotalXP  int `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak & Daily Goal Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted when the day counter changes.
type StreakUpdatedEvent struct {
	BaseEvent
	Outcome       string `json:"outcome"` // started, continued, reset
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"outcome":        e.Outcome,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID, outcome string, current, longest int, at time.Time) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID, at),
		Outcome:       outcome,
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// StreakFreezeUsedEvent is emitted when a freeze credit is consumed.
type StreakFreezeUsedEvent struct {
	BaseEvent
	FreezesRemaining int `json:"freezes_remaining"`
	FreezesUsed      int `json:"freezes_used"`
}

// Payload implements Event interface.
func (e StreakFreezeUsedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"freezes_remaining": e.FreezesRemaining,
		"freezes_used":      e.FreezesUsed,
	}
}

// NewStreakFreezeUsedEvent creates a new StreakFreezeUsedEvent.
func NewStreakFreezeUsedEvent(userID string, remaining, used int, at time.Time) StreakFreezeUsedEvent {
	return StreakFreezeUsedEvent{
		BaseEvent:        NewBaseEvent(EventStreakFreezeUsed, userID, at),
		FreezesRemaining: remaining,
		FreezesUsed:      used,
	}
}

// DailyGoalCompletedEvent is emitted once per user per day.
type DailyGoalCompletedEvent struct {
	BaseEvent
	Date      string `json:"date"`
	TargetXP  int    `json:"target_xp"`
	CurrentXP int    `json:"current_xp"`
}

// Payload implements Event interface.
func (e DailyGoalCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date":       e.Date,
		"target_xp":  e.TargetXP,
		"current_xp": e.CurrentXP,
	}
}

// NewDailyGoalCompletedEvent creates a new DailyGoalCompletedEvent.
func NewDailyGoalCompletedEvent(userID, date string, target, current int, at time.Time) DailyGoalCompletedEvent {
	return DailyGoalCompletedEvent{
		BaseEvent: NewBaseEvent(EventDailyGoalCompleted, userID, at),
		Date:      date,
		TargetXP:  target,
		CurrentXP: current,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted after an unlock row is committed.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	XPReward      int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"name":           e.Name,
		"xp_reward":      e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, name string, reward int, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID, at),
		AchievementID: achievementID,
		Name:          name,
		XPReward:      reward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }

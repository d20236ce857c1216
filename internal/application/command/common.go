// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED COMMAND PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// Policy holds tunable progression rules.
type Policy struct {
	// DailyGoalTargetXP - базовая дневная цель.
	DailyGoalTargetXP int

	// DefaultFreezes - запас заморозок, выдаваемый при создании серии.
	DefaultFreezes int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		DailyGoalTargetXP: progression.DefaultDailyGoalTargetXP,
		DefaultFreezes:    progression.DefaultStreakFreezes,
	}
}

func (p Policy) normalized() Policy {
	if p.DailyGoalTargetXP <= 0 {
		p.DailyGoalTargetXP = progression.DefaultDailyGoalTargetXP
	}
	if p.DefaultFreezes < 0 {
		p.DefaultFreezes = 0
	}
	return p
}

// Environment bundles the collaborators every handler needs besides ports.
type Environment struct {
	Publisher shared.EventPublisher
	Calendar  *timeutil.Calendar
	Clock     timeutil.Clock
	NewID     func() string
	Logger    *slog.Logger
	Policy    Policy
}

func (e Environment) withDefaults() Environment {
	if e.Publisher == nil {
		e.Publisher = shared.NopPublisher{}
	}
	if e.Calendar == nil {
		e.Calendar = timeutil.UTCCalendar()
	}
	if e.Clock == nil {
		e.Clock = timeutil.SystemClock
	}
	if e.NewID == nil {
		e.NewID = uuid.NewString
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	e.Policy = e.Policy.normalized()
	return e
}

// publish sends committed events. Failures are logged, never returned.
func (e Environment) publish(ctx context.Context, events ...shared.Event) {
	for _, ev := range events {
		if err := e.Publisher.Publish(ev); err != nil {
			e.Logger.WarnContext(ctx, "failed to publish event",
				"event_type", ev.EventType(),
				"user_id", ev.AggregateID(),
				"error", err,
			)
		}
	}
}

// CascadeFailure describes a side effect that failed after the primary
// award was committed.
type CascadeFailure struct {
	Stage         string `json:"stage"`
	AchievementID string `json:"achievementId,omitempty"`
	Error         string `json:"error"`
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-TRANSACTION STEPS
// ══════════════════════════════════════════════════════════════════════════════

// applyAward updates the aggregate and appends the ledger row within tx.
func applyAward(ctx context.Context, tx progression.UserTx, award progression.Award, rec progression.XPTransaction) (progression.AwardOutcome, error) {
	agg, err := tx.LoadXP(ctx)
	if err != nil {
		return progression.AwardOutcome{}, err
	}
	out, err := agg.Apply(award.Amount, rec.CreatedAt)
	if err != nil {
		return progression.AwardOutcome{}, err
	}
	if err := tx.SaveXP(ctx, agg); err != nil {
		return progression.AwardOutcome{}, err
	}
	if err := tx.AppendTransaction(ctx, rec); err != nil {
		return progression.AwardOutcome{}, err
	}
	return out, nil
}

// awardEvents builds the events for a committed award.
func awardEvents(rec progression.XPTransaction, out progression.AwardOutcome) []shared.Event {
	awarded := shared.NewXPAwardedEvent(rec.UserID.String(), rec.ID, rec.Amount, rec.Reason,
		rec.SourceType.String(), rec.SourceID, out.NewTotalXP, out.NewLevel, rec.CreatedAt)
	awarded.BaseEvent = awarded.BaseEvent.WithCorrelationID(rec.ID)

	events := []shared.Event{awarded}
	if out.LeveledUp {
		levelUp := shared.NewLevelUpEvent(rec.UserID.String(), out.PreviousLevel, out.NewLevel, out.NewTotalXP, rec.CreatedAt)
		levelUp.BaseEvent = levelUp.BaseEvent.WithCorrelationID(rec.ID)
		events = append(events, levelUp)
	}
	return events
}

// recordStreak loads or creates the streak and applies today's activity.
func recordStreak(ctx context.Context, tx progression.UserTx, userID shared.UserID, today time.Time, freezes int) (progression.UserStreak, progression.StreakOutcome, error) {
	st, found, err := tx.LoadStreak(ctx)
	if err != nil {
		return progression.UserStreak{}, "", err
	}
	if !found {
		st = progression.NewUserStreak(userID, freezes)
	}

	outcome := st.RecordActivity(today)
	if outcome.Changed() || !found {
		if err := tx.SaveStreak(ctx, st); err != nil {
			return progression.UserStreak{}, "", err
		}
	}
	return st, outcome, nil
}

// accumulateGoal fetches or creates today's goal and adds amount.
func accumulateGoal(ctx context.Context, tx progression.UserTx, userID shared.UserID, today time.Time, target, amount int) (progression.DailyGoal, bool, error) {
	goal, found, err := tx.LoadDailyGoal(ctx, today)
	if err != nil {
		return progression.DailyGoal{}, false, err
	}
	if !found {
		goal = progression.NewDailyGoal(userID, today, target)
	}

	wasCompleted := goal.IsCompleted
	completedNow, err := goal.Accumulate(amount)
	if err != nil {
		return progression.DailyGoal{}, false, err
	}
	if !found || !wasCompleted {
		if err := tx.SaveDailyGoal(ctx, goal); err != nil {
			return progression.DailyGoal{}, false, err
		}
	}
	return goal, completedNow, nil
}

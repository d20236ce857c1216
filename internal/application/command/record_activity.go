package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Counts a learning day for the streak without awarding XP. AwardXP runs the
// same step for chapter, quiz and assignment awards.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand contains the data to record an activity day.
// The day is always taken from the service clock in the reference timezone.
type RecordActivityCommand struct {
	// UserID is the learner.
	UserID string
}

// RecordActivityResult contains the updated streak.
type RecordActivityResult struct {
	Streak  progression.UserStreak    `json:"streak"`
	Outcome progression.StreakOutcome `json:"outcome"`
}

// RecordActivityHandler handles RecordActivityCommand.
type RecordActivityHandler struct {
	store progression.Store
	env   Environment
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(store progression.Store, env Environment) *RecordActivityHandler {
	return &RecordActivityHandler{store: store, env: env.withDefaults()}
}

// Handle executes the command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("record_activity: %w", err)
	}

	at := h.env.Clock()
	today := h.env.Calendar.Day(at)

	var (
		streak  progression.UserStreak
		outcome progression.StreakOutcome
	)
	err = h.store.WithinUserTx(ctx, userID, func(ctx context.Context, tx progression.UserTx) error {
		var err error
		streak, outcome, err = recordStreak(ctx, tx, userID, today, h.env.Policy.DefaultFreezes)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record_activity: %w", err)
	}

	if outcome.Changed() {
		h.env.publish(ctx, shared.NewStreakUpdatedEvent(userID.String(), string(outcome), streak.CurrentStreak, streak.LongestStreak, at))
	}

	return &RecordActivityResult{Streak: streak, Outcome: outcome}, nil
}

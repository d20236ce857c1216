package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// AccumulateDailyGoalCommand adds XP to today's goal.
type AccumulateDailyGoalCommand struct {
	UserID string
	Amount int
}

// AccumulateDailyGoalResult contains today's goal after the update.
type AccumulateDailyGoalResult struct {
	Goal         progression.DailyGoal `json:"goal"`
	CompletedNow bool                  `json:"completedNow"`
}

// AccumulateDailyGoalHandler handles AccumulateDailyGoalCommand.
type AccumulateDailyGoalHandler struct {
	store progression.Store
	env   Environment
}

// NewAccumulateDailyGoalHandler creates a new AccumulateDailyGoalHandler.
func NewAccumulateDailyGoalHandler(store progression.Store, env Environment) *AccumulateDailyGoalHandler {
	return &AccumulateDailyGoalHandler{store: store, env: env.withDefaults()}
}

// Handle executes the command.
func (h *AccumulateDailyGoalHandler) Handle(ctx context.Context, cmd AccumulateDailyGoalCommand) (*AccumulateDailyGoalResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("accumulate_daily_goal: %w", err)
	}
	if cmd.Amount <= 0 {
		return nil, fmt.Errorf("accumulate_daily_goal: %w", shared.ErrInvalidAmount)
	}

	at := h.env.Clock()
	today := h.env.Calendar.Day(at)

	var (
		goal      progression.DailyGoal
		completed bool
	)
	err = h.store.WithinUserTx(ctx, userID, func(ctx context.Context, tx progression.UserTx) error {
		var err error
		goal, completed, err = accumulateGoal(ctx, tx, userID, today, h.env.Policy.DailyGoalTargetXP, cmd.Amount)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("accumulate_daily_goal: %w", err)
	}

	if completed {
		h.env.publish(ctx, shared.NewDailyGoalCompletedEvent(userID.String(), timeutil.FormatDate(goal.Date), goal.TargetXP, goal.CurrentXP, at))
	}

	return &AccumulateDailyGoalResult{Goal: goal, CompletedNow: completed}, nil
}

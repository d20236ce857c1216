package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY FREEZE COMMAND
// Consumes one freeze credit. The streak counters are not touched: a freeze
// is a manual credit, RecordActivity never consults it.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyFreezeCommand identifies the learner spending a freeze.
type ApplyFreezeCommand struct {
	UserID string
}

// ApplyFreezeResult contains the streak after the freeze.
type ApplyFreezeResult struct {
	Streak           progression.UserStreak `json:"streak"`
	FreezesRemaining int                    `json:"freezesRemaining"`
}

// ApplyFreezeHandler handles ApplyFreezeCommand.
type ApplyFreezeHandler struct {
	store progression.Store
	env   Environment
}

// NewApplyFreezeHandler creates a new ApplyFreezeHandler.
func NewApplyFreezeHandler(store progression.Store, env Environment) *ApplyFreezeHandler {
	return &ApplyFreezeHandler{store: store, env: env.withDefaults()}
}

// Handle executes the command. Users without a streak row start from the
// default allowance, matching what GetUserStreak reports for them.
func (h *ApplyFreezeHandler) Handle(ctx context.Context, cmd ApplyFreezeCommand) (*ApplyFreezeResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("apply_freeze: %w", err)
	}

	var streak progression.UserStreak
	err = h.store.WithinUserTx(ctx, userID, func(ctx context.Context, tx progression.UserTx) error {
		st, found, err := tx.LoadStreak(ctx)
		if err != nil {
			return err
		}
		if !found {
			st = progression.NewUserStreak(userID, h.env.Policy.DefaultFreezes)
		}
		if err := st.ApplyFreeze(); err != nil {
			return err
		}
		streak = st
		return tx.SaveStreak(ctx, st)
	})
	if err != nil {
		return nil, fmt.Errorf("apply_freeze: %w", err)
	}

	h.env.publish(ctx, shared.NewStreakFreezeUsedEvent(userID.String(), streak.FreezesAvailable, streak.FreezesUsed, h.env.Clock()))

	return &ApplyFreezeResult{Streak: streak, FreezesRemaining: streak.FreezesAvailable}, nil
}

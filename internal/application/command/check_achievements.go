package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// CheckAchievementsCommand triggers evaluation outside an XP award, e.g. when
// a course-completion collaborator reports a finished course.
type CheckAchievementsCommand struct {
	UserID string

	// EventType defaults to "check", which considers every condition.
	EventType string
}

// CheckAchievementsHandler handles CheckAchievementsCommand.
type CheckAchievementsHandler struct {
	ledger    progression.LedgerReader
	evaluator *Evaluator
}

// NewCheckAchievementsHandler creates a new CheckAchievementsHandler.
func NewCheckAchievementsHandler(ledger progression.LedgerReader, evaluator *Evaluator) *CheckAchievementsHandler {
	return &CheckAchievementsHandler{ledger: ledger, evaluator: evaluator}
}

// Handle executes the command. level and total_xp conditions are evaluated
// against the persisted aggregate.
func (h *CheckAchievementsHandler) Handle(ctx context.Context, cmd CheckAchievementsCommand) (*EvaluationResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("check_achievements: %w", err)
	}

	event := progression.EventCheck
	if cmd.EventType != "" {
		event = progression.EventType(cmd.EventType)
		if !event.IsValid() {
			return nil, fmt.Errorf("check_achievements: unknown event type %q: %w", cmd.EventType, shared.ErrInvalidInput)
		}
	}

	agg, _, err := h.ledger.GetUserXP(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check_achievements: failed to load xp: %w", err)
	}

	evCtx := progression.EventContext{
		HasXPTotals: true,
		NewTotalXP:  agg.TotalXP,
		NewLevel:    agg.Level,
	}
	return h.evaluator.EvaluateAndAward(ctx, userID, event, evCtx)
}

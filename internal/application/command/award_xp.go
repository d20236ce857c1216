package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Appends one ledger row and updates the aggregate atomically, then runs the
// learning-activity side effects (streak, daily goal) and achievement
// evaluation. Side effects run after the award commits: their failures are
// logged and reported, the award itself stays.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand contains the data for an XP award.
type AwardXPCommand struct {
	UserID     string
	Amount     int
	Reason     string
	SourceType string
	SourceID   string
}

// toAward validates the command and converts it to a domain award.
func (c AwardXPCommand) toAward() (progression.Award, error) {
	if c.Amount <= 0 {
		return progression.Award{}, shared.ErrInvalidAmount
	}
	userID, err := shared.NewUserID(c.UserID)
	if err != nil {
		return progression.Award{}, err
	}
	source, err := progression.ParseSourceType(c.SourceType)
	if err != nil {
		return progression.Award{}, err
	}
	award := progression.Award{
		UserID:     userID,
		Amount:     c.Amount,
		Reason:     c.Reason,
		SourceType: source,
		SourceID:   c.SourceID,
	}.WithDefaultReason()
	return award, award.Validate()
}

// AwardXPResult contains the outcome of an award.
type AwardXPResult struct {
	// TransactionID - идентификатор записи журнала.
	TransactionID string `json:"transactionId"`

	NewTotalXP    int  `json:"newTotalXP"`
	NewLevel      int  `json:"newLevel"`
	LeveledUp     bool `json:"leveledUp"`
	XPToNextLevel int  `json:"xpToNextLevel"`

	// Streak - состояние серии (только для учебной активности).
	Streak *progression.UserStreak `json:"streak,omitempty"`

	// DailyGoal - дневная цель (только для учебной активности).
	DailyGoal *progression.DailyGoal `json:"dailyGoal,omitempty"`

	// UnlockedAchievements - достижения, разблокированные каскадом.
	UnlockedAchievements []UnlockedAchievement `json:"unlockedAchievements"`

	// PartialFailures - побочные эффекты, завершившиеся ошибкой.
	PartialFailures []CascadeFailure `json:"partialFailures,omitempty"`
}

// IsPartial reports whether any side effect failed.
func (r *AwardXPResult) IsPartial() bool {
	return len(r.PartialFailures) > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPHandler handles AwardXPCommand.
type AwardXPHandler struct {
	store     progression.Store
	evaluator *Evaluator
	env       Environment
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(store progression.Store, evaluator *Evaluator, env Environment) *AwardXPHandler {
	return &AwardXPHandler{
		store:     store,
		evaluator: evaluator,
		env:       env.withDefaults(),
	}
}

// Handle executes the award.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	award, err := cmd.toAward()
	if err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	now := h.env.Clock()
	rec := progression.NewXPTransaction(h.env.NewID(), award, now)

	var out progression.AwardOutcome
	err = h.store.WithinUserTx(ctx, award.UserID, func(ctx context.Context, tx progression.UserTx) error {
		var txErr error
		out, txErr = applyAward(ctx, tx, award, rec)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}
	h.env.publish(ctx, awardEvents(rec, out)...)

	result := &AwardXPResult{
		TransactionID:        rec.ID,
		NewTotalXP:           out.NewTotalXP,
		NewLevel:             out.NewLevel,
		LeveledUp:            out.LeveledUp,
		XPToNextLevel:        out.XPToNextLevel,
		UnlockedAchievements: []UnlockedAchievement{},
	}

	// Серия и дневная цель идут до проверки достижений, чтобы условия
	// streak видели сегодняшнюю активность.
	if award.SourceType.IsLearningActivity() {
		if err := h.applyLearningActivity(ctx, award, now, result); err != nil {
			h.env.Logger.WarnContext(ctx, "learning activity side effects failed",
				"user_id", award.UserID,
				"transaction_id", rec.ID,
				"error", err,
			)
			result.PartialFailures = append(result.PartialFailures, CascadeFailure{
				Stage: "learning_activity",
				Error: err.Error(),
			})
		}
	}

	if h.evaluator != nil {
		eval, err := h.evaluator.EvaluateAndAward(ctx, award.UserID, progression.EventTypeFor(award.SourceType), progression.ContextFromOutcome(award.SourceID, out))
		if err != nil {
			h.env.Logger.WarnContext(ctx, "achievement evaluation failed",
				"user_id", award.UserID,
				"transaction_id", rec.ID,
				"error", err,
			)
			result.PartialFailures = append(result.PartialFailures, CascadeFailure{
				Stage: "achievements",
				Error: err.Error(),
			})
		} else {
			result.UnlockedAchievements = eval.Unlocked
			result.PartialFailures = append(result.PartialFailures, eval.Failures...)
			if eval.FinalTotals.HasXPTotals {
				result.NewTotalXP = eval.FinalTotals.NewTotalXP
				result.NewLevel = eval.FinalTotals.NewLevel
				result.LeveledUp = eval.FinalTotals.NewLevel > out.PreviousLevel
				result.XPToNextLevel = progression.XPToNextLevel(result.NewTotalXP, result.NewLevel)
			}
		}
	}

	return result, nil
}

// applyLearningActivity updates streak and daily goal in one user transaction.
func (h *AwardXPHandler) applyLearningActivity(ctx context.Context, award progression.Award, now time.Time, result *AwardXPResult) error {
	today := h.env.Calendar.Day(now)

	var (
		streak       progression.UserStreak
		outcome      progression.StreakOutcome
		goal         progression.DailyGoal
		goalComplete bool
	)
	err := h.store.WithinUserTx(ctx, award.UserID, func(ctx context.Context, tx progression.UserTx) error {
		var err error
		streak, outcome, err = recordStreak(ctx, tx, award.UserID, today, h.env.Policy.DefaultFreezes)
		if err != nil {
			return fmt.Errorf("streak: %w", err)
		}
		goal, goalComplete, err = accumulateGoal(ctx, tx, award.UserID, today, h.env.Policy.DailyGoalTargetXP, award.Amount)
		if err != nil {
			return fmt.Errorf("daily goal: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	result.Streak = &streak
	result.DailyGoal = &goal

	if outcome.Changed() {
		h.env.publish(ctx, shared.NewStreakUpdatedEvent(award.UserID.String(), string(outcome), streak.CurrentStreak, streak.LongestStreak, now))
	}
	if goalComplete {
		h.env.publish(ctx, shared.NewDailyGoalCompletedEvent(award.UserID.String(), timeutil.FormatDate(goal.Date), goal.TargetXP, goal.CurrentXP, now))
	}
	return nil
}

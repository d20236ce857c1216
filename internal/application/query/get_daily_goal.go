package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// GetDailyGoalQuery содержит параметры запроса дневной цели.
type GetDailyGoalQuery struct {
	UserID string
}

// GetDailyGoalResult содержит цель на сегодня.
type GetDailyGoalResult struct {
	progression.DailyGoal

	// Day - дата цели в формате YYYY-MM-DD.
	Day string `json:"day"`

	Percentage shared.Percentage `json:"percentage"`
	Remaining  int               `json:"remaining"`
}

// GetDailyGoalHandler обрабатывает GetDailyGoalQuery.
type GetDailyGoalHandler struct {
	goals    progression.DailyGoalReader
	settings Settings
}

// NewGetDailyGoalHandler создаёт обработчик.
func NewGetDailyGoalHandler(goals progression.DailyGoalReader, settings Settings) *GetDailyGoalHandler {
	return &GetDailyGoalHandler{goals: goals, settings: settings.withDefaults()}
}

// Handle выполняет запрос. Если строки на сегодня ещё нет, возвращается
// пустая цель с базовым порогом; строка создаётся первым начислением.
func (h *GetDailyGoalHandler) Handle(ctx context.Context, q GetDailyGoalQuery) (*GetDailyGoalResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_daily_goal: %w", err)
	}

	today := h.settings.Calendar.Day(h.settings.Clock())
	goal, found, err := h.goals.GetDailyGoal(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("get_daily_goal: %w", err)
	}
	if !found {
		goal = progression.NewDailyGoal(userID, today, h.settings.DailyGoalTargetXP)
	}

	return &GetDailyGoalResult{
		DailyGoal:  goal,
		Day:        timeutil.FormatDate(goal.Date),
		Percentage: goal.Percentage(),
		Remaining:  goal.Remaining(),
	}, nil
}

package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// GetUserStreakQuery содержит параметры запроса серии.
type GetUserStreakQuery struct {
	UserID string
}

// GetUserStreakResult содержит серию и её состояние на сегодня.
type GetUserStreakResult struct {
	progression.UserStreak

	// IsActiveToday - активность уже засчитана сегодня.
	IsActiveToday bool `json:"isActiveToday"`

	// IsAlive - серию ещё можно продолжить (активность сегодня или вчера).
	IsAlive bool `json:"isAlive"`
}

// GetUserStreakHandler обрабатывает GetUserStreakQuery.
type GetUserStreakHandler struct {
	streaks  progression.StreakReader
	settings Settings
}

// NewGetUserStreakHandler создаёт обработчик.
func NewGetUserStreakHandler(streaks progression.StreakReader, settings Settings) *GetUserStreakHandler {
	return &GetUserStreakHandler{streaks: streaks, settings: settings.withDefaults()}
}

// Handle выполняет запрос. Пользователь без серии получает нули и
// стандартный запас заморозок.
func (h *GetUserStreakHandler) Handle(ctx context.Context, q GetUserStreakQuery) (*GetUserStreakResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_user_streak: %w", err)
	}

	st, found, err := h.streaks.GetStreak(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_user_streak: %w", err)
	}
	if !found {
		st = progression.NewUserStreak(userID, h.settings.DefaultFreezes)
	}

	today := h.settings.Calendar.Day(h.settings.Clock())
	return &GetUserStreakResult{
		UserStreak:    st,
		IsActiveToday: st.HasActivity() && st.LastActivityDate.Equal(today),
		IsAlive:       st.IsAlive(today),
	}, nil
}

package progression

import (
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// DefaultDailyGoalTargetXP - базовая дневная цель.
const DefaultDailyGoalTargetXP = 50

// DailyGoal - дневная цель пользователя. Одна запись на пользователя и день.
// После IsCompleted = true запись больше не изменяется.
type DailyGoal struct {
	// UserID - владелец цели.
	UserID shared.UserID `json:"userId"`

	// Date - календарный день (результат DayOf).
	Date time.Time `json:"date"`

	// TargetXP - цель на день.
	TargetXP int `json:"targetXP"`

	// CurrentXP - набрано за день (>= 0).
	CurrentXP int `json:"currentXP"`

	// IsCompleted - цель достигнута.
	IsCompleted bool `json:"isCompleted"`
}

// NewDailyGoal создаёт цель на день. Неположительная цель заменяется базовой.
func NewDailyGoal(userID shared.UserID, date time.Time, targetXP int) DailyGoal {
	if targetXP <= 0 {
		targetXP = DefaultDailyGoalTargetXP
	}
	return DailyGoal{
		UserID:   userID,
		Date:     date,
		TargetXP: targetXP,
	}
}

// Accumulate добавляет XP к цели. Возвращает true, если цель достигнута
// именно этим вызовом. Завершённая цель не изменяется.
func (g *DailyGoal) Accumulate(amount int) (bool, error) {
	if amount <= 0 {
		return false, shared.ErrInvalidAmount
	}
	if g.IsCompleted {
		return false, nil
	}

	g.CurrentXP += amount
	if g.CurrentXP >= g.TargetXP {
		g.IsCompleted = true
		return true, nil
	}
	return false, nil
}

// Percentage возвращает прогресс цели.
func (g DailyGoal) Percentage() shared.Percentage {
	return shared.PercentageOf(g.CurrentXP, g.TargetXP)
}

// Remaining возвращает XP до цели.
func (g DailyGoal) Remaining() int {
	return max(g.TargetXP-g.CurrentXP, 0)
}

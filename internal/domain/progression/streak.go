package progression

import (
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR DATES
// ══════════════════════════════════════════════════════════════════════════════

// DayOf возвращает календарную дату момента t в поясе loc,
// представленную полуночью UTC. Все даты домена хранятся в этом виде.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween возвращает число календарных дней от from до to.
// Оба аргумента - даты, полученные через DayOf.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// DefaultStreakFreezes - запас заморозок для нового пользователя.
const DefaultStreakFreezes = 3

// StreakOutcome - результат RecordActivity.
type StreakOutcome string

const (
	// StreakStarted - первая активность пользователя.
	StreakStarted StreakOutcome = "started"

	// StreakContinued - активность на следующий день, серия +1.
	StreakContinued StreakOutcome = "continued"

	// StreakUnchanged - активность уже засчитана сегодня.
	StreakUnchanged StreakOutcome = "unchanged"

	// StreakReset - пропущен день, серия начата заново.
	StreakReset StreakOutcome = "reset"
)

// Changed сообщает, изменилось ли состояние серии.
func (o StreakOutcome) Changed() bool {
	return o != StreakUnchanged
}

// UserStreak - серия дней активности пользователя.
// Инвариант: LongestStreak >= CurrentStreak.
type UserStreak struct {
	// UserID - уникальный идентификатор пользователя.
	UserID shared.UserID `json:"userId"`

	// CurrentStreak - текущая серия дней.
	CurrentStreak int `json:"currentStreak"`

	// LongestStreak - лучшая серия дней.
	LongestStreak int `json:"longestStreak"`

	// LastActivityDate - дата последней активности. Нулевая, если активности не было.
	LastActivityDate time.Time `json:"lastActivityDate"`

	// FreezesAvailable - доступные заморозки.
	FreezesAvailable int `json:"freezesAvailable"`

	// FreezesUsed - использованные заморозки.
	FreezesUsed int `json:"freezesUsed"`
}

// NewUserStreak создаёт серию для пользователя без истории.
func NewUserStreak(userID shared.UserID, freezes int) UserStreak {
	if freezes < 0 {
		freezes = 0
	}
	return UserStreak{
		UserID:           userID,
		FreezesAvailable: freezes,
	}
}

// HasActivity сообщает, была ли хоть одна активность.
func (s UserStreak) HasActivity() bool {
	return !s.LastActivityDate.IsZero()
}

// RecordActivity засчитывает активность за день today (результат DayOf).
//
//	нет истории  -> серия 1
//	разница 0    -> без изменений
//	разница 1    -> серия +1
//	разница > 1  -> серия 1 (заморозка не применяется автоматически)
//
// Дата в будущем относительно today (сдвиг часов) считается уже засчитанной.
func (s *UserStreak) RecordActivity(today time.Time) StreakOutcome {
	if !s.HasActivity() {
		s.CurrentStreak = 1
		s.LongestStreak = max(s.LongestStreak, 1)
		s.LastActivityDate = today
		return StreakStarted
	}

	diff := DaysBetween(s.LastActivityDate, today)
	switch {
	case diff <= 0:
		return StreakUnchanged
	case diff == 1:
		s.CurrentStreak++
		s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
		s.LastActivityDate = today
		return StreakContinued
	default:
		s.CurrentStreak = 1
		s.LongestStreak = max(s.LongestStreak, 1)
		s.LastActivityDate = today
		return StreakReset
	}
}

// ApplyFreeze расходует одну заморозку. Серию не изменяет.
func (s *UserStreak) ApplyFreeze() error {
	if s.FreezesAvailable <= 0 {
		return shared.ErrNoFreezeAvailable
	}
	s.FreezesAvailable--
	s.FreezesUsed++
	return nil
}

// IsAlive сообщает, продолжится ли серия при активности сегодня.
func (s UserStreak) IsAlive(today time.Time) bool {
	if !s.HasActivity() || s.CurrentStreak == 0 {
		return false
	}
	return DaysBetween(s.LastActivityDate, today) <= 1
}

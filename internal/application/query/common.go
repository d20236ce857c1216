// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// Settings - общие параметры обработчиков чтения.
type Settings struct {
	// Calendar - опорный часовой пояс для календарных дат.
	Calendar *timeutil.Calendar

	// Clock - источник текущего времени.
	Clock timeutil.Clock

	// RecentTransactions - сколько последних записей журнала отдавать.
	RecentTransactions int

	// NearestAchievements - сколько ближайших достижений показывать.
	NearestAchievements int

	// DailyGoalTargetXP - базовая дневная цель.
	DailyGoalTargetXP int

	// DefaultFreezes - запас заморозок для пользователя без серии.
	DefaultFreezes int
}

// DefaultSettings возвращает значения по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		Calendar:            timeutil.UTCCalendar(),
		Clock:               timeutil.SystemClock,
		RecentTransactions:  10,
		NearestAchievements: 5,
		DailyGoalTargetXP:   progression.DefaultDailyGoalTargetXP,
		DefaultFreezes:      progression.DefaultStreakFreezes,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Calendar == nil {
		s.Calendar = d.Calendar
	}
	if s.Clock == nil {
		s.Clock = d.Clock
	}
	if s.RecentTransactions <= 0 {
		s.RecentTransactions = d.RecentTransactions
	}
	if s.NearestAchievements <= 0 {
		s.NearestAchievements = d.NearestAchievements
	}
	if s.DailyGoalTargetXP <= 0 {
		s.DailyGoalTargetXP = d.DailyGoalTargetXP
	}
	if s.DefaultFreezes < 0 {
		s.DefaultFreezes = 0
	}
	return s
}

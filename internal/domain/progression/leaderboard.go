package progression

import (
	"strings"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// Timeframe - период рейтинга.
type Timeframe string

const (
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeAllTime Timeframe = "all-time"
)

// Timeframes возвращает все периоды в порядке отображения.
func Timeframes() []Timeframe {
	return []Timeframe{TimeframeAllTime, TimeframeWeekly, TimeframeMonthly}
}

// IsValid проверяет период.
func (t Timeframe) IsValid() bool {
	return t == TimeframeWeekly || t == TimeframeMonthly || t == TimeframeAllTime
}

// IsWindowed сообщает, считается ли рейтинг по окну журнала.
func (t Timeframe) IsWindowed() bool {
	return t == TimeframeWeekly || t == TimeframeMonthly
}

// Since возвращает начало окна: now-7д для недели, now-1 месяц для месяца.
// Для all-time возвращает нулевое время.
func (t Timeframe) Since(now time.Time) time.Time {
	switch t {
	case TimeframeWeekly:
		return now.AddDate(0, 0, -7)
	case TimeframeMonthly:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// ParseTimeframe разбирает период. Пустая строка означает all-time.
func ParseTimeframe(value string) (Timeframe, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return TimeframeAllTime, nil
	}
	if v == "alltime" || v == "all_time" {
		v = string(TimeframeAllTime)
	}
	tf := Timeframe(v)
	if !tf.IsValid() {
		return "", shared.ErrInvalidTimeframe
	}
	return tf, nil
}

// LeaderboardQuery - запрос страницы рейтинга.
// Порядок: Score по убыванию, при равенстве UserID по возрастанию.
type LeaderboardQuery struct {
	Timeframe Timeframe
	Since     time.Time
	Limit     int
	Offset    int
}

// LeaderboardEntry - строка рейтинга.
type LeaderboardEntry struct {
	// Rank - позиция: offset + номер в странице (с 1).
	Rank shared.Rank `json:"rank"`

	// UserID - пользователь.
	UserID shared.UserID `json:"userId"`

	// DisplayName - отображаемое имя, если известно.
	DisplayName string `json:"displayName,omitempty"`

	// Score - XP за период (для all-time равен TotalXP).
	Score int `json:"score"`

	// TotalXP - общий XP пользователя.
	TotalXP int `json:"totalXP"`

	// Level - текущий уровень.
	Level int `json:"level"`
}

// LeaderboardPage - страница рейтинга.
type LeaderboardPage struct {
	Timeframe  Timeframe          `json:"timeframe"`
	Entries    []LeaderboardEntry `json:"entries"`
	TotalUsers int                `json:"totalUsers"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// AssignRanks проставляет ранги offset+1, offset+2, ...
func AssignRanks(entries []LeaderboardEntry, offset int) {
	for i := range entries {
		entries[i].Rank = shared.Rank(offset + i + 1)
	}
}

// LessEntry - детерминированный порядок рейтинга.
func LessEntry(a, b LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.UserID < b.UserID
}

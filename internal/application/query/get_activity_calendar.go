package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVITY CALENDAR QUERY
// Записи журнала за последние N дней, сгруппированные по календарным датам.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultCalendarDays - окно календаря по умолчанию.
	DefaultCalendarDays = 30

	// MaxCalendarDays - максимальное окно.
	MaxCalendarDays = 366
)

// GetActivityCalendarQuery содержит параметры запроса.
type GetActivityCalendarQuery struct {
	UserID string

	// Days - размер окна, включая сегодня (0 = 30).
	Days int
}

// Validate проверяет параметры.
func (q *GetActivityCalendarQuery) Validate() error {
	if q.Days < 0 || q.Days > MaxCalendarDays {
		return shared.NewDomainError("activity", "Validate", shared.ErrValueOutOfRange,
			fmt.Sprintf("days must be between 1 and %d", MaxCalendarDays))
	}
	if q.Days == 0 {
		q.Days = DefaultCalendarDays
	}
	return nil
}

// ActivityDay - активность за один день.
type ActivityDay struct {
	Date       string                      `json:"date"`
	TotalXP    int                         `json:"totalXP"`
	Activities []progression.XPTransaction `json:"activities"`
}

// GetActivityCalendarResult содержит дни с активностью, по возрастанию даты.
type GetActivityCalendarResult struct {
	UserID shared.UserID `json:"userId"`
	Days   []ActivityDay `json:"days"`
	From   string        `json:"from"`
	To     string        `json:"to"`
}

// GetActivityCalendarHandler обрабатывает GetActivityCalendarQuery.
type GetActivityCalendarHandler struct {
	ledger   progression.LedgerReader
	settings Settings
}

// NewGetActivityCalendarHandler создаёт обработчик.
func NewGetActivityCalendarHandler(ledger progression.LedgerReader, settings Settings) *GetActivityCalendarHandler {
	return &GetActivityCalendarHandler{ledger: ledger, settings: settings.withDefaults()}
}

// Handle выполняет запрос.
func (h *GetActivityCalendarHandler) Handle(ctx context.Context, q GetActivityCalendarQuery) (*GetActivityCalendarResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_activity_calendar: %w", err)
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_activity_calendar: %w", err)
	}

	cal := h.settings.Calendar
	now := h.settings.Clock()
	since := cal.DaysAgo(now, q.Days-1)

	txs, err := h.ledger.TransactionsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("get_activity_calendar: %w", err)
	}

	days := make([]ActivityDay, 0)
	for _, t := range txs {
		date := cal.FormatDay(t.CreatedAt)
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].TotalXP += t.Amount
			days[n-1].Activities = append(days[n-1].Activities, t)
			continue
		}
		days = append(days, ActivityDay{
			Date:       date,
			TotalXP:    t.Amount,
			Activities: []progression.XPTransaction{t},
		})
	}

	return &GetActivityCalendarResult{
		UserID: userID,
		Days:   days,
		From:   timeutil.FormatDate(cal.Day(since)),
		To:     cal.FormatDay(now),
	}, nil
}

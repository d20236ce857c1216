package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Страница рейтинга за неделю, месяц или за всё время.
// Ранг = offset + позиция в странице. Равные очки упорядочены по userID.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultLeaderboardLimit - размер страницы по умолчанию.
	DefaultLeaderboardLimit = 10

	// MaxLeaderboardLimit - максимальный размер страницы.
	MaxLeaderboardLimit = 100
)

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Timeframe - "weekly", "monthly" или "all-time" (пусто = all-time).
	Timeframe string

	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return shared.ErrInvalidPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLeaderboardLimit
	}
	if q.Limit > MaxLeaderboardLimit {
		q.Limit = MaxLeaderboardLimit
	}
	return nil
}

// GetLeaderboardResult содержит страницу рейтинга.
type GetLeaderboardResult struct {
	progression.LeaderboardPage

	// Since - начало окна (нулевое для all-time).
	Since time.Time `json:"since,omitempty"`

	// HasMore - есть ли записи после текущей страницы.
	HasMore bool `json:"hasMore"`

	// GeneratedAt - время построения ответа.
	GeneratedAt time.Time `json:"generatedAt"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	board     progression.LeaderboardReader
	directory progression.UserDirectory
	settings  Settings
	logger    *slog.Logger
}

// NewGetLeaderboardHandler создаёт обработчик. directory может быть nil:
// тогда имена не подставляются.
func NewGetLeaderboardHandler(
	board progression.LeaderboardReader,
	directory progression.UserDirectory,
	settings Settings,
	logger *slog.Logger,
) *GetLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{
		board:     board,
		directory: directory,
		settings:  settings.withDefaults(),
		logger:    logger,
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}
	tf, err := progression.ParseTimeframe(q.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	now := h.settings.Clock()
	page, err := h.board.Leaderboard(ctx, progression.LeaderboardQuery{
		Timeframe: tf,
		Since:     tf.Since(now),
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}
	if page.Entries == nil {
		page.Entries = []progression.LeaderboardEntry{}
	}

	h.enrichWithNames(ctx, page.Entries)

	return &GetLeaderboardResult{
		LeaderboardPage: page,
		Since:           tf.Since(now),
		HasMore:         q.Offset+len(page.Entries) < page.TotalUsers,
		GeneratedAt:     now.UTC(),
	}, nil
}

// enrichWithNames подставляет отображаемые имена. Ошибка не критична.
func (h *GetLeaderboardHandler) enrichWithNames(ctx context.Context, entries []progression.LeaderboardEntry) {
	if h.directory == nil || len(entries) == 0 {
		return
	}

	ids := make([]shared.UserID, 0, len(entries))
	for _, e := range entries {
		if e.DisplayName == "" {
			ids = append(ids, e.UserID)
		}
	}
	if len(ids) == 0 {
		return
	}

	names, err := h.directory.DisplayNames(ctx, ids)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to load display names", "error", err)
		return
	}
	for i := range entries {
		if name, ok := names[entries[i].UserID]; ok && entries[i].DisplayName == "" {
			entries[i].DisplayName = name
		}
	}
}

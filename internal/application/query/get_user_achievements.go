package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER ACHIEVEMENTS QUERY
// Полученные достижения и до N ближайших к разблокировке.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserAchievementsQuery содержит параметры запроса.
type GetUserAchievementsQuery struct {
	UserID string
}

// UnlockedAchievementDTO - полученное достижение.
type UnlockedAchievementDTO struct {
	progression.Achievement
	UnlockedAt time.Time `json:"unlockedAt"`
}

// GetUserAchievementsResult содержит достижения пользователя.
type GetUserAchievementsResult struct {
	// Unlocked - полученные достижения, новые первыми.
	Unlocked []UnlockedAchievementDTO `json:"unlocked"`

	// Nearest - ближайшие к разблокировке.
	Nearest []progression.AchievementProgress `json:"nearest"`

	// TotalAvailable - размер активного каталога.
	TotalAvailable int `json:"totalAvailable"`
}

// GetUserAchievementsHandler обрабатывает GetUserAchievementsQuery.
type GetUserAchievementsHandler struct {
	achievements progression.AchievementReader
	catalog      progression.Catalog
	ledger       progression.LedgerReader
	streaks      progression.StreakReader
	activity     progression.ActivityCounter
	settings     Settings
}

// NewGetUserAchievementsHandler создаёт обработчик. activity может быть nil.
func NewGetUserAchievementsHandler(
	achievements progression.AchievementReader,
	catalog progression.Catalog,
	ledger progression.LedgerReader,
	streaks progression.StreakReader,
	activity progression.ActivityCounter,
	settings Settings,
) *GetUserAchievementsHandler {
	return &GetUserAchievementsHandler{
		achievements: achievements,
		catalog:      catalog,
		ledger:       ledger,
		streaks:      streaks,
		activity:     activity,
		settings:     settings.withDefaults(),
	}
}

// Handle выполняет запрос. Каталог, разблокировки и показатели читаются
// параллельно.
func (h *GetUserAchievementsHandler) Handle(ctx context.Context, q GetUserAchievementsQuery) (*GetUserAchievementsResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_user_achievements: %w", err)
	}

	var (
		catalog  []progression.Achievement
		unlocked []progression.UserAchievement
		snapshot progression.ProgressSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = h.catalog.ListActive(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		unlocked, err = h.achievements.ListUserAchievements(gctx, userID)
		return err
	})
	g.Go(func() error {
		agg, _, err := h.ledger.GetUserXP(gctx, userID)
		if err != nil {
			return err
		}
		snapshot.TotalXP = agg.TotalXP
		snapshot.Level = max(agg.Level, 1)
		return nil
	})
	g.Go(func() error {
		st, _, err := h.streaks.GetStreak(gctx, userID)
		snapshot.CurrentStreak = st.CurrentStreak
		return err
	})
	if h.activity != nil {
		g.Go(func() error {
			var err error
			snapshot.CompletedChapters, err = h.activity.CompletedChapters(gctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			snapshot.CompletedCourses, err = h.activity.CompletedCourses(gctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			snapshot.QuizAttempts, err = h.activity.QuizAttempts(gctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			snapshot.PerfectQuizzes, err = h.activity.PerfectQuizzes(gctx, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get_user_achievements: %w", err)
	}

	byID := make(map[string]progression.Achievement, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}

	ids := make([]string, 0, len(unlocked))
	dtos := make([]UnlockedAchievementDTO, 0, len(unlocked))
	for _, ua := range unlocked {
		ids = append(ids, ua.AchievementID)

		a, ok := byID[ua.AchievementID]
		if !ok {
			// Достижение сняли с публикации после получения.
			a, err = h.catalog.Get(ctx, ua.AchievementID)
			if err != nil {
				if shared.IsNotFound(err) {
					a = progression.Achievement{ID: ua.AchievementID, Name: ua.AchievementID}
				} else {
					return nil, fmt.Errorf("get_user_achievements: %w", err)
				}
			}
		}
		dtos = append(dtos, UnlockedAchievementDTO{Achievement: a, UnlockedAt: ua.UnlockedAt})
	}

	return &GetUserAchievementsResult{
		Unlocked:       dtos,
		Nearest:        progression.NearestToUnlock(catalog, progression.NewUnlockedSet(ids), snapshot, h.settings.NearestAchievements),
		TotalAvailable: len(catalog),
	}, nil
}

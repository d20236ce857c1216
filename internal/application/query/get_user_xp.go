package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER XP QUERY
// Агрегат XP, прогресс уровня и последние записи журнала.
// Новый пользователь получает значения по умолчанию, а не ошибку.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserXPQuery содержит параметры запроса.
type GetUserXPQuery struct {
	UserID string

	// RecentLimit - сколько записей журнала вернуть (0 = из настроек).
	RecentLimit int
}

// GetUserXPResult содержит агрегат и журнал.
type GetUserXPResult struct {
	UserID         shared.UserID `json:"userId"`
	TotalXP        int           `json:"totalXP"`
	Level          int           `json:"level"`
	CurrentLevelXP int           `json:"currentLevelXP"`
	XPToNextLevel  int           `json:"xpToNextLevel"`

	// Progress - раскладка текущего уровня.
	Progress progression.LevelProgress `json:"progress"`

	// RecentTransactions - последние записи, новые первыми.
	RecentTransactions []progression.XPTransaction `json:"recentTransactions"`

	// IsNew - у пользователя ещё нет агрегата.
	IsNew bool `json:"isNew"`
}

// GetUserXPHandler обрабатывает GetUserXPQuery.
type GetUserXPHandler struct {
	ledger   progression.LedgerReader
	settings Settings
}

// NewGetUserXPHandler создаёт обработчик.
func NewGetUserXPHandler(ledger progression.LedgerReader, settings Settings) *GetUserXPHandler {
	return &GetUserXPHandler{ledger: ledger, settings: settings.withDefaults()}
}

// Handle выполняет запрос.
func (h *GetUserXPHandler) Handle(ctx context.Context, q GetUserXPQuery) (*GetUserXPResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_user_xp: %w", err)
	}

	limit := q.RecentLimit
	if limit <= 0 {
		limit = h.settings.RecentTransactions
	}

	var (
		agg    progression.UserXP
		found  bool
		recent []progression.XPTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		agg, found, err = h.ledger.GetUserXP(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = h.ledger.RecentTransactions(gctx, userID, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get_user_xp: %w", err)
	}

	if !found {
		agg = progression.NewUserXP(userID)
	}
	if recent == nil {
		recent = []progression.XPTransaction{}
	}

	return &GetUserXPResult{
		UserID:             userID,
		TotalXP:            agg.TotalXP,
		Level:              agg.Level,
		CurrentLevelXP:     agg.CurrentLevelXP,
		XPToNextLevel:      agg.XPToNextLevel(),
		Progress:           progression.ProgressFor(agg.TotalXP),
		RecentTransactions: recent,
		IsNew:              !found,
	}, nil
}

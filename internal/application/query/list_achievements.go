package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
)

// ListAchievementsResult содержит активный каталог.
type ListAchievementsResult struct {
	Achievements []progression.Achievement `json:"achievements"`
}

// ListAchievementsHandler отдаёт каталог по категории и порогу.
type ListAchievementsHandler struct {
	catalog progression.Catalog
}

// NewListAchievementsHandler создаёт обработчик.
func NewListAchievementsHandler(catalog progression.Catalog) *ListAchievementsHandler {
	return &ListAchievementsHandler{catalog: catalog}
}

// Handle выполняет запрос.
func (h *ListAchievementsHandler) Handle(ctx context.Context) (*ListAchievementsResult, error) {
	catalog, err := h.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_achievements: %w", err)
	}

	sorted := make([]progression.Achievement, len(catalog))
	copy(sorted, catalog)
	progression.SortCatalog(sorted)

	return &ListAchievementsResult{Achievements: sorted}, nil
}

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
)

type StickerRepo struct {
	db  *bun.DB
	log *logger.Logger
}

func NewStickerRepo(db *bun.DB, log *logger.Logger) *StickerRepo {
	return &StickerRepo{db: db, log: log}
}

func (r *StickerRepo) Create(ctx context.Context, sticker *models.Sticker) error {
	r.log.LogDatabase("INSERT", "stickers", fmt.Sprintf("Creating sticker %s (%s)", sticker.ID, sticker.Name))

	if _, err := r.db.NewInsert().Model(sticker).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create sticker: %w", err)
	}
	return nil
}

func (r *StickerRepo) Update(ctx context.Context, sticker *models.Sticker) error {
	r.log.LogDatabase("UPDATE", "stickers", fmt.Sprintf("Updating sticker %s", sticker.ID))

	if _, err := r.db.NewUpdate().Model(sticker).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("failed to update sticker: %w", err)
	}
	return nil
}

func (r *StickerRepo) Get(ctx context.Context, id string) (*models.Sticker, error) {
	sticker := &models.Sticker{}
	err := r.db.NewSelect().Model(sticker).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sticker not found")
		}
		return nil, fmt.Errorf("failed to get sticker: %w", err)
	}
	return sticker, nil
}

func (r *StickerRepo) List(ctx context.Context, category string, limit, offset int) ([]*models.Sticker, error) {
	var stickers []*models.Sticker

	q := r.db.NewSelect().Model(&stickers)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	err := q.Order("popularity DESC").Order("name ASC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stickers: %w", err)
	}
	return stickers, nil
}

// KeywordSearch is the fallback when no embedding engine is configured.
func (r *StickerRepo) KeywordSearch(ctx context.Context, query string, limit int) ([]*models.Sticker, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"

	var stickers []*models.Sticker
	err := r.db.NewSelect().Model(&stickers).
		Where("name LIKE ?", pattern).
		WhereOr("description LIKE ?", pattern).
		WhereOr("search_keywords LIKE ?", pattern).
		WhereOr("tags LIKE ?", pattern).
		Order("popularity DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search stickers: %w", err)
	}
	return stickers, nil
}

func (r *StickerRepo) ListWithEmbeddings(ctx context.Context) ([]*models.Sticker, error) {
	var stickers []*models.Sticker
	err := r.db.NewSelect().Model(&stickers).
		Where("embedding IS NOT NULL").
		Where("embedding != ''").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded stickers: %w", err)
	}
	return stickers, nil
}

func (r *StickerRepo) UpdateEmbedding(ctx context.Context, id, embeddingJSON string) error {
	r.log.LogDatabase("UPDATE", "stickers", fmt.Sprintf("Storing embedding for sticker %s", id))

	_, err := r.db.NewUpdate().Model((*models.Sticker)(nil)).
		Set("embedding = ?", embeddingJSON).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update sticker embedding: %w", err)
	}
	return nil
}

func (r *StickerRepo) IncrementPopularity(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().Model((*models.Sticker)(nil)).
		Set("popularity = popularity + 1").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment sticker popularity: %w", err)
	}
	return nil
}

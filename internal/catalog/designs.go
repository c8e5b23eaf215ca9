package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
)

type DesignRepo struct {
	db  *bun.DB
	log *logger.Logger
}

func NewDesignRepo(db *bun.DB, log *logger.Logger) *DesignRepo {
	return &DesignRepo{db: db, log: log}
}

func (r *DesignRepo) Save(ctx context.Context, design *models.PublishedDesign) error {
	r.log.LogDatabase("INSERT", "published_designs", fmt.Sprintf("Saving design %s for user %s", design.ID, design.UserID))

	if _, err := r.db.NewInsert().Model(design).Exec(ctx); err != nil {
		return fmt.Errorf("failed to save design: %w", err)
	}
	return nil
}

func (r *DesignRepo) Update(ctx context.Context, design *models.PublishedDesign) error {
	r.log.LogDatabase("UPDATE", "published_designs", fmt.Sprintf("Updating design %s", design.ID))

	if _, err := r.db.NewUpdate().Model(design).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("failed to update design: %w", err)
	}
	return nil
}

func (r *DesignRepo) Get(ctx context.Context, id string) (*models.PublishedDesign, error) {
	design := &models.PublishedDesign{}
	err := r.db.NewSelect().Model(design).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("design not found")
		}
		return nil, fmt.Errorf("failed to get design: %w", err)
	}
	return design, nil
}

func (r *DesignRepo) ListByUser(ctx context.Context, userID string) ([]*models.PublishedDesign, error) {
	var designs []*models.PublishedDesign
	err := r.db.NewSelect().Model(&designs).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list designs: %w", err)
	}
	return designs, nil
}

func (r *DesignRepo) ListPublished(ctx context.Context, limit, offset int) ([]*models.PublishedDesign, error) {
	var designs []*models.PublishedDesign
	err := r.db.NewSelect().Model(&designs).
		Where("status = ?", models.DesignPublished).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list published designs: %w", err)
	}
	return designs, nil
}

func (r *DesignRepo) Delete(ctx context.Context, id string) error {
	r.log.LogDatabase("DELETE", "published_designs", fmt.Sprintf("Deleting design %s", id))

	res, err := r.db.NewDelete().Model((*models.PublishedDesign)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete design: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("design not found")
	}
	return nil
}

// Package catalog holds the marketplace content repositories: card templates,
// categories, stickers and published designs.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"smartwish-backend/internal/models"
)

// NewDB wraps an existing connection pool with the bun query builder. The
// catalog shares the pool owned by the commerce store.
func NewDB(sqldb *sql.DB) *bun.DB {
	return bun.NewDB(sqldb, mysqldialect.New())
}

// InitSchema creates the catalog tables when they do not exist yet.
func InitSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Template)(nil),
		(*models.Category)(nil),
		(*models.PublishedDesign)(nil),
		(*models.Sticker)(nil),
	}
	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create catalog table: %w", err)
		}
	}
	return nil
}

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
)

type TemplateRepo struct {
	db  *bun.DB
	log *logger.Logger
}

func NewTemplateRepo(db *bun.DB, log *logger.Logger) *TemplateRepo {
	return &TemplateRepo{db: db, log: log}
}

func (r *TemplateRepo) Create(ctx context.Context, tpl *models.Template) error {
	r.log.LogDatabase("INSERT", "sw_templates", fmt.Sprintf("Creating template %s (%s)", tpl.ID, tpl.Title))

	if _, err := r.db.NewInsert().Model(tpl).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (r *TemplateRepo) Update(ctx context.Context, tpl *models.Template) error {
	r.log.LogDatabase("UPDATE", "sw_templates", fmt.Sprintf("Updating template %s", tpl.ID))

	if _, err := r.db.NewUpdate().Model(tpl).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return nil
}

func (r *TemplateRepo) Get(ctx context.Context, id string) (*models.Template, error) {
	tpl := &models.Template{}
	err := r.db.NewSelect().Model(tpl).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template not found")
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

func (r *TemplateRepo) GetBySlug(ctx context.Context, slug string) (*models.Template, error) {
	tpl := &models.Template{}
	err := r.db.NewSelect().Model(tpl).Where("slug = ?", slug).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template not found")
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

// List returns templates most popular first, optionally filtered by category.
func (r *TemplateRepo) List(ctx context.Context, categoryID string, limit, offset int) ([]*models.Template, error) {
	var templates []*models.Template

	q := r.db.NewSelect().Model(&templates)
	if categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}
	err := q.Order("popularity DESC").Order("created_at DESC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// KeywordSearch matches the query against title, description and the curated
// search keywords.
func (r *TemplateRepo) KeywordSearch(ctx context.Context, query string, limit int) ([]*models.Template, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"

	var templates []*models.Template
	err := r.db.NewSelect().Model(&templates).
		Where("title LIKE ?", pattern).
		WhereOr("description LIKE ?", pattern).
		WhereOr("search_keywords LIKE ?", pattern).
		Order("popularity DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search templates: %w", err)
	}
	return templates, nil
}

// ListWithEmbeddings returns every template that already has a stored vector.
func (r *TemplateRepo) ListWithEmbeddings(ctx context.Context) ([]*models.Template, error) {
	var templates []*models.Template
	err := r.db.NewSelect().Model(&templates).
		Where("embedding_vector IS NOT NULL").
		Where("embedding_vector != ''").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded templates: %w", err)
	}
	return templates, nil
}

func (r *TemplateRepo) UpdateEmbedding(ctx context.Context, id, embeddingJSON string, at time.Time) error {
	r.log.LogDatabase("UPDATE", "sw_templates", fmt.Sprintf("Storing embedding for template %s", id))

	_, err := r.db.NewUpdate().Model((*models.Template)(nil)).
		Set("embedding_vector = ?", embeddingJSON).
		Set("embedding_updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update template embedding: %w", err)
	}
	return nil
}

func (r *TemplateRepo) IncrementPopularity(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().Model((*models.Template)(nil)).
		Set("popularity = popularity + 1").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment template popularity: %w", err)
	}
	return nil
}

func (r *TemplateRepo) ListCategories(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	err := r.db.NewSelect().Model(&categories).Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (r *TemplateRepo) SaveCategory(ctx context.Context, category *models.Category) error {
	r.log.LogDatabase("INSERT", "categories", fmt.Sprintf("Creating category %s", category.Name))

	if _, err := r.db.NewInsert().Model(category).Exec(ctx); err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// MakeSlug derives a URL-safe slug from a template title.
func MakeSlug(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 64 {
		slug = strings.Trim(slug[:64], "-")
	}
	if slug == "" {
		return "design"
	}
	return slug
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartwish-backend/internal/catalog"
	"smartwish-backend/internal/embedding"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/utils"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrDesignNotFound   = errors.New("design not found")
)

// semanticThreshold is the minimum cosine similarity for a vector match to
// count. Below it the search falls back to keywords.
const semanticThreshold = 0.3

// TemplateCatalog is the slice of the template repository the service uses.
type TemplateCatalog interface {
	Create(ctx context.Context, tpl *models.Template) error
	Update(ctx context.Context, tpl *models.Template) error
	Get(ctx context.Context, id string) (*models.Template, error)
	GetBySlug(ctx context.Context, slug string) (*models.Template, error)
	List(ctx context.Context, categoryID string, limit, offset int) ([]*models.Template, error)
	KeywordSearch(ctx context.Context, query string, limit int) ([]*models.Template, error)
	ListWithEmbeddings(ctx context.Context) ([]*models.Template, error)
	UpdateEmbedding(ctx context.Context, id, embeddingJSON string, at time.Time) error
	IncrementPopularity(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]*models.Category, error)
	SaveCategory(ctx context.Context, category *models.Category) error
}

type DesignCatalog interface {
	Save(ctx context.Context, design *models.PublishedDesign) error
	Update(ctx context.Context, design *models.PublishedDesign) error
	Get(ctx context.Context, id string) (*models.PublishedDesign, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PublishedDesign, error)
	ListPublished(ctx context.Context, limit, offset int) ([]*models.PublishedDesign, error)
	Delete(ctx context.Context, id string) error
}

type CatalogService struct {
	templates TemplateCatalog
	designs   DesignCatalog
	engine    embedding.Engine
	log       *logger.Logger
}

// NewCatalogService wires the marketplace service. engine may be nil, in
// which case search runs on keywords only.
func NewCatalogService(templates TemplateCatalog, designs DesignCatalog, engine embedding.Engine, log *logger.Logger) *CatalogService {
	return &CatalogService{
		templates: templates,
		designs:   designs,
		engine:    engine,
		log:       log,
	}
}

func (s *CatalogService) CreateTemplate(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	now := time.Now()
	if tpl.ID == "" {
		tpl.ID = utils.GenerateUUID()
	}
	if tpl.Slug == "" {
		tpl.Slug = catalog.MakeSlug(tpl.Title)
	}
	if _, err := s.templates.GetBySlug(ctx, tpl.Slug); err == nil {
		tpl.Slug = fmt.Sprintf("%s-%s", tpl.Slug, tpl.ID[:8])
	}
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	// Vector generation is best effort; a template without an embedding is
	// still searchable by keyword until the next refresh.
	s.embedTemplate(ctx, tpl)

	return tpl, nil
}

func (s *CatalogService) UpdateTemplate(ctx context.Context, tpl *models.Template) (*models.Template, error) {
	existing, err := s.templates.Get(ctx, tpl.ID)
	if err != nil {
		return nil, ErrTemplateNotFound
	}

	tpl.Slug = existing.Slug
	tpl.CreatedAt = existing.CreatedAt
	tpl.Popularity = existing.Popularity
	tpl.UpdatedAt = time.Now()

	if err := s.templates.Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	s.embedTemplate(ctx, tpl)
	return tpl, nil
}

// GetTemplate resolves a template by ID first, then by slug, matching how
// the storefront links cards.
func (s *CatalogService) GetTemplate(ctx context.Context, key string) (*models.Template, error) {
	if tpl, err := s.templates.Get(ctx, key); err == nil {
		return tpl, nil
	}
	tpl, err := s.templates.GetBySlug(ctx, key)
	if err != nil {
		return nil, ErrTemplateNotFound
	}
	return tpl, nil
}

func (s *CatalogService) ListTemplates(ctx context.Context, categoryID string, limit, offset int) ([]*models.Template, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.templates.List(ctx, categoryID, limit, offset)
}

// SearchTemplates runs a semantic search over the card catalog, falling back
// to keyword matching when no engine is configured, the engine fails, or
// nothing clears the similarity threshold.
func (s *CatalogService) SearchTemplates(ctx context.Context, query string, limit int) ([]*models.Template, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 {
		limit = 20
	}

	if s.engine != nil {
		results, err := s.semanticSearch(ctx, query, limit)
		if err != nil {
			s.log.Warn("CATALOG", fmt.Sprintf("Semantic search failed for %q, falling back to keywords: %v", query, err))
		} else if len(results) > 0 {
			return results, nil
		}
	}

	return s.templates.KeywordSearch(ctx, query, limit)
}

func (s *CatalogService) semanticSearch(ctx context.Context, query string, limit int) ([]*models.Template, error) {
	queryVec, err := s.engine.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := s.templates.ListWithEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	corpus := make([][]float32, len(candidates))
	for i, tpl := range candidates {
		corpus[i] = tpl.Embedding()
	}

	var matches []*models.Template
	for _, result := range embedding.FindTopK(queryVec, corpus, limit) {
		if result.Similarity < semanticThreshold {
			break
		}
		matches = append(matches, candidates[result.Index])
	}

	s.log.Debug("CATALOG", fmt.Sprintf("Semantic search %q matched %d of %d templates", query, len(matches), len(candidates)))
	return matches, nil
}

// RefreshEmbeddings regenerates vectors for templates that do not have one.
// Returns how many templates were embedded.
func (s *CatalogService) RefreshEmbeddings(ctx context.Context) (int, error) {
	if s.engine == nil {
		return 0, fmt.Errorf("no embedding engine configured")
	}

	templates, err := s.templates.List(ctx, "", 200, 0)
	if err != nil {
		return 0, err
	}

	var pending []*models.Template
	for _, tpl := range templates {
		if tpl.EmbeddingJSON == "" {
			pending = append(pending, tpl)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, tpl := range pending {
		texts[i] = templateEmbeddingText(tpl)
	}

	vectors, err := s.engine.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed templates: %w", err)
	}

	count := 0
	now := time.Now()
	for i, tpl := range pending {
		tpl.SetEmbedding(vectors[i], now)
		if err := s.templates.UpdateEmbedding(ctx, tpl.ID, tpl.EmbeddingJSON, now); err != nil {
			s.log.Warn("CATALOG", fmt.Sprintf("Failed to store embedding for template %s: %v", tpl.ID, err))
			continue
		}
		count++
	}

	s.log.Info("CATALOG", fmt.Sprintf("Refreshed embeddings for %d templates", count))
	return count, nil
}

func (s *CatalogService) embedTemplate(ctx context.Context, tpl *models.Template) {
	if s.engine == nil {
		return
	}

	vec, err := s.engine.EmbedDocument(ctx, templateEmbeddingText(tpl))
	if err != nil {
		s.log.Warn("CATALOG", fmt.Sprintf("Failed to embed template %s: %v", tpl.ID, err))
		return
	}

	now := time.Now()
	tpl.SetEmbedding(vec, now)
	if err := s.templates.UpdateEmbedding(ctx, tpl.ID, tpl.EmbeddingJSON, now); err != nil {
		s.log.Warn("CATALOG", fmt.Sprintf("Failed to store embedding for template %s: %v", tpl.ID, err))
	}
}

// templateEmbeddingText composes the document text fed to the embedding
// model: title and description first, then the curated facets.
func templateEmbeddingText(tpl *models.Template) string {
	parts := []string{tpl.Title, tpl.Description}
	if tpl.OccasionType != "" {
		parts = append(parts, "Occasion: "+tpl.OccasionType)
	}
	if tpl.TargetAudience != "" {
		parts = append(parts, "For: "+tpl.TargetAudience)
	}
	if tpl.StyleType != "" {
		parts = append(parts, "Style: "+tpl.StyleType)
	}
	if tpl.Message != "" {
		parts = append(parts, "Inside note: "+tpl.Message)
	}
	if tpl.SearchKeywords != "" {
		parts = append(parts, tpl.SearchKeywords)
	}

	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(p))
		}
	}
	return strings.Join(nonEmpty, ". ")
}

// TrackTemplateUse bumps a template's popularity counter. Failures only cost
// ranking signal, so they are logged and dropped.
func (s *CatalogService) TrackTemplateUse(ctx context.Context, id string) {
	if err := s.templates.IncrementPopularity(ctx, id); err != nil {
		s.log.Warn("CATALOG", fmt.Sprintf("Failed to bump popularity for template %s: %v", id, err))
	}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.templates.ListCategories(ctx)
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	category := &models.Category{
		ID:   utils.GenerateUUID(),
		Name: name,
		Slug: catalog.MakeSlug(name),
	}
	if err := s.templates.SaveCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

// --- Published designs ---

func (s *CatalogService) SaveDesign(ctx context.Context, design *models.PublishedDesign) (*models.PublishedDesign, error) {
	now := time.Now()
	if design.ID == "" {
		design.ID = utils.GenerateUUID()
	}
	if design.Status == "" {
		design.Status = models.DesignDraft
	}
	design.CreatedAt = now
	design.UpdatedAt = now

	if err := s.designs.Save(ctx, design); err != nil {
		return nil, fmt.Errorf("failed to save design: %w", err)
	}
	return design, nil
}

func (s *CatalogService) GetDesign(ctx context.Context, id string) (*models.PublishedDesign, error) {
	design, err := s.designs.Get(ctx, id)
	if err != nil {
		return nil, ErrDesignNotFound
	}
	return design, nil
}

func (s *CatalogService) ListUserDesigns(ctx context.Context, userID string) ([]*models.PublishedDesign, error) {
	return s.designs.ListByUser(ctx, userID)
}

func (s *CatalogService) ListPublishedDesigns(ctx context.Context, limit, offset int) ([]*models.PublishedDesign, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.designs.ListPublished(ctx, limit, offset)
}

// PublishDesign moves a draft into the public marketplace feed.
func (s *CatalogService) PublishDesign(ctx context.Context, id string) (*models.PublishedDesign, error) {
	design, err := s.designs.Get(ctx, id)
	if err != nil {
		return nil, ErrDesignNotFound
	}
	if design.Status == models.DesignPublished {
		return design, nil
	}

	design.Status = models.DesignPublished
	design.UpdatedAt = time.Now()
	if err := s.designs.Update(ctx, design); err != nil {
		return nil, fmt.Errorf("failed to publish design: %w", err)
	}

	s.log.Info("CATALOG", fmt.Sprintf("Design %s published by user %s", design.ID, design.UserID))
	return design, nil
}

func (s *CatalogService) DeleteDesign(ctx context.Context, id string) error {
	if err := s.designs.Delete(ctx, id); err != nil {
		return ErrDesignNotFound
	}
	return nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartwish-backend/internal/embedding"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/utils"
)

var ErrStickerNotFound = errors.New("sticker not found")

const stickerCacheTTL = 5 * time.Minute

// StickerCatalog is the slice of the sticker repository the service uses.
type StickerCatalog interface {
	Create(ctx context.Context, sticker *models.Sticker) error
	Get(ctx context.Context, id string) (*models.Sticker, error)
	List(ctx context.Context, category string, limit, offset int) ([]*models.Sticker, error)
	KeywordSearch(ctx context.Context, query string, limit int) ([]*models.Sticker, error)
	ListWithEmbeddings(ctx context.Context) ([]*models.Sticker, error)
	UpdateEmbedding(ctx context.Context, id, embeddingJSON string) error
	IncrementPopularity(ctx context.Context, id string) error
}

// SearchCache memoizes serialized search responses. Implemented by the
// Redis wrapper; a nil cache disables memoization.
type SearchCache interface {
	CacheSearchResult(key, payload string, ttl time.Duration) error
	GetCachedSearchResult(key string) (string, error)
}

type StickerService struct {
	stickers StickerCatalog
	engine   embedding.Engine
	cache    SearchCache
	log      *logger.Logger
}

func NewStickerService(stickers StickerCatalog, engine embedding.Engine, cache SearchCache, log *logger.Logger) *StickerService {
	return &StickerService{
		stickers: stickers,
		engine:   engine,
		cache:    cache,
		log:      log,
	}
}

func (s *StickerService) CreateSticker(ctx context.Context, sticker *models.Sticker) (*models.Sticker, error) {
	now := time.Now()
	if sticker.ID == "" {
		sticker.ID = utils.GenerateUUID()
	}
	sticker.CreatedAt = now
	sticker.UpdatedAt = now

	if err := s.stickers.Create(ctx, sticker); err != nil {
		return nil, fmt.Errorf("failed to create sticker: %w", err)
	}

	s.embedSticker(ctx, sticker)
	return sticker, nil
}

func (s *StickerService) GetSticker(ctx context.Context, id string) (*models.Sticker, error) {
	sticker, err := s.stickers.Get(ctx, id)
	if err != nil {
		return nil, ErrStickerNotFound
	}
	return sticker, nil
}

func (s *StickerService) ListStickers(ctx context.Context, category string, limit, offset int) ([]*models.Sticker, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.stickers.List(ctx, category, limit, offset)
}

// SearchStickers answers free-text queries from the editor's sticker picker.
// Results are cached briefly because kiosks repeat the same handful of
// queries ("birthday", "heart") all day.
func (s *StickerService) SearchStickers(ctx context.Context, query string, limit int) ([]*models.Sticker, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("stickers:%s:%d", strings.ToLower(query), limit)
	if cached := s.fromCache(cacheKey); cached != nil {
		return cached, nil
	}

	var results []*models.Sticker
	if s.engine != nil {
		matches, err := s.semanticSearch(ctx, query, limit)
		if err != nil {
			s.log.Warn("STICKERS", fmt.Sprintf("Semantic search failed for %q, falling back to keywords: %v", query, err))
		} else {
			results = matches
		}
	}

	if len(results) == 0 {
		var err error
		results, err = s.stickers.KeywordSearch(ctx, query, limit)
		if err != nil {
			return nil, err
		}
	}

	s.toCache(cacheKey, results)
	return results, nil
}

func (s *StickerService) semanticSearch(ctx context.Context, query string, limit int) ([]*models.Sticker, error) {
	queryVec, err := s.engine.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := s.stickers.ListWithEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	corpus := make([][]float32, len(candidates))
	for i, sticker := range candidates {
		corpus[i] = sticker.Embedding()
	}

	var matches []*models.Sticker
	for _, result := range embedding.FindTopK(queryVec, corpus, limit) {
		if result.Similarity < semanticThreshold {
			break
		}
		matches = append(matches, candidates[result.Index])
	}
	return matches, nil
}

// RefreshEmbeddings regenerates vectors for stickers that do not have one.
func (s *StickerService) RefreshEmbeddings(ctx context.Context) (int, error) {
	if s.engine == nil {
		return 0, fmt.Errorf("no embedding engine configured")
	}

	stickers, err := s.stickers.List(ctx, "", 500, 0)
	if err != nil {
		return 0, err
	}

	var pending []*models.Sticker
	for _, sticker := range stickers {
		if sticker.EmbeddingJSON == "" {
			pending = append(pending, sticker)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, sticker := range pending {
		texts[i] = stickerEmbeddingText(sticker)
	}

	vectors, err := s.engine.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed stickers: %w", err)
	}

	count := 0
	for i, sticker := range pending {
		sticker.SetEmbedding(vectors[i])
		if err := s.stickers.UpdateEmbedding(ctx, sticker.ID, sticker.EmbeddingJSON); err != nil {
			s.log.Warn("STICKERS", fmt.Sprintf("Failed to store embedding for sticker %s: %v", sticker.ID, err))
			continue
		}
		count++
	}

	s.log.Info("STICKERS", fmt.Sprintf("Refreshed embeddings for %d stickers", count))
	return count, nil
}

func (s *StickerService) embedSticker(ctx context.Context, sticker *models.Sticker) {
	if s.engine == nil {
		return
	}

	vec, err := s.engine.EmbedDocument(ctx, stickerEmbeddingText(sticker))
	if err != nil {
		s.log.Warn("STICKERS", fmt.Sprintf("Failed to embed sticker %s: %v", sticker.ID, err))
		return
	}

	sticker.SetEmbedding(vec)
	if err := s.stickers.UpdateEmbedding(ctx, sticker.ID, sticker.EmbeddingJSON); err != nil {
		s.log.Warn("STICKERS", fmt.Sprintf("Failed to store embedding for sticker %s: %v", sticker.ID, err))
	}
}

func stickerEmbeddingText(sticker *models.Sticker) string {
	parts := []string{sticker.Name, sticker.Description}
	if sticker.Category != "" {
		parts = append(parts, "Category: "+sticker.Category)
	}
	if tags := sticker.Tags(); len(tags) > 0 {
		parts = append(parts, strings.Join(tags, ", "))
	}
	if sticker.SearchKeywords != "" {
		parts = append(parts, sticker.SearchKeywords)
	}

	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(p))
		}
	}
	return strings.Join(nonEmpty, ". ")
}

// TrackStickerUse bumps a sticker's popularity counter.
func (s *StickerService) TrackStickerUse(ctx context.Context, id string) {
	if err := s.stickers.IncrementPopularity(ctx, id); err != nil {
		s.log.Warn("STICKERS", fmt.Sprintf("Failed to bump popularity for sticker %s: %v", id, err))
	}
}

func (s *StickerService) fromCache(key string) []*models.Sticker {
	if s.cache == nil {
		return nil
	}
	payload, err := s.cache.GetCachedSearchResult(key)
	if err != nil || payload == "" {
		return nil
	}
	var stickers []*models.Sticker
	if err := json.Unmarshal([]byte(payload), &stickers); err != nil {
		return nil
	}
	return stickers
}

func (s *StickerService) toCache(key string, stickers []*models.Sticker) {
	if s.cache == nil || len(stickers) == 0 {
		return
	}
	payload, err := json.Marshal(stickers)
	if err != nil {
		return
	}
	if err := s.cache.CacheSearchResult(key, string(payload), stickerCacheTTL); err != nil {
		s.log.Debug("STICKERS", fmt.Sprintf("Failed to cache search results: %v", err))
	}
}

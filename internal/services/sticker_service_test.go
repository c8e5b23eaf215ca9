package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartwish-backend/internal/models"
)

func embeddedSticker(id, name string, vec []float32) *models.Sticker {
	sticker := &models.Sticker{ID: id, Name: name}
	sticker.SetEmbedding(vec)
	return sticker
}

func TestSearchStickersCachesResults(t *testing.T) {
	repo := newFakeStickerCatalog()
	repo.keywordHits = []*models.Sticker{{ID: "st-1", Name: "Balloon"}}
	cache := newFakeCache()
	svc := NewStickerService(repo, nil, cache, newTestLogger(t))

	first, err := svc.SearchStickers(context.Background(), "Birthday", 0)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, repo.keywordCalls)
	assert.Equal(t, 1, cache.puts)
	assert.Contains(t, cache.entries, "stickers:birthday:20", "cache keys are lowercased with the limit applied")

	second, err := svc.SearchStickers(context.Background(), "birthday", 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "st-1", second[0].ID)
	assert.Equal(t, 1, repo.keywordCalls, "a cache hit must not touch the repository")
	assert.Equal(t, 1, cache.hits)
}

func TestSearchStickersSemantic(t *testing.T) {
	repo := newFakeStickerCatalog()
	repo.stickers = []*models.Sticker{
		embeddedSticker("st-heart", "Heart", []float32{1, 0}),
		embeddedSticker("st-star", "Star", []float32{0, 1}),
	}
	engine := &fakeEngine{queryVec: []float32{1, 0}}
	svc := NewStickerService(repo, engine, nil, newTestLogger(t))

	results, err := svc.SearchStickers(context.Background(), "love", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "st-heart", results[0].ID)
	assert.Zero(t, repo.keywordCalls)
}

func TestSearchStickersFallsBackOnEngineError(t *testing.T) {
	repo := newFakeStickerCatalog()
	repo.keywordHits = []*models.Sticker{{ID: "st-kw", Name: "Keyword Match"}}
	engine := &fakeEngine{queryErr: fmt.Errorf("quota exhausted")}
	svc := NewStickerService(repo, engine, nil, newTestLogger(t))

	results, err := svc.SearchStickers(context.Background(), "birthday", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "st-kw", results[0].ID)
	assert.Equal(t, 1, repo.keywordCalls)
}

func TestSearchStickersEmptyResultsNotCached(t *testing.T) {
	repo := newFakeStickerCatalog()
	cache := newFakeCache()
	svc := NewStickerService(repo, nil, cache, newTestLogger(t))

	results, err := svc.SearchStickers(context.Background(), "nothing matches", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, cache.puts, "empty result sets are not worth caching")
}

func TestSearchStickersRequiresQuery(t *testing.T) {
	svc := NewStickerService(newFakeStickerCatalog(), nil, nil, newTestLogger(t))

	_, err := svc.SearchStickers(context.Background(), "  ", 10)
	assert.Error(t, err)
}

func TestCreateStickerEmbeds(t *testing.T) {
	repo := newFakeStickerCatalog()
	engine := &fakeEngine{docVec: []float32{0.3, 0.7}}
	svc := NewStickerService(repo, engine, nil, newTestLogger(t))

	sticker := &models.Sticker{Name: "Confetti", Category: "party", Description: "Falling confetti"}
	sticker.SetTags([]string{"celebration", "colorful"})

	created, err := svc.CreateSticker(context.Background(), sticker)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.EmbeddingJSON)
	assert.Contains(t, repo.embedUpdates, created.ID)

	require.Len(t, engine.embedded, 1)
	assert.Contains(t, engine.embedded[0], "Confetti")
	assert.Contains(t, engine.embedded[0], "Category: party")
	assert.Contains(t, engine.embedded[0], "celebration")
}

func TestStickerRefreshEmbeddings(t *testing.T) {
	repo := newFakeStickerCatalog()
	repo.stickers = []*models.Sticker{
		embeddedSticker("st-done", "Already Embedded", []float32{1, 0}),
		{ID: "st-a", Name: "Sticker A"},
		{ID: "st-b", Name: "Sticker B"},
	}
	engine := &fakeEngine{docVec: []float32{0.5, 0.5}}
	svc := NewStickerService(repo, engine, nil, newTestLogger(t))

	count, err := svc.RefreshEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = svc.RefreshEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetStickerNotFound(t *testing.T) {
	svc := NewStickerService(newFakeStickerCatalog(), nil, nil, newTestLogger(t))

	_, err := svc.GetSticker(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStickerNotFound)
}

func TestTrackStickerUse(t *testing.T) {
	repo := newFakeStickerCatalog()
	repo.stickers = []*models.Sticker{{ID: "st-pop", Name: "Popular"}}
	svc := NewStickerService(repo, nil, nil, newTestLogger(t))

	svc.TrackStickerUse(context.Background(), "st-pop")
	assert.Equal(t, 1, repo.stickers[0].Popularity)
}

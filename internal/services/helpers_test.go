package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartwish-backend/internal/kafka"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/tillo"
	"smartwish-backend/internal/utils"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	t.Setenv("LOG_DIR", t.TempDir())
	return logger.NewLogger()
}

func newTestProducer(t *testing.T, log *logger.Logger) *kafka.Producer {
	t.Helper()
	producer, err := kafka.NewProducer(nil, true, log)
	require.NoError(t, err)
	return producer
}

func testOrder(status models.OrderStatus) *models.Order {
	now := time.Now()
	return &models.Order{
		OrderID:       utils.GenerateOrderID(),
		KioskID:       "kiosk-1",
		CustomerEmail: "shopper@example.com",
		Items: []models.OrderItem{
			{Type: models.ItemGreetingCard, TemplateID: "tpl-1", Title: "Birthday Card", Quantity: 1, UnitPrice: 5.99},
		},
		Amount:    5.99,
		Currency:  "USD",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// fakeLock is a SessionLock with scripted outcomes.
type fakeLock struct {
	acquired bool
	err      error
	releases int
}

func (l *fakeLock) AcquireSessionLock(orderID, sessionID string) (bool, error) {
	return l.acquired, l.err
}

func (l *fakeLock) ReleaseSessionLock(orderID, sessionID string) error {
	l.releases++
	return nil
}

// fakeIntents is an IntentCreator that mints predictable intent IDs.
type fakeIntents struct {
	calls int
	err   error
}

func (f *fakeIntents) CreateIntent(ctx context.Context, session *models.PaymentSession, order *models.Order) (string, string, error) {
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	return "pi_test_" + session.ID, "secret_" + session.ID, nil
}

// failingSessionUpdateStore rejects every payment session update.
type failingSessionUpdateStore struct {
	*storage.InMemoryStore
}

func (s *failingSessionUpdateStore) UpdateSession(session *models.PaymentSession) error {
	return fmt.Errorf("connection lost")
}

// fakeTillo records issue and cancel calls without talking to the provider.
// failOn fails the Nth issue call; zero disables the failure.
type fakeTillo struct {
	brands    []tillo.Brand
	issued    []tillo.IssueRequest
	cancelled []tillo.CancelRequest
	failOn    int
}

func (f *fakeTillo) ListBrands(ctx context.Context) ([]tillo.Brand, error) {
	return f.brands, nil
}

func (f *fakeTillo) CheckBrand(ctx context.Context, slug string) (*tillo.Brand, error) {
	want := tillo.NormalizeBrandSlug(slug)
	for i := range f.brands {
		if tillo.NormalizeBrandSlug(f.brands[i].Slug) == want {
			return &f.brands[i], nil
		}
	}
	return nil, tillo.ErrBrandNotFound
}

func (f *fakeTillo) IssueGiftCard(ctx context.Context, req tillo.IssueRequest) (*tillo.GiftCard, error) {
	call := len(f.issued) + 1
	if f.failOn > 0 && call == f.failOn {
		return nil, fmt.Errorf("provider rejected request")
	}
	f.issued = append(f.issued, req)
	return &tillo.GiftCard{
		Reference: fmt.Sprintf("ref-%d", call),
		Code:      fmt.Sprintf("code-%d", call),
		URL:       fmt.Sprintf("https://redeem.example.com/%d", call),
	}, nil
}

func (f *fakeTillo) CancelGiftCard(ctx context.Context, req tillo.CancelRequest) error {
	f.cancelled = append(f.cancelled, req)
	return nil
}

// fakeEngine returns fixed vectors. queryErr makes query embedding fail while
// document embedding keeps working.
type fakeEngine struct {
	queryVec []float32
	docVec   []float32
	queryErr error
	embedded []string
}

func (e *fakeEngine) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	e.embedded = append(e.embedded, text)
	return e.docVec, nil
}

func (e *fakeEngine) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		e.embedded = append(e.embedded, text)
		out[i] = e.docVec
	}
	return out, nil
}

func (e *fakeEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.queryVec, nil
}

func (e *fakeEngine) Dimensions() int {
	return len(e.queryVec)
}

func (e *fakeEngine) Name() string {
	return "fake"
}

// fakeDispatcher records dispatch calls for print tests.
type fakeDispatcher struct {
	err   error
	calls []string
	kiosk *models.Kiosk
	job   *models.PrintJob
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, kiosk *models.Kiosk, job *models.PrintJob, documentURL string) error {
	d.calls = append(d.calls, documentURL)
	d.kiosk = kiosk
	d.job = job
	return d.err
}

// fakeTemplateCatalog is an in-memory TemplateCatalog.
type fakeTemplateCatalog struct {
	templates    []*models.Template
	categories   []*models.Category
	keywordHits  []*models.Template
	keywordCalls int
	embedUpdates map[string]string
}

func newFakeTemplateCatalog() *fakeTemplateCatalog {
	return &fakeTemplateCatalog{embedUpdates: make(map[string]string)}
}

func (c *fakeTemplateCatalog) Create(ctx context.Context, tpl *models.Template) error {
	c.templates = append(c.templates, tpl)
	return nil
}

func (c *fakeTemplateCatalog) Update(ctx context.Context, tpl *models.Template) error {
	for i, existing := range c.templates {
		if existing.ID == tpl.ID {
			c.templates[i] = tpl
			return nil
		}
	}
	return fmt.Errorf("template not found")
}

func (c *fakeTemplateCatalog) Get(ctx context.Context, id string) (*models.Template, error) {
	for _, tpl := range c.templates {
		if tpl.ID == id {
			return tpl, nil
		}
	}
	return nil, fmt.Errorf("template not found")
}

func (c *fakeTemplateCatalog) GetBySlug(ctx context.Context, slug string) (*models.Template, error) {
	for _, tpl := range c.templates {
		if tpl.Slug == slug {
			return tpl, nil
		}
	}
	return nil, fmt.Errorf("template not found")
}

func (c *fakeTemplateCatalog) List(ctx context.Context, categoryID string, limit, offset int) ([]*models.Template, error) {
	var out []*models.Template
	for _, tpl := range c.templates {
		if categoryID != "" && tpl.CategoryID != categoryID {
			continue
		}
		out = append(out, tpl)
	}
	return out, nil
}

func (c *fakeTemplateCatalog) KeywordSearch(ctx context.Context, query string, limit int) ([]*models.Template, error) {
	c.keywordCalls++
	return c.keywordHits, nil
}

func (c *fakeTemplateCatalog) ListWithEmbeddings(ctx context.Context) ([]*models.Template, error) {
	var out []*models.Template
	for _, tpl := range c.templates {
		if tpl.EmbeddingJSON != "" {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (c *fakeTemplateCatalog) UpdateEmbedding(ctx context.Context, id, embeddingJSON string, at time.Time) error {
	c.embedUpdates[id] = embeddingJSON
	return nil
}

func (c *fakeTemplateCatalog) IncrementPopularity(ctx context.Context, id string) error {
	for _, tpl := range c.templates {
		if tpl.ID == id {
			tpl.Popularity++
			return nil
		}
	}
	return fmt.Errorf("template not found")
}

func (c *fakeTemplateCatalog) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return c.categories, nil
}

func (c *fakeTemplateCatalog) SaveCategory(ctx context.Context, category *models.Category) error {
	c.categories = append(c.categories, category)
	return nil
}

// fakeDesignCatalog is an in-memory DesignCatalog.
type fakeDesignCatalog struct {
	designs map[string]*models.PublishedDesign
}

func newFakeDesignCatalog() *fakeDesignCatalog {
	return &fakeDesignCatalog{designs: make(map[string]*models.PublishedDesign)}
}

func (c *fakeDesignCatalog) Save(ctx context.Context, design *models.PublishedDesign) error {
	c.designs[design.ID] = design
	return nil
}

func (c *fakeDesignCatalog) Update(ctx context.Context, design *models.PublishedDesign) error {
	if _, ok := c.designs[design.ID]; !ok {
		return fmt.Errorf("design not found")
	}
	c.designs[design.ID] = design
	return nil
}

func (c *fakeDesignCatalog) Get(ctx context.Context, id string) (*models.PublishedDesign, error) {
	design, ok := c.designs[id]
	if !ok {
		return nil, fmt.Errorf("design not found")
	}
	return design, nil
}

func (c *fakeDesignCatalog) ListByUser(ctx context.Context, userID string) ([]*models.PublishedDesign, error) {
	var out []*models.PublishedDesign
	for _, design := range c.designs {
		if design.UserID == userID {
			out = append(out, design)
		}
	}
	return out, nil
}

func (c *fakeDesignCatalog) ListPublished(ctx context.Context, limit, offset int) ([]*models.PublishedDesign, error) {
	var out []*models.PublishedDesign
	for _, design := range c.designs {
		if design.Status == models.DesignPublished {
			out = append(out, design)
		}
	}
	return out, nil
}

func (c *fakeDesignCatalog) Delete(ctx context.Context, id string) error {
	if _, ok := c.designs[id]; !ok {
		return fmt.Errorf("design not found")
	}
	delete(c.designs, id)
	return nil
}

// fakeStickerCatalog is an in-memory StickerCatalog.
type fakeStickerCatalog struct {
	stickers     []*models.Sticker
	keywordHits  []*models.Sticker
	keywordCalls int
	embedUpdates map[string]string
}

func newFakeStickerCatalog() *fakeStickerCatalog {
	return &fakeStickerCatalog{embedUpdates: make(map[string]string)}
}

func (c *fakeStickerCatalog) Create(ctx context.Context, sticker *models.Sticker) error {
	c.stickers = append(c.stickers, sticker)
	return nil
}

func (c *fakeStickerCatalog) Get(ctx context.Context, id string) (*models.Sticker, error) {
	for _, sticker := range c.stickers {
		if sticker.ID == id {
			return sticker, nil
		}
	}
	return nil, fmt.Errorf("sticker not found")
}

func (c *fakeStickerCatalog) List(ctx context.Context, category string, limit, offset int) ([]*models.Sticker, error) {
	var out []*models.Sticker
	for _, sticker := range c.stickers {
		if category != "" && sticker.Category != category {
			continue
		}
		out = append(out, sticker)
	}
	return out, nil
}

func (c *fakeStickerCatalog) KeywordSearch(ctx context.Context, query string, limit int) ([]*models.Sticker, error) {
	c.keywordCalls++
	return c.keywordHits, nil
}

func (c *fakeStickerCatalog) ListWithEmbeddings(ctx context.Context) ([]*models.Sticker, error) {
	var out []*models.Sticker
	for _, sticker := range c.stickers {
		if sticker.EmbeddingJSON != "" {
			out = append(out, sticker)
		}
	}
	return out, nil
}

func (c *fakeStickerCatalog) UpdateEmbedding(ctx context.Context, id, embeddingJSON string) error {
	c.embedUpdates[id] = embeddingJSON
	return nil
}

func (c *fakeStickerCatalog) IncrementPopularity(ctx context.Context, id string) error {
	for _, sticker := range c.stickers {
		if sticker.ID == id {
			sticker.Popularity++
			return nil
		}
	}
	return fmt.Errorf("sticker not found")
}

// fakeCache is an in-memory SearchCache.
type fakeCache struct {
	entries map[string]string
	hits    int
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) CacheSearchResult(key, payload string, ttl time.Duration) error {
	c.puts++
	c.entries[key] = payload
	return nil
}

func (c *fakeCache) GetCachedSearchResult(key string) (string, error) {
	payload, ok := c.entries[key]
	if !ok {
		return "", fmt.Errorf("cache miss")
	}
	c.hits++
	return payload, nil
}

package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Template is a marketplace greeting card design. Embeddings are stored as a
// JSON-encoded float array alongside the row, mirroring how the catalog
// pipeline writes them.
type Template struct {
	bun.BaseModel `bun:"table:sw_templates"`

	ID                 string     `json:"id" bun:"id,pk"`
	Slug               string     `json:"slug" bun:"slug"`
	Title              string     `json:"title" bun:"title"`
	Description        string     `json:"description" bun:"description"`
	CategoryID         string     `json:"category_id" bun:"category_id"`
	AuthorID           string     `json:"author_id" bun:"author_id"`
	Price              float64    `json:"price" bun:"price"`
	CoverImage         string     `json:"cover_image" bun:"cover_image"`
	Image1             string     `json:"image_1" bun:"image_1"`
	Image2             string     `json:"image_2" bun:"image_2"`
	Image3             string     `json:"image_3" bun:"image_3"`
	Image4             string     `json:"image_4" bun:"image_4"`
	Message            string     `json:"message" bun:"message"`
	TargetAudience     string     `json:"target_audience" bun:"target_audience"`
	OccasionType       string     `json:"occasion_type" bun:"occasion_type"`
	StyleType          string     `json:"style_type" bun:"style_type"`
	SearchKeywords     string     `json:"search_keywords" bun:"search_keywords"`
	Popularity         int        `json:"popularity" bun:"popularity"`
	EmbeddingJSON      string     `json:"-" bun:"embedding_vector,nullzero"`
	EmbeddingUpdatedAt *time.Time `json:"embedding_updated_at,omitempty" bun:"embedding_updated_at,nullzero"`
	CreatedAt          time.Time  `json:"created_at" bun:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" bun:"updated_at"`
}

// Embedding decodes the stored vector. Returns nil when none has been
// generated yet.
func (t *Template) Embedding() []float32 {
	return decodeVector(t.EmbeddingJSON)
}

func (t *Template) SetEmbedding(vec []float32, at time.Time) {
	t.EmbeddingJSON = encodeVector(vec)
	t.EmbeddingUpdatedAt = &at
}

type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID   string `json:"id" bun:"id,pk"`
	Name string `json:"name" bun:"name"`
	Slug string `json:"slug" bun:"slug"`
}

type DesignStatus string

const (
	DesignDraft     DesignStatus = "draft"
	DesignPublished DesignStatus = "published"
)

// PublishedDesign is a user-customized card saved from the editor and
// optionally published back to the marketplace.
type PublishedDesign struct {
	bun.BaseModel `bun:"table:published_designs"`

	ID         string          `json:"id" bun:"id,pk"`
	UserID     string          `json:"user_id" bun:"user_id"`
	TemplateID string          `json:"template_id" bun:"template_id"`
	Title      string          `json:"title" bun:"title"`
	Pages      json.RawMessage `json:"pages" bun:"pages,type:json"`
	Status     DesignStatus    `json:"status" bun:"status"`
	CreatedAt  time.Time       `json:"created_at" bun:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" bun:"updated_at"`
}

// Sticker is a decorative element placed on card designs.
type Sticker struct {
	bun.BaseModel `bun:"table:stickers"`

	ID             string    `json:"id" bun:"id,pk"`
	Name           string    `json:"name" bun:"name"`
	Category       string    `json:"category" bun:"category"`
	Description    string    `json:"description" bun:"description"`
	ImageURL       string    `json:"image_url" bun:"image_url"`
	TagsJSON       string    `json:"-" bun:"tags,nullzero"`
	SearchKeywords string    `json:"search_keywords" bun:"search_keywords"`
	Popularity     int       `json:"popularity" bun:"popularity"`
	EmbeddingJSON  string    `json:"-" bun:"embedding,nullzero"`
	CreatedAt      time.Time `json:"created_at" bun:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bun:"updated_at"`
}

func (s *Sticker) Tags() []string {
	if s.TagsJSON == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s.TagsJSON), &tags); err != nil {
		return nil
	}
	return tags
}

func (s *Sticker) SetTags(tags []string) {
	data, err := json.Marshal(tags)
	if err != nil {
		return
	}
	s.TagsJSON = string(data)
}

func (s *Sticker) Embedding() []float32 {
	return decodeVector(s.EmbeddingJSON)
}

func (s *Sticker) SetEmbedding(vec []float32) {
	s.EmbeddingJSON = encodeVector(vec)
}

func encodeVector(vec []float32) string {
	if len(vec) == 0 {
		return ""
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeVector(raw string) []float32 {
	if raw == "" {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil
	}
	return vec
}

package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

const defaultModel = "text-embedding-004"

// GeminiEngine generates embeddings using Google's Gemini API.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

func NewGeminiEngine(apiKey, model string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiEngine{
		client: client,
		model:  model,
	}, nil
}

func (e *GeminiEngine) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of catalog texts in a single API call.
func (e *GeminiEngine) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

func (e *GeminiEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embed calls the API with retry, since the embedding endpoint rate limits
// bursty catalog refreshes.
func (e *GeminiEngine) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var embeddings [][]float32
	operation := func() error {
		result, err := e.client.Models.EmbedContent(ctx,
			e.model,
			contents,
			&genai.EmbedContentConfig{
				TaskType: task,
			},
		)
		if err != nil {
			return err
		}

		if len(result.Embeddings) != len(texts) {
			return backoff.Permanent(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings)))
		}

		out := make([][]float32, len(result.Embeddings))
		for i, emb := range result.Embeddings {
			out[i] = emb.Values
		}
		embeddings = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("Gemini embed failed: %w", err)
	}
	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
// text-embedding-004 produces 768-dimensional vectors.
func (e *GeminiEngine) Dimensions() int {
	return 768
}

func (e *GeminiEngine) Name() string {
	return fmt.Sprintf("gemini:%s", e.model)
}

func (e *GeminiEngine) Close() error {
	// *genai.Client (google.golang.org/genai) exposes no Close method; the
	// underlying HTTP client needs no teardown.
	return nil
}

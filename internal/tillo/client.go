// Package tillo is a signed REST client for the Tillo gift card API.
package tillo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/logger"
)

const defaultBaseURL = "https://sandbox.tillo.dev/api/v2"

var ErrBrandNotFound = errors.New("brand not found")

// APIError carries the upstream status for non-retryable failures.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tillo request failed with status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	apiKey     string
	secret     string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg config.TilloConfig, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

type Brand struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Currency    string   `json:"currency"`
	Countries   []string `json:"countries"`
	Status      string   `json:"status"`
	Description string   `json:"description"`
}

type IssueRequest struct {
	ClientRequestID string  `json:"client_request_id"`
	Brand           string  `json:"brand"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	DeliveryMethod  string  `json:"delivery_method"`
}

type GiftCard struct {
	Reference string `json:"reference"`
	Code      string `json:"code"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiry_date"`
}

type CancelRequest struct {
	ClientRequestID   string `json:"client_request_id"`
	Brand             string `json:"brand"`
	OriginalReference string `json:"original_reference"`
}

// ListBrands returns the brand catalog available to this partner account.
func (c *Client) ListBrands(ctx context.Context) ([]Brand, error) {
	var resp struct {
		Data struct {
			Brands []Brand `json:"brands"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "brands", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Brands, nil
}

// CheckBrand looks a brand up by slug, tolerating regional slug variants.
func (c *Client) CheckBrand(ctx context.Context, slug string) (*Brand, error) {
	brands, err := c.ListBrands(ctx)
	if err != nil {
		return nil, err
	}

	want := NormalizeBrandSlug(slug)
	for i := range brands {
		if NormalizeBrandSlug(brands[i].Slug) == want {
			return &brands[i], nil
		}
	}
	return nil, ErrBrandNotFound
}

// IssueGiftCard buys a digital gift card and returns its redemption details.
func (c *Client) IssueGiftCard(ctx context.Context, req IssueRequest) (*GiftCard, error) {
	if req.DeliveryMethod == "" {
		req.DeliveryMethod = "url"
	}

	var resp struct {
		Data GiftCard `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "digital/issue", req, &resp); err != nil {
		return nil, err
	}

	c.log.Info("TILLO", fmt.Sprintf("Issued %s gift card for request %s", req.Brand, req.ClientRequestID))
	return &resp.Data, nil
}

// CancelGiftCard voids a previous issuance.
func (c *Client) CancelGiftCard(ctx context.Context, req CancelRequest) error {
	if err := c.do(ctx, http.MethodDelete, "digital/issue", req, nil); err != nil {
		return err
	}
	c.log.Info("TILLO", fmt.Sprintf("Cancelled gift card %s for brand %s", req.OriginalReference, req.Brand))
	return nil
}

// do signs and sends one API call, retrying server-side failures with
// exponential backoff. Each attempt is re-signed because the timestamp is
// part of the signature seed.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	url := c.baseURL + "/" + endpoint

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}

		timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("API-Key", c.apiKey)
		req.Header.Set("Signature", c.sign(method, endpoint, timestamp))
		req.Header.Set("Timestamp", timestamp)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			c.log.Warn("TILLO", fmt.Sprintf("Upstream %d on %s %s, will retry", resp.StatusCode, method, endpoint))
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(&APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))})
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 45 * time.Second
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// sign builds the request signature: hex HMAC-SHA256 over
// apiKey-method-endpoint-timestamp. Path separators in the endpoint become
// dashes in the seed.
func (c *Client) sign(method, endpoint, timestamp string) string {
	seed := fmt.Sprintf("%s-%s-%s-%s",
		c.apiKey, strings.ToUpper(method), strings.ReplaceAll(endpoint, "/", "-"), timestamp)

	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(seed))
	return hex.EncodeToString(mac.Sum(nil))
}

var (
	slugSuffixPattern  = regexp.MustCompile(`-+(us|usa|uk|ca|au|eu|url)$`)
	slugInvalidPattern = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashPattern    = regexp.MustCompile(`-+`)
)

// NormalizeBrandSlug collapses regional slug variants (amazon-us, amazon-uk)
// onto one canonical brand key.
func NormalizeBrandSlug(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = slugSuffixPattern.ReplaceAllString(s, "")
	s = slugInvalidPattern.ReplaceAllString(s, "-")
	s = slugDashPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}

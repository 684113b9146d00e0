package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rag-agent-be/internal/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

const (
	cacheTTL        = 5 * time.Minute
	cacheKeyAuthors = "allowed_authors"
	cacheKeyBrands  = "brands"
	requestTimeout  = 15 * time.Second
)

// Brand is a named entity the query expander may reference.
type Brand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AttachedContent is one content item the user attached to a message.
type AttachedContent struct {
	Id    int    `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ChatMessage is the persistence shape for one conversation message.
type ChatMessage struct {
	Role          string `json:"role"`
	Content       string `json:"content"`
	AttachmentIds []int  `json:"attachment_ids,omitempty"`
}

// Client talks to the core service that owns the durable product data:
// author allow-lists, brand metadata, attachment content and the message
// archive. The agent itself only keeps checkpoints and flags.
//
// Infrequently changing reads (authors, brands) are memoized for five
// minutes. Idempotent GETs are retried once; writes are not.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	logger     logger.ILogger
}

func NewClient(baseURL string, log logger.ILogger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      gocache.New(cacheTTL, 10*time.Minute),
		logger:     log,
	}
}

// GetAllowedAuthors returns the author names retrieval may draw from.
// Callers treat an error or empty list as "no filter".
func (c *Client) GetAllowedAuthors(ctx context.Context) ([]string, error) {
	if cached, found := c.cache.Get(cacheKeyAuthors); found {
		return cached.([]string), nil
	}

	var payload struct {
		Authors []string `json:"authors"`
	}
	if err := c.getJSON(ctx, "/api/v1/scraper/internal/allowed-authors/", &payload); err != nil {
		return nil, fmt.Errorf("get allowed authors: %w", err)
	}

	c.cache.Set(cacheKeyAuthors, payload.Authors, gocache.DefaultExpiration)
	return payload.Authors, nil
}

// GetBrands returns the brand list used to seed entity-oriented queries.
func (c *Client) GetBrands(ctx context.Context) ([]Brand, error) {
	if cached, found := c.cache.Get(cacheKeyBrands); found {
		return cached.([]Brand), nil
	}

	var payload struct {
		Brands []Brand `json:"brands"`
	}
	if err := c.getJSON(ctx, "/api/v1/scraper/internal/brands/", &payload); err != nil {
		return nil, fmt.Errorf("get brands: %w", err)
	}

	c.cache.Set(cacheKeyBrands, payload.Brands, gocache.DefaultExpiration)
	return payload.Brands, nil
}

// GetBrandsFormatted renders the brand list for prompt interpolation.
// A core outage degrades to an empty block, never an error.
func (c *Client) GetBrandsFormatted(ctx context.Context) string {
	brands, err := c.GetBrands(ctx)
	if err != nil {
		c.logger.Warn("CoreClient", "Brand fetch failed, expanding without brand context", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}

	lines := make([]string, 0, len(brands))
	for _, b := range brands {
		lines = append(lines, fmt.Sprintf("- %s: %s", b.Name, b.Description))
	}
	return strings.Join(lines, "\n")
}

// GetContentFormatted fetches attached content by id and joins it into a
// single text block for deixis resolution.
func (c *Client) GetContentFormatted(ctx context.Context, contentIds []int) (string, error) {
	if len(contentIds) == 0 {
		return "", nil
	}

	var payload struct {
		Contents []AttachedContent `json:"contents"`
	}
	body := map[string]interface{}{"content_ids": contentIds}
	if err := c.postJSON(ctx, "/api/v1/content/internal/attachment/", body, &payload); err != nil {
		return "", fmt.Errorf("get attached content: %w", err)
	}

	parts := make([]string, 0, len(payload.Contents))
	for _, content := range payload.Contents {
		if content.Text == "" {
			continue
		}
		if content.Title != "" {
			parts = append(parts, fmt.Sprintf("## %s\n%s", content.Title, content.Text))
		} else {
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

// SaveMessages bulk-persists a finished turn to the core message archive.
func (c *Client) SaveMessages(ctx context.Context, sessionNonce string, messages []ChatMessage) error {
	body := map[string]interface{}{
		"session_nonce": sessionNonce,
		"messages":      messages,
	}
	if err := c.postJSON(ctx, "/api/v1/chat/internal/messages/bulk/", body, nil); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	err := c.doJSON(ctx, http.MethodGet, path, nil, out)
	if err == nil || ctx.Err() != nil {
		return err
	}
	// One retry on idempotent reads covers transient connection drops.
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("core service returned status %d: %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

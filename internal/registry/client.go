// Package registry is the HTTP client for the Federal Register API. It owns
// the one normalization step that maps the API's raw JSON rows into the
// canonical domain.FederalDocument shape; nothing downstream sees raw rows.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/civitaslabs/fedwatch/internal/domain"
)

const (
	// DefaultBaseURL is the public Federal Register API root.
	DefaultBaseURL = "https://www.federalregister.gov/api/v1"

	defaultPerPage = 100
	maxPerPage     = 100
)

// Client queries the Federal Register. The rate limiter is owned by the
// instance and injected at construction, so separate clients (and tests)
// never share hidden state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	perPage    int
}

// Options configure a Client. Zero values fall back to sane defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// RequestsPerMinute throttles outbound calls; 0 disables throttling.
	RequestsPerMinute int
	PerPage           int
}

// NewClient builds a registry client.
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	perPage := opts.PerPage
	if perPage <= 0 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    limiter,
		perPage:    perPage,
	}
}

// SearchQuery filters one documents search.
type SearchQuery struct {
	Type           domain.DocumentType
	PublishedSince time.Time
	PublishedUntil time.Time
	AgencySlug     string
	PerPage        int
}

// SearchResult is one page of search results, already normalized.
type SearchResult struct {
	Count     int
	Documents []domain.FederalDocument
}

// Search fetches a single page of documents matching the query. Pagination
// is server-side; callers that need a deeper backlog issue more runs.
func (c *Client) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	perPage := q.PerPage
	if perPage <= 0 || perPage > maxPerPage {
		perPage = c.perPage
	}

	params := url.Values{}
	params.Set("per_page", fmt.Sprintf("%d", perPage))
	params.Set("order", "newest")
	if q.Type != "" {
		params.Add("conditions[type][]", string(q.Type))
	}
	if !q.PublishedSince.IsZero() {
		params.Set("conditions[publication_date][gte]", q.PublishedSince.Format("2006-01-02"))
	}
	if !q.PublishedUntil.IsZero() {
		params.Set("conditions[publication_date][lte]", q.PublishedUntil.Format("2006-01-02"))
	}
	if q.AgencySlug != "" {
		params.Add("conditions[agencies][]", q.AgencySlug)
	}

	var raw rawSearchResponse
	if err := c.get(ctx, "/documents.json", params, &raw); err != nil {
		return SearchResult{}, err
	}

	return SearchResult{Count: raw.Count, Documents: normalizeAll(raw.Results)}, nil
}

// OpenForComment fetches documents whose comment window closes within the
// given number of days, already normalized.
func (c *Client) OpenForComment(ctx context.Context, withinDays, limit int) ([]domain.FederalDocument, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = c.perPage
	}
	now := time.Now().UTC()

	params := url.Values{}
	params.Set("per_page", fmt.Sprintf("%d", limit))
	params.Set("order", "oldest")
	params.Set("conditions[comment_date][gte]", now.Format("2006-01-02"))
	params.Set("conditions[comment_date][lte]", now.AddDate(0, 0, withinDays).Format("2006-01-02"))

	var raw rawSearchResponse
	if err := c.get(ctx, "/documents.json", params, &raw); err != nil {
		return nil, err
	}
	return normalizeAll(raw.Results), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("querying registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding registry response: %w", err)
	}
	return nil
}

// Package indexer pushes stored documents to the search-indexing service.
// Indexing is best-effort: callers log failures and move on, they never
// block ingestion on it.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/civitaslabs/fedwatch/internal/domain"
)

// Client talks to the indexing service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds an indexer client. A nil httpClient gets a 10s-timeout default.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

type indexRequest struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// EmbedDocument submits one document for embedding and indexing.
func (c *Client) EmbedDocument(ctx context.Context, doc domain.FederalDocument) error {
	payload, err := json.Marshal(indexRequest{
		ID:       doc.DocumentNumber,
		Type:     string(doc.Type),
		Title:    doc.Title,
		Abstract: doc.Abstract,
		Topics:   doc.Topics,
		URL:      doc.HTMLURL,
	})
	if err != nil {
		return fmt.Errorf("encoding index request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("indexing document %s: %w", doc.DocumentNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("indexer returned %s for document %s", resp.Status, doc.DocumentNumber)
	}
	return nil
}

// Package search implements the web-search leg of the pipeline: a
// SerpAPI-compatible news search plus the once-per-day guard deciding
// when the leg runs.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/agentwatch/digest-bot/internal/models"
)

const defaultBaseURL = "https://serpapi.com/search"

// Client queries a SerpAPI-compatible endpoint for news results.
type Client struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

type newsResponse struct {
	NewsResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Source  string `json:"source"`
		Date    string `json:"date"`
		Link    string `json:"link"`
	} `json:"news_results"`
}

// NewClient creates a search client with timeout and bounded retries.
func NewClient(apiKey string) *Client {
	return &Client{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(2 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second),
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
	}
}

// SetBaseURL overrides the endpoint, used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// IsEnabled reports whether the provider is configured.
func (c *Client) IsEnabled() bool {
	return c.apiKey != ""
}

// Search runs one news query and maps the hits onto SearchResults.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google_news",
			"q":       query,
			"api_key": c.apiKey,
		}).
		Get(c.baseURL)

	if err != nil {
		return nil, fmt.Errorf("search request for %q: %w", query, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("search API returned status %d for %q", resp.StatusCode(), query)
	}

	var parsed newsResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response for %q: %w", query, err)
	}

	results := make([]models.SearchResult, 0, len(parsed.NewsResults))
	for _, r := range parsed.NewsResults {
		results = append(results, models.SearchResult{
			Title:         r.Title,
			Snippet:       r.Snippet,
			Source:        r.Source,
			PublishedDate: r.Date,
			Link:          r.Link,
		})
	}

	return results, nil
}

// SearchAll runs every configured query and combines the hits. A failed
// query is logged and skipped; the remaining queries still run.
func (c *Client) SearchAll(ctx context.Context, queries []string) []models.SearchResult {
	var all []models.SearchResult
	for _, query := range queries {
		results, err := c.Search(ctx, query)
		if err != nil {
			logrus.Errorf("Search failed for query %q: %v", query, err)
			continue
		}
		logrus.Infof("Found %d results for query %q", len(results), query)
		all = append(all, results...)
	}
	return all
}

package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/agentwatch/digest-bot/internal/models"
)

// RSSSource pulls entries from one RSS/Atom feed
type RSSSource struct {
	name    string
	url     string
	enabled bool
	parser  *gofeed.Parser
}

// NewRSSSource creates a source for a single feed URL
func NewRSSSource(name, url string, enabled bool) *RSSSource {
	parser := gofeed.NewParser()
	parser.UserAgent = "digest-bot/1.0"

	return &RSSSource{
		name:    name,
		url:     url,
		enabled: enabled,
		parser:  parser,
	}
}

func (r *RSSSource) GetName() string {
	return r.name
}

func (r *RSSSource) IsEnabled() bool {
	return r.enabled
}

// FetchArticles parses the feed and maps entries onto Articles. Entries
// without a guid fall back to the link, which stays stable across
// fetches of the same item.
func (r *RSSSource) FetchArticles(ctx context.Context) ([]models.Article, error) {
	feedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(r.url, feedCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", r.url, err)
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}

		var publishedAt *time.Time
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = item.UpdatedParsed
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		categories := make([]string, len(item.Categories))
		copy(categories, item.Categories)

		articles = append(articles, models.Article{
			GUID:        guid,
			Source:      r.name,
			Title:       item.Title,
			Link:        item.Link,
			Summary:     summary,
			Author:      author,
			Categories:  categories,
			PublishedAt: publishedAt,
		})
	}

	return articles, nil
}

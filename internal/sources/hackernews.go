package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/agentwatch/digest-bot/internal/models"
)

// HackerNewsSource implements a keyword-matched Hacker News source
type HackerNewsSource struct {
	client   *resty.Client
	keywords []string
	window   time.Duration
}

type hackerNewsItem struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	By    string `json:"by"`
	Time  int64  `json:"time"`
	Text  string `json:"text"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Score int    `json:"score"`
}

// NewHackerNewsSource creates a new Hacker News source
func NewHackerNewsSource(keywords []string, window time.Duration) *HackerNewsSource {
	return &HackerNewsSource{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "digest-bot/1.0"),
		keywords: keywords,
		window:   window,
	}
}

func (h *HackerNewsSource) GetName() string {
	return "hackernews"
}

func (h *HackerNewsSource) IsEnabled() bool {
	// The Hacker News API needs no authentication, but without
	// keywords every story would match.
	return len(h.keywords) > 0
}

func (h *HackerNewsSource) FetchArticles(ctx context.Context) ([]models.Article, error) {
	itemIDs, err := h.getRecentItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent items: %w", err)
	}

	var articles []models.Article
	cutoff := time.Now().Add(-h.window)

	// Limit to avoid too many API calls
	limit := 500
	if len(itemIDs) > limit {
		itemIDs = itemIDs[:limit]
	}

	for _, itemID := range itemIDs {
		select {
		case <-ctx.Done():
			return articles, ctx.Err()
		default:
		}

		item, err := h.getItem(ctx, itemID)
		if err != nil {
			logrus.Debugf("Failed to get HN item %d: %v", itemID, err)
			continue
		}

		if item == nil || item.Time == 0 || item.Title == "" {
			continue
		}

		createdAt := time.Unix(item.Time, 0)
		if createdAt.Before(cutoff) {
			continue
		}

		if !h.matchesKeywords(item.Title + " " + item.Text) {
			continue
		}

		link := fmt.Sprintf("https://news.ycombinator.com/item?id=%d", item.ID)
		if item.Type == "story" && item.URL != "" {
			link = item.URL
		}

		publishedAt := createdAt
		articles = append(articles, models.Article{
			GUID:        fmt.Sprintf("hackernews_%d", item.ID),
			Source:      "hackernews",
			Title:       item.Title,
			Link:        link,
			Summary:     item.Text,
			Author:      item.By,
			PublishedAt: &publishedAt,
		})
	}

	return articles, nil
}

func (h *HackerNewsSource) matchesKeywords(content string) bool {
	content = strings.ToLower(content)
	for _, keyword := range h.keywords {
		if strings.Contains(content, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

func (h *HackerNewsSource) getRecentItems(ctx context.Context) ([]int, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get("https://hacker-news.firebaseio.com/v0/newstories.json")

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d", resp.StatusCode())
	}

	var itemIDs []int
	if err := json.Unmarshal(resp.Body(), &itemIDs); err != nil {
		return nil, err
	}

	return itemIDs, nil
}

func (h *HackerNewsSource) getItem(ctx context.Context, itemID int) (*hackerNewsItem, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("https://hacker-news.firebaseio.com/v0/item/%d.json", itemID))

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d for item %d", resp.StatusCode(), itemID)
	}

	var item hackerNewsItem
	if err := json.Unmarshal(resp.Body(), &item); err != nil {
		return nil, err
	}

	return &item, nil
}

package models

import "time"

// Article represents one entry pulled from a content source (RSS feed,
// Hacker News, etc.). The guid is the natural key: globally unique across
// sources and immutable once stored.
type Article struct {
	GUID              string     `json:"guid"`
	Source            string     `json:"source"` // feed or platform name
	Title             string     `json:"title"`
	Link              string     `json:"link"`
	Summary           string     `json:"summary,omitempty"`
	Author            string     `json:"author,omitempty"`
	Categories        []string   `json:"categories,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
	FetchedAt         *time.Time `json:"fetched_at,omitempty"` // set once at first insertion
	RelevancePrescore *int       `json:"relevance_prescore,omitempty"`
	RelevanceScore    *int       `json:"relevance_score,omitempty"` // 1-100, filled at most once
	Reasoning         string     `json:"reasoning,omitempty"`
	Posted            bool       `json:"posted"`
}

// Scored reports whether the article already carries a relevance score.
func (a *Article) Scored() bool {
	return a.RelevanceScore != nil
}

// SearchResult is a single web-search hit. Search results are per-run
// evidence, not identity-tracked entities, so there is no natural key.
type SearchResult struct {
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	Source        string `json:"source"`
	PublishedDate string `json:"published_date"` // raw provider string, not always parseable
	Link          string `json:"link"`
}

// SearchSummary is an LLM-generated digest of a batch of search results.
type SearchSummary struct {
	SummaryText string    `json:"summary_text"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// DeliveryStatus tracks a delivery attempt through its lifecycle.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryRecorded DeliveryStatus = "recorded"
	DeliveryFailed   DeliveryStatus = "failed"
)

// Delivery is an append-only audit record of one digest message. The
// idempotency key is derived from the shortlist guid set and lets a
// later run detect that a message was already transmitted.
type Delivery struct {
	ID              int64          `json:"id"`
	DeliveredAt     time.Time      `json:"delivered_at"`
	Content         string         `json:"content"`
	OriginMessageID string         `json:"origin_message_id,omitempty"`
	Status          DeliveryStatus `json:"status"`
	IdempotencyKey  string         `json:"idempotency_key,omitempty"`
}

// ScoreUpdate carries one scoring result back to the repository.
type ScoreUpdate struct {
	GUID           string `json:"guid"`
	RelevanceScore int    `json:"relevance_score"`
	Reasoning      string `json:"reasoning"`
}

// RunSummary is the end-of-run report of what a pipeline invocation did.
type RunSummary struct {
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	SourcesFailed   []string      `json:"sources_failed,omitempty"`
	ArticlesFetched int           `json:"articles_fetched"`
	ArticlesNew     int           `json:"articles_new"`
	ArticlesScored  int           `json:"articles_scored"`
	ScoringFailed   []string      `json:"scoring_failed,omitempty"` // guids
	ShortlistSize   int           `json:"shortlist_size"`
	Delivered       bool          `json:"delivered"`
}

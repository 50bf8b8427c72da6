// Package pipeline orchestrates one digest run: ingest sources, upsert
// into the store, run the optional search leg, score unscored articles,
// select the shortlist, compose the post, and deliver it. The store is
// consulted at every stage so re-runs skip work that already happened.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentwatch/digest-bot/internal/config"
	"github.com/agentwatch/digest-bot/internal/models"
	"github.com/agentwatch/digest-bot/internal/scoring"
	"github.com/agentwatch/digest-bot/internal/search"
	"github.com/agentwatch/digest-bot/internal/sources"
)

// Repository is the slice of the store the orchestrator touches
// directly.
type Repository interface {
	UpsertArticles(ctx context.Context, articles []models.Article) (int, error)
	UnscoredArticles(ctx context.Context, since time.Time) ([]models.Article, error)
	CandidatesForDelivery(ctx context.Context, since time.Time) ([]models.Article, error)
	SaveSearchResults(ctx context.Context, results []models.SearchResult) error
	SaveSearchSummary(ctx context.Context, summary models.SearchSummary) error
	LatestSearchSummary(ctx context.Context) (*models.SearchSummary, error)
}

// Scorer is the scoring stage.
type Scorer interface {
	ScoreArticles(ctx context.Context, articles []models.Article) ([]models.ScoreUpdate, []scoring.Failure, error)
}

// Composer is the composition stage.
type Composer interface {
	ComposePost(ctx context.Context, shortlist []models.Article, searchSummary string) (string, error)
}

// Deliverer is the delivery tracker.
type Deliverer interface {
	Deliver(ctx context.Context, post string, shortlist []models.Article, window time.Duration) error
}

// Searcher is the web-search provider.
type Searcher interface {
	IsEnabled() bool
	SearchAll(ctx context.Context, queries []string) []models.SearchResult
}

// Summarizer condenses raw search hits into a short context paragraph.
type Summarizer interface {
	SummarizeResults(ctx context.Context, results []models.SearchResult) (string, error)
}

// Service runs the digest pipeline.
type Service struct {
	cfg        *config.Config
	srcCfg     *config.SourcesConfig
	sources    []sources.Source
	repo       Repository
	scorer     Scorer
	composer   Composer
	deliverer  Deliverer
	searcher   Searcher
	summarizer Summarizer

	mu      sync.RWMutex
	metrics Metrics
}

// Metrics holds pipeline run metrics served on the ops endpoint.
type Metrics struct {
	LastRun         time.Time `json:"last_run"`
	LastRunDuration string    `json:"last_run_duration"`
	ArticlesFetched int       `json:"articles_fetched"`
	ArticlesNew     int       `json:"articles_new"`
	ArticlesScored  int       `json:"articles_scored"`
	ShortlistSize   int       `json:"shortlist_size"`
	Delivered       bool      `json:"delivered"`
	ErrorCount      int       `json:"error_count"`
}

// Deps wires the stages into the orchestrator.
type Deps struct {
	Sources    []sources.Source
	Repo       Repository
	Scorer     Scorer
	Composer   Composer
	Deliverer  Deliverer
	Searcher   Searcher
	Summarizer Summarizer
}

// NewService creates the orchestrator.
func NewService(cfg *config.Config, srcCfg *config.SourcesConfig, deps Deps) *Service {
	return &Service{
		cfg:        cfg,
		srcCfg:     srcCfg,
		sources:    deps.Sources,
		repo:       deps.Repo,
		scorer:     deps.Scorer,
		composer:   deps.Composer,
		deliverer:  deps.Deliverer,
		searcher:   deps.Searcher,
		summarizer: deps.Summarizer,
	}
}

// Run executes the pipeline once. Per-item failures (one source, one
// article's score) are isolated and reported in the run summary;
// composition and delivery failures abort the run with no partial send.
func (s *Service) Run(ctx context.Context) (*models.RunSummary, error) {
	start := time.Now()
	since := start.Add(-s.cfg.FreshnessWindow)
	summary := &models.RunSummary{StartedAt: start}

	logrus.Infof("Starting digest run (freshness window %s)", s.cfg.FreshnessWindow)

	// Ingest. One unreachable source never stops the others.
	articles := s.ingest(ctx, summary)
	summary.ArticlesFetched = len(articles)

	newCount, err := s.repo.UpsertArticles(ctx, articles)
	if err != nil {
		return summary, fmt.Errorf("failed to store articles: %w", err)
	}
	summary.ArticlesNew = newCount
	logrus.Infof("Ingested %d articles (%d new)", len(articles), newCount)

	// Search leg: best effort, the digest proceeds without it.
	s.runSearchLeg(ctx, summary)

	// Score whatever is still unscored inside the window.
	unscored, err := s.repo.UnscoredArticles(ctx, since)
	if err != nil {
		return summary, fmt.Errorf("failed to load unscored articles: %w", err)
	}

	updates, failures, err := s.scorer.ScoreArticles(ctx, unscored)
	if err != nil {
		return summary, fmt.Errorf("scoring stage failed: %w", err)
	}
	summary.ArticlesScored = len(updates)
	for _, failure := range failures {
		summary.ScoringFailed = append(summary.ScoringFailed, failure.GUID)
	}

	// Select.
	candidates, err := s.repo.CandidatesForDelivery(ctx, since)
	if err != nil {
		return summary, fmt.Errorf("failed to load delivery candidates: %w", err)
	}

	shortlist := SelectTop(candidates)
	summary.ShortlistSize = len(shortlist)

	if len(shortlist) == 0 {
		logrus.Info("Nothing to deliver this run")
		s.finish(summary, start)
		return summary, nil
	}

	// Compose and deliver.
	post, err := s.composer.ComposePost(ctx, shortlist, s.recentSearchSummary(ctx, since))
	if err != nil {
		return summary, fmt.Errorf("composition stage failed: %w", err)
	}

	if err := s.deliverer.Deliver(ctx, post, shortlist, s.cfg.FreshnessWindow); err != nil {
		return summary, fmt.Errorf("delivery stage failed: %w", err)
	}
	summary.Delivered = true

	s.finish(summary, start)
	return summary, nil
}

func (s *Service) ingest(ctx context.Context, summary *models.RunSummary) []models.Article {
	var articles []models.Article
	for _, src := range s.sources {
		if !src.IsEnabled() {
			logrus.Debugf("Source %s is disabled, skipping", src.GetName())
			continue
		}

		fetched, err := src.FetchArticles(ctx)
		if err != nil {
			logrus.Errorf("Failed to fetch from %s: %v", src.GetName(), err)
			summary.SourcesFailed = append(summary.SourcesFailed, src.GetName())
			continue
		}

		logrus.Infof("Fetched %d articles from %s", len(fetched), src.GetName())
		articles = append(articles, fetched...)
	}
	return articles
}

func (s *Service) runSearchLeg(ctx context.Context, summary *models.RunSummary) {
	if s.searcher == nil || !s.searcher.IsEnabled() || len(s.srcCfg.SearchQueries) == 0 {
		return
	}

	latest, err := s.repo.LatestSearchSummary(ctx)
	if err != nil {
		logrus.Errorf("Failed to load latest search summary: %v", err)
		return
	}
	var lastRun *time.Time
	if latest != nil {
		lastRun = &latest.FetchedAt
	}

	run, err := search.ShouldRun(lastRun, s.cfg.SearchTimeUTC, time.Now())
	if err != nil {
		logrus.Errorf("Search schedule check failed: %v", err)
		return
	}
	if !run {
		logrus.Debug("Search leg not due, skipping")
		return
	}

	results := s.searcher.SearchAll(ctx, s.srcCfg.SearchQueries)
	if len(results) == 0 {
		logrus.Warn("Search leg produced no results")
		return
	}

	if err := s.repo.SaveSearchResults(ctx, results); err != nil {
		logrus.Errorf("Failed to store search results: %v", err)
		return
	}

	text, err := s.summarizer.SummarizeResults(ctx, results)
	if err != nil {
		logrus.Errorf("Failed to summarize search results: %v", err)
		return
	}

	if err := s.repo.SaveSearchSummary(ctx, models.SearchSummary{
		SummaryText: text,
		FetchedAt:   time.Now(),
	}); err != nil {
		logrus.Errorf("Failed to store search summary: %v", err)
	}
}

// recentSearchSummary returns the latest stored summary if it falls
// inside the freshness window, empty string otherwise.
func (s *Service) recentSearchSummary(ctx context.Context, since time.Time) string {
	latest, err := s.repo.LatestSearchSummary(ctx)
	if err != nil {
		logrus.Errorf("Failed to load search summary for composition: %v", err)
		return ""
	}
	if latest == nil || latest.FetchedAt.Before(since) {
		return ""
	}
	return latest.SummaryText
}

func (s *Service) finish(summary *models.RunSummary, start time.Time) {
	summary.Duration = time.Since(start)

	s.mu.Lock()
	s.metrics = Metrics{
		LastRun:         start,
		LastRunDuration: summary.Duration.String(),
		ArticlesFetched: summary.ArticlesFetched,
		ArticlesNew:     summary.ArticlesNew,
		ArticlesScored:  summary.ArticlesScored,
		ShortlistSize:   summary.ShortlistSize,
		Delivered:       summary.Delivered,
		ErrorCount:      len(summary.SourcesFailed) + len(summary.ScoringFailed),
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"duration":       summary.Duration,
		"fetched":        summary.ArticlesFetched,
		"new":            summary.ArticlesNew,
		"scored":         summary.ArticlesScored,
		"scoring_failed": len(summary.ScoringFailed),
		"sources_failed": len(summary.SourcesFailed),
		"shortlist":      summary.ShortlistSize,
		"delivered":      summary.Delivered,
	}).Info("Digest run completed")
}

// GetMetrics returns the last run's metrics as JSON for the ops
// endpoint.
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(s.metrics)
	if err != nil {
		return "{}"
	}
	return string(data)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentwatch/digest-bot/internal/models"
)

// SaveSearchResults appends a batch of search results in one
// transaction. Results are per-run evidence: there is no natural key and
// no deduplication.
func (s *Store) SaveSearchResults(ctx context.Context, results []models.SearchResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save search results: begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for _, r := range results {
		query, args, err := builder().
			Insert("search_results").
			Columns("title", "snippet", "source", "published_date", "link", "fetched_at").
			Values(r.Title, r.Snippet, r.Source, nullString(r.PublishedDate), r.Link, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("save search results: build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save search results: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save search results: commit: %w", err)
	}
	return nil
}

// SaveSearchSummary stores one generated summary. Summaries are
// immutable once written.
func (s *Store) SaveSearchSummary(ctx context.Context, summary models.SearchSummary) error {
	fetchedAt := summary.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	query, args, err := builder().
		Insert("search_summaries").
		Columns("summary_text", "fetched_at").
		Values(summary.SummaryText, formatTime(fetchedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("save search summary: build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save search summary: insert: %w", err)
	}
	return nil
}

// LatestSearchSummary returns the most recent summary, or nil when none
// has been stored yet.
func (s *Store) LatestSearchSummary(ctx context.Context) (*models.SearchSummary, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT summary_text, fetched_at FROM search_summaries ORDER BY fetched_at DESC, rowid DESC LIMIT 1")

	var summary models.SearchSummary
	var fetchedAt sql.NullString
	if err := row.Scan(&summary.SummaryText, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest search summary: %w", err)
	}
	if t := parseTime(fetchedAt); t != nil {
		summary.FetchedAt = *t
	}
	return &summary, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agentwatch/digest-bot/internal/models"
)

var articleColumns = []string{
	"guid", "source", "title", "link", "summary", "author", "categories",
	"published_at", "fetched_at", "relevance_prescore", "relevance_score",
	"reasoning", "posted",
}

// UpsertArticles inserts new articles and refreshes mutable fields of
// already-seen ones, all in one transaction. A re-submitted guid never
// resets fetched_at, relevance scores, reasoning, or posted. Returns the
// number of previously-unseen articles.
func (s *Store) UpsertArticles(ctx context.Context, articles []models.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert articles: begin transaction: %w", err)
	}
	defer tx.Rollback()

	guids := make([]string, 0, len(articles))
	for _, a := range articles {
		guids = append(guids, a.GUID)
	}

	existing, err := existingGUIDs(ctx, tx, guids)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	inserted := make(map[string]bool)
	for _, a := range articles {
		query, args, err := builder().
			Insert("rss_entries").
			Columns("guid", "source", "title", "link", "summary", "author",
				"categories", "published_at", "fetched_at").
			Values(a.GUID, a.Source, a.Title, a.Link,
				nullString(a.Summary), nullString(a.Author),
				nullString(strings.Join(a.Categories, ",")),
				nullTime(a.PublishedAt), formatTime(now)).
			Suffix(`ON CONFLICT (guid) DO UPDATE SET
				source = excluded.source,
				title = excluded.title,
				link = excluded.link,
				summary = excluded.summary,
				author = excluded.author,
				categories = excluded.categories,
				published_at = excluded.published_at`).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("upsert articles: build query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("upsert article %s: %w", a.GUID, err)
		}

		if !existing[a.GUID] {
			inserted[a.GUID] = true
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert articles: commit: %w", err)
	}

	return len(inserted), nil
}

// UnscoredArticles returns articles inside the freshness window that
// have no relevance score yet. The window is checked against
// published_at, falling back to fetched_at when the feed provided no
// publication time.
func (s *Store) UnscoredArticles(ctx context.Context, since time.Time) ([]models.Article, error) {
	query, args, err := builder().
		Select(articleColumns...).
		From("rss_entries").
		Where("relevance_score IS NULL").
		Where(sq.Or{
			sq.Gt{"published_at": formatTime(since)},
			sq.And{
				sq.Eq{"published_at": nil},
				sq.Gt{"fetched_at": formatTime(since)},
			},
		}).
		OrderBy("fetched_at ASC", "guid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("unscored articles: build query: %w", err)
	}

	return s.queryArticles(ctx, query, args)
}

// RecordScores persists a batch of scoring results in one transaction.
// A guid that does not exist fails the whole batch with ErrNotFound;
// scoring must never create articles. An already-scored guid is left
// untouched: scores are filled at most once and never cleared.
func (s *Store) RecordScores(ctx context.Context, updates []models.ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record scores: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM rss_entries WHERE guid = ?)", u.GUID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("record scores: check %s: %w", u.GUID, err)
		}
		if !exists {
			return fmt.Errorf("record scores: guid %s: %w", u.GUID, ErrNotFound)
		}

		query, args, err := builder().
			Update("rss_entries").
			Set("relevance_score", u.RelevanceScore).
			Set("reasoning", nullString(u.Reasoning)).
			Where(sq.Eq{"guid": u.GUID}).
			Where("relevance_score IS NULL").
			ToSql()
		if err != nil {
			return fmt.Errorf("record scores: build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("record scores: update %s: %w", u.GUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record scores: commit: %w", err)
	}
	return nil
}

// CandidatesForDelivery returns scored, not-yet-posted articles inside
// the freshness window in the pipeline's total order: relevance score
// descending, then published_at descending, then guid ascending. The
// total order is what makes top-N selection deterministic.
func (s *Store) CandidatesForDelivery(ctx context.Context, since time.Time) ([]models.Article, error) {
	query, args, err := builder().
		Select(articleColumns...).
		From("rss_entries").
		Where("relevance_score IS NOT NULL").
		Where(sq.Eq{"posted": false}).
		Where(sq.Or{
			sq.Gt{"published_at": formatTime(since)},
			sq.And{
				sq.Eq{"published_at": nil},
				sq.Gt{"fetched_at": formatTime(since)},
			},
		}).
		OrderBy("relevance_score DESC", "published_at DESC", "guid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("delivery candidates: build query: %w", err)
	}

	return s.queryArticles(ctx, query, args)
}

// MarkDelivered flips posted to true for the given guids in one
// transaction. Guids already marked are a no-op, keeping re-runs
// idempotent; an unknown guid is an integrity fault.
func (s *Store) MarkDelivered(ctx context.Context, guids []string) error {
	if len(guids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark delivered: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := markDeliveredTx(ctx, tx, guids); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark delivered: commit: %w", err)
	}
	return nil
}

func markDeliveredTx(ctx context.Context, tx *sql.Tx, guids []string) error {
	existing, err := existingGUIDs(ctx, tx, guids)
	if err != nil {
		return err
	}
	for _, guid := range guids {
		if !existing[guid] {
			return fmt.Errorf("mark delivered: guid %s: %w", guid, ErrNotFound)
		}
	}

	query, args, err := builder().
		Update("rss_entries").
		Set("posted", true).
		Where(sq.Eq{"guid": guids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("mark delivered: build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark delivered: update: %w", err)
	}
	return nil
}

// GetArticle fetches one article by guid, mostly for tests and the ops
// surface.
func (s *Store) GetArticle(ctx context.Context, guid string) (*models.Article, error) {
	query, args, err := builder().
		Select(articleColumns...).
		From("rss_entries").
		Where(sq.Eq{"guid": guid}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("get article: build query: %w", err)
	}

	articles, err := s.queryArticles(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("get article %s: %w", guid, ErrNotFound)
	}
	return &articles[0], nil
}

func (s *Store) queryArticles(ctx context.Context, query string, args []interface{}) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func scanArticle(rows *sql.Rows) (models.Article, error) {
	var a models.Article
	var summary, author, cats, reasoning sql.NullString
	var publishedAt, fetchedAt sql.NullString
	var prescore, score sql.NullInt64

	if err := rows.Scan(&a.GUID, &a.Source, &a.Title, &a.Link, &summary,
		&author, &cats, &publishedAt, &fetchedAt, &prescore, &score,
		&reasoning, &a.Posted); err != nil {
		return a, fmt.Errorf("scan article: %w", err)
	}

	a.Summary = summary.String
	a.Author = author.String
	a.Reasoning = reasoning.String
	if cats.Valid && cats.String != "" {
		a.Categories = strings.Split(cats.String, ",")
	}
	a.PublishedAt = parseTime(publishedAt)
	a.FetchedAt = parseTime(fetchedAt)
	if prescore.Valid {
		v := int(prescore.Int64)
		a.RelevancePrescore = &v
	}
	if score.Valid {
		v := int(score.Int64)
		a.RelevanceScore = &v
	}

	return a, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func existingGUIDs(ctx context.Context, q queryer, guids []string) (map[string]bool, error) {
	query, args, err := builder().
		Select("guid").
		From("rss_entries").
		Where(sq.Eq{"guid": guids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("existing guids: build query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("existing guids: query: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("existing guids: scan: %w", err)
		}
		existing[guid] = true
	}
	return existing, rows.Err()
}

// Timestamps are stored as RFC 3339 UTC strings so that lexicographic
// comparison in SQL matches chronological order.
const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

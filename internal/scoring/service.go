// Package scoring implements the relevance-scoring stage: every
// unscored article is judged by an external oracle and the verdicts are
// persisted before the stage returns, so a later run never re-scores an
// article.
package scoring

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/agentwatch/digest-bot/internal/models"
)

// Repository is the slice of the store the scoring stage needs.
type Repository interface {
	RecordScores(ctx context.Context, updates []models.ScoreUpdate) error
}

// Failure records one article the oracle could not score this run. The
// article keeps a NULL score and stays eligible next run.
type Failure struct {
	GUID string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("scoring %s: %v", f.GUID, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Service runs the scoring stage.
type Service struct {
	oracle Oracle
	repo   Repository
}

// NewService creates the scoring stage.
func NewService(oracle Oracle, repo Repository) *Service {
	return &Service{oracle: oracle, repo: repo}
}

// ScoreArticles scores each article and persists the successful verdicts
// in one batch. A single article's failure never aborts the rest:
// failures are collected and reported alongside the successes. An
// out-of-domain score (outside 1-100) is that article's failure, not
// something to clamp silently.
func (s *Service) ScoreArticles(ctx context.Context, articles []models.Article) ([]models.ScoreUpdate, []Failure, error) {
	if len(articles) == 0 {
		return nil, nil, nil
	}

	var updates []models.ScoreUpdate
	var failures []Failure

	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		score, reasoning, err := s.oracle.ScoreArticle(ctx, article)
		if err != nil {
			logrus.Errorf("Failed to score article %s: %v", article.GUID, err)
			failures = append(failures, Failure{GUID: article.GUID, Err: err})
			continue
		}

		if score < 1 || score > 100 {
			err := fmt.Errorf("score %d outside the 1-100 domain", score)
			logrus.Errorf("Rejected score for article %s: %v", article.GUID, err)
			failures = append(failures, Failure{GUID: article.GUID, Err: err})
			continue
		}

		updates = append(updates, models.ScoreUpdate{
			GUID:           article.GUID,
			RelevanceScore: score,
			Reasoning:      reasoning,
		})
	}

	if len(updates) > 0 {
		if err := s.repo.RecordScores(ctx, updates); err != nil {
			return nil, failures, fmt.Errorf("failed to persist scores: %w", err)
		}
	}

	logrus.Infof("Scored %d articles (%d failed)", len(updates), len(failures))
	return updates, failures, nil
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwatch/digest-bot/internal/config"
	"github.com/agentwatch/digest-bot/internal/models"
	"github.com/agentwatch/digest-bot/internal/scoring"
	"github.com/agentwatch/digest-bot/internal/sources"
)

type fakeSource struct {
	name     string
	enabled  bool
	articles []models.Article
	err      error
}

func (f *fakeSource) GetName() string { return f.name }

func (f *fakeSource) IsEnabled() bool { return f.enabled }

func (f *fakeSource) FetchArticles(ctx context.Context) ([]models.Article, error) {
	return f.articles, f.err
}

type fakeRepo struct {
	newCount   int
	unscored   []models.Article
	candidates []models.Article
	summary    *models.SearchSummary

	upserted []models.Article
}

func (f *fakeRepo) UpsertArticles(ctx context.Context, articles []models.Article) (int, error) {
	f.upserted = articles
	return f.newCount, nil
}

func (f *fakeRepo) UnscoredArticles(ctx context.Context, since time.Time) ([]models.Article, error) {
	return f.unscored, nil
}

func (f *fakeRepo) CandidatesForDelivery(ctx context.Context, since time.Time) ([]models.Article, error) {
	return f.candidates, nil
}

func (f *fakeRepo) SaveSearchResults(ctx context.Context, results []models.SearchResult) error {
	return nil
}

func (f *fakeRepo) SaveSearchSummary(ctx context.Context, summary models.SearchSummary) error {
	return nil
}

func (f *fakeRepo) LatestSearchSummary(ctx context.Context) (*models.SearchSummary, error) {
	return f.summary, nil
}

type fakeScorer struct {
	updates  []models.ScoreUpdate
	failures []scoring.Failure
	scored   []models.Article
}

func (f *fakeScorer) ScoreArticles(ctx context.Context, articles []models.Article) ([]models.ScoreUpdate, []scoring.Failure, error) {
	f.scored = articles
	return f.updates, f.failures, nil
}

type fakeComposer struct {
	post       string
	err        error
	gotSummary string
	calls      int
}

func (f *fakeComposer) ComposePost(ctx context.Context, shortlist []models.Article, searchSummary string) (string, error) {
	f.calls++
	f.gotSummary = searchSummary
	return f.post, f.err
}

type fakeDeliverer struct {
	err   error
	post  string
	calls int
}

func (f *fakeDeliverer) Deliver(ctx context.Context, post string, shortlist []models.Article, window time.Duration) error {
	f.calls++
	f.post = post
	return f.err
}

func testConfig() *config.Config {
	return &config.Config{
		FreshnessWindow: 24 * time.Hour,
		SearchTimeUTC:   "08:00",
	}
}

func testService(repo *fakeRepo, scorer *fakeScorer, comp *fakeComposer, del *fakeDeliverer, srcs ...sources.Source) *Service {
	return NewService(testConfig(), &config.SourcesConfig{}, Deps{
		Sources:   srcs,
		Repo:      repo,
		Scorer:    scorer,
		Composer:  comp,
		Deliverer: del,
	})
}

func candidateSet(scores ...int) []models.Article {
	return scoredArticles(scores...)
}

func TestRunDeliversShortlist(t *testing.T) {
	repo := &fakeRepo{newCount: 2, candidates: candidateSet(95, 90, 85, 60)}
	scorer := &fakeScorer{updates: []models.ScoreUpdate{{GUID: "g-0", RelevanceScore: 95}}}
	comp := &fakeComposer{post: "the digest"}
	del := &fakeDeliverer{}
	src := &fakeSource{name: "feed", enabled: true, articles: []models.Article{
		{GUID: "g-0", Title: "One", Link: "https://example.com/1"},
	}}

	summary, err := testService(repo, scorer, comp, del, src).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ArticlesFetched)
	assert.Equal(t, 2, summary.ArticlesNew)
	assert.Equal(t, 1, summary.ArticlesScored)
	assert.Equal(t, 3, summary.ShortlistSize)
	assert.True(t, summary.Delivered)
	assert.Equal(t, "the digest", del.post)
	assert.Equal(t, 1, del.calls)
}

func TestRunNothingToDeliverIsSuccess(t *testing.T) {
	repo := &fakeRepo{}
	comp := &fakeComposer{post: "unused"}
	del := &fakeDeliverer{}

	summary, err := testService(repo, &fakeScorer{}, comp, del).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Delivered)
	assert.Zero(t, summary.ShortlistSize)
	assert.Zero(t, comp.calls, "composition must be skipped for an empty shortlist")
	assert.Zero(t, del.calls)
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	repo := &fakeRepo{}
	broken := &fakeSource{name: "broken", enabled: true, err: errors.New("connection refused")}
	healthy := &fakeSource{name: "healthy", enabled: true, articles: []models.Article{
		{GUID: "g-0", Title: "One", Link: "https://example.com/1"},
	}}
	disabled := &fakeSource{name: "disabled", enabled: false, articles: []models.Article{
		{GUID: "g-9", Title: "Never", Link: "https://example.com/9"},
	}}

	summary, err := testService(repo, &fakeScorer{}, &fakeComposer{}, &fakeDeliverer{}, broken, healthy, disabled).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"broken"}, summary.SourcesFailed)
	assert.Equal(t, 1, summary.ArticlesFetched)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "g-0", repo.upserted[0].GUID)
}

func TestRunAbortsOnCompositionFailure(t *testing.T) {
	repo := &fakeRepo{candidates: candidateSet(95, 90, 85)}
	comp := &fakeComposer{err: errors.New("bad post")}
	del := &fakeDeliverer{}

	_, err := testService(repo, &fakeScorer{}, comp, del).Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, del.calls, "a failed composition must never reach delivery")
}

func TestRunAbortsOnDeliveryFailure(t *testing.T) {
	repo := &fakeRepo{candidates: candidateSet(95, 90, 85)}
	del := &fakeDeliverer{err: errors.New("transport down")}

	summary, err := testService(repo, &fakeScorer{}, &fakeComposer{post: "the digest"}, del).
		Run(context.Background())
	require.Error(t, err)
	assert.False(t, summary.Delivered)
}

func TestRunPassesFreshSearchSummaryToComposer(t *testing.T) {
	repo := &fakeRepo{
		candidates: candidateSet(95, 90, 85),
		summary:    &models.SearchSummary{SummaryText: "today in brief", FetchedAt: time.Now()},
	}
	comp := &fakeComposer{post: "the digest"}

	_, err := testService(repo, &fakeScorer{}, comp, &fakeDeliverer{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "today in brief", comp.gotSummary)
}

func TestRunIgnoresStaleSearchSummary(t *testing.T) {
	repo := &fakeRepo{
		candidates: candidateSet(95, 90, 85),
		summary:    &models.SearchSummary{SummaryText: "old news", FetchedAt: time.Now().Add(-72 * time.Hour)},
	}
	comp := &fakeComposer{post: "the digest"}

	_, err := testService(repo, &fakeScorer{}, comp, &fakeDeliverer{}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, comp.gotSummary)
}

func TestRunRecordsScoringFailures(t *testing.T) {
	repo := &fakeRepo{unscored: candidateSet(0)}
	scorer := &fakeScorer{failures: []scoring.Failure{
		{GUID: "g-0", Err: errors.New("model timeout")},
	}}

	summary, err := testService(repo, scorer, &fakeComposer{}, &fakeDeliverer{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"g-0"}, summary.ScoringFailed)
	assert.Len(t, scorer.scored, 1)
}

func TestGetMetricsReflectsLastRun(t *testing.T) {
	repo := &fakeRepo{newCount: 3, candidates: candidateSet(95, 90, 85)}
	svc := testService(repo, &fakeScorer{}, &fakeComposer{post: "the digest"}, &fakeDeliverer{})

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	metrics := svc.GetMetrics()
	assert.Contains(t, metrics, `"articles_new":3`)
	assert.Contains(t, metrics, `"delivered":true`)
}

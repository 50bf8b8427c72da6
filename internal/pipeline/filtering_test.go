package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentwatch/digest-bot/internal/models"
)

func scoredArticles(scores ...int) []models.Article {
	articles := make([]models.Article, len(scores))
	for i, score := range scores {
		s := score
		articles[i] = models.Article{
			GUID:           fmt.Sprintf("g-%d", i),
			RelevanceScore: &s,
		}
	}
	return articles
}

func shortlistScores(shortlist []models.Article) []int {
	scores := make([]int, 0, len(shortlist))
	for _, a := range shortlist {
		scores = append(scores, *a.RelevanceScore)
	}
	return scores
}

func TestSelectTop(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   []int
	}{
		{
			name:   "four above threshold takes top three",
			scores: []int{95, 90, 85, 82, 70, 60},
			want:   []int{95, 90, 85},
		},
		{
			name:   "five above threshold takes top five",
			scores: []int{95, 90, 85, 82, 81, 70},
			want:   []int{95, 90, 85, 82, 81},
		},
		{
			name:   "six above threshold still takes five",
			scores: []int{99, 95, 90, 85, 82, 81},
			want:   []int{99, 95, 90, 85, 82},
		},
		{
			name:   "exactly eighty does not count as high relevance",
			scores: []int{80, 80, 80, 80, 80, 80},
			want:   []int{80, 80, 80},
		},
		{
			name:   "fewer candidates than the limit takes them all",
			scores: []int{90, 50},
			want:   []int{90, 50},
		},
		{
			name:   "single candidate",
			scores: []int{10},
			want:   []int{10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shortlist := SelectTop(scoredArticles(tt.scores...))
			assert.Equal(t, tt.want, shortlistScores(shortlist))
		})
	}
}

func TestSelectTopIgnoresUnscoredCandidates(t *testing.T) {
	// A candidate without a score cannot count toward the
	// high-relevance tally.
	candidates := scoredArticles(95, 90, 85, 82)
	candidates = append(candidates, models.Article{GUID: "unscored"})

	shortlist := SelectTop(candidates)
	assert.Len(t, shortlist, 3)
}

func TestSelectTopEmptyInput(t *testing.T) {
	assert.Nil(t, SelectTop(nil))
	assert.Nil(t, SelectTop([]models.Article{}))
}

func TestSelectTopIsDeterministic(t *testing.T) {
	candidates := scoredArticles(95, 90, 85, 82, 81, 70)

	first := SelectTop(candidates)
	second := SelectTop(candidates)
	assert.Equal(t, first, second)

	// The input slice is not mutated.
	assert.Len(t, candidates, 6)
}

package pipeline

import "github.com/agentwatch/digest-bot/internal/models"

const (
	highRelevanceThreshold = 80
	shortlistLarge         = 5
	shortlistSmall         = 3
)

// SelectTop converts the ordered candidate set into the delivery
// shortlist. Candidates must already be in the repository's total order
// (score desc, published_at desc, guid asc); the rule is pure, so the
// same candidates always yield the same shortlist:
//
//   - at least 5 candidates scored above 80: take the top 5
//   - otherwise: take the top 3
//   - fewer than 3 candidates: take them all (empty in, empty out)
func SelectTop(candidates []models.Article) []models.Article {
	if len(candidates) == 0 {
		return nil
	}

	highRelevance := 0
	for _, article := range candidates {
		if article.Scored() && *article.RelevanceScore > highRelevanceThreshold {
			highRelevance++
		}
	}

	limit := shortlistSmall
	if highRelevance >= shortlistLarge {
		limit = shortlistLarge
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}

	shortlist := make([]models.Article, limit)
	copy(shortlist, candidates[:limit])
	return shortlist
}

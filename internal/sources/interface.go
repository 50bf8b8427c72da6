package sources

import (
	"context"

	"github.com/agentwatch/digest-bot/internal/models"
)

// Source interface defines the contract for all content sources
type Source interface {
	GetName() string
	FetchArticles(ctx context.Context) ([]models.Article, error)
	IsEnabled() bool
}

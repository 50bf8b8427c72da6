package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentwatch/digest-bot/internal/llm"
	"github.com/agentwatch/digest-bot/internal/models"
)

// Oracle is the external relevance-scoring capability: given item text,
// it returns an integer score from 1 to 100 and a rationale, or fails.
type Oracle interface {
	ScoreArticle(ctx context.Context, article models.Article) (int, string, error)
}

// LLMOracle scores articles through a chat-completions model.
type LLMOracle struct {
	client *llm.Client
	model  string
	topic  string
}

type oracleVerdict struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// NewLLMOracle wires the shared LLM client with the scoring model and
// the topic articles are judged against.
func NewLLMOracle(client *llm.Client, model, topic string) *LLMOracle {
	return &LLMOracle{client: client, model: model, topic: topic}
}

func (o *LLMOracle) ScoreArticle(ctx context.Context, article models.Article) (int, string, error) {
	systemPrompt := fmt.Sprintf(
		"You rate how relevant a news article is to the topic %q. "+
			"Respond with a JSON object {\"score\": <integer 1-100>, \"reasoning\": \"<one or two sentences>\"} and nothing else.",
		o.topic)

	userPrompt := fmt.Sprintf("Title: %s\nSource: %s\nSummary: %s",
		article.Title, article.Source, article.Summary)

	raw, err := o.client.Complete(ctx, o.model, systemPrompt, userPrompt)
	if err != nil {
		return 0, "", fmt.Errorf("oracle call for %s: %w", article.GUID, err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		return 0, "", fmt.Errorf("oracle response for %s: %w", article.GUID, err)
	}

	return verdict.Score, verdict.Reasoning, nil
}

// parseVerdict extracts the JSON verdict, tolerating code fences some
// models wrap around their output.
func parseVerdict(raw string) (oracleVerdict, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var verdict oracleVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return verdict, fmt.Errorf("not a valid verdict: %w", err)
	}
	return verdict, nil
}

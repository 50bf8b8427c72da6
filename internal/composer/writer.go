package composer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agentwatch/digest-bot/internal/llm"
	"github.com/agentwatch/digest-bot/internal/models"
)

// LLMWriter implements Writer and the search summarizer on top of the
// shared chat client.
type LLMWriter struct {
	client *llm.Client
	model  string
	topic  string
}

var _ Writer = (*LLMWriter)(nil)

// NewLLMWriter wires the shared LLM client with the post-writer model.
func NewLLMWriter(client *llm.Client, model, topic string) *LLMWriter {
	return &LLMWriter{client: client, model: model, topic: topic}
}

// WritePost asks the model for an engaging digest post. The prompt pins
// the one hard requirement the composer later verifies: every article
// link must appear verbatim exactly once.
func (w *LLMWriter) WritePost(ctx context.Context, articles []models.Article, searchSummary string) (string, error) {
	systemPrompt := fmt.Sprintf(
		"You write a concise, engaging Telegram digest post (HTML formatting: <b>, <i>, <a href=...>) about %s. "+
			"Include every article link exactly once, verbatim, as an <a href> target. Do not invent links.",
		w.topic)

	var b strings.Builder
	fmt.Fprintf(&b, "Write a digest post covering these %d articles:\n\n", len(articles))
	for i, article := range articles {
		fmt.Fprintf(&b, "%d. %s\n   Link: %s\n", i+1, article.Title, article.Link)
		if article.Summary != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", truncate(article.Summary, 200))
		}
		if article.Reasoning != "" {
			fmt.Fprintf(&b, "   Why this matters: %s\n", article.Reasoning)
		}
		if article.Source != "" {
			fmt.Fprintf(&b, "   Source: %s\n", article.Source)
		}
		b.WriteString("\n")
	}
	if searchSummary != "" {
		fmt.Fprintf(&b, "Recent news context from web search:\n%s\n", searchSummary)
	}

	post, err := w.client.Complete(ctx, w.model, systemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("post writer: %w", err)
	}

	return strings.TrimSpace(post), nil
}

// SummarizeResults generates a short digest of raw search hits, used as
// optional context for the post.
func (w *LLMWriter) SummarizeResults(ctx context.Context, results []models.SearchResult) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("no search results to summarize")
	}

	const maxResults = 20
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the key developments from these search results about %s in a short paragraph:\n\n", w.topic)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   Source: %s\n\n", i+1, r.Title, r.Snippet, r.Source)
	}

	summary, err := w.client.Complete(ctx, w.model,
		"You summarize news search results into a brief, factual overview.", b.String())
	if err != nil {
		return "", fmt.Errorf("search summarizer: %w", err)
	}

	return strings.TrimSpace(summary), nil
}

// truncate shortens s to at most length runes. Cutting on a rune
// boundary keeps multi-byte text valid UTF-8.
func truncate(s string, length int) string {
	if utf8.RuneCountInString(s) <= length {
		return s
	}
	return string([]rune(s)[:length]) + "..."
}

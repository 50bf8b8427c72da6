package composer

import (
	"fmt"
	"html"
	"strings"

	"github.com/agentwatch/digest-bot/internal/models"
)

// FallbackPost renders a plain HTML digest without the post-writer
// model. It satisfies the same contract as the generated post: every
// shortlisted link appears exactly once.
func FallbackPost(articles []models.Article) string {
	var b strings.Builder

	b.WriteString("<b>Digest Update</b>\n\n")
	fmt.Fprintf(&b, "<i>%d new articles worth your time:</i>\n\n", len(articles))

	for i, article := range articles {
		title := html.EscapeString(article.Title)
		// The link goes in verbatim: the composition contract checks
		// for the exact URL, and Telegram accepts unescaped href
		// values.
		fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a>\n", i+1, article.Link, title)

		if article.Source != "" {
			fmt.Fprintf(&b, "   <code>%s</code>\n", html.EscapeString(article.Source))
		}
		if article.Reasoning != "" {
			fmt.Fprintf(&b, "   <i>%s</i>\n", html.EscapeString(truncate(article.Reasoning, 100)))
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

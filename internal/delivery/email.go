package delivery

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/agentwatch/digest-bot/internal/config"
	"github.com/agentwatch/digest-bot/internal/models"
)

// EmailNotifier sends a plain-text copy of each delivered digest. It is
// an optional side channel: failures here are logged by the caller, not
// treated as delivery failures.
type EmailNotifier struct {
	cfg *config.Config
}

// NewEmailNotifier returns nil when no notification email is
// configured.
func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	if cfg.NotificationEmail == "" {
		return nil
	}
	return &EmailNotifier{cfg: cfg}
}

// SendCopy emails the digest text along with the shortlist.
func (e *EmailNotifier) SendCopy(post string, shortlist []models.Article) error {
	var text strings.Builder
	text.WriteString(post)
	text.WriteString("\n\n---\nShortlist:\n")
	for i, article := range shortlist {
		score := 0
		if article.Scored() {
			score = *article.RelevanceScore
		}
		fmt.Fprintf(&text, "%d. %s (score %d)\n   %s\n", i+1, article.Title, score, article.Link)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.SMTPUsername)
	m.SetHeader("To", e.cfg.NotificationEmail)
	m.SetHeader("Subject", fmt.Sprintf("Digest delivered (%d articles)", len(shortlist)))
	m.SetBody("text/plain", text.String())

	d := gomail.NewDialer(e.cfg.SMTPHost, e.cfg.SMTPPort, e.cfg.SMTPUsername, e.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email copy: %w", err)
	}

	return nil
}

// Package composer turns the shortlist (plus an optional search
// summary) into the single rendered digest message. The wording comes
// from an external post-writer model; this package owns the contract
// checks: the output is never blank and every shortlisted link appears
// in it exactly once.
package composer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/agentwatch/digest-bot/internal/models"
)

// ErrEmptyShortlist is returned when composition is invoked with no
// articles; the orchestrator should have skipped the stage instead.
var ErrEmptyShortlist = errors.New("no articles to compose")

// ErrBadPost is returned when the generated post is blank or does not
// contain every shortlisted link exactly once. A run failing this check
// aborts: a malformed digest is never delivered.
var ErrBadPost = errors.New("generated post failed validation")

// Writer is the external post-writer capability.
type Writer interface {
	WritePost(ctx context.Context, articles []models.Article, searchSummary string) (string, error)
}

// Service runs the composition stage.
type Service struct {
	writer Writer
}

// NewService creates the composition stage.
func NewService(writer Writer) *Service {
	return &Service{writer: writer}
}

// ComposePost produces the digest message for the shortlist. When the
// writer itself fails (transport, model fault) the deterministic
// fallback post is used; whichever producer wins, the output must pass
// validation or the run aborts.
func (s *Service) ComposePost(ctx context.Context, shortlist []models.Article, searchSummary string) (string, error) {
	if len(shortlist) == 0 {
		return "", ErrEmptyShortlist
	}

	post, err := s.writer.WritePost(ctx, shortlist, searchSummary)
	if err != nil {
		logrus.Errorf("Post writer failed, using fallback post: %v", err)
		post = FallbackPost(shortlist)
	}

	if err := ValidatePost(post, shortlist); err != nil {
		return "", err
	}

	return post, nil
}

// ValidatePost checks the composition contract: non-blank output with
// every shortlisted link present verbatim exactly once.
func ValidatePost(post string, shortlist []models.Article) error {
	if strings.TrimSpace(post) == "" {
		return fmt.Errorf("%w: empty output", ErrBadPost)
	}

	links := make([]string, 0, len(shortlist))
	for _, article := range shortlist {
		links = append(links, article.Link)
	}
	counts := countLinks(post, links)

	for _, article := range shortlist {
		switch n := counts[article.Link]; n {
		case 1:
			// ok
		case 0:
			return fmt.Errorf("%w: link %s is missing", ErrBadPost, article.Link)
		default:
			return fmt.Errorf("%w: link %s appears %d times", ErrBadPost, article.Link, n)
		}
	}

	return nil
}

// countLinks counts each link's occurrences in the post, masking longer
// links before counting shorter ones. Without the masking a link that is
// a prefix of another shortlisted link (/1 vs /10) would be counted
// inside the longer one's occurrences.
func countLinks(post string, links []string) map[string]int {
	ordered := make([]string, len(links))
	copy(ordered, links)
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	counts := make(map[string]int, len(ordered))
	for _, link := range ordered {
		if _, done := counts[link]; done {
			continue
		}
		counts[link] = strings.Count(post, link)
		post = strings.ReplaceAll(post, link, "\x00")
	}
	return counts
}

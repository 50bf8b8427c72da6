package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentwatch/digest-bot/internal/models"
)

// Repository is the slice of the store the tracker needs.
type Repository interface {
	CreateDelivery(ctx context.Context, content, idempotencyKey string) (int64, error)
	MarkDeliverySent(ctx context.Context, id int64, originMessageID string) error
	MarkDeliveryFailed(ctx context.Context, id int64) error
	FinalizeDelivery(ctx context.Context, id int64, guids []string) error
	FindRecentDelivery(ctx context.Context, idempotencyKey string, since time.Time) (*models.Delivery, error)
	MarkDelivered(ctx context.Context, guids []string) error
}

// Tracker drives one delivery through pending -> sent -> recorded, or
// pending -> failed. The idempotency key over the shortlist guid set is
// what lets a re-run after a crash recognize an already-transmitted
// digest and skip the transport.
type Tracker struct {
	transport Transport
	repo      Repository
	email     *EmailNotifier
}

// NewTracker creates the delivery tracker. email may be nil.
func NewTracker(transport Transport, repo Repository, email *EmailNotifier) *Tracker {
	return &Tracker{transport: transport, repo: repo, email: email}
}

// Deliver sends the composed post for the shortlist, exactly once per
// guid set. If a recent delivery with the same key already reached sent
// or recorded, the transport is not invoked again; the tracker only
// completes the bookkeeping the crashed run missed.
func (t *Tracker) Deliver(ctx context.Context, post string, shortlist []models.Article, window time.Duration) error {
	guids := make([]string, 0, len(shortlist))
	for _, article := range shortlist {
		guids = append(guids, article.GUID)
	}
	key := IdempotencyKey(guids)

	prior, err := t.repo.FindRecentDelivery(ctx, key, time.Now().Add(-window))
	if err != nil {
		return fmt.Errorf("delivery idempotency check: %w", err)
	}
	if prior != nil {
		logrus.Warnf("Delivery %d already transmitted this shortlist (status %s); completing bookkeeping without re-sending",
			prior.ID, prior.Status)
		if err := t.repo.FinalizeDelivery(ctx, prior.ID, guids); err != nil {
			return fmt.Errorf("failed to finalize prior delivery %d: %w", prior.ID, err)
		}
		return nil
	}

	deliveryID, err := t.repo.CreateDelivery(ctx, post, key)
	if err != nil {
		return fmt.Errorf("failed to create delivery record: %w", err)
	}

	messageID, err := t.transport.Send(ctx, post)
	if err != nil {
		if markErr := t.repo.MarkDeliveryFailed(ctx, deliveryID); markErr != nil {
			logrus.Errorf("Failed to mark delivery %d failed: %v", deliveryID, markErr)
		}
		return fmt.Errorf("transport failed: %w", err)
	}

	if err := t.repo.MarkDeliverySent(ctx, deliveryID, messageID); err != nil {
		// The message is out; surface the bookkeeping failure but do
		// not retry the send.
		return fmt.Errorf("message %s sent but failed to record sent state: %w", messageID, err)
	}

	if err := t.repo.FinalizeDelivery(ctx, deliveryID, guids); err != nil {
		return fmt.Errorf("message %s sent but failed to finalize delivery: %w", messageID, err)
	}

	logrus.Infof("Delivered digest as message %s (%d articles)", messageID, len(shortlist))

	if t.email != nil {
		if err := t.email.SendCopy(post, shortlist); err != nil {
			logrus.Errorf("Failed to send email copy: %v", err)
		}
	}

	return nil
}

// IdempotencyKey derives a stable key from a shortlist guid set: the
// SHA-256 of the sorted guids. Two runs selecting the same set produce
// the same key regardless of candidate order.
func IdempotencyKey(guids []string) string {
	sorted := make([]string, len(guids))
	copy(sorted, guids)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

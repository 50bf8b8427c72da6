package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwatch/digest-bot/internal/models"
)

type fakeTransport struct {
	messageID string
	err       error
	calls     int
}

func (f *fakeTransport) Send(ctx context.Context, message string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.messageID, nil
}

type fakeDeliveryRepo struct {
	prior *models.Delivery

	createdContent string
	createdKey     string
	nextID         int64

	sentID    int64
	sentMsgID string
	failedID  int64

	finalizedID    int64
	finalizedGUIDs []string
}

func (f *fakeDeliveryRepo) CreateDelivery(ctx context.Context, content, key string) (int64, error) {
	f.createdContent = content
	f.createdKey = key
	if f.nextID == 0 {
		f.nextID = 1
	}
	return f.nextID, nil
}

func (f *fakeDeliveryRepo) MarkDeliverySent(ctx context.Context, id int64, originMessageID string) error {
	f.sentID = id
	f.sentMsgID = originMessageID
	return nil
}

func (f *fakeDeliveryRepo) MarkDeliveryFailed(ctx context.Context, id int64) error {
	f.failedID = id
	return nil
}

func (f *fakeDeliveryRepo) FinalizeDelivery(ctx context.Context, id int64, guids []string) error {
	f.finalizedID = id
	f.finalizedGUIDs = guids
	return nil
}

func (f *fakeDeliveryRepo) FindRecentDelivery(ctx context.Context, key string, since time.Time) (*models.Delivery, error) {
	if f.prior != nil && f.prior.IdempotencyKey == key {
		return f.prior, nil
	}
	return nil, nil
}

func (f *fakeDeliveryRepo) MarkDelivered(ctx context.Context, guids []string) error {
	return nil
}

func trackerShortlist() []models.Article {
	return []models.Article{
		{GUID: "g-1", Title: "One", Link: "https://example.com/1"},
		{GUID: "g-2", Title: "Two", Link: "https://example.com/2"},
	}
}

func TestDeliverHappyPath(t *testing.T) {
	transport := &fakeTransport{messageID: "42"}
	repo := &fakeDeliveryRepo{nextID: 7}
	tracker := NewTracker(transport, repo, nil)

	err := tracker.Deliver(context.Background(), "the digest", trackerShortlist(), 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, transport.calls)
	assert.Equal(t, "the digest", repo.createdContent)
	assert.Equal(t, IdempotencyKey([]string{"g-1", "g-2"}), repo.createdKey)
	assert.Equal(t, int64(7), repo.sentID)
	assert.Equal(t, "42", repo.sentMsgID)
	assert.Equal(t, int64(7), repo.finalizedID)
	assert.Equal(t, []string{"g-1", "g-2"}, repo.finalizedGUIDs)
	assert.Zero(t, repo.failedID)
}

func TestDeliverTransportFailureMarksFailed(t *testing.T) {
	sendErr := errors.New("chat not found")
	transport := &fakeTransport{err: sendErr}
	repo := &fakeDeliveryRepo{nextID: 3}
	tracker := NewTracker(transport, repo, nil)

	err := tracker.Deliver(context.Background(), "the digest", trackerShortlist(), 24*time.Hour)
	require.ErrorIs(t, err, sendErr)

	assert.Equal(t, int64(3), repo.failedID)
	assert.Zero(t, repo.sentID)
	assert.Zero(t, repo.finalizedID)
}

func TestDeliverSkipsTransportAfterCrash(t *testing.T) {
	// A previous run sent the message and crashed before the
	// bookkeeping. The re-run must finish the bookkeeping without
	// invoking the transport again.
	key := IdempotencyKey([]string{"g-1", "g-2"})
	transport := &fakeTransport{messageID: "never"}
	repo := &fakeDeliveryRepo{
		prior: &models.Delivery{ID: 11, Status: models.DeliverySent, IdempotencyKey: key},
	}
	tracker := NewTracker(transport, repo, nil)

	err := tracker.Deliver(context.Background(), "the digest", trackerShortlist(), 24*time.Hour)
	require.NoError(t, err)

	assert.Zero(t, transport.calls, "transport must not be invoked for an already-sent shortlist")
	assert.Equal(t, int64(11), repo.finalizedID)
	assert.Equal(t, []string{"g-1", "g-2"}, repo.finalizedGUIDs)
	assert.Empty(t, repo.createdContent)
}

func TestDeliverDifferentShortlistStillSends(t *testing.T) {
	transport := &fakeTransport{messageID: "43"}
	repo := &fakeDeliveryRepo{
		prior: &models.Delivery{
			ID:             11,
			Status:         models.DeliverySent,
			IdempotencyKey: IdempotencyKey([]string{"other-guid"}),
		},
	}
	tracker := NewTracker(transport, repo, nil)

	err := tracker.Deliver(context.Background(), "the digest", trackerShortlist(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls)
}

func TestIdempotencyKeyOrderIndependent(t *testing.T) {
	a := IdempotencyKey([]string{"g-1", "g-2", "g-3"})
	b := IdempotencyKey([]string{"g-3", "g-1", "g-2"})
	c := IdempotencyKey([]string{"g-1", "g-2"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

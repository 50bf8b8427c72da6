package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agentwatch/digest-bot/internal/models"
)

const deliveryColumns = "id, delivered_at, content, origin_message_id, status, idempotency_key"

// CreateDelivery appends a pending delivery row before transmission and
// returns its id. The row is the durable marker that closes the crash
// window between a successful send and the bookkeeping that follows it.
func (s *Store) CreateDelivery(ctx context.Context, content, idempotencyKey string) (int64, error) {
	query, args, err := builder().
		Insert("deliveries").
		Columns("delivered_at", "content", "status", "idempotency_key").
		Values(formatTime(time.Now()), content, string(models.DeliveryPending), idempotencyKey).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("create delivery: build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("create delivery: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create delivery: last insert id: %w", err)
	}
	return id, nil
}

// MarkDeliverySent records transport success together with the
// transport-assigned message id.
func (s *Store) MarkDeliverySent(ctx context.Context, id int64, originMessageID string) error {
	return s.updateDelivery(ctx, id, models.DeliverySent, &originMessageID)
}

// MarkDeliveryFailed is terminal for this run; the shortlisted articles
// stay unposted and are eligible again next run.
func (s *Store) MarkDeliveryFailed(ctx context.Context, id int64) error {
	return s.updateDelivery(ctx, id, models.DeliveryFailed, nil)
}

func (s *Store) updateDelivery(ctx context.Context, id int64, status models.DeliveryStatus, originMessageID *string) error {
	b := builder().
		Update("deliveries").
		Set("status", string(status)).
		Where(sq.Eq{"id": id})
	if originMessageID != nil {
		b = b.Set("origin_message_id", *originMessageID)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("update delivery: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update delivery %d: %w", id, err)
	}
	return nil
}

// FinalizeDelivery marks the shortlisted articles as posted and promotes
// the delivery row to recorded in a single transaction, so the run
// either fully reaches its terminal success state or not at all.
func (s *Store) FinalizeDelivery(ctx context.Context, id int64, guids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finalize delivery: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(guids) > 0 {
		if err := markDeliveredTx(ctx, tx, guids); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE deliveries SET status = ? WHERE id = ?",
		string(models.DeliveryRecorded), id); err != nil {
		return fmt.Errorf("finalize delivery %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finalize delivery: commit: %w", err)
	}
	return nil
}

// FindRecentDelivery returns the newest delivery with the given
// idempotency key that reached at least the sent state after the cutoff,
// or nil when there is none. This is how a re-run detects that the
// previous process crashed after transmitting.
func (s *Store) FindRecentDelivery(ctx context.Context, idempotencyKey string, since time.Time) (*models.Delivery, error) {
	query, args, err := builder().
		Select(deliveryColumns).
		From("deliveries").
		Where(sq.Eq{"idempotency_key": idempotencyKey}).
		Where(sq.Eq{"status": []string{string(models.DeliverySent), string(models.DeliveryRecorded)}}).
		Where(sq.Gt{"delivered_at": formatTime(since)}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("find recent delivery: build query: %w", err)
	}

	return s.queryDelivery(ctx, query, args)
}

// LatestDelivery returns the most recent delivery row of any status.
func (s *Store) LatestDelivery(ctx context.Context) (*models.Delivery, error) {
	query, args, err := builder().
		Select(deliveryColumns).
		From("deliveries").
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("latest delivery: build query: %w", err)
	}

	return s.queryDelivery(ctx, query, args)
}

func (s *Store) queryDelivery(ctx context.Context, query string, args []interface{}) (*models.Delivery, error) {
	row := s.db.QueryRowContext(ctx, query, args...)

	var d models.Delivery
	var deliveredAt, originMessageID, status, key sql.NullString
	err := row.Scan(&d.ID, &deliveredAt, &d.Content, &originMessageID, &status, &key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan delivery: %w", err)
	}

	if t := parseTime(deliveredAt); t != nil {
		d.DeliveredAt = *t
	}
	d.OriginMessageID = originMessageID.String
	d.Status = models.DeliveryStatus(status.String)
	d.IdempotencyKey = key.String
	return &d, nil
}

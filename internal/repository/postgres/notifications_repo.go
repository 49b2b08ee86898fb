package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/tmokoena/escrow-backend/internal/models"
)

type notificationsRepo struct{ q querier }

func (r *notificationsRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := r.q.QueryRow(ctx, `
INSERT INTO notifications (id, recipient_id, type, title, body, read)
VALUES ($1,$2,$3,$4,$5,false)
RETURNING created_at`,
		n.ID, n.RecipientID, n.Type, n.Title, n.Body,
	).Scan(&n.CreatedAt)
	return n, err
}

func (r *notificationsRepo) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, recipient_id, type, title, body, read, created_at
  FROM notifications
 WHERE recipient_id=$1
 ORDER BY created_at DESC
 LIMIT $2`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead is idempotent: re-marking a read notification still matches
// and is a no-op. A foreign or unknown id matches nothing.
func (r *notificationsRepo) MarkRead(ctx context.Context, recipientID, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE notifications SET read=true WHERE id=$1 AND recipient_id=$2`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *notificationsRepo) MarkAllRead(ctx context.Context, recipientID string) error {
	_, err := r.q.Exec(ctx, `UPDATE notifications SET read=true WHERE recipient_id=$1 AND read=false`, recipientID)
	return err
}

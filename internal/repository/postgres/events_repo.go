package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/tmokoena/escrow-backend/internal/models"
)

type eventsRepo struct{ q querier }

// Append only ever inserts; there is no update or delete path for
// transaction_events anywhere in this package.
func (r *eventsRepo) Append(ctx context.Context, ev models.TransactionEvent) (models.TransactionEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	err := r.q.QueryRow(ctx, `
INSERT INTO transaction_events (id, transaction_id, actor_id, event_type, message, metadata)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING created_at`,
		ev.ID, ev.TransactionID, ev.ActorID, ev.EventType, ev.Message, ev.Metadata,
	).Scan(&ev.CreatedAt)
	return ev, err
}

func (r *eventsRepo) ListByTransaction(ctx context.Context, transactionID string) ([]models.TransactionEvent, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, transaction_id, actor_id, event_type, message, metadata, created_at
  FROM transaction_events
 WHERE transaction_id=$1
 ORDER BY seq ASC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TransactionEvent
	for rows.Next() {
		var ev models.TransactionEvent
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &ev.ActorID, &ev.EventType, &ev.Message, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

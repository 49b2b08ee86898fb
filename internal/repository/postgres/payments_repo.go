package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/tmokoena/escrow-backend/internal/models"
)

type paymentsRepo struct{ q querier }

func (r *paymentsRepo) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.q.QueryRow(ctx, `
INSERT INTO payments (id, transaction_id, provider, method, reference, status, amount_cents)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING created_at, updated_at`,
		p.ID, p.TransactionID, p.Provider, p.Method, p.Reference, p.Status, p.AmountCents,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *paymentsRepo) Update(ctx context.Context, p models.Payment) error {
	tag, err := r.q.Exec(ctx, `
UPDATE payments SET status=$2, reference=$3, updated_at=now() WHERE id=$1`,
		p.ID, p.Status, p.Reference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *paymentsRepo) ListByTransaction(ctx context.Context, transactionID string) ([]models.Payment, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, transaction_id, provider, method, reference, status, amount_cents, created_at, updated_at
  FROM payments
 WHERE transaction_id=$1
 ORDER BY created_at ASC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.TransactionID, &p.Provider, &p.Method, &p.Reference, &p.Status, &p.AmountCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmokoena/escrow-backend/internal/models"
)

type disputesRepo struct{ q querier }

const disputeColumns = `id, transaction_id, opened_by_id, reason, description, status,
resolution, resolved_by_id, resolved_at, created_at, updated_at`

func scanDispute(row pgx.Row) (models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(
		&d.ID, &d.TransactionID, &d.OpenedByID, &d.Reason, &d.Description, &d.Status,
		&d.Resolution, &d.ResolvedByID, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Dispute{}, models.ErrNotFound
	}
	return d, err
}

func (r *disputesRepo) Create(ctx context.Context, d models.Dispute) (models.Dispute, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	q := `
INSERT INTO disputes (id, transaction_id, opened_by_id, reason, description, status)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING ` + disputeColumns
	return scanDispute(r.q.QueryRow(ctx, q, d.ID, d.TransactionID, d.OpenedByID, d.Reason, d.Description, d.Status))
}

func (r *disputesRepo) GetByID(ctx context.Context, id string) (models.Dispute, error) {
	return scanDispute(r.q.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id=$1`, id))
}

func (r *disputesRepo) ActiveByTransaction(ctx context.Context, transactionID string) (models.Dispute, error) {
	return scanDispute(r.q.QueryRow(ctx, `
SELECT `+disputeColumns+`
  FROM disputes
 WHERE transaction_id=$1 AND status IN ('open','under_review')
 ORDER BY created_at DESC
 LIMIT 1`, transactionID))
}

func (r *disputesRepo) Update(ctx context.Context, d models.Dispute) error {
	tag, err := r.q.Exec(ctx, `
UPDATE disputes
   SET status=$2, resolution=$3, resolved_by_id=$4, resolved_at=$5, updated_at=now()
 WHERE id=$1`,
		d.ID, d.Status, d.Resolution, d.ResolvedByID, d.ResolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *disputesRepo) ListUnresolved(ctx context.Context) ([]models.Dispute, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+disputeColumns+`
  FROM disputes
 WHERE status IN ('open','under_review')
 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

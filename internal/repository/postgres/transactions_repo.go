package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmokoena/escrow-backend/internal/models"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
)

type transactionsRepo struct{ q querier }

const txnColumns = `id, buyer_id, seller_id, seller_email_invited, title, description,
amount_cents, currency, status, delivery_terms, due_date,
buyer_confirmed_at, released_at, created_at, updated_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.BuyerID, &t.SellerID, &t.SellerEmail, &t.Title, &t.Description,
		&t.AmountCents, &t.Currency, &t.Status, &t.DeliveryTerms, &t.DueDate,
		&t.BuyerConfirmedAt, &t.ReleasedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, models.ErrNotFound
	}
	return t, err
}

func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	q := `
INSERT INTO transactions (
  id, buyer_id, seller_id, seller_email_invited, title, description,
  amount_cents, currency, status, delivery_terms, due_date
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING ` + txnColumns
	return scanTxn(r.q.QueryRow(ctx, q,
		t.ID, t.BuyerID, t.SellerID, t.SellerEmail, t.Title, t.Description,
		t.AmountCents, t.Currency, t.Status, t.DeliveryTerms, t.DueDate,
	))
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	return scanTxn(r.q.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id=$1`, id))
}

func (r *transactionsRepo) List(ctx context.Context, f repo.TxnFilter, limit, offset int) ([]models.Transaction, error) {
	q := `SELECT ` + txnColumns + ` FROM transactions WHERE 1=1`
	args := []any{}
	if f.ParticipantID != "" {
		args = append(args, f.ParticipantID)
		q += fmt.Sprintf(` AND (buyer_id=$%d OR seller_id=$%d)`, len(args), len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if f.TitleContains != "" {
		args = append(args, "%"+f.TitleContains+"%")
		q += fmt.Sprintf(` AND title ILIKE $%d`, len(args))
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateStatus is the compare-and-swap that backs every transition: the
// WHERE clause pins the expected status, so a lost race updates zero
// rows and surfaces as ErrStatusConflict.
func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, expected, next models.TransactionStatus, upd repo.TxnUpdate) (models.Transaction, error) {
	q := `
UPDATE transactions
   SET status=$3,
       seller_id=COALESCE($4, seller_id),
       buyer_confirmed_at=COALESCE($5, buyer_confirmed_at),
       released_at=COALESCE($6, released_at),
       updated_at=now()
 WHERE id=$1 AND status=$2
RETURNING ` + txnColumns
	t, err := scanTxn(r.q.QueryRow(ctx, q, id, expected, next, upd.SellerID, upd.BuyerConfirmedAt, upd.ReleasedAt))
	if errors.Is(err, models.ErrNotFound) {
		// distinguish a missing row from a lost race
		var exists bool
		if err2 := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id=$1)`, id).Scan(&exists); err2 != nil {
			return models.Transaction{}, err2
		}
		if exists {
			return models.Transaction{}, repo.ErrStatusConflict
		}
		return models.Transaction{}, models.ErrNotFound
	}
	return t, err
}

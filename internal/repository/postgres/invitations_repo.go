package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmokoena/escrow-backend/internal/models"
)

type invitationsRepo struct{ q querier }

func (r *invitationsRepo) Create(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	err := r.q.QueryRow(ctx, `
INSERT INTO invitations (id, transaction_id, invited_email, token, status, expires_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING created_at`,
		inv.ID, inv.TransactionID, inv.InvitedEmail, inv.Token, inv.Status, inv.ExpiresAt,
	).Scan(&inv.CreatedAt)
	return inv, err
}

func (r *invitationsRepo) GetByTransaction(ctx context.Context, transactionID string) (models.Invitation, error) {
	var inv models.Invitation
	err := r.q.QueryRow(ctx, `
SELECT id, transaction_id, invited_email, token, status, expires_at, created_at
  FROM invitations
 WHERE transaction_id=$1`, transactionID,
	).Scan(&inv.ID, &inv.TransactionID, &inv.InvitedEmail, &inv.Token, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Invitation{}, models.ErrNotFound
	}
	return inv, err
}

func (r *invitationsRepo) Update(ctx context.Context, inv models.Invitation) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE invitations SET status=$2 WHERE transaction_id=$1`,
		inv.TransactionID, inv.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

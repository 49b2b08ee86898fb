package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmokoena/escrow-backend/internal/metrics"
	"github.com/tmokoena/escrow-backend/internal/models"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
)

// OpenDispute opens a dispute on behalf of a transaction party. Same
// serialization as Apply; a transaction already in dispute_open
// rejects a second dispute rather than reporting a bad edge.
func (s *EscrowService) OpenDispute(ctx context.Context, txnID, actorID, reason, description string) (models.Dispute, error) {
	unlock := s.locks.Lock(txnID)
	defer unlock()

	txn, err := s.repos.Transactions.GetByID(ctx, txnID)
	if err != nil {
		return models.Dispute{}, err
	}
	if txn.Status == models.StatusDisputeOpen {
		return models.Dispute{}, models.ErrAlreadyHasActiveDispute
	}
	if _, ok := models.Edge(models.CmdOpenDispute, txn.Status); !ok {
		metrics.TransitionsRejected.WithLabelValues("invalid_transition").Inc()
		return models.Dispute{}, fmt.Errorf("%w: open_dispute from %s", models.ErrInvalidTransition, txn.Status)
	}
	actor, err := s.repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return models.Dispute{}, err
	}
	if !authorized(models.RoleAnyParty, &actor, &txn) {
		metrics.TransitionsRejected.WithLabelValues("forbidden").Inc()
		return models.Dispute{}, models.ErrForbidden
	}

	_, d, err := s.openDispute(ctx, txn, actor, reason, description)
	if err != nil {
		return models.Dispute{}, err
	}
	metrics.TransitionsTotal.WithLabelValues(string(models.CmdOpenDispute)).Inc()
	return d, nil
}

func (s *EscrowService) openDispute(ctx context.Context, txn models.Transaction, actor models.User, reason, description string) (models.Transaction, models.Dispute, error) {
	var errs models.ValidationErrors
	if strings.TrimSpace(reason) == "" {
		errs = append(errs, models.FieldError{Field: "reason", Msg: "required"})
	}
	if strings.TrimSpace(description) == "" {
		errs = append(errs, models.FieldError{Field: "description", Msg: "required"})
	}
	if len(errs) > 0 {
		return models.Transaction{}, models.Dispute{}, errs
	}

	// one active dispute per transaction
	if _, err := s.repos.Disputes.ActiveByTransaction(ctx, txn.ID); err == nil {
		return models.Transaction{}, models.Dispute{}, models.ErrAlreadyHasActiveDispute
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.Transaction{}, models.Dispute{}, err
	}

	var updated models.Transaction
	var dispute models.Dispute
	err := s.runAtomic(ctx, func(r repo.Repos) error {
		var err error
		updated, err = r.Transactions.UpdateStatus(ctx, txn.ID,
			txn.Status, models.StatusDisputeOpen, repo.TxnUpdate{})
		if err != nil {
			return err
		}
		dispute, err = r.Disputes.Create(ctx, models.Dispute{
			TransactionID: txn.ID,
			OpenedByID:    actor.ID,
			Reason:        reason,
			Description:   description,
			Status:        models.DisputeOpen,
		})
		if err != nil {
			return err
		}
		_, err = r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: txn.ID,
			ActorID:       &actor.ID,
			EventType:     models.EventDisputeOpened,
			Message:       fmt.Sprintf("Dispute opened: %s", reason),
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, models.Dispute{}, err
	}
	return updated, dispute, nil
}

// StartReview moves an open dispute to under_review. Admin only,
// optional step before resolution.
func (s *EscrowService) StartReview(ctx context.Context, disputeID, adminID string) (models.Dispute, error) {
	d, err := s.repos.Disputes.GetByID(ctx, disputeID)
	if err != nil {
		return models.Dispute{}, err
	}

	unlock := s.locks.Lock(d.TransactionID)
	defer unlock()

	admin, err := s.repos.Users.GetByID(ctx, adminID)
	if err != nil {
		return models.Dispute{}, err
	}
	if !admin.HasRole(models.AppRoleAdmin) {
		return models.Dispute{}, models.ErrForbidden
	}

	d, err = s.repos.Disputes.GetByID(ctx, disputeID)
	if err != nil {
		return models.Dispute{}, err
	}
	if err := d.StartReview(); err != nil {
		return models.Dispute{}, err
	}
	if err := s.repos.Disputes.Update(ctx, d); err != nil {
		return models.Dispute{}, err
	}
	return d, nil
}

// ResolveDispute records the admin's resolution and applies the
// matching terminal transaction status. The dispute update and the
// status change commit together or not at all.
func (s *EscrowService) ResolveDispute(ctx context.Context, disputeID, adminID string, res models.DisputeResolution) (models.Dispute, error) {
	d, err := s.repos.Disputes.GetByID(ctx, disputeID)
	if err != nil {
		return models.Dispute{}, err
	}

	unlock := s.locks.Lock(d.TransactionID)
	defer unlock()

	txn, err := s.repos.Transactions.GetByID(ctx, d.TransactionID)
	if err != nil {
		return models.Dispute{}, err
	}
	admin, err := s.repos.Users.GetByID(ctx, adminID)
	if err != nil {
		return models.Dispute{}, err
	}
	if !admin.HasRole(models.AppRoleAdmin) {
		metrics.TransitionsRejected.WithLabelValues("forbidden").Inc()
		return models.Dispute{}, models.ErrForbidden
	}

	// re-read under the lock; another admin may have won
	d, err = s.repos.Disputes.GetByID(ctx, disputeID)
	if err != nil {
		return models.Dispute{}, err
	}
	if d.Status == models.DisputeResolved {
		return models.Dispute{}, models.ErrAlreadyResolved
	}

	_, d, err = s.resolve(ctx, txn, admin, d, res)
	if err != nil {
		return models.Dispute{}, err
	}
	metrics.TransitionsTotal.WithLabelValues(string(models.CmdResolveDispute)).Inc()
	return d, nil
}

// resolveActive is the Apply(resolve_dispute) path: it finds the
// transaction's active dispute and resolves it.
func (s *EscrowService) resolveActive(ctx context.Context, txn models.Transaction, admin models.User, res models.DisputeResolution) (models.Transaction, models.Dispute, error) {
	d, err := s.repos.Disputes.ActiveByTransaction(ctx, txn.ID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Transaction{}, models.Dispute{}, models.ErrAlreadyResolved
	}
	if err != nil {
		return models.Transaction{}, models.Dispute{}, err
	}
	return s.resolve(ctx, txn, admin, d, res)
}

func (s *EscrowService) resolve(ctx context.Context, txn models.Transaction, admin models.User, d models.Dispute, res models.DisputeResolution) (models.Transaction, models.Dispute, error) {
	now := time.Now()
	if err := d.Resolve(admin.ID, res, now); err != nil {
		return models.Transaction{}, models.Dispute{}, err
	}
	target := models.ResolveTarget(res)

	var updated models.Transaction
	err := s.runAtomic(ctx, func(r repo.Repos) error {
		var err error
		updated, err = r.Transactions.UpdateStatus(ctx, txn.ID,
			models.StatusDisputeOpen, target, repo.TxnUpdate{})
		if err != nil {
			return err
		}
		if err := r.Disputes.Update(ctx, d); err != nil {
			return err
		}
		_, err = r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: txn.ID,
			ActorID:       &admin.ID,
			EventType:     models.EventDisputeResolved,
			Message:       fmt.Sprintf("Dispute resolved: %s", res),
			Metadata:      map[string]any{"resolution": string(res)},
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, models.Dispute{}, err
	}

	body := fmt.Sprintf("Dispute for %q resolved with %s.", txn.Title, res)
	s.notif.Notify(txn.BuyerID, "dispute_resolved", "Dispute Resolved", body)
	if txn.SellerID != nil {
		s.notif.Notify(*txn.SellerID, "dispute_resolved", "Dispute Resolved", body)
	}
	return updated, d, nil
}

// GetDispute returns one dispute by id.
func (s *EscrowService) GetDispute(ctx context.Context, id string) (models.Dispute, error) {
	return s.repos.Disputes.GetByID(ctx, id)
}

// ListUnresolvedDisputes backs the admin queue.
func (s *EscrowService) ListUnresolvedDisputes(ctx context.Context) ([]models.Dispute, error) {
	return s.repos.Disputes.ListUnresolved(ctx)
}

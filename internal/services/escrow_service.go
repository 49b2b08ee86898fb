package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tmokoena/escrow-backend/internal/metrics"
	"github.com/tmokoena/escrow-backend/internal/models"
	"github.com/tmokoena/escrow-backend/internal/notifier"
	"github.com/tmokoena/escrow-backend/internal/payment"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
	"github.com/tmokoena/escrow-backend/internal/retry"
	"github.com/tmokoena/escrow-backend/internal/worker"
)

// EscrowService is the transaction lifecycle engine. It owns the
// transition table checks, per-transaction serialization, the event
// log, and the notification fan-out around every transition.
type EscrowService struct {
	repos   repo.Repos
	atomic  repo.Atomic
	adapter payment.Adapter
	notif   *notifier.Notifier
	wp      *worker.Pool
	log     *slog.Logger
	locks   *keyedLocks
}

func NewEscrowService(repos repo.Repos, atomic repo.Atomic, adapter payment.Adapter, notif *notifier.Notifier, wp *worker.Pool, log *slog.Logger) *EscrowService {
	if log == nil {
		log = slog.Default()
	}
	return &EscrowService{
		repos:   repos,
		atomic:  atomic,
		adapter: adapter,
		notif:   notif,
		wp:      wp,
		log:     log,
		locks:   newKeyedLocks(),
	}
}

// CreateInput carries the boundary-validated fields of a new
// transaction. AmountCents has already been converted from the user's
// decimal input.
type CreateInput struct {
	BuyerID       string
	Title         string
	Description   string
	AmountCents   int64
	Currency      string
	DeliveryTerms string
	DueDate       *time.Time
	SellerEmail   string
}

// CommandPayload carries the per-command extras of Apply.
type CommandPayload struct {
	// fund
	Method       models.PaymentMethod
	ForceOutcome *bool // testing hook passed through to the simulated provider
	// open_dispute
	Reason      string
	Description string
	// resolve_dispute
	Resolution models.DisputeResolution
}

// domainErr reports whether err is an expected command outcome rather
// than a persistence fault. Expected outcomes are never retried and
// pass through runAtomic unchanged.
func domainErr(err error) bool {
	var verrs models.ValidationErrors
	return errors.Is(err, models.ErrForbidden) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrAlreadyHasActiveDispute) ||
		errors.Is(err, models.ErrAlreadyResolved) ||
		errors.Is(err, models.ErrAdapterFailure) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvitationExpired) ||
		errors.Is(err, repo.ErrStatusConflict) ||
		errors.As(err, &verrs)
}

// runAtomic executes fn as one storage transaction, retrying transient
// persistence failures with backoff. Exhausted retries surface as
// ErrTransient; domain errors pass through untouched on the first try.
func (s *EscrowService) runAtomic(ctx context.Context, fn func(repo.Repos) error) error {
	var stopped error
	err := retry.Do(ctx, 3, 25*time.Millisecond, func() error {
		err := s.atomic(ctx, fn)
		if err != nil && domainErr(err) {
			stopped = err
			return nil
		}
		return err
	})
	if stopped != nil {
		return stopped
	}
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	return nil
}

// CreateTransaction opens a new escrow transaction in
// awaiting_seller_acceptance, invites the seller by email, logs the
// created event and notifies the seller if they already have an
// account.
func (s *EscrowService) CreateTransaction(ctx context.Context, in CreateInput) (models.Transaction, error) {
	t := models.Transaction{
		BuyerID:       in.BuyerID,
		SellerEmail:   strings.ToLower(strings.TrimSpace(in.SellerEmail)),
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		AmountCents:   in.AmountCents,
		Currency:      in.Currency,
		Status:        models.StatusAwaitingSellerAcceptance,
		DeliveryTerms: in.DeliveryTerms,
		DueDate:       in.DueDate,
	}
	if err := t.Validate(); err != nil {
		metrics.TransitionsRejected.WithLabelValues("validation").Inc()
		return models.Transaction{}, err
	}

	buyer, err := s.repos.Users.GetByID(ctx, in.BuyerID)
	if err != nil {
		return models.Transaction{}, err
	}

	// link the seller up front when the invited email is registered
	var seller *models.User
	if u, err := s.repos.Users.GetByEmail(ctx, t.SellerEmail); err == nil {
		seller = &u
		t.SellerID = &u.ID
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.Transaction{}, err
	}

	var created models.Transaction
	err = s.runAtomic(ctx, func(r repo.Repos) error {
		var err error
		created, err = r.Transactions.Create(ctx, t)
		if err != nil {
			return err
		}
		_, err = r.Invitations.Create(ctx, models.Invitation{
			TransactionID: created.ID,
			InvitedEmail:  created.SellerEmail,
			Token:         uuid.NewString(),
			Status:        models.InvitePending,
			ExpiresAt:     time.Now().Add(models.InviteTTL),
		})
		if err != nil {
			return err
		}
		_, err = r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: created.ID,
			ActorID:       &buyer.ID,
			EventType:     models.EventCreated,
			Message:       fmt.Sprintf("Transaction created by %s", buyer.DisplayName),
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}

	if seller != nil {
		s.notif.Notify(seller.ID, "invitation", "New Transaction Invitation",
			fmt.Sprintf("You have been invited to %q for %s.", created.Title,
				models.FormatCents(created.AmountCents, created.Currency)))
	}
	metrics.TransitionsTotal.WithLabelValues("create").Inc()
	return created, nil
}

// Apply runs one lifecycle command against a transaction. The whole
// read-authorize-transition-log unit executes under the transaction's
// lock; a command whose From status no longer matches fails with
// ErrInvalidTransition and changes nothing.
func (s *EscrowService) Apply(ctx context.Context, txnID, actorID string, cmd models.Command, p CommandPayload) (models.Transaction, error) {
	unlock := s.locks.Lock(txnID)
	defer unlock()
	return s.applyLocked(ctx, txnID, actorID, cmd, p)
}

func (s *EscrowService) applyLocked(ctx context.Context, txnID, actorID string, cmd models.Command, p CommandPayload) (models.Transaction, error) {
	txn, err := s.repos.Transactions.GetByID(ctx, txnID)
	if err != nil {
		return models.Transaction{}, err
	}

	edge, ok := models.Edge(cmd, txn.Status)
	if !ok {
		if cmd == models.CmdOpenDispute && txn.Status == models.StatusDisputeOpen {
			return models.Transaction{}, models.ErrAlreadyHasActiveDispute
		}
		metrics.TransitionsRejected.WithLabelValues("invalid_transition").Inc()
		return models.Transaction{}, fmt.Errorf("%w: %s from %s", models.ErrInvalidTransition, cmd, txn.Status)
	}

	actor, err := s.repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return models.Transaction{}, err
	}
	if !authorized(edge.Role, &actor, &txn) {
		metrics.TransitionsRejected.WithLabelValues("forbidden").Inc()
		return models.Transaction{}, models.ErrForbidden
	}

	var out models.Transaction
	switch cmd {
	case models.CmdAccept:
		out, err = s.accept(ctx, txn, actor)
	case models.CmdFund:
		out, err = s.fund(ctx, txn, actor, p)
	case models.CmdMarkDelivered:
		out, err = s.markDelivered(ctx, txn, actor)
	case models.CmdConfirmReceipt:
		out, err = s.confirmReceipt(ctx, txn, actor)
	case models.CmdOpenDispute:
		out, _, err = s.openDispute(ctx, txn, actor, p.Reason, p.Description)
	case models.CmdResolveDispute:
		out, _, err = s.resolveActive(ctx, txn, actor, p.Resolution)
	case models.CmdCancel:
		out, err = s.cancel(ctx, txn, actor)
	default:
		err = fmt.Errorf("%w: unknown command %q", models.ErrInvalidTransition, cmd)
	}
	if err != nil {
		if errors.Is(err, repo.ErrStatusConflict) {
			metrics.TransitionsRejected.WithLabelValues("invalid_transition").Inc()
			return models.Transaction{}, fmt.Errorf("%w: lost race on %s", models.ErrInvalidTransition, cmd)
		}
		return models.Transaction{}, err
	}
	metrics.TransitionsTotal.WithLabelValues(string(cmd)).Inc()
	return out, nil
}

// authorized checks the actor against the relationship the edge
// requires. Evaluated once per command, before any write.
func authorized(need models.ActorRole, actor *models.User, txn *models.Transaction) bool {
	isBuyer := actor.ID == txn.BuyerID
	isSeller := (txn.SellerID != nil && *txn.SellerID == actor.ID) ||
		strings.EqualFold(actor.Email, txn.SellerEmail)
	switch need {
	case models.RoleBuyer:
		return isBuyer
	case models.RoleSeller:
		return isSeller
	case models.RoleAnyParty:
		return isBuyer || isSeller
	case models.RoleBuyerOrAdmin:
		return isBuyer || actor.HasRole(models.AppRoleAdmin)
	case models.RoleAdmin:
		return actor.HasRole(models.AppRoleAdmin)
	}
	return false
}

func (s *EscrowService) accept(ctx context.Context, txn models.Transaction, actor models.User) (models.Transaction, error) {
	inv, err := s.repos.Invitations.GetByTransaction(ctx, txn.ID)
	if err != nil {
		return models.Transaction{}, err
	}
	if inv.Expired(time.Now()) {
		if inv.Status != models.InviteExpired {
			inv.Status = models.InviteExpired
			if uerr := s.repos.Invitations.Update(ctx, inv); uerr != nil {
				s.log.Warn("marking invitation expired", "transaction", txn.ID, "err", uerr)
			}
		}
		return models.Transaction{}, models.ErrInvitationExpired
	}

	var updated models.Transaction
	err = s.runAtomic(ctx, func(r repo.Repos) error {
		var err error
		updated, err = r.Transactions.UpdateStatus(ctx, txn.ID,
			models.StatusAwaitingSellerAcceptance, models.StatusAwaitingPayment,
			repo.TxnUpdate{SellerID: &actor.ID})
		if err != nil {
			return err
		}
		inv.Status = models.InviteAccepted
		if err := r.Invitations.Update(ctx, inv); err != nil {
			return err
		}
		if err := r.Users.AddRole(ctx, actor.ID, models.AppRoleSeller); err != nil {
			return err
		}
		_, err = r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: txn.ID,
			ActorID:       &actor.ID,
			EventType:     models.EventSellerAccepted,
			Message:       fmt.Sprintf("%s accepted the transaction", actor.DisplayName),
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}

	s.notif.Notify(txn.BuyerID, "seller_accepted", "Seller Accepted",
		fmt.Sprintf("%s accepted %q. You can now fund the transaction.", actor.DisplayName, txn.Title))
	return updated, nil
}

func (s *EscrowService) markDelivered(ctx context.Context, txn models.Transaction, actor models.User) (models.Transaction, error) {
	var updated models.Transaction
	err := s.runAtomic(ctx, func(r repo.Repos) error {
		var err error
		updated, err = r.Transactions.UpdateStatus(ctx, txn.ID,
			models.StatusFunded, models.StatusInDelivery, repo.TxnUpdate{})
		if err != nil {
			return err
		}
		_, err = r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: txn.ID,
			ActorID:       &actor.ID,
			EventType:     models.EventMarkedDelivered,
			Message:       fmt.Sprintf("%s marked the transaction as delivered", actor.DisplayName),
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}

	s.notif.Notify(txn.BuyerID, "delivery", "Delivery Update",
		fmt.Sprintf("%q has been marked as delivered. Please confirm receipt.", txn.Title))
	return updated, nil
}

func (s *EscrowService) confirmReceipt(ctx context.Context, txn models.Transaction, actor models.User) (models.Transaction, error) {
	now := time.Now()
	var updated models.Transaction
	err := s.runAtomic(ctx, func(r repo.Repos) error {
		var err error
		updated, err = r.Transactions.UpdateStatus(ctx, txn.ID,
			models.StatusInDelivery, models.StatusReleased,
			repo.TxnUpdate{BuyerConfirmedAt: &now, ReleasedAt: &now})
		if err != nil {
			return err
		}
		// two entries, confirmation strictly before release
		if _, err := r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: txn.ID,
			ActorID:       &actor.ID,
			EventType:     models.EventBuyerConfirmed,
			Message:       fmt.Sprintf("%s confirmed receipt", actor.DisplayName),
		}); err != nil {
			return err
		}
		_, err = r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: txn.ID,
			ActorID:       &actor.ID,
			EventType:     models.EventReleased,
			Message:       "Funds released to seller",
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}

	if updated.SellerID != nil {
		s.notif.Notify(*updated.SellerID, "released", "Funds Released",
			fmt.Sprintf("Funds for %q (%s) have been released.", txn.Title,
				models.FormatCents(txn.AmountCents, txn.Currency)))
	}
	return updated, nil
}

func (s *EscrowService) cancel(ctx context.Context, txn models.Transaction, actor models.User) (models.Transaction, error) {
	var updated models.Transaction
	err := s.runAtomic(ctx, func(r repo.Repos) error {
		var err error
		updated, err = r.Transactions.UpdateStatus(ctx, txn.ID,
			txn.Status, models.StatusCancelled, repo.TxnUpdate{})
		if err != nil {
			return err
		}
		_, err = r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: txn.ID,
			ActorID:       &actor.ID,
			EventType:     models.EventCancelled,
			Message:       fmt.Sprintf("Transaction cancelled by %s", actor.DisplayName),
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}

	if txn.SellerID != nil && *txn.SellerID != actor.ID {
		s.notif.Notify(*txn.SellerID, "cancelled", "Transaction Cancelled",
			fmt.Sprintf("%q has been cancelled.", txn.Title))
	}
	if actor.ID != txn.BuyerID {
		s.notif.Notify(txn.BuyerID, "cancelled", "Transaction Cancelled",
			fmt.Sprintf("%q has been cancelled.", txn.Title))
	}
	return updated, nil
}

// ----------------- queries -----------------

// participant rejects readers who are neither a party to the
// transaction nor an admin. Reads are scoped the same way commands are.
func (s *EscrowService) participant(ctx context.Context, txn *models.Transaction, actorID string) error {
	actor, err := s.repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if authorized(models.RoleAnyParty, &actor, txn) || actor.HasRole(models.AppRoleAdmin) {
		return nil
	}
	return models.ErrForbidden
}

// Get returns the transaction to one of its parties or an admin.
func (s *EscrowService) Get(ctx context.Context, id, actorID string) (models.Transaction, error) {
	txn, err := s.repos.Transactions.GetByID(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if err := s.participant(ctx, &txn, actorID); err != nil {
		return models.Transaction{}, err
	}
	return txn, nil
}

func (s *EscrowService) List(ctx context.Context, f repo.TxnFilter, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Transactions.List(ctx, f, limit, offset)
}

func (s *EscrowService) ListEvents(ctx context.Context, txnID, actorID string) ([]models.TransactionEvent, error) {
	if _, err := s.Get(ctx, txnID, actorID); err != nil {
		return nil, err
	}
	return s.repos.Events.ListByTransaction(ctx, txnID)
}

func (s *EscrowService) ListPayments(ctx context.Context, txnID, actorID string) ([]models.Payment, error) {
	if _, err := s.Get(ctx, txnID, actorID); err != nil {
		return nil, err
	}
	return s.repos.Payments.ListByTransaction(ctx, txnID)
}

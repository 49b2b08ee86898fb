package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tmokoena/escrow-backend/internal/models"
)

// ErrStatusConflict is returned by Transactions.UpdateStatus when the
// row's status no longer matches the expected one (a lost race). The
// service layer surfaces it as an invalid transition.
var ErrStatusConflict = errors.New("transaction status conflict")

// TxnFilter narrows List results. Zero values mean "no filter".
type TxnFilter struct {
	ParticipantID string
	Status        models.TransactionStatus
	TitleContains string
}

// TxnUpdate carries the auxiliary column changes a transition may make
// alongside the status itself.
type TxnUpdate struct {
	SellerID         *string
	BuyerConfirmedAt *time.Time
	ReleasedAt       *time.Time
}

type Users interface {
	Create(ctx context.Context, displayName, email, passwordHash string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	AddRole(ctx context.Context, userID string, role models.AppRole) error
	List(ctx context.Context) ([]models.User, error)
}

type Transactions interface {
	Create(ctx context.Context, t models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	List(ctx context.Context, f TxnFilter, limit, offset int) ([]models.Transaction, error)

	// UpdateStatus is a compare-and-swap: the row moves from expected
	// to next (applying upd) or the call fails with ErrStatusConflict
	// and changes nothing.
	UpdateStatus(ctx context.Context, id string, expected, next models.TransactionStatus, upd TxnUpdate) (models.Transaction, error)
}

// Events is the append-only transition log. Append never overwrites;
// ListByTransaction returns entries in creation order.
type Events interface {
	Append(ctx context.Context, ev models.TransactionEvent) (models.TransactionEvent, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]models.TransactionEvent, error)
}

type Payments interface {
	Create(ctx context.Context, p models.Payment) (models.Payment, error)
	// Update settles a pending attempt with its outcome and reference.
	Update(ctx context.Context, p models.Payment) error
	ListByTransaction(ctx context.Context, transactionID string) ([]models.Payment, error)
}

type Disputes interface {
	Create(ctx context.Context, d models.Dispute) (models.Dispute, error)
	GetByID(ctx context.Context, id string) (models.Dispute, error)
	// ActiveByTransaction returns models.ErrNotFound when no open or
	// under-review dispute exists for the transaction.
	ActiveByTransaction(ctx context.Context, transactionID string) (models.Dispute, error)
	Update(ctx context.Context, d models.Dispute) error
	ListUnresolved(ctx context.Context) ([]models.Dispute, error)
}

type Invitations interface {
	Create(ctx context.Context, inv models.Invitation) (models.Invitation, error)
	GetByTransaction(ctx context.Context, transactionID string) (models.Invitation, error)
	Update(ctx context.Context, inv models.Invitation) error
}

type Notifications interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	// MarkRead touches only the recipient's own notification; anyone
	// else's id reports models.ErrNotFound.
	MarkRead(ctx context.Context, recipientID, id string) error
	MarkAllRead(ctx context.Context, recipientID string) error
}

// Repos bundles one implementation of every repository.
type Repos struct {
	Users         Users
	Transactions  Transactions
	Events        Events
	Payments      Payments
	Disputes      Disputes
	Invitations   Invitations
	Notifications Notifications
}

// Atomic runs fn against a Repos bound to a single storage transaction:
// everything fn writes commits or rolls back together. The in-memory
// implementation runs fn directly and relies on the engine's
// per-transaction lock for isolation.
type Atomic func(ctx context.Context, fn func(Repos) error) error

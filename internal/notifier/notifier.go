// Package notifier centralizes notification fan-out. Dispatch is
// fire-and-forget from the engine's point of view: the originating
// transition has already committed before Notify is called, and a
// failed delivery never propagates back.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmokoena/escrow-backend/internal/metrics"
	"github.com/tmokoena/escrow-backend/internal/models"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
	"github.com/tmokoena/escrow-backend/internal/retry"
	"github.com/tmokoena/escrow-backend/internal/worker"
)

type Notifier struct {
	inbox repo.Notifications
	wp    *worker.Pool
	log   *slog.Logger
}

func New(inbox repo.Notifications, wp *worker.Pool, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{inbox: inbox, wp: wp, log: log}
}

// Notify queues a notification for the recipient's inbox. Delivery is
// at-least-once: the write is retried a few times, then logged and
// dropped. Never returns an error and never blocks on storage.
func (n *Notifier) Notify(recipientID, typ, title, body string) {
	if recipientID == "" {
		return
	}
	msg := models.Notification{
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Body:        body,
	}
	n.wp.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := retry.Do(ctx, 3, 50*time.Millisecond, func() error {
			_, err := n.inbox.Create(ctx, msg)
			return err
		})
		if err != nil {
			metrics.NotificationsDropped.Inc()
			n.log.Error("notification delivery failed", "recipient", recipientID, "type", typ, "err", err)
			return
		}
		metrics.NotificationsSent.Inc()
	})
}

// List returns the recipient's inbox, newest first.
func (n *Notifier) List(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return n.inbox.ListByRecipient(ctx, recipientID, limit)
}

// MarkRead flips one of the recipient's own notifications to read.
// Idempotent; someone else's notification reads as not found.
func (n *Notifier) MarkRead(ctx context.Context, recipientID, id string) error {
	return n.inbox.MarkRead(ctx, recipientID, id)
}

// MarkAllRead flips every unread notification for the recipient.
// Idempotent: a second call is a no-op.
func (n *Notifier) MarkAllRead(ctx context.Context, recipientID string) error {
	return n.inbox.MarkAllRead(ctx, recipientID)
}

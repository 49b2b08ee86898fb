package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tmokoena/escrow-backend/internal/metrics"
	"github.com/tmokoena/escrow-backend/internal/models"
	"github.com/tmokoena/escrow-backend/internal/payment"
	repo "github.com/tmokoena/escrow-backend/internal/repository"
)

const settleTimeout = 30 * time.Second

// fund moves the transaction into payment_processing and hands the
// attempt to the adapter on the worker pool. It returns as soon as
// payment_processing and the payment_initiated event are durable; the
// outcome arrives later through settle, serialized under the same
// transaction lock.
func (s *EscrowService) fund(ctx context.Context, txn models.Transaction, actor models.User, p CommandPayload) (models.Transaction, error) {
	if s.adapter == nil {
		return models.Transaction{}, models.ErrAdapterFailure
	}
	method := p.Method
	if method == "" {
		method = models.MethodCard
	}
	if !method.Valid() {
		return models.Transaction{}, models.ValidationErrors{{Field: "method", Msg: "must be card, eft or wallet"}}
	}

	var updated models.Transaction
	var pay models.Payment
	err := s.runAtomic(ctx, func(r repo.Repos) error {
		var err error
		updated, err = r.Transactions.UpdateStatus(ctx, txn.ID,
			models.StatusAwaitingPayment, models.StatusPaymentProcessing, repo.TxnUpdate{})
		if err != nil {
			return err
		}
		// the attempt is on record as pending before the adapter runs
		pay, err = r.Payments.Create(ctx, models.Payment{
			TransactionID: txn.ID,
			Provider:      "simulated",
			Method:        method,
			Status:        models.PaymentPending,
			AmountCents:   txn.AmountCents,
		})
		if err != nil {
			return err
		}
		_, err = r.Events.Append(ctx, models.TransactionEvent{
			TransactionID: txn.ID,
			ActorID:       &actor.ID,
			EventType:     models.EventPaymentInitiated,
			Message:       fmt.Sprintf("Payment initiated via %s", method),
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}

	force := p.ForceOutcome
	s.wp.Submit(func() { s.settle(txn, pay, force) })
	return updated, nil
}

// settle runs off the request path: it waits on the adapter without
// holding the transaction lock, then re-acquires it to apply one of
// the two outcome transitions. The CAS on payment_processing makes a
// duplicate or stale settlement a no-op.
func (s *EscrowService) settle(txn models.Transaction, pay models.Payment, force *bool) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	if force != nil {
		ctx = payment.WithForcedOutcome(ctx, *force)
	}

	outcome, err := s.adapter.Attempt(ctx, txn.ID, txn.AmountCents, pay.Method)
	if err != nil {
		// attempt never reached the provider; treat as a failed outcome
		// so the buyer can retry from awaiting_payment
		s.log.Error("payment attempt errored", "transaction", txn.ID, "err", err)
		outcome = payment.Outcome{Success: false, Reference: ""}
	}

	unlock := s.locks.Lock(txn.ID)
	defer unlock()

	from, to := models.OutcomeTransition(outcome.Success)
	pay.Status = models.PaymentFailed
	if outcome.Success {
		pay.Status = models.PaymentComplete
	}
	pay.Reference = outcome.Reference

	err = s.runAtomic(ctx, func(r repo.Repos) error {
		if _, err := r.Transactions.UpdateStatus(ctx, txn.ID, from, to, repo.TxnUpdate{}); err != nil {
			return err
		}
		if err := r.Payments.Update(ctx, pay); err != nil {
			return err
		}
		ev := models.TransactionEvent{
			TransactionID: txn.ID,
			EventType:     models.EventPaymentFailed,
			Message:       fmt.Sprintf("Payment attempt failed (Ref: %s)", outcome.Reference),
			Metadata:      map[string]any{"method": string(pay.Method), "reference": outcome.Reference},
		}
		if outcome.Success {
			ev.EventType = models.EventPaymentSuccess
			ev.Message = fmt.Sprintf("Payment of %s completed (Ref: %s)",
				models.FormatCents(txn.AmountCents, txn.Currency), outcome.Reference)
		}
		_, err := r.Events.Append(ctx, ev)
		return err
	})
	if err != nil {
		s.log.Error("payment settlement not applied", "transaction", txn.ID, "success", outcome.Success, "err", err)
		return
	}

	if outcome.Success {
		metrics.PaymentOutcomes.WithLabelValues("success").Inc()
		if txn.SellerID != nil {
			s.notif.Notify(*txn.SellerID, "payment_success", "Transaction Funded",
				fmt.Sprintf("%q has been funded (%s).", txn.Title,
					models.FormatCents(txn.AmountCents, txn.Currency)))
		}
	} else {
		metrics.PaymentOutcomes.WithLabelValues("failure").Inc()
	}
}

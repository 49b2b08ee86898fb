// Package payment defines the funding boundary of the engine. The
// engine only ever sees the two-outcome contract; how an outcome is
// produced stays behind the Adapter interface.
package payment

import (
	"context"

	"github.com/tmokoena/escrow-backend/internal/models"
)

// Outcome is the result of one funding attempt. Reference is the
// provider's identifier for the attempt, present for both outcomes.
type Outcome struct {
	Success   bool
	Reference string
}

// Adapter issues a funding attempt against a provider. A returned
// error means the attempt could not be issued at all and is distinct
// from Outcome.Success == false. Attempt completes exactly once per
// call and may be slow; callers must not hold a transaction lock
// across it.
type Adapter interface {
	Attempt(ctx context.Context, transactionID string, amountCents int64, method models.PaymentMethod) (Outcome, error)
}

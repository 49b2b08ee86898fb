package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/tmokoena/escrow-backend/internal/models"
)

// forceKey lets tests and the checkout flow pin an outcome instead of
// rolling the dice.
type forceKey struct{}

type forced struct{ success bool }

// WithForcedOutcome returns a context that makes Simulated report the
// given outcome.
func WithForcedOutcome(ctx context.Context, success bool) context.Context {
	return context.WithValue(ctx, forceKey{}, forced{success: success})
}

// Simulated is the stand-in provider: it sleeps a configurable latency
// and succeeds with the configured probability. No real money moves.
type Simulated struct {
	Latency     time.Duration
	SuccessRate float64 // 0..1
}

func NewSimulated(latency time.Duration) *Simulated {
	return &Simulated{Latency: latency, SuccessRate: 0.7}
}

func (s *Simulated) Attempt(ctx context.Context, transactionID string, amountCents int64, method models.PaymentMethod) (Outcome, error) {
	if amountCents <= 0 {
		return Outcome{}, fmt.Errorf("simulated provider: bad amount %d", amountCents)
	}
	if s.Latency > 0 {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-time.After(s.Latency):
		}
	}
	ref := newReference()
	if f, ok := ctx.Value(forceKey{}).(forced); ok {
		return Outcome{Success: f.success, Reference: ref}, nil
	}
	return Outcome{Success: rand.Float64() < s.SuccessRate, Reference: ref}, nil
}

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newReference() string {
	var b strings.Builder
	b.WriteString("SIM-")
	b.WriteString(fmt.Sprintf("%d-", time.Now().UnixMilli()))
	for i := 0; i < 6; i++ {
		b.WriteByte(refAlphabet[rand.IntN(len(refAlphabet))])
	}
	return b.String()
}

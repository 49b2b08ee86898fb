package models

import "time"

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodEFT    PaymentMethod = "eft"
	MethodWallet PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCard || m == MethodEFT || m == MethodWallet
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentComplete PaymentStatus = "complete"
	PaymentFailed   PaymentStatus = "failed"
)

// Payment records one funding attempt. Every attempt is kept for
// audit; only the latest complete one backs the funded status.
type Payment struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transaction_id"`
	Provider      string        `json:"provider"`
	Method        PaymentMethod `json:"method"`
	Reference     string        `json:"reference"`
	Status        PaymentStatus `json:"status"`
	AmountCents   int64         `json:"amount_cents"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

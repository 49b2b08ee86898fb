package models

import "time"

type EventType string

const (
	EventCreated          EventType = "created"
	EventSellerAccepted   EventType = "seller_accepted"
	EventPaymentInitiated EventType = "payment_initiated"
	EventPaymentSuccess   EventType = "payment_success"
	EventPaymentFailed    EventType = "payment_failed"
	EventMarkedDelivered  EventType = "marked_delivered"
	EventBuyerConfirmed   EventType = "buyer_confirmed"
	EventReleased         EventType = "released"
	EventDisputeOpened    EventType = "dispute_opened"
	EventDisputeResolved  EventType = "dispute_resolved"
	EventCancelled        EventType = "cancelled"
)

// TransactionEvent is one immutable entry of a transaction's audit
// trail. ActorID is nil for system-generated entries (payment
// outcomes). Events are never updated or deleted.
type TransactionEvent struct {
	ID            string         `json:"id"`
	TransactionID string         `json:"transaction_id"`
	ActorID       *string        `json:"actor_id"`
	EventType     EventType      `json:"event_type"`
	Message       string         `json:"message"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

package models

import "time"

type TransactionStatus string

const (
	StatusDraft                    TransactionStatus = "draft"
	StatusAwaitingSellerAcceptance TransactionStatus = "awaiting_seller_acceptance"
	StatusAwaitingPayment          TransactionStatus = "awaiting_payment"
	StatusPaymentProcessing        TransactionStatus = "payment_processing"
	StatusFunded                   TransactionStatus = "funded"
	StatusInDelivery               TransactionStatus = "in_delivery"
	StatusBuyerConfirmed           TransactionStatus = "buyer_confirmed"
	StatusReleased                 TransactionStatus = "released"
	StatusDisputeOpen              TransactionStatus = "dispute_open"
	StatusDisputeResolvedRefund    TransactionStatus = "dispute_resolved_refund"
	StatusDisputeResolvedRelease   TransactionStatus = "dispute_resolved_release"
	StatusCancelled                TransactionStatus = "cancelled"
)

type Command string

const (
	CmdAccept         Command = "accept"
	CmdFund           Command = "fund"
	CmdMarkDelivered  Command = "mark_delivered"
	CmdConfirmReceipt Command = "confirm_receipt"
	CmdOpenDispute    Command = "open_dispute"
	CmdResolveDispute Command = "resolve_dispute"
	CmdCancel         Command = "cancel"
)

// ActorRole is the relationship a command requires between the caller
// and the transaction.
type ActorRole string

const (
	RoleBuyer        ActorRole = "buyer"
	RoleSeller       ActorRole = "seller"
	RoleAnyParty     ActorRole = "any_party" // buyer or seller
	RoleBuyerOrAdmin ActorRole = "buyer_or_admin"
	RoleAdmin        ActorRole = "admin"
)

type Transaction struct {
	ID               string            `json:"id"`
	BuyerID          string            `json:"buyer_id"`
	SellerID         *string           `json:"seller_id,omitempty"`
	SellerEmail      string            `json:"seller_email_invited"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	AmountCents      int64             `json:"amount_cents"`
	Currency         string            `json:"currency"`
	Status           TransactionStatus `json:"status"`
	DeliveryTerms    string            `json:"delivery_terms"`
	DueDate          *time.Time        `json:"due_date,omitempty"`
	BuyerConfirmedAt *time.Time        `json:"buyer_confirmed_at,omitempty"`
	ReleasedAt       *time.Time        `json:"released_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Transition is one edge of the lifecycle graph.
type Transition struct {
	From TransactionStatus
	To   TransactionStatus
	Role ActorRole
}

// transitions is the complete edge set. Anything not listed here is an
// invalid transition. Payment outcomes out of payment_processing are
// system transitions, not commands (see OutcomeTransition).
var transitions = map[Command][]Transition{
	CmdAccept: {
		{From: StatusAwaitingSellerAcceptance, To: StatusAwaitingPayment, Role: RoleSeller},
	},
	CmdFund: {
		{From: StatusAwaitingPayment, To: StatusPaymentProcessing, Role: RoleBuyer},
	},
	CmdMarkDelivered: {
		{From: StatusFunded, To: StatusInDelivery, Role: RoleSeller},
	},
	CmdConfirmReceipt: {
		{From: StatusInDelivery, To: StatusReleased, Role: RoleBuyer},
	},
	CmdOpenDispute: {
		{From: StatusFunded, To: StatusDisputeOpen, Role: RoleAnyParty},
		{From: StatusInDelivery, To: StatusDisputeOpen, Role: RoleAnyParty},
	},
	CmdResolveDispute: {
		// To here is the refund edge; ResolveTarget picks the actual
		// terminal status from the resolution payload.
		{From: StatusDisputeOpen, To: StatusDisputeResolvedRefund, Role: RoleAdmin},
	},
	CmdCancel: {
		{From: StatusAwaitingSellerAcceptance, To: StatusCancelled, Role: RoleBuyerOrAdmin},
		{From: StatusAwaitingPayment, To: StatusCancelled, Role: RoleBuyerOrAdmin},
	},
}

// Edge returns the transition for cmd out of from, if one exists.
func Edge(cmd Command, from TransactionStatus) (Transition, bool) {
	for _, tr := range transitions[cmd] {
		if tr.From == from {
			return tr, true
		}
	}
	return Transition{}, false
}

// OutcomeTransition is the system edge applied when the payment adapter
// reports back: success moves to funded, failure returns to
// awaiting_payment (the single back-edge of the graph).
func OutcomeTransition(success bool) (from, to TransactionStatus) {
	if success {
		return StatusPaymentProcessing, StatusFunded
	}
	return StatusPaymentProcessing, StatusAwaitingPayment
}

// ResolveTarget maps a dispute resolution to the terminal transaction
// status it implies.
func ResolveTarget(res DisputeResolution) TransactionStatus {
	if res == ResolutionRelease {
		return StatusDisputeResolvedRelease
	}
	return StatusDisputeResolvedRefund
}

// Terminal reports whether s has no outgoing edges.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusReleased, StatusDisputeResolvedRefund, StatusDisputeResolvedRelease, StatusCancelled:
		return true
	}
	return false
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusAwaitingSellerAcceptance, StatusAwaitingPayment,
		StatusPaymentProcessing, StatusFunded, StatusInDelivery,
		StatusBuyerConfirmed, StatusReleased, StatusDisputeOpen,
		StatusDisputeResolvedRefund, StatusDisputeResolvedRelease, StatusCancelled:
		return true
	}
	return false
}

// Disputable reports whether a dispute may be opened while the
// transaction is in s.
func (s TransactionStatus) Disputable() bool {
	return s == StatusFunded || s == StatusInDelivery
}

func (t *Transaction) Validate() error {
	var errs ValidationErrors
	if len(t.Title) < 3 {
		errs = append(errs, FieldError{Field: "title", Msg: "must be at least 3 characters"})
	}
	if t.BuyerID == "" {
		errs = append(errs, FieldError{Field: "buyer_id", Msg: "required"})
	}
	if t.AmountCents <= 0 {
		errs = append(errs, FieldError{Field: "amount_cents", Msg: "must be > 0"})
	}
	if t.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Msg: "required"})
	}
	if t.DeliveryTerms == "" {
		errs = append(errs, FieldError{Field: "delivery_terms", Msg: "required"})
	}
	if t.SellerID == nil && t.SellerEmail == "" {
		errs = append(errs, FieldError{Field: "seller_email", Msg: "required when no seller is linked"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

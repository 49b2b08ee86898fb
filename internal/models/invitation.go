package models

import "time"

type InvitationStatus string

const (
	InvitePending  InvitationStatus = "pending"
	InviteAccepted InvitationStatus = "accepted"
	InviteExpired  InvitationStatus = "expired"
)

// InviteTTL is how long a seller has to accept.
const InviteTTL = 7 * 24 * time.Hour

// Invitation binds an email address to the pending seller role of one
// transaction. Expiry is checked on accept, not swept.
type Invitation struct {
	ID            string           `json:"id"`
	TransactionID string           `json:"transaction_id"`
	InvitedEmail  string           `json:"invited_email"`
	Token         string           `json:"token"`
	Status        InvitationStatus `json:"status"`
	ExpiresAt     time.Time        `json:"expires_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (i *Invitation) Expired(now time.Time) bool {
	return i.Status == InviteExpired || now.After(i.ExpiresAt)
}

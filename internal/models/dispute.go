package models

import "time"

type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "open"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeResolved    DisputeStatus = "resolved"
)

type DisputeResolution string

const (
	ResolutionRefund  DisputeResolution = "refund"
	ResolutionRelease DisputeResolution = "release"
)

func (r DisputeResolution) Valid() bool {
	return r == ResolutionRefund || r == ResolutionRelease
}

type Dispute struct {
	ID            string             `json:"id"`
	TransactionID string             `json:"transaction_id"`
	OpenedByID    string             `json:"opened_by_id"`
	Reason        string             `json:"reason"`
	Description   string             `json:"description"`
	Status        DisputeStatus      `json:"status"`
	Resolution    *DisputeResolution `json:"resolution,omitempty"`
	ResolvedByID  *string            `json:"resolved_by_id,omitempty"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Active reports whether the dispute still blocks its transaction.
func (d *Dispute) Active() bool {
	return d.Status == DisputeOpen || d.Status == DisputeUnderReview
}

// StartReview moves an open dispute to under_review. Optional step; an
// admin may resolve straight from open.
func (d *Dispute) StartReview() error {
	if d.Status == DisputeResolved {
		return ErrAlreadyResolved
	}
	d.Status = DisputeUnderReview
	d.UpdatedAt = time.Now()
	return nil
}

// Resolve records the terminal resolution exactly once. A resolved
// dispute rejects any further mutation.
func (d *Dispute) Resolve(adminID string, res DisputeResolution, at time.Time) error {
	if d.Status == DisputeResolved {
		return ErrAlreadyResolved
	}
	if !res.Valid() {
		return ValidationErrors{{Field: "resolution", Msg: "must be refund or release"}}
	}
	d.Status = DisputeResolved
	d.Resolution = &res
	d.ResolvedByID = &adminID
	d.ResolvedAt = &at
	d.UpdatedAt = at
	return nil
}

package models

import "time"

// PaymentRequestStatus is the two-step confirmation/approval workflow state.
// pending -> confirmed -> approved, or pending/confirmed -> rejected.
// Approved and rejected are terminal.
type PaymentRequestStatus string

const (
	RequestPending   PaymentRequestStatus = "PENDING"
	RequestConfirmed PaymentRequestStatus = "CONFIRMED"
	RequestApproved  PaymentRequestStatus = "APPROVED"
	RequestRejected  PaymentRequestStatus = "REJECTED"
)

// Terminal reports whether no further transition is permitted.
func (s PaymentRequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// PaymentRequest is a pre-payment workflow entity distinct from Payment.
// Approval materializes a Payment row already marked paid.
type PaymentRequest struct {
	ID             string               `db:"id" json:"id"`
	UserID         string               `db:"user_id" json:"user_id"`
	Amount         float64              `db:"amount" json:"amount"`
	Reason         string               `db:"reason" json:"reason"`
	DueDate        time.Time            `db:"due_date" json:"due_date"`
	Note           *string              `db:"note" json:"note,omitempty"`
	Status         PaymentRequestStatus `db:"status" json:"status"`
	StudentNote    *string              `db:"student_note" json:"student_note,omitempty"`
	AdminNote      *string              `db:"admin_note" json:"admin_note,omitempty"`
	ConfirmedAt    *time.Time           `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ApprovedAt     *time.Time           `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt     *time.Time           `db:"rejected_at" json:"rejected_at,omitempty"`
	NotificationID *string              `db:"notification_id" json:"notification_id,omitempty"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`

	// UserName is attached best-effort on admin reads.
	UserName string `db:"-" json:"user_name,omitempty"`
}

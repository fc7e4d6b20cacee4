package models

import "time"

// PaymentStatus is the closed payment lifecycle. Transitions run one way:
// pending to overdue, or pending/overdue to paid.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentOverdue PaymentStatus = "OVERDUE"
)

// Valid reports whether the status is a known value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue:
		return true
	}
	return false
}

// PaymentType distinguishes the bookkeeping categories.
type PaymentType string

const (
	PaymentMonthly             PaymentType = "MONTHLY"
	PaymentAnnual              PaymentType = "ANNUAL"
	PaymentTeacherCompensation PaymentType = "TEACHER_COMPENSATION"
)

// Valid reports whether the type is a known value.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentMonthly, PaymentAnnual, PaymentTeacherCompensation:
		return true
	}
	return false
}

// Payment is a bookkeeping entry owned by a user. Period carries the YYYY-MM
// tag for generated monthly payments; (user_id, type, period) is unique.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	UserID        string        `db:"user_id" json:"user_id"`
	Type          PaymentType   `db:"type" json:"type"`
	Amount        float64       `db:"amount" json:"amount"`
	Description   string        `db:"description" json:"description"`
	Period        *string       `db:"period" json:"period,omitempty"`
	DueDate       time.Time     `db:"due_date" json:"due_date"`
	Status        PaymentStatus `db:"status" json:"status"`
	ToleranceDays int           `db:"tolerance_days" json:"tolerance_days"`
	PaidAt        *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	ValidFrom     *time.Time    `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil    *time.Time    `db:"valid_until" json:"valid_until,omitempty"`
	Method        *string       `db:"method" json:"method,omitempty"`
	OperatorID    *string       `db:"operator_id" json:"operator_id,omitempty"`
	Visible       bool          `db:"visible" json:"visible"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`

	// UserName is attached best-effort on admin reads.
	UserName string `db:"-" json:"user_name,omitempty"`
}

// PaymentFilter captures list filters for payments.
type PaymentFilter struct {
	UserID      string
	Type        *PaymentType
	Status      *PaymentStatus
	VisibleOnly bool
	From        *time.Time
	To          *time.Time
}

// CashReceipt summarises a cash payment registered at the front desk.
type CashReceipt struct {
	Number    string    `json:"number"`
	PaymentID string    `json:"payment_id"`
	Student   string    `json:"student"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason"`
	Operator  string    `json:"operator"`
	PaidAt    time.Time `json:"paid_at"`
}

package models

import (
	"time"

	"github.com/lib/pq"
)

// NotificationType tags the notification category.
type NotificationType string

const (
	NotificationGeneral        NotificationType = "GENERAL"
	NotificationPayment        NotificationType = "PAYMENT"
	NotificationLesson         NotificationType = "LESSON"
	NotificationPaymentRequest NotificationType = "PAYMENT_REQUEST"
	NotificationEvent          NotificationType = "EVENT"
)

// Valid reports whether the type is a known value.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationGeneral, NotificationPayment, NotificationLesson, NotificationPaymentRequest, NotificationEvent:
		return true
	}
	return false
}

// RecipientType selects the audience of a notification.
type RecipientType string

const (
	RecipientsAll      RecipientType = "ALL"
	RecipientsSpecific RecipientType = "SPECIFIC"
)

// Notification is a persisted message polled by its recipients. An empty
// recipient id set addresses every active user.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	Title         string           `db:"title" json:"title"`
	Message       string           `db:"message" json:"message"`
	Type          NotificationType `db:"type" json:"type"`
	RecipientType RecipientType    `db:"recipient_type" json:"recipient_type"`
	RecipientIDs  pq.StringArray   `db:"recipient_ids" json:"recipient_ids"`
	PaymentFilter *PaymentStatus   `db:"payment_filter" json:"payment_filter,omitempty"`
	Active        bool             `db:"active" json:"active"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

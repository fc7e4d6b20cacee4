package models

import "time"

// SecretaryPermissions are per-secretary capability flags managed by admins.
type SecretaryPermissions struct {
	UserID            string    `db:"user_id" json:"user_id"`
	ViewPayments      bool      `db:"view_payments" json:"view_payments"`
	EditPayments      bool      `db:"edit_payments" json:"edit_payments"`
	ViewRecords       bool      `db:"view_records" json:"view_records"`
	ManageUsers       bool      `db:"manage_users" json:"manage_users"`
	ViewCalendar      bool      `db:"view_calendar" json:"view_calendar"`
	EditCalendar      bool      `db:"edit_calendar" json:"edit_calendar"`
	SendNotifications bool      `db:"send_notifications" json:"send_notifications"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultSecretaryPermissions returns the flags applied when none are stored.
func DefaultSecretaryPermissions(userID string) SecretaryPermissions {
	return SecretaryPermissions{UserID: userID, ViewCalendar: true}
}

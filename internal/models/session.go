package models

import "time"

// Session is a persisted opaque session token. Expiry is checked on every
// lookup; expired rows are treated as absent rather than purged.
type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"-"`
	Device    string    `db:"device" json:"device"`
	IP        string    `db:"ip" json:"ip"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// AdminAccess holds the PIN credential for the admin two-step login flow.
type AdminAccess struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	PinHash    string     `db:"pin_hash" json:"-"`
	PinActive  bool       `db:"pin_active" json:"pin_active"`
	GoogleID   *string    `db:"google_id" json:"google_id,omitempty"`
	LastAccess *time.Time `db:"last_access" json:"last_access,omitempty"`
}

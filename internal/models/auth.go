package models

import "time"

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued session token and user info.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// AdminPinRequest is step one of the admin login flow.
type AdminPinRequest struct {
	Email string `json:"email" validate:"required,email"`
	Pin   string `json:"pin" validate:"required"`
}

// AdminPinResponse carries the short-lived token gating the Google step.
type AdminPinResponse struct {
	TempToken string `json:"temp_token"`
	UserID    string `json:"user_id"`
}

// AdminGoogleRequest is step two of the admin login flow.
type AdminGoogleRequest struct {
	Email     string `json:"email" validate:"required,email"`
	TempToken string `json:"temp_token" validate:"required"`
	IDToken   string `json:"id_token" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ChangePasswordRequest updates the caller's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID         string   `json:"id"`
	Role       UserRole `json:"role"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Email      string   `json:"email"`
	Active     bool     `json:"active"`
	FirstLogin bool     `json:"first_login"`
}

// Info projects a User into its response shape.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:         u.ID,
		Role:       u.Role,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Active:     u.Active,
		FirstLogin: u.FirstLogin,
	}
}

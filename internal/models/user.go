package models

import "time"

// UserRole is the closed set of roles driving every authorization decision.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleTeacher   UserRole = "TEACHER"
	RoleStudent   UserRole = "STUDENT"
	RoleSecretary UserRole = "SECRETARY"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleSecretary:
		return true
	}
	return false
}

// User represents an academy member stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Role         UserRole   `db:"role" json:"role"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	BirthDate    *string    `db:"birth_date" json:"birth_date,omitempty"`
	Active       bool       `db:"active" json:"active"`
	FirstLogin   bool       `db:"first_login" json:"first_login"`
	TeacherID    *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	Instrument   *string    `db:"instrument" json:"instrument,omitempty"`
	AdminNotes   *string    `db:"admin_notes" json:"admin_notes,omitempty"`
	LastAccess   *time.Time `db:"last_access" json:"last_access,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

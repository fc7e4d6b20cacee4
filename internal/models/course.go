package models

import "time"

// Course groups lessons under an instrument and an owning teacher.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Instrument  string    `db:"instrument" json:"instrument"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// TeacherName is attached best-effort on reads and never persisted.
	TeacherName string `db:"-" json:"teacher_name,omitempty"`
}

// CourseFilter captures list filters for courses.
type CourseFilter struct {
	TeacherID  string
	Instrument string
	Active     *bool
}

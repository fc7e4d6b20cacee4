package models

import "time"

// Assignment is homework handed to a student by a teacher.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	Completed   bool      `db:"completed" json:"completed"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AssignmentFilter captures list filters for assignments.
type AssignmentFilter struct {
	TeacherID string
	StudentID string
	Completed *bool
}

package models

import "time"

// Lesson is a scheduled occurrence of a course.
type Lesson struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	TeacherID       string    `db:"teacher_id" json:"teacher_id"`
	StartsAt        time.Time `db:"starts_at" json:"starts_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Note            *string   `db:"note" json:"note,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// LessonFilter captures list filters for lessons.
type LessonFilter struct {
	CourseID  string
	TeacherID string
	From      *time.Time
	To        *time.Time
}

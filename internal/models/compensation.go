package models

import "time"

// CompensationRate is the per-teacher (optionally per-course) rate per
// payable lesson occurrence.
type CompensationRate struct {
	ID            string    `db:"id" json:"id"`
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	CourseID      *string   `db:"course_id" json:"course_id,omitempty"`
	RatePerLesson float64   `db:"rate_per_lesson" json:"rate_per_lesson"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CompensationBreakdown counts attendance records per category for a period.
type CompensationBreakdown struct {
	Present             int `json:"present"`
	AbsentUnjustified   int `json:"absent_unjustified"`
	AbsentJustified     int `json:"absent_justified"`
	JustifiedWithMakeup int `json:"justified_with_makeup"`
	Makeup              int `json:"makeup"`
}

// CompensationStatement is the result of a compensation computation:
// totalAmount is a pure function of the retrieved records.
type CompensationStatement struct {
	TeacherID       string                `json:"teacher_id"`
	PeriodStart     time.Time             `json:"period_start"`
	PeriodEnd       time.Time             `json:"period_end"`
	RatePerLesson   float64               `json:"rate_per_lesson"`
	Breakdown       CompensationBreakdown `json:"breakdown"`
	PaidLessonCount int                   `json:"paid_lesson_count"`
	TotalAmount     float64               `json:"total_amount"`
}

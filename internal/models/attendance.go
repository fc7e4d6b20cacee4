package models

import "time"

// AttendanceStatus classifies a lesson occurrence for a student.
type AttendanceStatus string

const (
	AttendancePresent           AttendanceStatus = "PRESENT"
	AttendanceAbsentJustified   AttendanceStatus = "ABSENT_JUSTIFIED"
	AttendanceAbsentUnjustified AttendanceStatus = "ABSENT_UNJUSTIFIED"
	AttendanceMakeup            AttendanceStatus = "MAKEUP"
)

// Valid reports whether the status is a known value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsentJustified, AttendanceAbsentUnjustified, AttendanceMakeup:
		return true
	}
	return false
}

// Attendance is one record per (student, lesson-or-date) pair. Once saved,
// only an admin may mutate it; the originating teacher cannot revise it.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	CourseID   *string          `db:"course_id" json:"course_id,omitempty"`
	LessonID   *string          `db:"lesson_id" json:"lesson_id,omitempty"`
	StudentID  string           `db:"student_id" json:"student_id"`
	TeacherID  string           `db:"teacher_id" json:"teacher_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	MakeupDate *time.Time       `db:"makeup_date" json:"makeup_date,omitempty"`
	Note       *string          `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// Payable reports whether the record counts toward teacher compensation.
// A justified absence earns nothing unless a makeup date was recorded, and
// that credit is granted exactly once: the MAKEUP occurrence itself never
// counts, since its justified row already did.
func (a Attendance) Payable() bool {
	switch a.Status {
	case AttendancePresent, AttendanceAbsentUnjustified:
		return true
	case AttendanceAbsentJustified:
		return a.MakeupDate != nil
	}
	return false
}

// AttendanceFilter captures list filters for attendance records.
type AttendanceFilter struct {
	StudentID string
	TeacherID string
	CourseID  string
	From      *time.Time
	To        *time.Time
}

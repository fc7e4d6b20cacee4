package models

import "time"

// LessonSlotStatus is the tri-state lifecycle of a bookable calendar unit.
type LessonSlotStatus string

const (
	SlotAvailable LessonSlotStatus = "AVAILABLE"
	SlotBooked    LessonSlotStatus = "BOOKED"
	SlotCancelled LessonSlotStatus = "CANCELLED"
)

// Valid reports whether the status is a known value.
func (s LessonSlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotCancelled:
		return true
	}
	return false
}

// LessonSlot is a bookable calendar unit owned by a teacher. A teacher may
// not have two non-cancelled slots whose time ranges overlap.
type LessonSlot struct {
	ID              string           `db:"id" json:"id"`
	TeacherID       string           `db:"teacher_id" json:"teacher_id"`
	Instrument      string           `db:"instrument" json:"instrument"`
	StartsAt        time.Time        `db:"starts_at" json:"starts_at"`
	DurationMinutes int              `db:"duration_minutes" json:"duration_minutes"`
	Status          LessonSlotStatus `db:"status" json:"status"`
	StudentID       *string          `db:"student_id" json:"student_id,omitempty"`
	Note            *string          `db:"note" json:"note,omitempty"`
	BookedAt        *time.Time       `db:"booked_at" json:"booked_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`

	// Display names attached best-effort on reads.
	TeacherName string `db:"-" json:"teacher_name,omitempty"`
	StudentName string `db:"-" json:"student_name,omitempty"`
}

// LessonSlotFilter captures list filters for lesson slots.
type LessonSlotFilter struct {
	TeacherID  string
	Instrument string
	Status     *LessonSlotStatus
	From       *time.Time
	To         *time.Time
}

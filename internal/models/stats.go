package models

import "time"

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	ActiveStudents      int       `json:"active_students"`
	ActiveTeachers      int       `json:"active_teachers"`
	UnpaidPayments      int       `json:"unpaid_payments"`
	ActiveNotifications int       `json:"active_notifications"`
	AttendanceToday     int       `json:"attendance_today"`
	GeneratedAt         time.Time `json:"generated_at"`
}

package models

import "time"

// Settings holds the runtime-editable payment tuning. The table holds at
// most one row; until an admin saves it, configured defaults apply.
type Settings struct {
	PaymentDueDay      int       `db:"payment_due_day" json:"payment_due_day"`
	ToleranceDays      int       `db:"tolerance_days" json:"tolerance_days"`
	MonthlyFee         float64   `db:"monthly_fee" json:"monthly_fee"`
	ReminderWindowDays int       `db:"reminder_window_days" json:"reminder_window_days"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

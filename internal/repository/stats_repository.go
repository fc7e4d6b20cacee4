package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/accademia-musici/academy-api/internal/models"
)

// StatsRepository aggregates the counters behind the admin dashboard.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new instance of StatsRepository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// AdminStats computes the dashboard counters in one round trip per counter.
func (r *StatsRepository) AdminStats(ctx context.Context, now time.Time) (*models.AdminStats, error) {
	stats := &models.AdminStats{GeneratedAt: now}

	counters := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&stats.ActiveStudents, `SELECT COUNT(*) FROM users WHERE role = $1 AND active = TRUE`, []interface{}{models.RoleStudent}},
		{&stats.ActiveTeachers, `SELECT COUNT(*) FROM users WHERE role = $1 AND active = TRUE`, []interface{}{models.RoleTeacher}},
		{&stats.UnpaidPayments, `SELECT COUNT(*) FROM payments WHERE status IN ($1, $2)`, []interface{}{models.PaymentPending, models.PaymentOverdue}},
		{&stats.ActiveNotifications, `SELECT COUNT(*) FROM notifications WHERE active = TRUE`, []interface{}{}},
		{&stats.AttendanceToday, `SELECT COUNT(*) FROM attendance WHERE date::date = $1::date`, []interface{}{now}},
	}
	for _, c := range counters {
		if err := r.db.GetContext(ctx, c.dest, c.query, c.args...); err != nil {
			return nil, fmt.Errorf("compute admin stats: %w", err)
		}
	}
	return stats, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/accademia-musici/academy-api/internal/models"
)

const paymentColumns = `id, user_id, type, amount, description, period, due_date, status, tolerance_days, paid_at, valid_from, valid_until, method, operator_id, visible, created_at, updated_at`

// PaymentRepository provides database access for payment entries.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new instance of PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, user_id, type, amount, description, period, due_date, status, tolerance_days, paid_at, valid_from, valid_until, method, operator_id, visible, created_at, updated_at) VALUES (:id, :user_id, :type, :amount, :description, :period, :due_date, :status, :tolerance_days, :paid_at, :valid_from, :valid_until, :method, :operator_id, :visible, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID returns a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by id: %w", err)
	}
	return &payment, nil
}

// List returns payments matching the filter ordered by due date.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.VisibleOnly {
		conditions = append(conditions, "visible = TRUE")
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("due_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("due_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY due_date DESC"

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// Update rewrites the mutable fields of a payment.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET amount = :amount, description = :description, due_date = :due_date, status = :status, tolerance_days = :tolerance_days, paid_at = :paid_at, valid_from = :valid_from, valid_until = :valid_until, method = :method, operator_id = :operator_id, visible = :visible, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// Delete removes a payment.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM payments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdvanceOverdue flips every pending payment whose grace window has elapsed
// to OVERDUE in one statement. Running it twice is harmless: the status
// predicate makes the sweep idempotent. Returns the number of rows flipped.
func (r *PaymentRepository) AdvanceOverdue(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE payments SET status = $1, updated_at = $2 WHERE status = $3 AND due_date + make_interval(days => tolerance_days) < $2`
	result, err := r.db.ExecContext(ctx, query, models.PaymentOverdue, now, models.PaymentPending)
	if err != nil {
		return 0, fmt.Errorf("advance overdue payments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("advance overdue payments: %w", err)
	}
	return affected, nil
}

// InsertMonthly inserts a generated monthly payment, relying on the
// (user_id, type, period) unique index so a rerun for the same month is a
// no-op. Returns true when a row was actually inserted.
func (r *PaymentRepository) InsertMonthly(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, user_id, type, amount, description, period, due_date, status, tolerance_days, paid_at, valid_from, valid_until, method, operator_id, visible, created_at, updated_at) VALUES (:id, :user_id, :type, :amount, :description, :period, :due_date, :status, :tolerance_days, :paid_at, :valid_from, :valid_until, :method, :operator_id, :visible, :created_at, :updated_at) ON CONFLICT (user_id, type, period) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, payment)
	if err != nil {
		return false, fmt.Errorf("insert monthly payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert monthly payment: %w", err)
	}
	return affected > 0, nil
}

// ExpiringAnnual returns paid annual payments whose validity ends inside
// [now, now+window].
func (r *PaymentRepository) ExpiringAnnual(ctx context.Context, now time.Time, window time.Duration) ([]models.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE type = $1 AND status = $2 AND valid_until IS NOT NULL AND valid_until >= $3 AND valid_until <= $4 ORDER BY valid_until ASC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, models.PaymentAnnual, models.PaymentPaid, now, now.Add(window)); err != nil {
		return nil, fmt.Errorf("list expiring annual payments: %w", err)
	}
	return payments, nil
}

// DistinctUserIDsByStatus returns the distinct owners of payments currently
// in the given status. Used to resolve payment-filtered notification
// audiences.
func (r *PaymentRepository) DistinctUserIDsByStatus(ctx context.Context, status models.PaymentStatus) ([]string, error) {
	const query = `SELECT DISTINCT user_id FROM payments WHERE status = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, status); err != nil {
		return nil, fmt.Errorf("list payment user ids by status: %w", err)
	}
	return ids, nil
}

// CountByStatus returns the number of payments in the given status.
func (r *PaymentRepository) CountByStatus(ctx context.Context, status models.PaymentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, status); err != nil {
		return 0, fmt.Errorf("count payments by status: %w", err)
	}
	return count, nil
}

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

const paymentRequestColumns = `id, user_id, amount, reason, due_date, note, status, student_note, admin_note, confirmed_at, approved_at, rejected_at, notification_id, created_at`

// PaymentRequestRepository provides database access for the pre-payment
// confirmation workflow.
type PaymentRequestRepository struct {
	db *sqlx.DB
}

// NewPaymentRequestRepository creates a new instance of PaymentRequestRepository.
func NewPaymentRequestRepository(db *sqlx.DB) *PaymentRequestRepository {
	return &PaymentRequestRepository{db: db}
}

// Create inserts a new request in PENDING state.
func (r *PaymentRequestRepository) Create(ctx context.Context, req *models.PaymentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payment_requests (id, user_id, amount, reason, due_date, note, status, student_note, admin_note, confirmed_at, approved_at, rejected_at, notification_id, created_at) VALUES (:id, :user_id, :amount, :reason, :due_date, :note, :status, :student_note, :admin_note, :confirmed_at, :approved_at, :rejected_at, :notification_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create payment request: %w", err)
	}
	return nil
}

// FindByID returns a request by identifier.
func (r *PaymentRequestRepository) FindByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	const query = `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE id = $1 LIMIT 1`
	var req models.PaymentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment request by id: %w", err)
	}
	return &req, nil
}

// List returns requests, newest first, optionally filtered by owner and status.
func (r *PaymentRequestRepository) List(ctx context.Context, userID string, status *models.PaymentRequestStatus) ([]models.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE 1=1`
	var conditions []string
	var args []interface{}

	if userID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, userID)
	}
	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *status)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var requests []models.PaymentRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list payment requests: %w", err)
	}
	return requests, nil
}

// SetNotificationID links the request to the notification announcing it.
func (r *PaymentRequestRepository) SetNotificationID(ctx context.Context, requestID, notificationID string) error {
	const query = `UPDATE payment_requests SET notification_id = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, notificationID, requestID); err != nil {
		return fmt.Errorf("link payment request notification: %w", err)
	}
	return nil
}

// Confirm moves a PENDING request to CONFIRMED. The status predicate makes
// the transition conditional; returns false when the request was not pending.
func (r *PaymentRequestRepository) Confirm(ctx context.Context, requestID string, studentNote *string, at time.Time) (bool, error) {
	const query = `UPDATE payment_requests SET status = $1, student_note = COALESCE($2, student_note), confirmed_at = $3 WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, models.RequestConfirmed, studentNote, at, requestID, models.RequestPending)
	if err != nil {
		return false, fmt.Errorf("confirm payment request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("confirm payment request: %w", err)
	}
	return affected > 0, nil
}

// Reject moves a PENDING or CONFIRMED request to REJECTED with the admin's
// reason, rewriting the linked notification in the same transaction when one
// exists. Returns false when the request was already terminal.
func (r *PaymentRequestRepository) Reject(ctx context.Context, req *models.PaymentRequest, adminNote, notificationTitle, notificationMessage string, at time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("reject payment request: begin tx: %w", err)
	}
	defer tx.Rollback()

	const flip = `UPDATE payment_requests SET status = $1, admin_note = $2, rejected_at = $3 WHERE id = $4 AND status IN ($5, $6)`
	result, err := tx.ExecContext(ctx, flip, models.RequestRejected, adminNote, at, req.ID, models.RequestPending, models.RequestConfirmed)
	if err != nil {
		return false, fmt.Errorf("reject payment request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject payment request: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if req.NotificationID != nil {
		const updateNotification = `UPDATE notifications SET title = $1, message = $2 WHERE id = $3`
		if _, err := tx.ExecContext(ctx, updateNotification, notificationTitle, notificationMessage, *req.NotificationID); err != nil {
			return false, fmt.Errorf("reject payment request: update notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("reject payment request: commit: %w", err)
	}
	return true, nil
}

// Approve runs the approval in a single transaction: flip the CONFIRMED
// request to APPROVED, insert the materialized paid payment, and rewrite the
// linked notification's content when one exists. Either every write lands or
// none does. Returns false when the request was not in CONFIRMED state.
func (r *PaymentRequestRepository) Approve(ctx context.Context, req *models.PaymentRequest, payment *models.Payment, notificationTitle, notificationMessage string, at time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("approve payment request: begin tx: %w", err)
	}
	defer tx.Rollback()

	const flip = `UPDATE payment_requests SET status = $1, approved_at = $2 WHERE id = $3 AND status = $4`
	result, err := tx.ExecContext(ctx, flip, models.RequestApproved, at, req.ID, models.RequestConfirmed)
	if err != nil {
		return false, fmt.Errorf("approve payment request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve payment request: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = at
	payment.UpdatedAt = at
	const insertPayment = `INSERT INTO payments (id, user_id, type, amount, description, period, due_date, status, tolerance_days, paid_at, valid_from, valid_until, method, operator_id, visible, created_at, updated_at) VALUES (:id, :user_id, :type, :amount, :description, :period, :due_date, :status, :tolerance_days, :paid_at, :valid_from, :valid_until, :method, :operator_id, :visible, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertPayment, payment); err != nil {
		return false, fmt.Errorf("approve payment request: insert payment: %w", err)
	}

	if req.NotificationID != nil {
		const updateNotification = `UPDATE notifications SET title = $1, message = $2 WHERE id = $3`
		if _, err := tx.ExecContext(ctx, updateNotification, notificationTitle, notificationMessage, *req.NotificationID); err != nil {
			return false, fmt.Errorf("approve payment request: update notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("approve payment request: commit: %w", err)
	}
	return true, nil
}

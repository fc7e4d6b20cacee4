package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/accademia-musici/academy-api/internal/models"
)

const notificationColumns = `id, title, message, type, recipient_type, recipient_ids, payment_filter, active, created_at`

// NotificationRepository provides database access for notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, title, message, type, recipient_type, recipient_ids, payment_filter, active, created_at) VALUES (:id, :title, :message, :type, :recipient_type, :recipient_ids, :payment_filter, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// FindByID returns a notification by identifier.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 LIMIT 1`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification by id: %w", err)
	}
	return &n, nil
}

// List returns every notification, newest first.
func (r *NotificationRepository) List(ctx context.Context) ([]models.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications ORDER BY created_at DESC`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// ListForUser returns active notifications addressed to the user: broadcast
// rows (empty recipient set) plus rows naming the user explicitly.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications WHERE active = TRUE AND (cardinality(recipient_ids) = 0 OR $1 = ANY(recipient_ids)) ORDER BY created_at DESC`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications for user: %w", err)
	}
	return notifications, nil
}

// UpdateContent rewrites the title and message of a notification.
func (r *NotificationRepository) UpdateContent(ctx context.Context, id, title, message string) error {
	const query = `UPDATE notifications SET title = $1, message = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, title, message, id)
	if err != nil {
		return fmt.Errorf("update notification content: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive toggles visibility of a notification.
func (r *NotificationRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE notifications SET active = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set notification active: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a notification.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM notifications WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/accademia-musici/academy-api/internal/models"
)

const secretaryColumns = `user_id, view_payments, edit_payments, view_records, manage_users, view_calendar, edit_calendar, send_notifications, updated_at`

// SecretaryRepository provides database access for secretary permission flags.
type SecretaryRepository struct {
	db *sqlx.DB
}

// NewSecretaryRepository creates a new instance of SecretaryRepository.
func NewSecretaryRepository(db *sqlx.DB) *SecretaryRepository {
	return &SecretaryRepository{db: db}
}

// Get returns the stored flags for a secretary, sql.ErrNoRows when none exist.
func (r *SecretaryRepository) Get(ctx context.Context, userID string) (*models.SecretaryPermissions, error) {
	const query = `SELECT ` + secretaryColumns + ` FROM secretary_permissions WHERE user_id = $1 LIMIT 1`
	var perms models.SecretaryPermissions
	if err := r.db.GetContext(ctx, &perms, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get secretary permissions: %w", err)
	}
	return &perms, nil
}

// Upsert writes the flags, inserting the row on first save.
func (r *SecretaryRepository) Upsert(ctx context.Context, perms *models.SecretaryPermissions) error {
	perms.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO secretary_permissions (user_id, view_payments, edit_payments, view_records, manage_users, view_calendar, edit_calendar, send_notifications, updated_at)
		VALUES (:user_id, :view_payments, :edit_payments, :view_records, :manage_users, :view_calendar, :edit_calendar, :send_notifications, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			view_payments = EXCLUDED.view_payments,
			edit_payments = EXCLUDED.edit_payments,
			view_records = EXCLUDED.view_records,
			manage_users = EXCLUDED.manage_users,
			view_calendar = EXCLUDED.view_calendar,
			edit_calendar = EXCLUDED.edit_calendar,
			send_notifications = EXCLUDED.send_notifications,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, perms); err != nil {
		return fmt.Errorf("upsert secretary permissions: %w", err)
	}
	return nil
}

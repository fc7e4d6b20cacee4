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

// AdminAccessRepository stores PIN credentials for the admin login flow.
type AdminAccessRepository struct {
	db *sqlx.DB
}

// NewAdminAccessRepository creates a new instance of AdminAccessRepository.
func NewAdminAccessRepository(db *sqlx.DB) *AdminAccessRepository {
	return &AdminAccessRepository{db: db}
}

// Create inserts an admin access row.
func (r *AdminAccessRepository) Create(ctx context.Context, access *models.AdminAccess) error {
	if access.ID == "" {
		access.ID = uuid.NewString()
	}
	const query = `INSERT INTO admin_access (id, user_id, pin_hash, pin_active, google_id, last_access) VALUES (:id, :user_id, :pin_hash, :pin_active, :google_id, :last_access)`
	if _, err := r.db.NamedExecContext(ctx, query, access); err != nil {
		return fmt.Errorf("create admin access: %w", err)
	}
	return nil
}

// FindByUser returns the admin access row for a user.
func (r *AdminAccessRepository) FindByUser(ctx context.Context, userID string) (*models.AdminAccess, error) {
	const query = `SELECT id, user_id, pin_hash, pin_active, google_id, last_access FROM admin_access WHERE user_id = $1 LIMIT 1`
	var access models.AdminAccess
	if err := r.db.GetContext(ctx, &access, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admin access: %w", err)
	}
	return &access, nil
}

// UpdatePin replaces the stored PIN hash.
func (r *AdminAccessRepository) UpdatePin(ctx context.Context, userID, pinHash string) error {
	const query = `UPDATE admin_access SET pin_hash = $2, pin_active = TRUE WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, pinHash); err != nil {
		return fmt.Errorf("update admin pin: %w", err)
	}
	return nil
}

// RecordGoogleVerification stores the verified Google subject id and stamps
// the last access time.
func (r *AdminAccessRepository) RecordGoogleVerification(ctx context.Context, userID, googleID string, ts time.Time) error {
	const query = `UPDATE admin_access SET google_id = $2, last_access = $3 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, googleID, ts); err != nil {
		return fmt.Errorf("record google verification: %w", err)
	}
	return nil
}

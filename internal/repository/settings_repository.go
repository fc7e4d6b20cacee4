package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/accademia-musici/academy-api/internal/models"
)

const settingsColumns = `payment_due_day, tolerance_days, monthly_fee, reminder_window_days, updated_at`

// SettingsRepository provides database access for the single settings row.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new instance of SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored settings, sql.ErrNoRows when never saved.
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	const query = `SELECT ` + settingsColumns + ` FROM settings WHERE id = 1 LIMIT 1`
	var settings models.Settings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

// Upsert writes the settings, inserting the row on first save.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.Settings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO settings (id, payment_due_day, tolerance_days, monthly_fee, reminder_window_days, updated_at)
		VALUES (1, :payment_due_day, :tolerance_days, :monthly_fee, :reminder_window_days, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			payment_due_day = EXCLUDED.payment_due_day,
			tolerance_days = EXCLUDED.tolerance_days,
			monthly_fee = EXCLUDED.monthly_fee,
			reminder_window_days = EXCLUDED.reminder_window_days,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accademia-musici/academy-api/internal/models"
)

func TestSettingsRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM settings WHERE id = 1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settings")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settings := &models.Settings{PaymentDueDay: 12, ToleranceDays: 5, MonthlyFee: 175, ReminderWindowDays: 14}
	require.NoError(t, repo.Upsert(context.Background(), settings))
	assert.False(t, settings.UpdatedAt.IsZero())

	mock.ExpectQuery("SELECT (.+) FROM settings WHERE id = 1").
		WillReturnRows(sqlmock.NewRows([]string{"payment_due_day", "tolerance_days", "monthly_fee", "reminder_window_days", "updated_at"}).
			AddRow(12, 5, 175.0, 14, time.Now()))

	stored, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stored.PaymentDueDay)
	assert.Equal(t, 175.0, stored.MonthlyFee)
	assert.NoError(t, mock.ExpectationsWereMet())
}

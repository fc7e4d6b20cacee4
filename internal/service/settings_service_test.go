package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type mockSettingsRepo struct {
	stored *models.Settings
}

func (m *mockSettingsRepo) Get(ctx context.Context) (*models.Settings, error) {
	if m.stored == nil {
		return nil, sql.ErrNoRows
	}
	cp := *m.stored
	return &cp, nil
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, settings *models.Settings) error {
	cp := *settings
	m.stored = &cp
	return nil
}

func settingsDefaults() SettingsDefaults {
	return SettingsDefaults{PaymentDueDay: 7, ToleranceDays: 5, MonthlyFee: 150, ReminderWindowDays: 30}
}

func TestSettingsCurrentFallsBackToDefaults(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, settingsDefaults(), nil, zap.NewNop())

	settings, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, settings.PaymentDueDay)
	assert.Equal(t, 5, settings.ToleranceDays)
	assert.Equal(t, 150.0, settings.MonthlyFee)
	assert.Equal(t, 30, settings.ReminderWindowDays)
}

func TestSettingsUpdatePersistsAndMerges(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, settingsDefaults(), nil, zap.NewNop())

	fee := 175.0
	updated, err := svc.Update(context.Background(), UpdateSettingsRequest{MonthlyFee: &fee})
	require.NoError(t, err)
	assert.Equal(t, 175.0, updated.MonthlyFee)
	assert.Equal(t, 7, updated.PaymentDueDay)

	dueDay := 12
	updated, err = svc.Update(context.Background(), UpdateSettingsRequest{PaymentDueDay: &dueDay})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.PaymentDueDay)
	assert.Equal(t, 175.0, updated.MonthlyFee)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, current.PaymentDueDay)
	assert.Equal(t, 175.0, current.MonthlyFee)
}

func TestSettingsUpdateRejectsOutOfRange(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, settingsDefaults(), nil, zap.NewNop())

	dueDay := 31
	_, err := svc.Update(context.Background(), UpdateSettingsRequest{PaymentDueDay: &dueDay})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)

	fee := -10.0
	_, err = svc.Update(context.Background(), UpdateSettingsRequest{MonthlyFee: &fee})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

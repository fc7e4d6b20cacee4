package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Upsert(ctx context.Context, settings *models.Settings) error
}

// SettingsDefaults seeds the settings from configuration until an admin
// saves a row of their own.
type SettingsDefaults struct {
	PaymentDueDay      int
	ToleranceDays      int
	MonthlyFee         float64
	ReminderWindowDays int
}

// UpdateSettingsRequest edits the runtime payment tuning. Absent fields keep
// their current value.
type UpdateSettingsRequest struct {
	PaymentDueDay      *int     `json:"payment_due_day" validate:"omitempty,min=1,max=28"`
	ToleranceDays      *int     `json:"tolerance_days" validate:"omitempty,min=0"`
	MonthlyFee         *float64 `json:"monthly_fee" validate:"omitempty,gt=0"`
	ReminderWindowDays *int     `json:"reminder_window_days" validate:"omitempty,min=1,max=365"`
}

// SettingsService manages the runtime-editable payment tuning.
type SettingsService struct {
	repo      settingsRepository
	defaults  SettingsDefaults
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService creates an instance of SettingsService.
func NewSettingsService(repo settingsRepository, defaults SettingsDefaults, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SettingsService{repo: repo, defaults: defaults, validator: validate, logger: logger}
}

// Current returns the effective settings, falling back to the configured
// defaults when none were ever stored.
func (s *SettingsService) Current(ctx context.Context) (*models.Settings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Settings{
				PaymentDueDay:      s.defaults.PaymentDueDay,
				ToleranceDays:      s.defaults.ToleranceDays,
				MonthlyFee:         s.defaults.MonthlyFee,
				ReminderWindowDays: s.defaults.ReminderWindowDays,
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return settings, nil
}

// Update applies the provided fields on top of the current values and
// persists the result.
func (s *SettingsService) Update(ctx context.Context, req UpdateSettingsRequest) (*models.Settings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	settings, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	if req.PaymentDueDay != nil {
		settings.PaymentDueDay = *req.PaymentDueDay
	}
	if req.ToleranceDays != nil {
		settings.ToleranceDays = *req.ToleranceDays
	}
	if req.MonthlyFee != nil {
		settings.MonthlyFee = *req.MonthlyFee
	}
	if req.ReminderWindowDays != nil {
		settings.ReminderWindowDays = *req.ReminderWindowDays
	}

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}
	s.logger.Info("settings updated",
		zap.Int("payment_due_day", settings.PaymentDueDay),
		zap.Int("tolerance_days", settings.ToleranceDays),
		zap.Float64("monthly_fee", settings.MonthlyFee),
		zap.Int("reminder_window_days", settings.ReminderWindowDays))
	return settings, nil
}

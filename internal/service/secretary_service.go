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

type secretaryRepository interface {
	Get(ctx context.Context, userID string) (*models.SecretaryPermissions, error)
	Upsert(ctx context.Context, perms *models.SecretaryPermissions) error
}

type secretaryUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// UpdateSecretaryPermissionsRequest sets the capability flags.
type UpdateSecretaryPermissionsRequest struct {
	ViewPayments      bool `json:"view_payments"`
	EditPayments      bool `json:"edit_payments"`
	ViewRecords       bool `json:"view_records"`
	ManageUsers       bool `json:"manage_users"`
	ViewCalendar      bool `json:"view_calendar"`
	EditCalendar      bool `json:"edit_calendar"`
	SendNotifications bool `json:"send_notifications"`
}

// SecretaryService manages per-secretary capability flags.
type SecretaryService struct {
	repo      secretaryRepository
	users     secretaryUserLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSecretaryService creates an instance of SecretaryService.
func NewSecretaryService(repo secretaryRepository, users secretaryUserLookup, validate *validator.Validate, logger *zap.Logger) *SecretaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SecretaryService{repo: repo, users: users, validator: validate, logger: logger}
}

// Get returns the secretary's flags, falling back to the defaults when none
// were ever stored.
func (s *SecretaryService) Get(ctx context.Context, userID string) (*models.SecretaryPermissions, error) {
	perms, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := models.DefaultSecretaryPermissions(userID)
			return &defaults, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load secretary permissions")
	}
	return perms, nil
}

// Update replaces the flags for a secretary account.
func (s *SecretaryService) Update(ctx context.Context, userID string, req UpdateSecretaryPermissionsRequest) (*models.SecretaryPermissions, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleSecretary {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a secretary")
	}

	perms := &models.SecretaryPermissions{
		UserID:            userID,
		ViewPayments:      req.ViewPayments,
		EditPayments:      req.EditPayments,
		ViewRecords:       req.ViewRecords,
		ManageUsers:       req.ManageUsers,
		ViewCalendar:      req.ViewCalendar,
		EditCalendar:      req.EditCalendar,
		SendNotifications: req.SendNotifications,
	}
	if err := s.repo.Upsert(ctx, perms); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save secretary permissions")
	}
	return perms, nil
}

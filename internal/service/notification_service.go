package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context) ([]models.Notification, error)
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	UpdateContent(ctx context.Context, id, title, message string) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type notificationPaymentLookup interface {
	DistinctUserIDsByStatus(ctx context.Context, status models.PaymentStatus) ([]string, error)
	ExpiringAnnual(ctx context.Context, now time.Time, window time.Duration) ([]models.Payment, error)
}

type notificationSettings interface {
	Current(ctx context.Context) (*models.Settings, error)
}

// expiryReminderWindow is how far ahead membership expiry reminders look
// when no runtime settings are available.
const expiryReminderWindow = 30 * 24 * time.Hour

// CreateNotificationRequest represents payload for publishing a notification.
type CreateNotificationRequest struct {
	Title         string                  `json:"title" validate:"required"`
	Message       string                  `json:"message" validate:"required"`
	Type          models.NotificationType `json:"type" validate:"required"`
	RecipientIDs  []string                `json:"recipient_ids"`
	PaymentFilter *models.PaymentStatus   `json:"payment_filter,omitempty"`
}

// NotificationService publishes and resolves notifications.
type NotificationService struct {
	repo      notificationRepository
	payments  notificationPaymentLookup
	settings  notificationSettings
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService creates an instance of NotificationService. A nil
// settings source pins the default reminder window.
func NewNotificationService(repo notificationRepository, payments notificationPaymentLookup, settings notificationSettings, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{repo: repo, payments: payments, settings: settings, validator: validate, logger: logger}
}

// Create publishes a notification. With no explicit recipients and no
// payment filter the message is a broadcast to every active user. A payment
// filter resolves to the distinct owners of payments in that status at
// publish time.
func (s *NotificationService) Create(ctx context.Context, req CreateNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown notification type")
	}
	if req.PaymentFilter != nil && !req.PaymentFilter.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment filter status")
	}

	recipientIDs := req.RecipientIDs
	if req.PaymentFilter != nil {
		ids, err := s.payments.DistinctUserIDsByStatus(ctx, *req.PaymentFilter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve payment filter recipients")
		}
		recipientIDs = ids
	}

	recipientType := models.RecipientsAll
	if len(recipientIDs) > 0 {
		recipientType = models.RecipientsSpecific
	}

	n := &models.Notification{
		Title:         req.Title,
		Message:       req.Message,
		Type:          req.Type,
		RecipientType: recipientType,
		RecipientIDs:  pq.StringArray(recipientIDs),
		PaymentFilter: req.PaymentFilter,
		Active:        true,
	}
	if n.RecipientIDs == nil {
		n.RecipientIDs = pq.StringArray{}
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	return n, nil
}

// Notify is the internal publish path used by other services.
func (s *NotificationService) Notify(ctx context.Context, title, message string, recipientIDs []string, kind models.NotificationType) (*models.Notification, error) {
	recipientType := models.RecipientsAll
	if len(recipientIDs) > 0 {
		recipientType = models.RecipientsSpecific
	}
	n := &models.Notification{
		Title:         title,
		Message:       message,
		Type:          kind,
		RecipientType: recipientType,
		RecipientIDs:  pq.StringArray(recipientIDs),
		Active:        true,
	}
	if n.RecipientIDs == nil {
		n.RecipientIDs = pq.StringArray{}
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	return n, nil
}

// List returns every notification for admin review.
func (s *NotificationService) List(ctx context.Context) ([]models.Notification, error) {
	notifications, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// ListForUser returns the active notifications addressed to the user.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// Get returns a notification by ID.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	return n, nil
}

// SetActive toggles a notification's visibility.
func (s *NotificationService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

// Delete removes a notification.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}

// SendPaymentReminders publishes a reminder to every user holding overdue
// payments. Returns the number of users addressed.
func (s *NotificationService) SendPaymentReminders(ctx context.Context) (int, error) {
	ids, err := s.payments.DistinctUserIDsByStatus(ctx, models.PaymentOverdue)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve overdue users")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	message := "One or more of your payments is overdue. Please settle them at the secretariat."
	if _, err := s.Notify(ctx, "Payment reminder", message, ids, models.NotificationPayment); err != nil {
		return 0, err
	}
	s.logger.Info("payment reminders sent", zap.Int("users", len(ids)))
	return len(ids), nil
}

// SendExpiryReminders notifies users whose annual memberships expire within
// the reminder window.
func (s *NotificationService) SendExpiryReminders(ctx context.Context) (int, error) {
	window := expiryReminderWindow
	if s.settings != nil {
		current, err := s.settings.Current(ctx)
		if err != nil {
			return 0, err
		}
		window = time.Duration(current.ReminderWindowDays) * 24 * time.Hour
	}
	payments, err := s.payments.ExpiringAnnual(ctx, time.Now().UTC(), window)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve expiring memberships")
	}

	seen := make(map[string]struct{}, len(payments))
	var ids []string
	for _, p := range payments {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		ids = append(ids, p.UserID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	message := "Your annual membership expires soon. Renew it to keep attending lessons."
	if _, err := s.Notify(ctx, "Membership expiring", message, ids, models.NotificationPayment); err != nil {
		return 0, err
	}
	return len(ids), nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type paymentRequestRepository interface {
	Create(ctx context.Context, req *models.PaymentRequest) error
	FindByID(ctx context.Context, id string) (*models.PaymentRequest, error)
	List(ctx context.Context, userID string, status *models.PaymentRequestStatus) ([]models.PaymentRequest, error)
	SetNotificationID(ctx context.Context, requestID, notificationID string) error
	Confirm(ctx context.Context, requestID string, studentNote *string, at time.Time) (bool, error)
	Reject(ctx context.Context, req *models.PaymentRequest, adminNote, notificationTitle, notificationMessage string, at time.Time) (bool, error)
	Approve(ctx context.Context, req *models.PaymentRequest, payment *models.Payment, notificationTitle, notificationMessage string, at time.Time) (bool, error)
}

type paymentRequestUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type paymentRequestNotifier interface {
	Notify(ctx context.Context, title, message string, recipientIDs []string, kind models.NotificationType) (*models.Notification, error)
}

// CreatePaymentRequestRequest represents payload for opening a request.
type CreatePaymentRequestRequest struct {
	UserID  string    `json:"user_id" validate:"required,uuid4"`
	Amount  float64   `json:"amount" validate:"required,gt=0"`
	Reason  string    `json:"reason" validate:"required"`
	DueDate time.Time `json:"due_date" validate:"required"`
	Note    *string   `json:"note,omitempty"`
}

// ConfirmPaymentRequestRequest is the owner's confirmation payload.
type ConfirmPaymentRequestRequest struct {
	StudentNote *string `json:"student_note,omitempty"`
}

// RejectPaymentRequestRequest is the admin's rejection payload.
type RejectPaymentRequestRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// PaymentRequestService drives the two-step payment confirmation workflow:
// the student confirms having paid, then an admin approves or rejects.
type PaymentRequestService struct {
	repo      paymentRequestRepository
	users     paymentRequestUserLookup
	notifier  paymentRequestNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentRequestService creates an instance of PaymentRequestService.
func NewPaymentRequestService(repo paymentRequestRepository, users paymentRequestUserLookup, notifier paymentRequestNotifier, validate *validator.Validate, logger *zap.Logger) *PaymentRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaymentRequestService{repo: repo, users: users, notifier: notifier, validator: validate, logger: logger}
}

// List returns requests visible to the actor. Students only see their own.
func (s *PaymentRequestService) List(ctx context.Context, actor *models.User, status *models.PaymentRequestStatus) ([]models.PaymentRequest, error) {
	userID := ""
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSecretary {
		userID = actor.ID
	}

	requests, err := s.repo.List(ctx, userID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payment requests")
	}
	if userID == "" {
		for i := range requests {
			s.attachUserName(ctx, &requests[i])
		}
	}
	return requests, nil
}

// Get returns a request by ID. Non-admin callers may only read their own.
func (s *PaymentRequestService) Get(ctx context.Context, actor *models.User, id string) (*models.PaymentRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment request")
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSecretary && req.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment request belongs to another user")
	}
	return req, nil
}

// Create opens a PENDING request for a student and publishes the linked
// notification announcing it.
func (s *PaymentRequestService) Create(ctx context.Context, req CreatePaymentRequestRequest) (*models.PaymentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment request payload")
	}

	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	request := &models.PaymentRequest{
		UserID:  req.UserID,
		Amount:  req.Amount,
		Reason:  req.Reason,
		DueDate: req.DueDate,
		Note:    req.Note,
		Status:  models.RequestPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment request")
	}

	if s.notifier != nil {
		message := fmt.Sprintf("A payment of %.2f is requested: %s. Confirm once you have paid.", req.Amount, req.Reason)
		notification, err := s.notifier.Notify(ctx, "Payment requested", message, []string{req.UserID}, models.NotificationPaymentRequest)
		if err != nil {
			s.logger.Warn("failed to publish payment request notification", zap.Error(err))
		} else {
			if err := s.repo.SetNotificationID(ctx, request.ID, notification.ID); err != nil {
				s.logger.Warn("failed to link payment request notification", zap.Error(err))
			} else {
				request.NotificationID = &notification.ID
			}
		}
	}

	return request, nil
}

// Confirm is the owner declaring the payment was made. Only valid from
// PENDING, and only for the request's owner.
func (s *PaymentRequestService) Confirm(ctx context.Context, actor *models.User, id string, req ConfirmPaymentRequestRequest) (*models.PaymentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment request")
	}

	if request.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the request owner may confirm it")
	}

	ok, err := s.repo.Confirm(ctx, id, req.StudentNote, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm payment request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("request cannot be confirmed from %s", request.Status))
	}

	return s.reload(ctx, id)
}

// Approve finalizes a CONFIRMED request: the request flips to APPROVED, a
// payment already marked paid is materialized for the student, and the
// linked notification is rewritten, all atomically.
func (s *PaymentRequestService) Approve(ctx context.Context, operator *models.User, id string) (*models.PaymentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment request")
	}

	if request.Status != models.RequestConfirmed {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("request cannot be approved from %s", request.Status))
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		UserID:      request.UserID,
		Type:        models.PaymentMonthly,
		Amount:      request.Amount,
		Description: request.Reason,
		DueDate:     request.DueDate,
		Status:      models.PaymentPaid,
		PaidAt:      &now,
		OperatorID:  &operator.ID,
		Visible:     true,
	}

	title := "Payment approved"
	message := fmt.Sprintf("Your payment of %.2f for %q was approved and recorded.", request.Amount, request.Reason)
	ok, err := s.repo.Approve(ctx, request, payment, title, message, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve payment request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer confirmed")
	}

	return s.reload(ctx, id)
}

// Reject closes a PENDING or CONFIRMED request with the admin's reason and
// rewrites the linked notification so the student sees the outcome.
func (s *PaymentRequestService) Reject(ctx context.Context, id string, req RejectPaymentRequestRequest) (*models.PaymentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}

	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment request")
	}

	title := "Payment rejected"
	message := fmt.Sprintf("Your payment of %.2f for %q was rejected: %s", request.Amount, request.Reason, req.Reason)
	ok, err := s.repo.Reject(ctx, request, req.Reason, title, message, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject payment request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("request cannot be rejected from %s", request.Status))
	}

	return s.reload(ctx, id)
}

func (s *PaymentRequestService) reload(ctx context.Context, id string) (*models.PaymentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload payment request")
	}
	return request, nil
}

func (s *PaymentRequestService) attachUserName(ctx context.Context, request *models.PaymentRequest) {
	user, err := s.users.FindByID(ctx, request.UserID)
	if err != nil {
		return
	}
	request.UserName = user.FirstName + " " + user.LastName
}

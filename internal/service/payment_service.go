package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
	"github.com/accademia-musici/academy-api/pkg/export"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id string) error
	AdvanceOverdue(ctx context.Context, now time.Time) (int64, error)
	InsertMonthly(ctx context.Context, payment *models.Payment) (bool, error)
	ExpiringAnnual(ctx context.Context, now time.Time, window time.Duration) ([]models.Payment, error)
}

type paymentUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type paymentSettings interface {
	Current(ctx context.Context) (*models.Settings, error)
}

// PaymentConfig tunes generated payments.
type PaymentConfig struct {
	DueDay         int
	ToleranceDays  int
	DefaultMonthly float64
}

// CreatePaymentRequest represents payload for registering a payment entry.
type CreatePaymentRequest struct {
	UserID        string             `json:"user_id" validate:"required,uuid4"`
	Type          models.PaymentType `json:"type" validate:"required"`
	Amount        float64            `json:"amount" validate:"required,gt=0"`
	Description   string             `json:"description" validate:"required"`
	DueDate       time.Time          `json:"due_date" validate:"required"`
	ToleranceDays int                `json:"tolerance_days" validate:"gte=0"`
	ValidFrom     *time.Time         `json:"valid_from,omitempty"`
	ValidUntil    *time.Time         `json:"valid_until,omitempty"`
	Visible       bool               `json:"visible"`
}

// UpdatePaymentRequest represents payload for editing a payment entry.
type UpdatePaymentRequest struct {
	Amount        float64    `json:"amount" validate:"required,gt=0"`
	Description   string     `json:"description" validate:"required"`
	DueDate       time.Time  `json:"due_date" validate:"required"`
	ToleranceDays int        `json:"tolerance_days" validate:"gte=0"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	Visible       *bool      `json:"visible"`
}

// CashPaymentRequest registers a cash payment taken at the front desk.
type CashPaymentRequest struct {
	UserID      string              `json:"user_id" validate:"required,uuid4"`
	Amount      float64             `json:"amount" validate:"required,gt=0"`
	Reason      string              `json:"reason" validate:"required"`
	PaymentType *models.PaymentType `json:"payment_type,omitempty"`
}

// PaymentService handles the payment bookkeeping lifecycle.
type PaymentService struct {
	repo      paymentRepository
	users     paymentUserLookup
	settings  paymentSettings
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
	config    PaymentConfig
}

// NewPaymentService creates an instance of PaymentService. A nil settings
// source pins the configured defaults.
func NewPaymentService(repo paymentRepository, users paymentUserLookup, settings paymentSettings, validate *validator.Validate, logger *zap.Logger, config PaymentConfig) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaymentService{repo: repo, users: users, settings: settings, csv: export.NewCSVExporter(), validator: validate, logger: logger, config: config}
}

// List returns payments visible to the actor. Non-admin callers only ever
// see their own visible entries.
func (s *PaymentService) List(ctx context.Context, actor *models.User, filter models.PaymentFilter) ([]models.Payment, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSecretary {
		filter.UserID = actor.ID
		filter.VisibleOnly = true
	}

	payments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	if actor.Role == models.RoleAdmin || actor.Role == models.RoleSecretary {
		for i := range payments {
			s.attachUserName(ctx, &payments[i])
		}
	}
	return payments, nil
}

// Get returns a payment by ID. Non-admin callers may only read their own.
func (s *PaymentService) Get(ctx context.Context, actor *models.User, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSecretary && payment.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another user")
	}
	return payment, nil
}

// Create registers a manual payment entry in PENDING state.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment type")
	}

	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	payment := &models.Payment{
		UserID:        req.UserID,
		Type:          req.Type,
		Amount:        req.Amount,
		Description:   req.Description,
		DueDate:       req.DueDate,
		Status:        models.PaymentPending,
		ToleranceDays: req.ToleranceDays,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
		Visible:       req.Visible,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment for this period already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return payment, nil
}

// Update edits a payment entry.
func (s *PaymentService) Update(ctx context.Context, id string, req UpdatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	payment.Amount = req.Amount
	payment.Description = req.Description
	payment.DueDate = req.DueDate
	payment.ToleranceDays = req.ToleranceDays
	payment.ValidFrom = req.ValidFrom
	payment.ValidUntil = req.ValidUntil
	if req.Visible != nil {
		payment.Visible = *req.Visible
	}

	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
	return payment, nil
}

// UpdateStatus applies a lifecycle transition. Moving to PAID stamps paid_at
// once; the stamp is never overwritten on repeat calls. PAID never moves
// back to PENDING or OVERDUE.
func (s *PaymentService) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, operatorID string, method *string) (*models.Payment, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	if payment.Status == models.PaymentPaid && status != models.PaymentPaid {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "a paid payment cannot be reopened")
	}

	payment.Status = status
	if status == models.PaymentPaid {
		if payment.PaidAt == nil {
			now := time.Now().UTC()
			payment.PaidAt = &now
		}
		if method != nil {
			payment.Method = method
		}
		if operatorID != "" {
			payment.OperatorID = &operatorID
		}
	}

	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	return payment, nil
}

// RegisterCash records a cash payment taken at the front desk: the payment
// is created already PAID and a numbered receipt is returned.
func (s *PaymentService) RegisterCash(ctx context.Context, operator *models.User, req CashPaymentRequest) (*models.Payment, *models.CashReceipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cash payment payload")
	}

	student, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "user not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	paymentType := models.PaymentMonthly
	if req.PaymentType != nil {
		if !req.PaymentType.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment type")
		}
		paymentType = *req.PaymentType
	}

	now := time.Now().UTC()
	method := "cash"
	payment := &models.Payment{
		UserID:      req.UserID,
		Type:        paymentType,
		Amount:      req.Amount,
		Description: req.Reason,
		DueDate:     now,
		Status:      models.PaymentPaid,
		PaidAt:      &now,
		Method:      &method,
		OperatorID:  &operator.ID,
		Visible:     true,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register cash payment")
	}

	receipt := &models.CashReceipt{
		Number:    fmt.Sprintf("CASH-%s-%s", now.Format("20060102"), payment.ID[:8]),
		PaymentID: payment.ID,
		Student:   student.FirstName + " " + student.LastName,
		Amount:    payment.Amount,
		Reason:    req.Reason,
		Operator:  operator.FirstName + " " + operator.LastName,
		PaidAt:    now,
	}
	return payment, receipt, nil
}

// Delete removes a payment entry.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	return nil
}

// AdvanceOverdue sweeps pending payments whose due date plus tolerance has
// passed, returning the number flipped to OVERDUE. Safe to run repeatedly.
func (s *PaymentService) AdvanceOverdue(ctx context.Context) (int64, error) {
	flipped, err := s.repo.AdvanceOverdue(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance overdue payments")
	}
	if flipped > 0 {
		s.logger.Info("payments moved to overdue", zap.Int64("count", flipped))
	}
	return flipped, nil
}

// GenerateMonthlyRequest selects the period and optionally overrides the
// configured fee and description.
type GenerateMonthlyRequest struct {
	Year        int
	Month       time.Month
	Amount      *float64
	Description *string
}

const generateMonthlyPageSize = 100

// GenerateMonthly creates the month's tuition entry for every active
// student, paging through the roster. Entries fall due on the configured
// day of the month. The (user, type, period) uniqueness makes reruns for
// the same month no-ops.
func (s *PaymentService) GenerateMonthly(ctx context.Context, req GenerateMonthlyRequest) (int, error) {
	dueDay := s.config.DueDay
	toleranceDays := s.config.ToleranceDays
	amount := s.config.DefaultMonthly
	if s.settings != nil {
		current, err := s.settings.Current(ctx)
		if err != nil {
			return 0, err
		}
		dueDay = current.PaymentDueDay
		toleranceDays = current.ToleranceDays
		amount = current.MonthlyFee
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return 0, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
		}
		amount = *req.Amount
	}

	period := fmt.Sprintf("%04d-%02d", req.Year, req.Month)
	description := fmt.Sprintf("Monthly tuition %s", period)
	if req.Description != nil && *req.Description != "" {
		description = *req.Description
	}

	role := models.RoleStudent
	active := true
	dueDate := time.Date(req.Year, req.Month, dueDay, 23, 59, 59, 0, time.UTC)
	created := 0
	for page := 1; ; page++ {
		students, total, err := s.users.List(ctx, models.UserFilter{Role: &role, Active: &active, Page: page, PageSize: generateMonthlyPageSize})
		if err != nil {
			return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active students")
		}

		for _, student := range students {
			p := period
			payment := &models.Payment{
				UserID:        student.ID,
				Type:          models.PaymentMonthly,
				Amount:        amount,
				Description:   description,
				Period:        &p,
				DueDate:       dueDate,
				Status:        models.PaymentPending,
				ToleranceDays: toleranceDays,
				Visible:       true,
			}
			inserted, err := s.repo.InsertMonthly(ctx, payment)
			if err != nil {
				return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate monthly payment")
			}
			if inserted {
				created++
			}
		}

		if len(students) == 0 || page*generateMonthlyPageSize >= total {
			break
		}
	}

	s.logger.Info("monthly payments generated", zap.String("period", period), zap.Int("created", created))
	return created, nil
}

// ExpiringAnnual returns paid annual payments whose validity ends within the
// given window.
func (s *PaymentService) ExpiringAnnual(ctx context.Context, window time.Duration) ([]models.Payment, error) {
	payments, err := s.repo.ExpiringAnnual(ctx, time.Now().UTC(), window)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expiring annual payments")
	}
	for i := range payments {
		s.attachUserName(ctx, &payments[i])
	}
	return payments, nil
}

// ExportCSV renders the filtered payments as a CSV document.
func (s *PaymentService) ExportCSV(ctx context.Context, actor *models.User, filter models.PaymentFilter) ([]byte, error) {
	payments, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "User", "Type", "Amount", "Description", "Due Date", "Status", "Paid At"},
	}
	for _, p := range payments {
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":          p.ID,
			"User":        p.UserName,
			"Type":        string(p.Type),
			"Amount":      strconv.FormatFloat(p.Amount, 'f', 2, 64),
			"Description": p.Description,
			"Due Date":    p.DueDate.Format("2006-01-02"),
			"Status":      string(p.Status),
			"Paid At":     paidAt,
		})
	}

	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render payments csv")
	}
	return data, nil
}

func (s *PaymentService) attachUserName(ctx context.Context, payment *models.Payment) {
	user, err := s.users.FindByID(ctx, payment.UserID)
	if err != nil {
		return
	}
	payment.UserName = user.FirstName + " " + user.LastName
}

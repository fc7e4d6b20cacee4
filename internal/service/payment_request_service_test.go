package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type notificationRewrite struct {
	id      string
	title   string
	message string
}

type mockRequestRepo struct {
	requests map[string]*models.PaymentRequest
	payments []*models.Payment
	rewrites []notificationRewrite
}

func (m *mockRequestRepo) Create(ctx context.Context, req *models.PaymentRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]*models.PaymentRequest)
	}
	if req.ID == "" {
		req.ID = "req-generated"
	}
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	if req, ok := m.requests[id]; ok {
		cp := *req
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) List(ctx context.Context, userID string, status *models.PaymentRequestStatus) ([]models.PaymentRequest, error) {
	var out []models.PaymentRequest
	for _, req := range m.requests {
		if userID != "" && req.UserID != userID {
			continue
		}
		if status != nil && req.Status != *status {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (m *mockRequestRepo) SetNotificationID(ctx context.Context, requestID, notificationID string) error {
	req, ok := m.requests[requestID]
	if !ok {
		return sql.ErrNoRows
	}
	req.NotificationID = &notificationID
	return nil
}

func (m *mockRequestRepo) Confirm(ctx context.Context, requestID string, studentNote *string, at time.Time) (bool, error) {
	req, ok := m.requests[requestID]
	if !ok || req.Status != models.RequestPending {
		return false, nil
	}
	req.Status = models.RequestConfirmed
	req.StudentNote = studentNote
	req.ConfirmedAt = &at
	return true, nil
}

func (m *mockRequestRepo) Reject(ctx context.Context, req *models.PaymentRequest, adminNote, notificationTitle, notificationMessage string, at time.Time) (bool, error) {
	stored, ok := m.requests[req.ID]
	if !ok || (stored.Status != models.RequestPending && stored.Status != models.RequestConfirmed) {
		return false, nil
	}
	stored.Status = models.RequestRejected
	stored.AdminNote = &adminNote
	stored.RejectedAt = &at
	if stored.NotificationID != nil {
		m.rewrites = append(m.rewrites, notificationRewrite{id: *stored.NotificationID, title: notificationTitle, message: notificationMessage})
	}
	return true, nil
}

func (m *mockRequestRepo) Approve(ctx context.Context, req *models.PaymentRequest, payment *models.Payment, notificationTitle, notificationMessage string, at time.Time) (bool, error) {
	stored, ok := m.requests[req.ID]
	if !ok || stored.Status != models.RequestConfirmed {
		return false, nil
	}
	stored.Status = models.RequestApproved
	stored.ApprovedAt = &at
	m.payments = append(m.payments, payment)
	if stored.NotificationID != nil {
		m.rewrites = append(m.rewrites, notificationRewrite{id: *stored.NotificationID, title: notificationTitle, message: notificationMessage})
	}
	return true, nil
}

func pendingRequest(id, userID string) *models.PaymentRequest {
	return &models.PaymentRequest{
		ID:      id,
		UserID:  userID,
		Amount:  150,
		Reason:  "September tuition",
		DueDate: time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		Status:  models.RequestPending,
	}
}

func TestPaymentRequestCreateLinksNotification(t *testing.T) {
	repo := &mockRequestRepo{}
	notifier := &mockNotifier{}
	student := &models.User{ID: "11111111-2222-4333-8444-555555555555", Role: models.RoleStudent, FirstName: "Anna", LastName: "Rossi"}
	svc := NewPaymentRequestService(repo, &mockUserLookup{users: map[string]*models.User{student.ID: student}}, notifier, nil, zap.NewNop())

	req, err := svc.Create(context.Background(), CreatePaymentRequestRequest{
		UserID:  student.ID,
		Amount:  150,
		Reason:  "September tuition",
		DueDate: time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	require.NotNil(t, req.NotificationID)
	assert.Equal(t, "n-1", *req.NotificationID)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, []string{student.ID}, notifier.notified[0])
}

func TestPaymentRequestCreateUnknownUser(t *testing.T) {
	svc := NewPaymentRequestService(&mockRequestRepo{}, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreatePaymentRequestRequest{
		UserID:  "11111111-2222-4333-8444-555555555555",
		Amount:  150,
		Reason:  "September tuition",
		DueDate: time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestPaymentRequestConfirmOwnerOnly(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{"r1": pendingRequest("r1", "s1")}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	other := &models.User{ID: "s2", Role: models.RoleStudent}
	_, err := svc.Confirm(context.Background(), other, "r1", ConfirmPaymentRequestRequest{})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	note := "paid by bank transfer"
	owner := &models.User{ID: "s1", Role: models.RoleStudent}
	confirmed, err := svc.Confirm(context.Background(), owner, "r1", ConfirmPaymentRequestRequest{StudentNote: &note})
	require.NoError(t, err)
	assert.Equal(t, models.RequestConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.StudentNote)
	assert.Equal(t, note, *confirmed.StudentNote)
	assert.NotNil(t, confirmed.ConfirmedAt)
}

func TestPaymentRequestConfirmTwice(t *testing.T) {
	request := pendingRequest("r1", "s1")
	request.Status = models.RequestConfirmed
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{"r1": request}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	owner := &models.User{ID: "s1", Role: models.RoleStudent}
	_, err := svc.Confirm(context.Background(), owner, "r1", ConfirmPaymentRequestRequest{})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, apiErr.Code)
}

func TestPaymentRequestApprove(t *testing.T) {
	request := pendingRequest("r1", "s1")
	request.Status = models.RequestConfirmed
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{"r1": request}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	operator := adminUser()
	approved, err := svc.Approve(context.Background(), operator, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)

	require.Len(t, repo.payments, 1)
	payment := repo.payments[0]
	assert.Equal(t, "s1", payment.UserID)
	assert.Equal(t, models.PaymentPaid, payment.Status)
	assert.Equal(t, 150.0, payment.Amount)
	require.NotNil(t, payment.OperatorID)
	assert.Equal(t, operator.ID, *payment.OperatorID)
	assert.NotNil(t, payment.PaidAt)
}

func TestPaymentRequestApproveRequiresConfirmed(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{"r1": pendingRequest("r1", "s1")}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	_, err := svc.Approve(context.Background(), adminUser(), "r1")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, apiErr.Code)
	assert.Empty(t, repo.payments)
}

func TestPaymentRequestReject(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{"r1": pendingRequest("r1", "s1")}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	rejected, err := svc.Reject(context.Background(), "r1", RejectPaymentRequestRequest{Reason: "no transfer received"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
	require.NotNil(t, rejected.AdminNote)
	assert.Equal(t, "no transfer received", *rejected.AdminNote)
	assert.NotNil(t, rejected.RejectedAt)
}

func TestPaymentRequestRejectRewritesNotification(t *testing.T) {
	request := pendingRequest("r1", "s1")
	notificationID := "n1"
	request.NotificationID = &notificationID
	request.Status = models.RequestConfirmed
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{"r1": request}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	_, err := svc.Reject(context.Background(), "r1", RejectPaymentRequestRequest{Reason: "no transfer received"})
	require.NoError(t, err)

	require.Len(t, repo.rewrites, 1)
	assert.Equal(t, "n1", repo.rewrites[0].id)
	assert.Equal(t, "Payment rejected", repo.rewrites[0].title)
	assert.Contains(t, repo.rewrites[0].message, "no transfer received")
}

func TestPaymentRequestRejectRequiresReason(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{"r1": pendingRequest("r1", "s1")}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	_, err := svc.Reject(context.Background(), "r1", RejectPaymentRequestRequest{})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestPaymentRequestRejectApproved(t *testing.T) {
	request := pendingRequest("r1", "s1")
	request.Status = models.RequestApproved
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{"r1": request}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	_, err := svc.Reject(context.Background(), "r1", RejectPaymentRequestRequest{Reason: "too late"})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, apiErr.Code)
}

func TestPaymentRequestListScopesStudent(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]*models.PaymentRequest{
		"r1": pendingRequest("r1", "s1"),
		"r2": pendingRequest("r2", "s2"),
	}}
	svc := NewPaymentRequestService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	student := &models.User{ID: "s1", Role: models.RoleStudent}
	requests, err := svc.List(context.Background(), student, nil)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "r1", requests[0].ID)

	requests, err = svc.List(context.Background(), adminUser(), nil)
	require.NoError(t, err)
	assert.Len(t, requests, 2)
}

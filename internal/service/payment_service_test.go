package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type mockPaymentRepo struct {
	items          map[string]*models.Payment
	listResult     []models.Payment
	overdueFlipped int64
	monthlySeen    map[string]bool
	monthlyRows    []models.Payment
	expiring       []models.Payment
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.items == nil {
		m.items = make(map[string]*models.Payment)
	}
	if payment.ID == "" {
		payment.ID = "payment-generated"
	}
	cp := *payment
	m.items[payment.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if payment, ok := m.items[id]; ok {
		cp := *payment
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	return m.listResult, nil
}

func (m *mockPaymentRepo) Update(ctx context.Context, payment *models.Payment) error {
	cp := *payment
	m.items[payment.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockPaymentRepo) AdvanceOverdue(ctx context.Context, now time.Time) (int64, error) {
	flipped := m.overdueFlipped
	m.overdueFlipped = 0
	return flipped, nil
}

func (m *mockPaymentRepo) InsertMonthly(ctx context.Context, payment *models.Payment) (bool, error) {
	if m.monthlySeen == nil {
		m.monthlySeen = make(map[string]bool)
	}
	key := payment.UserID + "|" + string(payment.Type) + "|" + *payment.Period
	if m.monthlySeen[key] {
		return false, nil
	}
	m.monthlySeen[key] = true
	m.monthlyRows = append(m.monthlyRows, *payment)
	return true, nil
}

func (m *mockPaymentRepo) ExpiringAnnual(ctx context.Context, now time.Time, window time.Duration) ([]models.Payment, error) {
	return m.expiring, nil
}

type mockPaymentUsers struct {
	users map[string]*models.User
	list  []models.User
}

func (m *mockPaymentUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	total := len(m.list)
	if filter.PageSize <= 0 {
		return m.list, total, nil
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return m.list[start:end], total, nil
}

func adminUser() *models.User {
	return &models.User{ID: "admin-1", Role: models.RoleAdmin, FirstName: "Ada", LastName: "Verdi"}
}

func TestPaymentUpdateStatusStampsPaidOnce(t *testing.T) {
	repo := &mockPaymentRepo{items: map[string]*models.Payment{
		"p1": {ID: "p1", UserID: "u1", Status: models.PaymentPending},
	}}
	svc := NewPaymentService(repo, &mockPaymentUsers{}, nil, nil, zap.NewNop(), PaymentConfig{})

	method := "transfer"
	payment, err := svc.UpdateStatus(context.Background(), "p1", models.PaymentPaid, "admin-1", &method)
	require.NoError(t, err)
	require.NotNil(t, payment.PaidAt)
	firstStamp := *payment.PaidAt
	assert.Equal(t, "transfer", *payment.Method)
	assert.Equal(t, "admin-1", *payment.OperatorID)

	payment, err = svc.UpdateStatus(context.Background(), "p1", models.PaymentPaid, "admin-2", nil)
	require.NoError(t, err)
	assert.Equal(t, firstStamp, *payment.PaidAt)
}

func TestPaymentUpdateStatusPaidNeverReopens(t *testing.T) {
	paidAt := time.Now().UTC()
	repo := &mockPaymentRepo{items: map[string]*models.Payment{
		"p1": {ID: "p1", UserID: "u1", Status: models.PaymentPaid, PaidAt: &paidAt},
	}}
	svc := NewPaymentService(repo, &mockPaymentUsers{}, nil, nil, zap.NewNop(), PaymentConfig{})

	_, err := svc.UpdateStatus(context.Background(), "p1", models.PaymentPending, "admin-1", nil)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, apiErr.Code)
}

func TestPaymentListScopesNonStaffToOwnVisible(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := NewPaymentService(repo, &mockPaymentUsers{}, nil, nil, zap.NewNop(), PaymentConfig{})

	student := &models.User{ID: "s1", Role: models.RoleStudent}
	_, err := svc.List(context.Background(), student, models.PaymentFilter{UserID: "someone-else"})
	require.NoError(t, err)
}

func TestPaymentGetForbiddenForOtherUser(t *testing.T) {
	repo := &mockPaymentRepo{items: map[string]*models.Payment{
		"p1": {ID: "p1", UserID: "u1", Status: models.PaymentPending},
	}}
	svc := NewPaymentService(repo, &mockPaymentUsers{}, nil, nil, zap.NewNop(), PaymentConfig{})

	other := &models.User{ID: "u2", Role: models.RoleStudent}
	_, err := svc.Get(context.Background(), other, "p1")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

func TestPaymentGenerateMonthlySkipsExisting(t *testing.T) {
	repo := &mockPaymentRepo{}
	users := &mockPaymentUsers{list: []models.User{
		{ID: "s1", Role: models.RoleStudent, Active: true},
		{ID: "s2", Role: models.RoleStudent, Active: true},
	}}
	svc := NewPaymentService(repo, users, nil, nil, zap.NewNop(), PaymentConfig{DueDay: 7, DefaultMonthly: 150})

	created, err := svc.GenerateMonthly(context.Background(), GenerateMonthlyRequest{Year: 2026, Month: time.September})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = svc.GenerateMonthly(context.Background(), GenerateMonthlyRequest{Year: 2026, Month: time.September})
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestPaymentGenerateMonthlyPagesThroughRoster(t *testing.T) {
	roster := make([]models.User, 250)
	for i := range roster {
		roster[i] = models.User{ID: fmt.Sprintf("student-%03d", i), Role: models.RoleStudent, Active: true}
	}
	repo := &mockPaymentRepo{}
	svc := NewPaymentService(repo, &mockPaymentUsers{list: roster}, nil, nil, zap.NewNop(), PaymentConfig{DueDay: 7, DefaultMonthly: 150})

	created, err := svc.GenerateMonthly(context.Background(), GenerateMonthlyRequest{Year: 2026, Month: time.September})
	require.NoError(t, err)
	assert.Equal(t, 250, created)
}

func TestPaymentGenerateMonthlyOverrides(t *testing.T) {
	repo := &mockPaymentRepo{}
	users := &mockPaymentUsers{list: []models.User{{ID: "s1", Role: models.RoleStudent, Active: true}}}
	svc := NewPaymentService(repo, users, nil, nil, zap.NewNop(), PaymentConfig{DueDay: 7, DefaultMonthly: 150})

	amount := 95.0
	description := "Reduced summer fee"
	created, err := svc.GenerateMonthly(context.Background(), GenerateMonthlyRequest{
		Year: 2026, Month: time.July, Amount: &amount, Description: &description,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, repo.monthlyRows, 1)
	assert.Equal(t, 95.0, repo.monthlyRows[0].Amount)
	assert.Equal(t, "Reduced summer fee", repo.monthlyRows[0].Description)

	bad := -1.0
	_, err = svc.GenerateMonthly(context.Background(), GenerateMonthlyRequest{Year: 2026, Month: time.August, Amount: &bad})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

type stubPaymentSettings struct {
	settings models.Settings
}

func (s *stubPaymentSettings) Current(ctx context.Context) (*models.Settings, error) {
	cp := s.settings
	return &cp, nil
}

func TestPaymentGenerateMonthlyUsesRuntimeSettings(t *testing.T) {
	repo := &mockPaymentRepo{}
	users := &mockPaymentUsers{list: []models.User{{ID: "s1", Role: models.RoleStudent, Active: true}}}
	settings := &stubPaymentSettings{settings: models.Settings{PaymentDueDay: 15, ToleranceDays: 3, MonthlyFee: 200}}
	svc := NewPaymentService(repo, users, settings, nil, zap.NewNop(), PaymentConfig{DueDay: 7, DefaultMonthly: 150})

	created, err := svc.GenerateMonthly(context.Background(), GenerateMonthlyRequest{Year: 2026, Month: time.September})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, repo.monthlyRows, 1)
	row := repo.monthlyRows[0]
	assert.Equal(t, 200.0, row.Amount)
	assert.Equal(t, 3, row.ToleranceDays)
	assert.Equal(t, 15, row.DueDate.Day())
}

func TestPaymentRegisterCash(t *testing.T) {
	repo := &mockPaymentRepo{}
	users := &mockPaymentUsers{users: map[string]*models.User{
		"11111111-2222-4333-8444-555555555555": {ID: "11111111-2222-4333-8444-555555555555", Role: models.RoleStudent, FirstName: "Anna", LastName: "Rossi"},
	}}
	svc := NewPaymentService(repo, users, nil, nil, zap.NewNop(), PaymentConfig{})

	payment, receipt, err := svc.RegisterCash(context.Background(), adminUser(), CashPaymentRequest{
		UserID: "11111111-2222-4333-8444-555555555555",
		Amount: 80,
		Reason: "September tuition",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, payment.Status)
	require.NotNil(t, payment.PaidAt)
	assert.Equal(t, "cash", *payment.Method)
	assert.True(t, strings.HasPrefix(receipt.Number, "CASH-"))
	assert.Equal(t, "Anna Rossi", receipt.Student)
	assert.Equal(t, "Ada Verdi", receipt.Operator)
}

func TestPaymentExportCSV(t *testing.T) {
	repo := &mockPaymentRepo{listResult: []models.Payment{
		{ID: "p1", UserID: "u1", Type: models.PaymentMonthly, Amount: 150, Description: "Monthly tuition 2026-09", DueDate: time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), Status: models.PaymentPending},
	}}
	svc := NewPaymentService(repo, &mockPaymentUsers{}, nil, nil, zap.NewNop(), PaymentConfig{})

	data, err := svc.ExportCSV(context.Background(), adminUser(), models.PaymentFilter{})
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Monthly tuition 2026-09")
	assert.Contains(t, content, "150.00")
}

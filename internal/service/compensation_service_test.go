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

type mockRateRepo struct {
	rates       map[string]*models.CompensationRate
	teacherRate *models.CompensationRate
	created     []*models.CompensationRate
	createErr   error
}

func (m *mockRateRepo) Create(ctx context.Context, rate *models.CompensationRate) error {
	if m.createErr != nil {
		return m.createErr
	}
	rate.ID = "rate-generated"
	m.created = append(m.created, rate)
	return nil
}

func (m *mockRateRepo) FindByID(ctx context.Context, id string) (*models.CompensationRate, error) {
	if rate, ok := m.rates[id]; ok {
		cp := *rate
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRateRepo) FindForTeacher(ctx context.Context, teacherID string, courseID *string) (*models.CompensationRate, error) {
	if m.teacherRate != nil {
		cp := *m.teacherRate
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRateRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.CompensationRate, error) {
	return nil, nil
}

func (m *mockRateRepo) Update(ctx context.Context, rate *models.CompensationRate) error {
	if m.rates == nil {
		m.rates = make(map[string]*models.CompensationRate)
	}
	cp := *rate
	m.rates[rate.ID] = &cp
	return nil
}

func (m *mockRateRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.rates[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rates, id)
	return nil
}

type mockCompensationAttendance struct {
	records []models.Attendance
}

func (m *mockCompensationAttendance) ListForTeacherPeriod(ctx context.Context, teacherID string, from, to time.Time) ([]models.Attendance, error) {
	return m.records, nil
}

type mockUserLookup struct {
	users map[string]*models.User
}

func (m *mockUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func testTeacher(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleTeacher, FirstName: "Marco", LastName: "Bianchi", Active: true}
}

func TestCompensationComputeBreakdown(t *testing.T) {
	makeup := time.Date(2026, 9, 20, 15, 0, 0, 0, time.UTC)
	records := []models.Attendance{
		{Status: models.AttendancePresent},
		{Status: models.AttendanceAbsentUnjustified},
		{Status: models.AttendanceAbsentJustified},
		{Status: models.AttendanceAbsentJustified, MakeupDate: &makeup},
		{Status: models.AttendanceMakeup},
	}
	svc := NewCompensationService(
		&mockRateRepo{},
		&mockCompensationAttendance{records: records},
		&mockUserLookup{users: map[string]*models.User{"t1": testTeacher("t1")}},
		nil, zap.NewNop(), 30,
	)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	statement, err := svc.Compute(context.Background(), "t1", from, to)
	require.NoError(t, err)

	assert.Equal(t, 1, statement.Breakdown.Present)
	assert.Equal(t, 1, statement.Breakdown.AbsentUnjustified)
	assert.Equal(t, 2, statement.Breakdown.AbsentJustified)
	assert.Equal(t, 1, statement.Breakdown.JustifiedWithMakeup)
	assert.Equal(t, 1, statement.Breakdown.Makeup)
	assert.Equal(t, 3, statement.PaidLessonCount)
	assert.Equal(t, 30.0, statement.RatePerLesson)
	assert.Equal(t, 90.0, statement.TotalAmount)
}

func TestCompensationRecoveredLessonPaidOnce(t *testing.T) {
	makeup := time.Date(2026, 9, 20, 15, 0, 0, 0, time.UTC)
	records := []models.Attendance{
		{Status: models.AttendanceAbsentJustified, MakeupDate: &makeup},
		{Status: models.AttendanceMakeup, Date: makeup},
	}
	svc := NewCompensationService(
		&mockRateRepo{},
		&mockCompensationAttendance{records: records},
		&mockUserLookup{users: map[string]*models.User{"t1": testTeacher("t1")}},
		nil, zap.NewNop(), 30,
	)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	statement, err := svc.Compute(context.Background(), "t1", from, from.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, statement.PaidLessonCount)
	assert.Equal(t, 30.0, statement.TotalAmount)
}

func TestCompensationComputeUsesConfiguredRate(t *testing.T) {
	svc := NewCompensationService(
		&mockRateRepo{teacherRate: &models.CompensationRate{TeacherID: "t1", RatePerLesson: 45}},
		&mockCompensationAttendance{records: []models.Attendance{{Status: models.AttendancePresent}, {Status: models.AttendancePresent}}},
		&mockUserLookup{users: map[string]*models.User{"t1": testTeacher("t1")}},
		nil, zap.NewNop(), 30,
	)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	statement, err := svc.Compute(context.Background(), "t1", from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 45.0, statement.RatePerLesson)
	assert.Equal(t, 90.0, statement.TotalAmount)
}

func TestCompensationComputeRejectsEmptyPeriod(t *testing.T) {
	svc := NewCompensationService(&mockRateRepo{}, &mockCompensationAttendance{}, &mockUserLookup{}, nil, zap.NewNop(), 30)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Compute(context.Background(), "t1", from, from)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestCompensationComputeRejectsNonTeacher(t *testing.T) {
	student := &models.User{ID: "s1", Role: models.RoleStudent}
	svc := NewCompensationService(&mockRateRepo{}, &mockCompensationAttendance{}, &mockUserLookup{users: map[string]*models.User{"s1": student}}, nil, zap.NewNop(), 30)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Compute(context.Background(), "s1", from, from.AddDate(0, 1, 0))
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestCompensationStatementPDF(t *testing.T) {
	svc := NewCompensationService(
		&mockRateRepo{},
		&mockCompensationAttendance{records: []models.Attendance{{Status: models.AttendancePresent}}},
		&mockUserLookup{users: map[string]*models.User{"t1": testTeacher("t1")}},
		nil, zap.NewNop(), 30,
	)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	data, err := svc.StatementPDF(context.Background(), "t1", from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestCompensationUpdateRateNotFound(t *testing.T) {
	svc := NewCompensationService(&mockRateRepo{}, &mockCompensationAttendance{}, &mockUserLookup{}, nil, zap.NewNop(), 30)

	_, err := svc.UpdateRate(context.Background(), "missing", 40)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)
}

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

type mockAttendanceRepo struct {
	records map[string]*models.Attendance
}

func (m *mockAttendanceRepo) Create(ctx context.Context, att *models.Attendance) error {
	if m.records == nil {
		m.records = make(map[string]*models.Attendance)
	}
	if att.ID == "" {
		att.ID = "att-generated"
	}
	cp := *att
	m.records[att.ID] = &cp
	return nil
}

func (m *mockAttendanceRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	if att, ok := m.records[id]; ok {
		cp := *att
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	var out []models.Attendance
	for _, att := range m.records {
		if filter.TeacherID != "" && att.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && att.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *att)
	}
	return out, nil
}

func (m *mockAttendanceRepo) Update(ctx context.Context, att *models.Attendance) error {
	if _, ok := m.records[att.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *att
	m.records[att.ID] = &cp
	return nil
}

func (m *mockAttendanceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.records, id)
	return nil
}

func attendanceDate() time.Time {
	return time.Date(2026, 9, 3, 16, 0, 0, 0, time.UTC)
}

func TestAttendanceCreateByTeacher(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, nil, zap.NewNop())

	teacher := &models.User{ID: "t1", Role: models.RoleTeacher}
	att, err := svc.Create(context.Background(), teacher, "ignored", CreateAttendanceRequest{
		StudentID: "11111111-2222-4333-8444-555555555555",
		Date:      attendanceDate(),
		Status:    models.AttendancePresent,
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", att.TeacherID)
	assert.Equal(t, models.AttendancePresent, att.Status)
}

func TestAttendanceCreateUnknownStatus(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, nil, zap.NewNop())

	teacher := &models.User{ID: "t1", Role: models.RoleTeacher}
	_, err := svc.Create(context.Background(), teacher, "", CreateAttendanceRequest{
		StudentID: "11111111-2222-4333-8444-555555555555",
		Date:      attendanceDate(),
		Status:    models.AttendanceStatus("LATE"),
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestAttendanceMakeupDateOnlyForJustified(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, nil, zap.NewNop())

	makeup := attendanceDate().AddDate(0, 0, 7)
	teacher := &models.User{ID: "t1", Role: models.RoleTeacher}
	_, err := svc.Create(context.Background(), teacher, "", CreateAttendanceRequest{
		StudentID:  "11111111-2222-4333-8444-555555555555",
		Date:       attendanceDate(),
		Status:     models.AttendancePresent,
		MakeupDate: &makeup,
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)

	att, err := svc.Create(context.Background(), teacher, "", CreateAttendanceRequest{
		StudentID:  "11111111-2222-4333-8444-555555555555",
		Date:       attendanceDate(),
		Status:     models.AttendanceAbsentJustified,
		MakeupDate: &makeup,
	})
	require.NoError(t, err)
	require.NotNil(t, att.MakeupDate)
	assert.Equal(t, makeup, *att.MakeupDate)
}

func TestAttendanceListScopedByRole(t *testing.T) {
	repo := &mockAttendanceRepo{records: map[string]*models.Attendance{
		"a1": {ID: "a1", TeacherID: "t1", StudentID: "s1", Status: models.AttendancePresent},
		"a2": {ID: "a2", TeacherID: "t2", StudentID: "s2", Status: models.AttendancePresent},
	}}
	svc := NewAttendanceService(repo, nil, zap.NewNop())

	teacher := &models.User{ID: "t1", Role: models.RoleTeacher}
	records, err := svc.List(context.Background(), teacher, models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0].ID)

	student := &models.User{ID: "s2", Role: models.RoleStudent}
	records, err = svc.List(context.Background(), student, models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a2", records[0].ID)

	records, err = svc.List(context.Background(), adminUser(), models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestAttendanceUpdateAdminOnly(t *testing.T) {
	repo := &mockAttendanceRepo{records: map[string]*models.Attendance{
		"a1": {ID: "a1", TeacherID: "t1", StudentID: "s1", Date: attendanceDate(), Status: models.AttendancePresent},
	}}
	svc := NewAttendanceService(repo, nil, zap.NewNop())

	teacher := &models.User{ID: "t1", Role: models.RoleTeacher}
	_, err := svc.Update(context.Background(), teacher, "a1", UpdateAttendanceRequest{
		Date:   attendanceDate(),
		Status: models.AttendanceAbsentUnjustified,
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	updated, err := svc.Update(context.Background(), adminUser(), "a1", UpdateAttendanceRequest{
		Date:   attendanceDate(),
		Status: models.AttendanceAbsentUnjustified,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAbsentUnjustified, updated.Status)
}

func TestAttendanceDelete(t *testing.T) {
	repo := &mockAttendanceRepo{records: map[string]*models.Attendance{
		"a1": {ID: "a1", TeacherID: "t1", StudentID: "s1", Status: models.AttendancePresent},
	}}
	svc := NewAttendanceService(repo, nil, zap.NewNop())

	student := &models.User{ID: "s1", Role: models.RoleStudent}
	err := svc.Delete(context.Background(), student, "a1")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	require.NoError(t, svc.Delete(context.Background(), adminUser(), "a1"))
	err = svc.Delete(context.Background(), adminUser(), "a1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)
}

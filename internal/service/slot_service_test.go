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

type mockSlotRepo struct {
	slots   map[string]*models.LessonSlot
	overlap bool
}

func (m *mockSlotRepo) Create(ctx context.Context, slot *models.LessonSlot) error {
	if m.slots == nil {
		m.slots = make(map[string]*models.LessonSlot)
	}
	if slot.ID == "" {
		slot.ID = "slot-generated"
	}
	cp := *slot
	m.slots[slot.ID] = &cp
	return nil
}

func (m *mockSlotRepo) FindByID(ctx context.Context, id string) (*models.LessonSlot, error) {
	if slot, ok := m.slots[id]; ok {
		cp := *slot
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSlotRepo) List(ctx context.Context, filter models.LessonSlotFilter) ([]models.LessonSlot, error) {
	return nil, nil
}

func (m *mockSlotRepo) ListBookedByStudent(ctx context.Context, studentID string) ([]models.LessonSlot, error) {
	return nil, nil
}

func (m *mockSlotRepo) HasOverlap(ctx context.Context, teacherID string, startsAt time.Time, durationMinutes int, excludeID string) (bool, error) {
	return m.overlap, nil
}

func (m *mockSlotRepo) Book(ctx context.Context, slotID, studentID string, note *string) (bool, error) {
	slot, ok := m.slots[slotID]
	if !ok || slot.Status != models.SlotAvailable {
		return false, nil
	}
	now := time.Now().UTC()
	slot.Status = models.SlotBooked
	slot.StudentID = &studentID
	slot.BookedAt = &now
	if note != nil {
		slot.Note = note
	}
	return true, nil
}

func (m *mockSlotRepo) Release(ctx context.Context, slotID string) (bool, error) {
	slot, ok := m.slots[slotID]
	if !ok || slot.Status != models.SlotBooked {
		return false, nil
	}
	slot.Status = models.SlotAvailable
	slot.StudentID = nil
	slot.BookedAt = nil
	return true, nil
}

func (m *mockSlotRepo) Cancel(ctx context.Context, slotID string) error {
	slot, ok := m.slots[slotID]
	if !ok {
		return sql.ErrNoRows
	}
	slot.Status = models.SlotCancelled
	return nil
}

func (m *mockSlotRepo) Update(ctx context.Context, slot *models.LessonSlot) error {
	cp := *slot
	m.slots[slot.ID] = &cp
	return nil
}

func (m *mockSlotRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.slots[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.slots, id)
	return nil
}

type mockNotifier struct {
	notified [][]string
	titles   []string
}

func (m *mockNotifier) Notify(ctx context.Context, title, message string, recipientIDs []string, kind models.NotificationType) (*models.Notification, error) {
	m.notified = append(m.notified, recipientIDs)
	m.titles = append(m.titles, title)
	return &models.Notification{ID: "n-1", Title: title}, nil
}

func availableSlot() *models.LessonSlot {
	return &models.LessonSlot{
		ID:              "slot-1",
		TeacherID:       "t1",
		Instrument:      "piano",
		StartsAt:        time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		Status:          models.SlotAvailable,
	}
}

func TestSlotBook(t *testing.T) {
	repo := &mockSlotRepo{slots: map[string]*models.LessonSlot{"slot-1": availableSlot()}}
	notifier := &mockNotifier{}
	svc := NewSlotService(repo, &mockUserLookup{users: map[string]*models.User{"t1": testTeacher("t1")}}, notifier, nil, zap.NewNop())

	slot, err := svc.Book(context.Background(), "slot-1", "s1", BookSlotRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.SlotBooked, slot.Status)
	require.NotNil(t, slot.StudentID)
	assert.Equal(t, "s1", *slot.StudentID)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, []string{"t1"}, notifier.notified[0])
}

func TestSlotBookConflict(t *testing.T) {
	slot := availableSlot()
	studentID := "s1"
	slot.Status = models.SlotBooked
	slot.StudentID = &studentID
	repo := &mockSlotRepo{slots: map[string]*models.LessonSlot{"slot-1": slot}}
	svc := NewSlotService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	_, err := svc.Book(context.Background(), "slot-1", "s2", BookSlotRequest{})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestSlotBookMissing(t *testing.T) {
	repo := &mockSlotRepo{}
	svc := NewSlotService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	_, err := svc.Book(context.Background(), "missing", "s1", BookSlotRequest{})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)
}

func TestSlotCreateOverlap(t *testing.T) {
	repo := &mockSlotRepo{overlap: true}
	svc := NewSlotService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateSlotRequest{
		TeacherID:       "11111111-2222-4333-8444-555555555555",
		Instrument:      "piano",
		StartsAt:        time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestSlotCancelBookingOwnerOnly(t *testing.T) {
	slot := availableSlot()
	studentID := "s1"
	slot.Status = models.SlotBooked
	slot.StudentID = &studentID
	repo := &mockSlotRepo{slots: map[string]*models.LessonSlot{"slot-1": slot}}
	svc := NewSlotService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	other := &models.User{ID: "s2", Role: models.RoleStudent}
	err := svc.CancelBooking(context.Background(), "slot-1", other)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	owner := &models.User{ID: "s1", Role: models.RoleStudent}
	require.NoError(t, svc.CancelBooking(context.Background(), "slot-1", owner))
	assert.Equal(t, models.SlotAvailable, repo.slots["slot-1"].Status)
}

func TestSlotCancelBookingNotBooked(t *testing.T) {
	repo := &mockSlotRepo{slots: map[string]*models.LessonSlot{"slot-1": availableSlot()}}
	svc := NewSlotService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	admin := &models.User{ID: "a1", Role: models.RoleAdmin}
	err := svc.CancelBooking(context.Background(), "slot-1", admin)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, apiErr.Code)
}

func TestSlotDeleteBookedCancelsAndNotifies(t *testing.T) {
	slot := availableSlot()
	studentID := "s1"
	slot.Status = models.SlotBooked
	slot.StudentID = &studentID
	repo := &mockSlotRepo{slots: map[string]*models.LessonSlot{"slot-1": slot}}
	notifier := &mockNotifier{}
	svc := NewSlotService(repo, &mockUserLookup{}, notifier, nil, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "slot-1"))
	assert.Equal(t, models.SlotCancelled, repo.slots["slot-1"].Status)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, []string{"s1"}, notifier.notified[0])
}

func TestSlotDeleteAvailableRemovesRow(t *testing.T) {
	repo := &mockSlotRepo{slots: map[string]*models.LessonSlot{"slot-1": availableSlot()}}
	svc := NewSlotService(repo, &mockUserLookup{}, &mockNotifier{}, nil, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "slot-1"))
	assert.Empty(t, repo.slots)
}

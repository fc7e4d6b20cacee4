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

type slotRepository interface {
	Create(ctx context.Context, slot *models.LessonSlot) error
	FindByID(ctx context.Context, id string) (*models.LessonSlot, error)
	List(ctx context.Context, filter models.LessonSlotFilter) ([]models.LessonSlot, error)
	ListBookedByStudent(ctx context.Context, studentID string) ([]models.LessonSlot, error)
	HasOverlap(ctx context.Context, teacherID string, startsAt time.Time, durationMinutes int, excludeID string) (bool, error)
	Book(ctx context.Context, slotID, studentID string, note *string) (bool, error)
	Release(ctx context.Context, slotID string) (bool, error)
	Cancel(ctx context.Context, slotID string) error
	Update(ctx context.Context, slot *models.LessonSlot) error
	Delete(ctx context.Context, id string) error
}

type slotUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type slotNotifier interface {
	Notify(ctx context.Context, title, message string, recipientIDs []string, kind models.NotificationType) (*models.Notification, error)
}

// CreateSlotRequest represents payload for opening a bookable slot.
type CreateSlotRequest struct {
	TeacherID       string    `json:"teacher_id" validate:"required,uuid4"`
	Instrument      string    `json:"instrument" validate:"required"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
}

// BookSlotRequest represents payload for booking a slot.
type BookSlotRequest struct {
	Note *string `json:"note,omitempty"`
}

// SlotService handles the bookable lesson slot lifecycle.
type SlotService struct {
	repo      slotRepository
	users     slotUserLookup
	notifier  slotNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSlotService creates an instance of SlotService.
func NewSlotService(repo slotRepository, users slotUserLookup, notifier slotNotifier, validate *validator.Validate, logger *zap.Logger) *SlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SlotService{repo: repo, users: users, notifier: notifier, validator: validate, logger: logger}
}

// List returns slots matching the filter with display names attached.
func (s *SlotService) List(ctx context.Context, filter models.LessonSlotFilter) ([]models.LessonSlot, error) {
	slots, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	for i := range slots {
		s.attachNames(ctx, &slots[i])
	}
	return slots, nil
}

// ListBookedByStudent returns a student's upcoming bookings.
func (s *SlotService) ListBookedByStudent(ctx context.Context, studentID string) ([]models.LessonSlot, error) {
	slots, err := s.repo.ListBookedByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list booked slots")
	}
	for i := range slots {
		s.attachNames(ctx, &slots[i])
	}
	return slots, nil
}

// Get returns a slot by ID.
func (s *SlotService) Get(ctx context.Context, id string) (*models.LessonSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	s.attachNames(ctx, slot)
	return slot, nil
}

// Create opens a new AVAILABLE slot. A teacher may not hold two non-cancelled
// slots with overlapping time ranges.
func (s *SlotService) Create(ctx context.Context, req CreateSlotRequest) (*models.LessonSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create slot payload")
	}

	overlap, err := s.repo.HasOverlap(ctx, req.TeacherID, req.StartsAt, req.DurationMinutes, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot overlap")
	}
	if overlap {
		return nil, appErrors.Clone(appErrors.ErrConflict, "slot overlaps an existing slot")
	}

	slot := &models.LessonSlot{
		TeacherID:       req.TeacherID,
		Instrument:      req.Instrument,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		Status:          models.SlotAvailable,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
	}
	return slot, nil
}

// Book claims an AVAILABLE slot for the student. The update is conditional,
// so the slower of two concurrent bookings gets a conflict.
func (s *SlotService) Book(ctx context.Context, slotID, studentID string, req BookSlotRequest) (*models.LessonSlot, error) {
	booked, err := s.repo.Book(ctx, slotID, studentID, req.Note)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book slot")
	}
	if !booked {
		if _, err := s.repo.FindByID(ctx, slotID); errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "slot is no longer available")
	}

	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	s.attachNames(ctx, slot)

	s.notifyBooking(ctx, slot)
	return slot, nil
}

// CancelBooking releases a student's booking back to the available pool. Only
// the booking student or an admin may release it.
func (s *SlotService) CancelBooking(ctx context.Context, slotID string, actor *models.User) error {
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}

	if actor.Role != models.RoleAdmin {
		if slot.StudentID == nil || *slot.StudentID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "slot is not booked by this student")
		}
	}

	released, err := s.repo.Release(ctx, slotID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release slot")
	}
	if !released {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "slot is not booked")
	}
	return nil
}

// Delete removes an AVAILABLE slot. A booked slot is cancelled instead so
// the student keeps a record of what happened, and is notified.
func (s *SlotService) Delete(ctx context.Context, slotID string) error {
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}

	if slot.Status == models.SlotBooked {
		if err := s.repo.Cancel(ctx, slotID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel slot")
		}
		s.notifyCancellation(ctx, slot)
		return nil
	}

	if err := s.repo.Delete(ctx, slotID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete slot")
	}
	return nil
}

func (s *SlotService) attachNames(ctx context.Context, slot *models.LessonSlot) {
	if teacher, err := s.users.FindByID(ctx, slot.TeacherID); err == nil {
		slot.TeacherName = teacher.FirstName + " " + teacher.LastName
	}
	if slot.StudentID != nil {
		if student, err := s.users.FindByID(ctx, *slot.StudentID); err == nil {
			slot.StudentName = student.FirstName + " " + student.LastName
		}
	}
}

func (s *SlotService) notifyBooking(ctx context.Context, slot *models.LessonSlot) {
	if s.notifier == nil {
		return
	}
	message := fmt.Sprintf("A %s lesson was booked for %s.", slot.Instrument, slot.StartsAt.Format("2006-01-02 15:04"))
	if _, err := s.notifier.Notify(ctx, "Lesson booked", message, []string{slot.TeacherID}, models.NotificationLesson); err != nil {
		s.logger.Warn("failed to notify teacher of booking", zap.Error(err))
	}
}

func (s *SlotService) notifyCancellation(ctx context.Context, slot *models.LessonSlot) {
	if s.notifier == nil || slot.StudentID == nil {
		return
	}
	message := fmt.Sprintf("Your %s lesson on %s was cancelled.", slot.Instrument, slot.StartsAt.Format("2006-01-02 15:04"))
	if _, err := s.notifier.Notify(ctx, "Lesson cancelled", message, []string{*slot.StudentID}, models.NotificationLesson); err != nil {
		s.logger.Warn("failed to notify student of cancellation", zap.Error(err))
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type attendanceRepository interface {
	Create(ctx context.Context, att *models.Attendance) error
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error)
	Update(ctx context.Context, att *models.Attendance) error
	Delete(ctx context.Context, id string) error
}

// CreateAttendanceRequest represents payload for recording attendance.
type CreateAttendanceRequest struct {
	CourseID   *string                 `json:"course_id,omitempty"`
	LessonID   *string                 `json:"lesson_id,omitempty"`
	StudentID  string                  `json:"student_id" validate:"required,uuid4"`
	Date       time.Time               `json:"date" validate:"required"`
	Status     models.AttendanceStatus `json:"status" validate:"required"`
	MakeupDate *time.Time              `json:"makeup_date,omitempty"`
	Note       *string                 `json:"note,omitempty"`
}

// UpdateAttendanceRequest represents payload for correcting a record.
type UpdateAttendanceRequest struct {
	Date       time.Time               `json:"date" validate:"required"`
	Status     models.AttendanceStatus `json:"status" validate:"required"`
	MakeupDate *time.Time              `json:"makeup_date,omitempty"`
	Note       *string                 `json:"note,omitempty"`
}

// AttendanceService handles attendance bookkeeping. Records are created by
// the teacher who held the lesson; once saved only admins may revise them.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService creates an instance of AttendanceService.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{repo: repo, validator: validate, logger: logger}
}

// List returns attendance records visible to the actor. Teachers see their
// own records, students their own, admins and secretaries everything.
func (s *AttendanceService) List(ctx context.Context, actor *models.User, filter models.AttendanceFilter) ([]models.Attendance, error) {
	switch actor.Role {
	case models.RoleTeacher:
		filter.TeacherID = actor.ID
	case models.RoleStudent:
		filter.StudentID = actor.ID
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Create records attendance for a student. The teacher id is taken from the
// actor unless an admin records on a teacher's behalf via filter semantics.
func (s *AttendanceService) Create(ctx context.Context, actor *models.User, teacherID string, req CreateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	if req.MakeupDate != nil && req.Status != models.AttendanceAbsentJustified {
		return nil, appErrors.Clone(appErrors.ErrValidation, "makeup_date only applies to justified absences")
	}

	if actor.Role == models.RoleTeacher {
		teacherID = actor.ID
	}
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}

	att := &models.Attendance{
		CourseID:   req.CourseID,
		LessonID:   req.LessonID,
		StudentID:  req.StudentID,
		TeacherID:  teacherID,
		Date:       req.Date,
		Status:     req.Status,
		MakeupDate: req.MakeupDate,
		Note:       req.Note,
	}
	if err := s.repo.Create(ctx, att); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attendance")
	}
	return att, nil
}

// Update revises a saved record. Admin only.
func (s *AttendanceService) Update(ctx context.Context, actor *models.User, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may revise attendance")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	if req.MakeupDate != nil && req.Status != models.AttendanceAbsentJustified {
		return nil, appErrors.Clone(appErrors.ErrValidation, "makeup_date only applies to justified absences")
	}

	att, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	att.Date = req.Date
	att.Status = req.Status
	att.MakeupDate = req.MakeupDate
	att.Note = req.Note

	if err := s.repo.Update(ctx, att); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	return att, nil
}

// Delete removes a record. Admin only.
func (s *AttendanceService) Delete(ctx context.Context, actor *models.User, id string) error {
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may delete attendance")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	return nil
}

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

type assignmentRepository interface {
	Create(ctx context.Context, a *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	Update(ctx context.Context, a *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

// CreateAssignmentRequest represents payload for handing out homework.
type CreateAssignmentRequest struct {
	StudentID   string    `json:"student_id" validate:"required,uuid4"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// UpdateAssignmentRequest represents payload for revising homework.
type UpdateAssignmentRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Completed   *bool     `json:"completed"`
}

// AssignmentService handles homework workflows.
type AssignmentService struct {
	repo      assignmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService creates an instance of AssignmentService.
func NewAssignmentService(repo assignmentRepository, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{repo: repo, validator: validate, logger: logger}
}

// List returns assignments visible to the actor. Teachers see what they
// handed out, students what they received.
func (s *AssignmentService) List(ctx context.Context, actor *models.User, filter models.AssignmentFilter) ([]models.Assignment, error) {
	switch actor.Role {
	case models.RoleTeacher:
		filter.TeacherID = actor.ID
	case models.RoleStudent:
		filter.StudentID = actor.ID
	}

	assignments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Create hands homework to a student.
func (s *AssignmentService) Create(ctx context.Context, teacherID string, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment := &models.Assignment{
		TeacherID:   teacherID,
		StudentID:   req.StudentID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Update revises an assignment. The owning teacher or an admin may edit it;
// a student may only flip the completed flag on their own assignment.
func (s *AssignmentService) Update(ctx context.Context, actor *models.User, id string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if assignment.TeacherID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
		}
	case models.RoleStudent:
		if assignment.StudentID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another student")
		}
		if req.Completed == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only mark completion")
		}
		assignment.Completed = *req.Completed
		if err := s.repo.Update(ctx, assignment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
		}
		return assignment, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not edit assignments")
	}

	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.DueDate = req.DueDate
	if req.Completed != nil {
		assignment.Completed = *req.Completed
	}

	if err := s.repo.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	return assignment, nil
}

// Delete removes an assignment. Restricted to the owning teacher or admins.
func (s *AssignmentService) Delete(ctx context.Context, actor *models.User, id string) error {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	if actor.Role != models.RoleAdmin && assignment.TeacherID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

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

type compensationRateRepository interface {
	Create(ctx context.Context, rate *models.CompensationRate) error
	FindByID(ctx context.Context, id string) (*models.CompensationRate, error)
	FindForTeacher(ctx context.Context, teacherID string, courseID *string) (*models.CompensationRate, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.CompensationRate, error)
	Update(ctx context.Context, rate *models.CompensationRate) error
	Delete(ctx context.Context, id string) error
}

type compensationAttendanceRepository interface {
	ListForTeacherPeriod(ctx context.Context, teacherID string, from, to time.Time) ([]models.Attendance, error)
}

type compensationUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SetRateRequest represents payload for setting a compensation rate.
type SetRateRequest struct {
	TeacherID     string  `json:"teacher_id" validate:"required,uuid4"`
	CourseID      *string `json:"course_id,omitempty"`
	RatePerLesson float64 `json:"rate_per_lesson" validate:"required,gt=0"`
}

// CompensationService computes teacher compensation statements from
// attendance and manages the per-teacher rates feeding them.
type CompensationService struct {
	rates       compensationRateRepository
	attendance  compensationAttendanceRepository
	users       compensationUserLookup
	pdf         *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
	defaultRate float64
}

// NewCompensationService creates an instance of CompensationService.
func NewCompensationService(rates compensationRateRepository, attendance compensationAttendanceRepository, users compensationUserLookup, validate *validator.Validate, logger *zap.Logger, defaultRate float64) *CompensationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CompensationService{rates: rates, attendance: attendance, users: users, pdf: export.NewPDFExporter(), validator: validate, logger: logger, defaultRate: defaultRate}
}

// Compute builds the statement for a teacher over [from, to]. Payable
// occurrences are presences, unjustified absences and justified absences
// carrying a makeup date; the MAKEUP row of a recovered lesson is listed in
// the breakdown but not paid again. The total is rate times the payable
// count; nothing is persisted.
func (s *CompensationService) Compute(ctx context.Context, teacherID string, from, to time.Time) (*models.CompensationStatement, error) {
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period end must follow period start")
	}

	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
	}

	records, err := s.attendance.ListForTeacherPeriod(ctx, teacherID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	rate := s.resolveRate(ctx, teacherID)

	statement := &models.CompensationStatement{
		TeacherID:     teacherID,
		PeriodStart:   from,
		PeriodEnd:     to,
		RatePerLesson: rate,
	}
	for _, record := range records {
		switch record.Status {
		case models.AttendancePresent:
			statement.Breakdown.Present++
		case models.AttendanceAbsentUnjustified:
			statement.Breakdown.AbsentUnjustified++
		case models.AttendanceAbsentJustified:
			statement.Breakdown.AbsentJustified++
			if record.MakeupDate != nil {
				statement.Breakdown.JustifiedWithMakeup++
			}
		case models.AttendanceMakeup:
			statement.Breakdown.Makeup++
		}
		if record.Payable() {
			statement.PaidLessonCount++
		}
	}
	statement.TotalAmount = rate * float64(statement.PaidLessonCount)

	return statement, nil
}

// StatementPDF renders the computed statement as a PDF document.
func (s *CompensationService) StatementPDF(ctx context.Context, teacherID string, from, to time.Time) ([]byte, error) {
	statement, err := s.Compute(ctx, teacherID, from, to)
	if err != nil {
		return nil, err
	}

	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	dataset := export.Dataset{
		Headers: []string{"Category", "Count"},
		Rows: []map[string]string{
			{"Category": "Present", "Count": strconv.Itoa(statement.Breakdown.Present)},
			{"Category": "Absent unjustified", "Count": strconv.Itoa(statement.Breakdown.AbsentUnjustified)},
			{"Category": "Absent justified", "Count": strconv.Itoa(statement.Breakdown.AbsentJustified)},
			{"Category": "Justified with makeup", "Count": strconv.Itoa(statement.Breakdown.JustifiedWithMakeup)},
			{"Category": "Makeup lessons", "Count": strconv.Itoa(statement.Breakdown.Makeup)},
			{"Category": "Payable lessons", "Count": strconv.Itoa(statement.PaidLessonCount)},
			{"Category": "Rate per lesson", "Count": strconv.FormatFloat(statement.RatePerLesson, 'f', 2, 64)},
			{"Category": "Total", "Count": strconv.FormatFloat(statement.TotalAmount, 'f', 2, 64)},
		},
	}

	title := fmt.Sprintf("Compensation %s %s (%s - %s)", teacher.FirstName, teacher.LastName, from.Format("2006-01-02"), to.Format("2006-01-02"))
	data, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement pdf")
	}
	return data, nil
}

// ListRates returns every rate configured for a teacher.
func (s *CompensationService) ListRates(ctx context.Context, teacherID string) ([]models.CompensationRate, error) {
	rates, err := s.rates.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rates")
	}
	return rates, nil
}

// SetRate creates a rate row for a teacher, optionally scoped to a course.
func (s *CompensationService) SetRate(ctx context.Context, req SetRateRequest) (*models.CompensationRate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rate payload")
	}

	rate := &models.CompensationRate{
		TeacherID:     req.TeacherID,
		CourseID:      req.CourseID,
		RatePerLesson: req.RatePerLesson,
	}
	if err := s.rates.Create(ctx, rate); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "rate already exists for this scope")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rate")
	}
	return rate, nil
}

// UpdateRate changes the amount of an existing rate.
func (s *CompensationService) UpdateRate(ctx context.Context, id string, ratePerLesson float64) (*models.CompensationRate, error) {
	if ratePerLesson <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rate_per_lesson must be positive")
	}

	rate, err := s.rates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rate")
	}

	rate.RatePerLesson = ratePerLesson
	if err := s.rates.Update(ctx, rate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rate")
	}
	return rate, nil
}

// DeleteRate removes a rate row.
func (s *CompensationService) DeleteRate(ctx context.Context, id string) error {
	if err := s.rates.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "rate not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete rate")
	}
	return nil
}

func (s *CompensationService) resolveRate(ctx context.Context, teacherID string) float64 {
	rate, err := s.rates.FindForTeacher(ctx, teacherID, nil)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to resolve compensation rate", zap.Error(err))
		}
		return s.defaultRate
	}
	return rate.RatePerLesson
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/accademia-musici/academy-api/internal/models"
)

const compensationRateColumns = `id, teacher_id, course_id, rate_per_lesson, created_at, updated_at`

// CompensationRateRepository provides database access for per-teacher rates.
type CompensationRateRepository struct {
	db *sqlx.DB
}

// NewCompensationRateRepository creates a new instance of CompensationRateRepository.
func NewCompensationRateRepository(db *sqlx.DB) *CompensationRateRepository {
	return &CompensationRateRepository{db: db}
}

// Create inserts a new rate.
func (r *CompensationRateRepository) Create(ctx context.Context, rate *models.CompensationRate) error {
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rate.CreatedAt.IsZero() {
		rate.CreatedAt = now
	}
	rate.UpdatedAt = now
	const query = `INSERT INTO compensation_rates (id, teacher_id, course_id, rate_per_lesson, created_at, updated_at) VALUES (:id, :teacher_id, :course_id, :rate_per_lesson, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rate); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create compensation rate: %w", err)
	}
	return nil
}

// FindByID returns a rate by identifier.
func (r *CompensationRateRepository) FindByID(ctx context.Context, id string) (*models.CompensationRate, error) {
	const query = `SELECT ` + compensationRateColumns + ` FROM compensation_rates WHERE id = $1 LIMIT 1`
	var rate models.CompensationRate
	if err := r.db.GetContext(ctx, &rate, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find compensation rate by id: %w", err)
	}
	return &rate, nil
}

// FindForTeacher resolves the effective rate for a teacher: a course-specific
// row wins over the teacher-wide row. Returns sql.ErrNoRows when neither
// exists, leaving the caller to fall back to the configured default.
func (r *CompensationRateRepository) FindForTeacher(ctx context.Context, teacherID string, courseID *string) (*models.CompensationRate, error) {
	const query = `SELECT ` + compensationRateColumns + ` FROM compensation_rates WHERE teacher_id = $1 AND (course_id = $2 OR course_id IS NULL) ORDER BY course_id NULLS LAST LIMIT 1`
	var rate models.CompensationRate
	if err := r.db.GetContext(ctx, &rate, query, teacherID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find compensation rate for teacher: %w", err)
	}
	return &rate, nil
}

// ListByTeacher returns every rate owned by the teacher.
func (r *CompensationRateRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.CompensationRate, error) {
	const query = `SELECT ` + compensationRateColumns + ` FROM compensation_rates WHERE teacher_id = $1 ORDER BY course_id NULLS FIRST`
	var rates []models.CompensationRate
	if err := r.db.SelectContext(ctx, &rates, query, teacherID); err != nil {
		return nil, fmt.Errorf("list compensation rates: %w", err)
	}
	return rates, nil
}

// Update rewrites the rate amount.
func (r *CompensationRateRepository) Update(ctx context.Context, rate *models.CompensationRate) error {
	rate.UpdatedAt = time.Now().UTC()
	const query = `UPDATE compensation_rates SET rate_per_lesson = :rate_per_lesson, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, rate); err != nil {
		return fmt.Errorf("update compensation rate: %w", err)
	}
	return nil
}

// Delete removes a rate.
func (r *CompensationRateRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM compensation_rates WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete compensation rate: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

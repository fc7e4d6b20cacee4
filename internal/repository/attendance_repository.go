package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/accademia-musici/academy-api/internal/models"
)

const attendanceColumns = `id, course_id, lesson_id, student_id, teacher_id, date, status, makeup_date, note, created_at`

// AttendanceRepository provides database access for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts a new attendance record.
func (r *AttendanceRepository) Create(ctx context.Context, att *models.Attendance) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, course_id, lesson_id, student_id, teacher_id, date, status, makeup_date, note, created_at) VALUES (:id, :course_id, :lesson_id, :student_id, :teacher_id, :date, :status, :makeup_date, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// FindByID returns an attendance record by identifier.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendance WHERE id = $1 LIMIT 1`
	var att models.Attendance
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance by id: %w", err)
	}
	return &att, nil
}

// List returns attendance records matching the filter ordered by date.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC"

	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// ListForTeacherPeriod returns a teacher's attendance records inside the
// inclusive period [from, to], the shape the compensation engine consumes.
func (r *AttendanceRepository) ListForTeacherPeriod(ctx context.Context, teacherID string, from, to time.Time) ([]models.Attendance, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendance WHERE teacher_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance for teacher period: %w", err)
	}
	return records, nil
}

// Update rewrites the mutable fields of a record.
func (r *AttendanceRepository) Update(ctx context.Context, att *models.Attendance) error {
	const query = `UPDATE attendance SET status = :status, makeup_date = :makeup_date, note = :note, date = :date WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// Delete removes a record.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM attendance WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

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

const lessonSlotColumns = `id, teacher_id, instrument, starts_at, duration_minutes, status, student_id, note, booked_at, created_at`

// LessonSlotRepository provides database access for bookable lesson slots.
type LessonSlotRepository struct {
	db *sqlx.DB
}

// NewLessonSlotRepository creates a new instance of LessonSlotRepository.
func NewLessonSlotRepository(db *sqlx.DB) *LessonSlotRepository {
	return &LessonSlotRepository{db: db}
}

// Create inserts a new slot.
func (r *LessonSlotRepository) Create(ctx context.Context, slot *models.LessonSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lesson_slots (id, teacher_id, instrument, starts_at, duration_minutes, status, student_id, note, booked_at, created_at) VALUES (:id, :teacher_id, :instrument, :starts_at, :duration_minutes, :status, :student_id, :note, :booked_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create lesson slot: %w", err)
	}
	return nil
}

// FindByID returns a slot by identifier.
func (r *LessonSlotRepository) FindByID(ctx context.Context, id string) (*models.LessonSlot, error) {
	const query = `SELECT ` + lessonSlotColumns + ` FROM lesson_slots WHERE id = $1 LIMIT 1`
	var slot models.LessonSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson slot by id: %w", err)
	}
	return &slot, nil
}

// List returns slots matching the filter ordered by start time.
func (r *LessonSlotRepository) List(ctx context.Context, filter models.LessonSlotFilter) ([]models.LessonSlot, error) {
	query := `SELECT ` + lessonSlotColumns + ` FROM lesson_slots WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Instrument != "" {
		conditions = append(conditions, fmt.Sprintf("instrument = $%d", len(args)+1))
		args = append(args, filter.Instrument)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("starts_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("starts_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY starts_at ASC"

	var slots []models.LessonSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list lesson slots: %w", err)
	}
	return slots, nil
}

// ListBookedByStudent returns a student's booked slots ordered by start time.
func (r *LessonSlotRepository) ListBookedByStudent(ctx context.Context, studentID string) ([]models.LessonSlot, error) {
	const query = `SELECT ` + lessonSlotColumns + ` FROM lesson_slots WHERE student_id = $1 AND status = $2 ORDER BY starts_at ASC`
	var slots []models.LessonSlot
	if err := r.db.SelectContext(ctx, &slots, query, studentID, models.SlotBooked); err != nil {
		return nil, fmt.Errorf("list booked slots by student: %w", err)
	}
	return slots, nil
}

// HasOverlap reports whether the teacher already owns a non-cancelled slot
// whose time range overlaps [startsAt, startsAt+duration). The slot with
// excludeID is ignored so updates do not collide with themselves.
func (r *LessonSlotRepository) HasOverlap(ctx context.Context, teacherID string, startsAt time.Time, durationMinutes int, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM lesson_slots
		WHERE teacher_id = $1
		  AND status <> $2
		  AND id <> $3
		  AND starts_at < $4
		  AND starts_at + make_interval(mins => duration_minutes) > $5
	)`
	end := startsAt.Add(time.Duration(durationMinutes) * time.Minute)
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, models.SlotCancelled, excludeID, end, startsAt); err != nil {
		return false, fmt.Errorf("check slot overlap: %w", err)
	}
	return exists, nil
}

// Book atomically assigns the slot to the student. The conditional update
// only succeeds while the slot is still AVAILABLE, so two concurrent
// bookings cannot both win. Returns false when the slot was not available.
func (r *LessonSlotRepository) Book(ctx context.Context, slotID, studentID string, note *string) (bool, error) {
	const query = `UPDATE lesson_slots SET status = $1, student_id = $2, note = COALESCE($3, note), booked_at = $4 WHERE id = $5 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, models.SlotBooked, studentID, note, time.Now().UTC(), slotID, models.SlotAvailable)
	if err != nil {
		return false, fmt.Errorf("book lesson slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("book lesson slot: %w", err)
	}
	return affected > 0, nil
}

// Release returns a booked slot to the available pool. Only succeeds while
// the slot is BOOKED. Returns false when the slot was not booked.
func (r *LessonSlotRepository) Release(ctx context.Context, slotID string) (bool, error) {
	const query = `UPDATE lesson_slots SET status = $1, student_id = NULL, booked_at = NULL WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, models.SlotAvailable, slotID, models.SlotBooked)
	if err != nil {
		return false, fmt.Errorf("release lesson slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lesson slot: %w", err)
	}
	return affected > 0, nil
}

// Cancel marks a slot as cancelled regardless of its current state.
func (r *LessonSlotRepository) Cancel(ctx context.Context, slotID string) error {
	const query = `UPDATE lesson_slots SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, models.SlotCancelled, slotID)
	if err != nil {
		return fmt.Errorf("cancel lesson slot: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Update updates mutable fields of a slot.
func (r *LessonSlotRepository) Update(ctx context.Context, slot *models.LessonSlot) error {
	const query = `UPDATE lesson_slots SET instrument = :instrument, starts_at = :starts_at, duration_minutes = :duration_minutes, note = :note WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update lesson slot: %w", err)
	}
	return nil
}

// Delete removes a slot row.
func (r *LessonSlotRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM lesson_slots WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete lesson slot: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

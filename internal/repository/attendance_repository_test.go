package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceRepositoryListForTeacherPeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "course_id", "lesson_id", "student_id", "teacher_id", "date", "status", "makeup_date", "note", "created_at"}).
		AddRow("a1", nil, nil, "s1", "t1", from, "PRESENT", nil, "", time.Now()).
		AddRow("a2", nil, nil, "s2", "t1", to, "PRESENT", nil, "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE teacher_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC")).
		WithArgs("t1", from, to).
		WillReturnRows(rows)

	records, err := repo.ListForTeacherPeriod(context.Background(), "t1", from, to)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, to, records[1].Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

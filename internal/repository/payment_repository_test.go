package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accademia-musici/academy-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryAdvanceOverdue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $1, updated_at = $2 WHERE status = $3 AND due_date + make_interval(days => tolerance_days) < $2")).
		WithArgs(models.PaymentOverdue, now, models.PaymentPending).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.AdvanceOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryAdvanceOverdueRerun(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs(models.PaymentOverdue, now, models.PaymentPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.AdvanceOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryInsertMonthly(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	period := "2026-09"
	payment := &models.Payment{
		UserID:  "u1",
		Type:    models.PaymentMonthly,
		Amount:  150,
		Period:  &period,
		DueDate: time.Date(2026, 9, 7, 23, 59, 59, 0, time.UTC),
		Status:  models.PaymentPending,
		Visible: true,
	}

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertMonthly(context.Background(), payment)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, payment.ID)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err = repo.InsertMonthly(context.Background(), payment)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	status := models.PaymentPending
	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "due_date", "tolerance_days", "visible", "description", "created_at", "updated_at"}).
		AddRow("p1", "u1", "MONTHLY", 150.0, "PENDING", time.Now(), 0, true, "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND user_id = $1 AND status = $2 AND visible = TRUE ORDER BY due_date DESC")).
		WithArgs("u1", status).
		WillReturnRows(rows)

	payments, err := repo.List(context.Background(), models.PaymentFilter{UserID: "u1", Status: &status, VisibleOnly: true})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryDistinctUserIDsByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT user_id FROM payments WHERE status = $1")).
		WithArgs(models.PaymentOverdue).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	ids, err := repo.DistinctUserIDsByStatus(context.Background(), models.PaymentOverdue)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

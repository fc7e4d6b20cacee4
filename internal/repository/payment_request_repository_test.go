package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accademia-musici/academy-api/internal/models"
)

func TestPaymentRequestRepositoryConfirm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRequestRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(models.RequestConfirmed, nil, at, "req-1", models.RequestPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Confirm(context.Background(), "req-1", nil, at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRequestRepositoryConfirmAlreadyHandled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRequestRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(models.RequestConfirmed, nil, at, "req-1", models.RequestPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Confirm(context.Background(), "req-1", nil, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRequestRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRequestRepository(db)

	notificationID := "n-1"
	req := &models.PaymentRequest{ID: "req-1", UserID: "u1", Amount: 120, NotificationID: &notificationID}
	paidAt := time.Now().UTC()
	payment := &models.Payment{UserID: "u1", Type: models.PaymentMonthly, Amount: 120, Status: models.PaymentPaid, PaidAt: &paidAt, Visible: true}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(models.RequestApproved, paidAt, "req-1", models.RequestConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE notifications SET title").
		WithArgs("Payment registered", "Your payment was approved", "n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.Approve(context.Background(), req, payment, "Payment registered", "Your payment was approved", paidAt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRequestRepositoryApproveNotConfirmed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRequestRepository(db)

	req := &models.PaymentRequest{ID: "req-1", UserID: "u1"}
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(models.RequestApproved, at, "req-1", models.RequestConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := repo.Approve(context.Background(), req, &models.Payment{}, "", "", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRequestRepositoryReject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRequestRepository(db)

	notificationID := "n-1"
	req := &models.PaymentRequest{ID: "req-1", UserID: "u1", NotificationID: &notificationID}
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(models.RequestRejected, "amount mismatch", at, "req-1", models.RequestPending, models.RequestConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE notifications SET title").
		WithArgs("Payment rejected", "The declared transfer was not found", "n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.Reject(context.Background(), req, "amount mismatch", "Payment rejected", "The declared transfer was not found", at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRequestRepositoryRejectTerminal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRequestRepository(db)

	req := &models.PaymentRequest{ID: "req-1", UserID: "u1"}
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(models.RequestRejected, "too late", at, "req-1", models.RequestPending, models.RequestConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := repo.Reject(context.Background(), req, "too late", "Payment rejected", "too late", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

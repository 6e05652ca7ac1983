package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLRepositoryRecordPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLRepository(db)
	mock.ExpectExec("INSERT INTO payments").
		WithArgs("TX1", "lead-1", 999, StatusPending).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.RecordPending(context.Background(), "TX1", "lead-1", 999))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryRecordResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLRepository(db)
	mock.ExpectExec("INSERT INTO payments").
		WithArgs("TX1", StatusDone, "Approved").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs("TX2", StatusFailed, "Declined").
		WillReturnError(errors.New("connection reset"))

	require.NoError(t, repo.RecordResult(context.Background(), "TX1", StatusDone, "Approved"))
	err = repo.RecordResult(context.Background(), "TX2", StatusFailed, "Declined")
	assert.ErrorContains(t, err, "payments: record result")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id").
		WithArgs("TX1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "lead_id", "amount", "payment_status", "payment_message", "created_at", "updated_at"}).
			AddRow("TX1", "lead-1", 999, StatusDone, "Approved", now, now))
	mock.ExpectQuery("SELECT id").
		WithArgs("TX404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "lead_id", "amount", "payment_status", "payment_message", "created_at", "updated_at"}))

	rec, err := repo.Get(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, &Record{ID: "TX1", LeadID: "lead-1", Amount: 999, Status: StatusDone, Message: "Approved", CreatedAt: now, UpdatedAt: now}, rec)

	_, err = repo.Get(context.Background(), "TX404")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepositoryResultWithoutPending(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.RecordResult(context.Background(), "TX5", StatusFailed, "Declined"))
	rec, err := repo.Get(context.Background(), "TX5")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, 0, rec.Amount)
}

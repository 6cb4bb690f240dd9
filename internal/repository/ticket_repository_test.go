package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-gate/internal/model"
)

var ticketCols = []string{"ticket_id", "ticket_number", "name", "id_card_number", "date_of_birth",
	"phone_number", "event", "used", "scanned_at", "scanned_by", "created_at", "updated_at"}

func setupTicketRepo(t *testing.T) (*TicketRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTicketRepo(db), mock
}

func TestTicketRepo_MarkUsed_Wins(t *testing.T) {
	repo, mock := setupTicketRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET used = TRUE")).
		WithArgs(sqlmock.AnyArg(), uint64(9), sqlmock.AnyArg(), "t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkUsed(context.Background(), "t-1", time.Now(), 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_MarkUsed_LosesRace(t *testing.T) {
	repo, mock := setupTicketRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE ticket_id = ? AND used = FALSE")).
		WithArgs(sqlmock.AnyArg(), uint64(3), sqlmock.AnyArg(), "t-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkUsed(context.Background(), "t-1", time.Now(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_MarkUsed_StoreDown(t *testing.T) {
	repo, mock := setupTicketRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET used = TRUE")).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.MarkUsed(context.Background(), "t-1", time.Now(), 3)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestTicketRepo_Insert_DuplicateKeys(t *testing.T) {
	repo, mock := setupTicketRepo(t)
	tk := &model.Ticket{TicketID: "t-1", TicketNumber: "0001", Name: "Ann", IDCardNumber: "ID1",
		DateOfBirth: "1990-01-01", PhoneNumber: "+1", Event: "E1"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ID1-E1' for key 'tickets.uq_tickets_identity_event'"})
	assert.ErrorIs(t, repo.Insert(context.Background(), tk), ErrConflict)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '0001' for key 'tickets.uq_tickets_number'"})
	assert.ErrorIs(t, repo.Insert(context.Background(), tk), ErrDuplicateNumber)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WithArgs("t-1", "0001", "Ann", "ID1", "1990-01-01", "+1", "E1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Insert(context.Background(), tk))
	assert.False(t, tk.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_Get(t *testing.T) {
	repo, mock := setupTicketRepo(t)
	at := time.Date(2025, 9, 6, 20, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE ticket_id = ?")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(ticketCols).
			AddRow("t-1", "0001", "Ann", "ID1", "1990-01-01", "+1", "E1", true, at, int64(9), at, at))
	got, err := repo.Get(context.Background(), "t-1")
	require.NoError(t, err)
	assert.True(t, got.Used)
	require.NotNil(t, got.ScannedAt)
	assert.True(t, at.Equal(*got.ScannedAt))
	require.NotNil(t, got.ScannedBy)
	assert.Equal(t, uint64(9), *got.ScannedBy)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE ticket_id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(ticketCols))
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_QueryBuildsFilters(t *testing.T) {
	repo, mock := setupTicketRepo(t)
	used := true
	by := uint64(4)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE used = ? AND event = ? AND scanned_by = ? ORDER BY")).
		WithArgs(true, "E1", uint64(4)).
		WillReturnRows(sqlmock.NewRows(ticketCols))

	out, err := repo.Query(context.Background(), model.TicketFilter{Used: &used, Event: "E1", ScannedBy: &by})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_Delete(t *testing.T) {
	repo, mock := setupTicketRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE ticket_id = ?")).
		WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "gone"), ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	n, err := repo.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepo_Next(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSequenceRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ticket_sequences")).
		WithArgs(TicketSequenceKey).
		WillReturnResult(sqlmock.NewResult(42, 2))
	n, err := repo.Next(context.Background(), TicketSequenceKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ticket_sequences")).
		WithArgs(TicketSequenceKey).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	_, err = repo.Next(context.Background(), TicketSequenceKey)
	assert.ErrorIs(t, err, ErrSequenceConflict)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ticket_sequences")).
		WithArgs(TicketSequenceKey).
		WillReturnError(errors.New("broken pipe"))
	_, err = repo.Next(context.Background(), TicketSequenceKey)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

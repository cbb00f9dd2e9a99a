// internal/assignment/store_test.go
package assignment

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "booking_id", "installer_id", "is_lead", "status"})
}

func TestPostgresStore_GetBooking(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT id, scheduled_date, slot").
		WithArgs("bok-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "scheduled_date", "slot", "installers_needed", "status", "customer_name", "customer_email",
		}).AddRow("bok-1", "2026-09-14", "full", 2, "scheduled", "Karin Kund", "karin@example.se"))

	booking, err := store.GetBooking(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.Equal(t, 2, booking.InstallersNeeded)
	assert.Equal(t, BookingScheduled, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBooking_NotFound(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT id, scheduled_date, slot").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetBooking(context.Background(), "missing")

	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPostgresStore_ConfirmBooking_Transitions(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec("UPDATE bookings SET status = 'confirmed'").
		WithArgs("bok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	transitioned, err := store.ConfirmBooking(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.True(t, transitioned)
}

func TestPostgresStore_ConfirmBooking_AlreadyConfirmed(t *testing.T) {
	store, mock := setupStore(t)

	// Conditional update matches no rows when status left 'scheduled'
	mock.ExpectExec("UPDATE bookings SET status = 'confirmed'").
		WithArgs("bok-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	transitioned, err := store.ConfirmBooking(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.False(t, transitioned)
}

func TestPostgresStore_CreateAssignment(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec("INSERT INTO booking_assignments").
		WithArgs("as-1", "bok-1", "inst-a", true, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.CreateAssignment(context.Background(), &Assignment{
		ID: "as-1", BookingID: "bok-1", InstallerID: "inst-a", IsLead: true, Status: StatusPending,
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAssignments(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT id, booking_id, installer_id").
		WithArgs("bok-1").
		WillReturnRows(assignmentRows().
			AddRow("as-1", "bok-1", "inst-a", true, "accepted").
			AddRow("as-2", "bok-1", "inst-b", false, "pending"))

	assignments, err := store.ListAssignments(context.Background(), "bok-1")

	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.True(t, assignments[0].IsLead)
	assert.Equal(t, StatusPending, assignments[1].Status)
}

func TestPostgresStore_GetAssignmentByToken(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("JOIN confirmation_requests r").
		WithArgs("tok-123").
		WillReturnRows(assignmentRows().AddRow("as-1", "bok-1", "inst-a", false, "pending"))

	a, err := store.GetAssignmentByToken(context.Background(), "tok-123")

	require.NoError(t, err)
	assert.Equal(t, "as-1", a.ID)
	assert.Equal(t, "inst-a", a.InstallerID)
}

func TestPostgresStore_CreateConfirmationRequest_EmptyTokenStoredAsNull(t *testing.T) {
	store, mock := setupStore(t)

	// NULLIF turns the in-app channel's empty token into NULL
	mock.ExpectExec("INSERT INTO confirmation_requests").
		WithArgs("req-1", "as-1", ChannelInApp, "", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.CreateConfirmationRequest(context.Background(), &ConfirmationRequest{
		ID: "req-1", AssignmentID: "as-1", Channel: ChannelInApp, Status: StatusPending,
	})

	assert.NoError(t, err)
}

func TestPostgresStore_ClearLead(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec("UPDATE booking_assignments SET is_lead = false").
		WithArgs("as-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ClearLead(context.Background(), "as-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolvePendingRequests(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec("UPDATE confirmation_requests SET status").
		WithArgs("as-1", RequestExpired).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := store.ResolvePendingRequests(context.Background(), "as-1", RequestExpired)

	assert.NoError(t, err)
}

func TestPostgresStore_ListExpiredPendingAssignments(t *testing.T) {
	store, mock := setupStore(t)
	cutoff := time.Date(2026, 9, 12, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM booking_assignments a").
		WithArgs(cutoff).
		WillReturnRows(assignmentRows().AddRow("as-2", "bok-1", "inst-b", false, "pending"))

	stale, err := store.ListExpiredPendingAssignments(context.Background(), cutoff)

	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "inst-b", stale[0].InstallerID)
}

func TestPostgresStore_TaskLifecycle(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec("INSERT INTO installer_tasks").
		WithArgs("as-1", "inst-a", "Bekräfta uppdrag 2026-09-14 (full)").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE installer_tasks SET status = 'closed'").
		WithArgs("as-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CreateTask(context.Background(), "as-1", "inst-a", "Bekräfta uppdrag 2026-09-14 (full)"))
	require.NoError(t, store.CloseTask(context.Background(), "as-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

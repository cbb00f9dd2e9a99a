// internal/assignment/store.go
package assignment

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Assignment statuses.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Booking statuses. Confirmed is derived, never set directly by
// callers.
const (
	BookingScheduled = "scheduled"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Confirmation channels.
const (
	ChannelEmail   = "email"
	ChannelDiscord = "discord"
	ChannelInApp   = "in_app"
)

// Request status used when a pending confirmation ages out.
const RequestExpired = "expired"

type Booking struct {
	ID               string
	ScheduledDate    string
	Slot             string
	InstallersNeeded int
	Status           string
	CustomerName     string
	CustomerEmail    string
}

type Assignment struct {
	ID          string
	BookingID   string
	InstallerID string
	IsLead      bool
	Status      string
}

type ConfirmationRequest struct {
	ID           string
	AssignmentID string
	Channel      string
	Token        string
	Status       string
}

// Store is the persistence boundary of the engine. The Postgres
// implementation lives below; tests drive the engine through an
// in-memory fake.
type Store interface {
	GetBooking(ctx context.Context, bookingID string) (*Booking, error)
	ConfirmBooking(ctx context.Context, bookingID string) (bool, error)

	GetAssignment(ctx context.Context, assignmentID string) (*Assignment, error)
	GetAssignmentByToken(ctx context.Context, token string) (*Assignment, error)
	ListAssignments(ctx context.Context, bookingID string) ([]Assignment, error)
	CreateAssignment(ctx context.Context, a *Assignment) error
	UpdateAssignmentStatus(ctx context.Context, assignmentID, status string) error
	ClearLead(ctx context.Context, assignmentID string) error

	CreateConfirmationRequest(ctx context.Context, r *ConfirmationRequest) error
	ResolvePendingRequests(ctx context.Context, assignmentID, status string) error
	ListExpiredPendingAssignments(ctx context.Context, cutoff time.Time) ([]Assignment, error)

	CreateTask(ctx context.Context, assignmentID, installerID, title string) error
	CloseTask(ctx context.Context, assignmentID string) error
}

// PostgresStore is the production Store over lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scheduled_date, slot, installers_needed, status,
		       COALESCE(customer_name, ''), COALESCE(customer_email, '')
		FROM bookings WHERE id = $1`, bookingID)

	var b Booking
	err := row.Scan(&b.ID, &b.ScheduledDate, &b.Slot, &b.InstallersNeeded, &b.Status,
		&b.CustomerName, &b.CustomerEmail)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ConfirmBooking transitions scheduled → confirmed. The conditional
// update makes the transition fire at most once even under races.
func (s *PostgresStore) ConfirmBooking(ctx context.Context, bookingID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET status = 'confirmed', updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`, bookingID)
	if err != nil {
		return false, fmt.Errorf("confirm booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, assignmentID string) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, booking_id, installer_id, is_lead, status
		FROM booking_assignments WHERE id = $1`, assignmentID)
	return scanAssignment(row)
}

func (s *PostgresStore) GetAssignmentByToken(ctx context.Context, token string) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.booking_id, a.installer_id, a.is_lead, a.status
		FROM booking_assignments a
		JOIN confirmation_requests r ON r.assignment_id = a.id
		WHERE r.token = $1`, token)
	return scanAssignment(row)
}

func scanAssignment(row *sql.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.BookingID, &a.InstallerID, &a.IsLead, &a.Status)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, bookingID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, booking_id, installer_id, is_lead, status
		FROM booking_assignments WHERE booking_id = $1
		ORDER BY created_at ASC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.BookingID, &a.InstallerID, &a.IsLead, &a.Status); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *PostgresStore) CreateAssignment(ctx context.Context, a *Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO booking_assignments (id, booking_id, installer_id, is_lead, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		a.ID, a.BookingID, a.InstallerID, a.IsLead, a.Status)
	if err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAssignmentStatus(ctx context.Context, assignmentID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE booking_assignments SET status = $2, resolved_at = NOW()
		WHERE id = $1`, assignmentID, status)
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return nil
}

// ClearLead strips the lead flag from a resolved assignment so a later
// top-up can elect a new lead without ever producing two.
func (s *PostgresStore) ClearLead(ctx context.Context, assignmentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE booking_assignments SET is_lead = false
		WHERE id = $1`, assignmentID)
	if err != nil {
		return fmt.Errorf("clear lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateConfirmationRequest(ctx context.Context, r *ConfirmationRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO confirmation_requests (id, assignment_id, channel, token, status, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW())`,
		r.ID, r.AssignmentID, r.Channel, r.Token, r.Status)
	if err != nil {
		return fmt.Errorf("create confirmation request: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResolvePendingRequests(ctx context.Context, assignmentID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE confirmation_requests SET status = $2, resolved_at = NOW()
		WHERE assignment_id = $1 AND status = 'pending'`, assignmentID, status)
	if err != nil {
		return fmt.Errorf("resolve confirmation requests: %w", err)
	}
	return nil
}

// ListExpiredPendingAssignments finds pending assignments whose
// confirmation requests were all created before the cutoff.
func (s *PostgresStore) ListExpiredPendingAssignments(ctx context.Context, cutoff time.Time) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.booking_id, a.installer_id, a.is_lead, a.status
		FROM booking_assignments a
		WHERE a.status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM confirmation_requests r
			WHERE r.assignment_id = a.id AND r.status = 'pending' AND r.created_at >= $1
		  )`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.BookingID, &a.InstallerID, &a.IsLead, &a.Status); err != nil {
			return nil, fmt.Errorf("scan expired assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *PostgresStore) CreateTask(ctx context.Context, assignmentID, installerID, title string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO installer_tasks (assignment_id, installer_id, title, status, created_at)
		VALUES ($1, $2, $3, 'open', NOW())`, assignmentID, installerID, title)
	if err != nil {
		return fmt.Errorf("create installer task: %w", err)
	}
	return nil
}

func (s *PostgresStore) CloseTask(ctx context.Context, assignmentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE installer_tasks SET status = 'closed', closed_at = NOW()
		WHERE assignment_id = $1 AND status = 'open'`, assignmentID)
	if err != nil {
		return fmt.Errorf("close installer task: %w", err)
	}
	return nil
}

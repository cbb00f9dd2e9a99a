// internal/assignment/engine_test.go
package assignment

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/026iFly/foam-sub000/internal/availability"
	"github.com/026iFly/foam-sub000/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Fakes
// ==========================

type fakeStore struct {
	mu          sync.Mutex
	bookings    map[string]*Booking
	assignments map[string]*Assignment
	order       []string
	requests    map[string]*ConfirmationRequest
	requestAt   map[string]time.Time
	tasks       map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings:    map[string]*Booking{},
		assignments: map[string]*Assignment{},
		requests:    map[string]*ConfirmationRequest{},
		requestAt:   map[string]time.Time{},
		tasks:       map[string]string{},
	}
}

func (s *fakeStore) GetBooking(_ context.Context, id string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

func (s *fakeStore) ConfirmBooking(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if b.Status != BookingScheduled {
		return false, nil
	}
	b.Status = BookingConfirmed
	return true, nil
}

func (s *fakeStore) GetAssignment(_ context.Context, id string) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (s *fakeStore) GetAssignmentByToken(_ context.Context, token string) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.Token == token && token != "" {
			copied := *s.assignments[r.AssignmentID]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) ListAssignments(_ context.Context, bookingID string) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for _, id := range s.order {
		if a := s.assignments[id]; a.BookingID == bookingID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateAssignment(_ context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.assignments[a.ID] = &copied
	s.order = append(s.order, a.ID)
	return nil
}

func (s *fakeStore) UpdateAssignmentStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[id].Status = status
	return nil
}

func (s *fakeStore) ClearLead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[id].IsLead = false
	return nil
}

func (s *fakeStore) CreateConfirmationRequest(_ context.Context, r *ConfirmationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	s.requests[r.ID] = &copied
	s.requestAt[r.ID] = time.Now()
	return nil
}

func (s *fakeStore) ResolvePendingRequests(_ context.Context, assignmentID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.AssignmentID == assignmentID && r.Status == StatusPending {
			r.Status = status
		}
	}
	return nil
}

func (s *fakeStore) ListExpiredPendingAssignments(_ context.Context, cutoff time.Time) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for _, id := range s.order {
		a := s.assignments[id]
		if a.Status != StatusPending {
			continue
		}
		fresh := false
		for rid, r := range s.requests {
			if r.AssignmentID == a.ID && r.Status == StatusPending && !s.requestAt[rid].Before(cutoff) {
				fresh = true
			}
		}
		if !fresh {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateTask(_ context.Context, assignmentID, _ string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[assignmentID] = "open"
	return nil
}

func (s *fakeStore) CloseTask(_ context.Context, assignmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[assignmentID] == "open" {
		s.tasks[assignmentID] = "closed"
	}
	return nil
}

// backdateRequests ages all confirmation requests of an assignment.
func (s *fakeStore) backdateRequests(assignmentID string, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for rid, r := range s.requests {
		if r.AssignmentID == assignmentID {
			s.requestAt[rid] = time.Now().Add(-age)
		}
	}
}

func (s *fakeStore) requestsFor(assignmentID string) []*ConfirmationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ConfirmationRequest
	for _, r := range s.requests {
		if r.AssignmentID == assignmentID {
			out = append(out, r)
		}
	}
	return out
}

type fakeNotifier struct {
	mu                sync.Mutex
	requestedFor      []string
	customerConfirmed int
	adminAlerts       []string
}

func (n *fakeNotifier) ConfirmationRequested(_ context.Context, _ *Booking, inst availability.Installer, emailToken, discordToken string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requestedFor = append(n.requestedFor, inst.ID)
}

func (n *fakeNotifier) BookingConfirmed(_ context.Context, _ *Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.customerConfirmed++
}

func (n *fakeNotifier) AdminAlert(_ context.Context, subject, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.adminAlerts = append(n.adminAlerts, subject)
}

type fakeAvailability struct {
	installers []availability.Installer
	err        error
}

func (f *fakeAvailability) ListAvailable(_ context.Context, _, _ string) ([]availability.Installer, error) {
	return f.installers, f.err
}

// ==========================
// Test Helpers
// ==========================

func installerList(ids ...string) []availability.Installer {
	var out []availability.Installer
	for _, id := range ids {
		out = append(out, availability.Installer{
			ID:        id,
			Name:      "Installer " + id,
			Email:     id + "@example.se",
			Available: true,
		})
	}
	return out
}

func setupEngine(t *testing.T, needed int, avail []availability.Installer) (*Engine, *fakeStore, *fakeNotifier) {
	store := newFakeStore()
	store.bookings["bok-1"] = &Booking{
		ID:               "bok-1",
		ScheduledDate:    "2026-09-14",
		Slot:             "full",
		InstallersNeeded: needed,
		Status:           BookingScheduled,
		CustomerName:     "Karin Kund",
		CustomerEmail:    "karin@example.se",
	}
	notifier := &fakeNotifier{}
	engine := NewEngine(store, &fakeAvailability{installers: avail}, notifier, 48*time.Hour, logger.NewNoOpLogger())
	return engine, store, notifier
}

// checkInvariants asserts the booking-level rules: at most one lead
// across every assignment row declined or not, and confirmed exactly
// when every non-declined assignment is accepted.
func checkInvariants(t *testing.T, store *fakeStore, bookingID string) {
	t.Helper()
	assignments, err := store.ListAssignments(context.Background(), bookingID)
	require.NoError(t, err)

	leads := 0
	allAccepted := len(assignments) > 0
	accepted := 0
	for _, a := range assignments {
		if a.IsLead {
			leads++
		}
		if a.Status == StatusDeclined {
			continue
		}
		if a.Status == StatusAccepted {
			accepted++
		} else {
			allAccepted = false
		}
	}
	assert.LessOrEqual(t, leads, 1, "at most one assignment row per booking may be lead")

	booking, err := store.GetBooking(context.Background(), bookingID)
	require.NoError(t, err)
	if booking.Status == BookingConfirmed {
		assert.True(t, allAccepted && accepted > 0, "confirmed requires all non-declined accepted")
	}
}

// ==========================
// Assign Tests
// ==========================

func TestEngine_Assign_FullCrew(t *testing.T) {
	engine, store, notifier := setupEngine(t, 2, installerList("inst-a", "inst-b", "inst-c"))

	result, err := engine.Assign(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.Equal(t, 2, result.AssignedCount)
	assert.Equal(t, 0, result.Shortfall)
	assert.Equal(t, "inst-a", result.LeadInstallerID)
	assert.Equal(t, []string{"inst-a", "inst-b"}, result.AssignedInstallerIDs)

	assignments, _ := store.ListAssignments(context.Background(), "bok-1")
	require.Len(t, assignments, 2)
	assert.True(t, assignments[0].IsLead)
	assert.False(t, assignments[1].IsLead)
	assert.Equal(t, StatusPending, assignments[0].Status)

	// One request per channel per installer
	assert.Len(t, store.requestsFor(assignments[0].ID), 3)
	assert.Len(t, store.requestsFor(assignments[1].ID), 3)
	assert.Equal(t, "open", store.tasks[assignments[0].ID])

	assert.Equal(t, []string{"inst-a", "inst-b"}, notifier.requestedFor)
	assert.Empty(t, notifier.adminAlerts)
	checkInvariants(t, store, "bok-1")
}

func TestEngine_Assign_ShortfallAlertsAdmin(t *testing.T) {
	engine, store, notifier := setupEngine(t, 3, installerList("inst-a"))

	result, err := engine.Assign(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.AssignedCount)
	assert.Equal(t, 2, result.Shortfall)
	assert.Len(t, notifier.adminAlerts, 1)
	checkInvariants(t, store, "bok-1")
}

func TestEngine_Assign_NoInstallersAvailable(t *testing.T) {
	engine, _, notifier := setupEngine(t, 2, nil)

	result, err := engine.Assign(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.Equal(t, 0, result.AssignedCount)
	assert.Equal(t, 2, result.Shortfall)
	assert.Empty(t, result.LeadInstallerID)
	assert.Len(t, notifier.adminAlerts, 1)
}

func TestEngine_Assign_NotSchedulable(t *testing.T) {
	engine, store, _ := setupEngine(t, 2, installerList("inst-a", "inst-b"))
	store.bookings["bok-1"].Status = BookingCancelled

	_, err := engine.Assign(context.Background(), "bok-1")

	assert.ErrorIs(t, err, ErrBookingNotSchedulable)
}

func TestEngine_Assign_TopUpKeepsExistingLead(t *testing.T) {
	engine, store, _ := setupEngine(t, 2, installerList("inst-a", "inst-b", "inst-c"))

	// inst-a already assigned as lead from an earlier run
	require.NoError(t, store.CreateAssignment(context.Background(), &Assignment{
		ID: "as-1", BookingID: "bok-1", InstallerID: "inst-a", IsLead: true, Status: StatusAccepted,
	}))

	result, err := engine.Assign(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.Equal(t, 2, result.AssignedCount)
	assert.Equal(t, "inst-a", result.LeadInstallerID)
	assert.Equal(t, []string{"inst-b"}, result.AssignedInstallerIDs)

	assignments, _ := store.ListAssignments(context.Background(), "bok-1")
	require.Len(t, assignments, 2)
	assert.False(t, assignments[1].IsLead)
	checkInvariants(t, store, "bok-1")
}

func TestEngine_Assign_AlreadyFullyStaffed(t *testing.T) {
	engine, store, notifier := setupEngine(t, 2, installerList("inst-a", "inst-b", "inst-c"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)

	result, err := engine.Assign(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.Equal(t, 2, result.AssignedCount)
	assert.Empty(t, result.AssignedInstallerIDs)
	// No duplicate confirmation sends
	assert.Len(t, notifier.requestedFor, 2)

	assignments, _ := store.ListAssignments(context.Background(), "bok-1")
	assert.Len(t, assignments, 2)
}

// ==========================
// Accept Tests
// ==========================

func TestEngine_Accept_ConfirmsWhenAllAccepted(t *testing.T) {
	engine, store, notifier := setupEngine(t, 2, installerList("inst-a", "inst-b"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")

	first, err := engine.Accept(context.Background(), assignments[0].ID)
	require.NoError(t, err)
	assert.False(t, first.BookingConfirmed)
	assert.Equal(t, 0, notifier.customerConfirmed)

	second, err := engine.Accept(context.Background(), assignments[1].ID)
	require.NoError(t, err)
	assert.True(t, second.BookingConfirmed)
	assert.Equal(t, 1, notifier.customerConfirmed)

	booking, _ := store.GetBooking(context.Background(), "bok-1")
	assert.Equal(t, BookingConfirmed, booking.Status)
	assert.Equal(t, "closed", store.tasks[assignments[0].ID])
	checkInvariants(t, store, "bok-1")
}

func TestEngine_Accept_Idempotent(t *testing.T) {
	engine, store, notifier := setupEngine(t, 1, installerList("inst-a"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")

	first, err := engine.Accept(context.Background(), assignments[0].ID)
	require.NoError(t, err)
	assert.True(t, first.BookingConfirmed)

	again, err := engine.Accept(context.Background(), assignments[0].ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyResolved)
	assert.Equal(t, StatusAccepted, again.Status)
	assert.False(t, again.BookingConfirmed)
	// Customer notified exactly once
	assert.Equal(t, 1, notifier.customerConfirmed)
}

func TestEngine_Accept_IgnoresDeclinedAssignments(t *testing.T) {
	engine, store, notifier := setupEngine(t, 2, installerList("inst-a", "inst-b"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")

	// inst-b declines with no replacement available
	declined, err := engine.Decline(context.Background(), assignments[1].ID)
	require.NoError(t, err)
	assert.Empty(t, declined.ReplacementInstallerID)
	assert.Len(t, notifier.adminAlerts, 1)

	// The remaining accept confirms despite the declined row
	result, err := engine.Accept(context.Background(), assignments[0].ID)
	require.NoError(t, err)
	assert.True(t, result.BookingConfirmed)
	checkInvariants(t, store, "bok-1")
}

// ==========================
// Decline Tests
// ==========================

func TestEngine_Decline_ReassignsNextPriority(t *testing.T) {
	engine, store, notifier := setupEngine(t, 2, installerList("inst-a", "inst-b", "inst-c"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")

	result, err := engine.Decline(context.Background(), assignments[1].ID)

	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, result.Status)
	// inst-c is picked, never inst-a who is already assigned
	assert.Equal(t, "inst-c", result.ReplacementInstallerID)

	updated, _ := store.ListAssignments(context.Background(), "bok-1")
	require.Len(t, updated, 3)
	assert.Equal(t, StatusDeclined, updated[1].Status)
	assert.Equal(t, "inst-c", updated[2].InstallerID)
	// Replacement is never lead; inst-a keeps the lead flag
	assert.False(t, updated[2].IsLead)
	assert.True(t, updated[0].IsLead)

	assert.Equal(t, []string{"inst-a", "inst-b", "inst-c"}, notifier.requestedFor)
	checkInvariants(t, store, "bok-1")
}

func TestEngine_Decline_NeverReoffersDecliner(t *testing.T) {
	engine, store, notifier := setupEngine(t, 2, installerList("inst-a", "inst-b", "inst-c"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")

	_, err = engine.Decline(context.Background(), assignments[1].ID)
	require.NoError(t, err)

	// inst-c also declines; everyone has now been offered the booking
	updated, _ := store.ListAssignments(context.Background(), "bok-1")
	result, err := engine.Decline(context.Background(), updated[2].ID)

	require.NoError(t, err)
	assert.Empty(t, result.ReplacementInstallerID)
	assert.Len(t, notifier.adminAlerts, 1)
	checkInvariants(t, store, "bok-1")
}

func TestEngine_Decline_Idempotent(t *testing.T) {
	engine, store, _ := setupEngine(t, 1, installerList("inst-a"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")

	_, err = engine.Decline(context.Background(), assignments[0].ID)
	require.NoError(t, err)

	again, err := engine.Decline(context.Background(), assignments[0].ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyResolved)
	assert.Equal(t, StatusDeclined, again.Status)

	// Only the original assignment row exists, no second reassignment
	updated, _ := store.ListAssignments(context.Background(), "bok-1")
	assert.Len(t, updated, 1)
}

func TestEngine_Decline_LeadDeclineAllowsNewLeadOnTopUp(t *testing.T) {
	engine, store, _ := setupEngine(t, 2, installerList("inst-a"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")
	require.True(t, assignments[0].IsLead)

	// The lone lead declines and nobody can step in
	declined, err := engine.Decline(context.Background(), assignments[0].ID)
	require.NoError(t, err)
	assert.Empty(t, declined.ReplacementInstallerID)

	updated, _ := store.ListAssignments(context.Background(), "bok-1")
	assert.False(t, updated[0].IsLead, "a declined lead gives up the flag")

	// Two installers free up and the booking is staffed again
	engine.avail = &fakeAvailability{installers: installerList("inst-b", "inst-c")}
	result, err := engine.Assign(context.Background(), "bok-1")

	require.NoError(t, err)
	assert.Equal(t, "inst-b", result.LeadInstallerID)

	final, _ := store.ListAssignments(context.Background(), "bok-1")
	require.Len(t, final, 3)
	leads := 0
	for _, a := range final {
		if a.IsLead {
			leads++
		}
	}
	assert.Equal(t, 1, leads)
	checkInvariants(t, store, "bok-1")
}

// ==========================
// Expiry Tests
// ==========================

func TestEngine_ExpirePending_RoutesThroughReassignment(t *testing.T) {
	engine, store, _ := setupEngine(t, 2, installerList("inst-a", "inst-b", "inst-c"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")

	// inst-a accepts, inst-b never answers
	_, err = engine.Accept(context.Background(), assignments[0].ID)
	require.NoError(t, err)
	store.backdateRequests(assignments[1].ID, 72*time.Hour)

	result, err := engine.ExpirePending(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, result.ExpiredCount)
	assert.Equal(t, 1, result.ReassignedCount)
	assert.Equal(t, []string{"bok-1"}, result.BookingIDs)

	updated, _ := store.ListAssignments(context.Background(), "bok-1")
	require.Len(t, updated, 3)
	assert.Equal(t, StatusDeclined, updated[1].Status)
	assert.Equal(t, "inst-c", updated[2].InstallerID)

	// The stale requests are marked expired, not declined
	for _, r := range store.requestsFor(assignments[1].ID) {
		assert.Equal(t, RequestExpired, r.Status)
	}
	checkInvariants(t, store, "bok-1")
}

func TestEngine_ExpirePending_NothingStale(t *testing.T) {
	engine, store, _ := setupEngine(t, 2, installerList("inst-a", "inst-b"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)

	result, err := engine.ExpirePending(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExpiredCount)

	assignments, _ := store.ListAssignments(context.Background(), "bok-1")
	for _, a := range assignments {
		assert.Equal(t, StatusPending, a.Status)
	}
}

// ==========================
// Token Resolution Tests
// ==========================

func TestEngine_ResolveToken(t *testing.T) {
	engine, store, _ := setupEngine(t, 1, installerList("inst-a"))

	_, err := engine.Assign(context.Background(), "bok-1")
	require.NoError(t, err)
	assignments, _ := store.ListAssignments(context.Background(), "bok-1")

	var token string
	for _, r := range store.requestsFor(assignments[0].ID) {
		if r.Channel == ChannelEmail {
			token = r.Token
		}
	}
	require.NotEmpty(t, token)

	resolved, err := engine.ResolveToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, assignments[0].ID, resolved.ID)

	_, err = engine.ResolveToken(context.Background(), "no-such-token")
	assert.Error(t, err)
}

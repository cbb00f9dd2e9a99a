// internal/assignment/engine.go
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/026iFly/foam-sub000/internal/availability"
	"github.com/026iFly/foam-sub000/internal/common/logger"
	"github.com/026iFly/foam-sub000/internal/common/metrics"

	"github.com/google/uuid"
)

// ErrBookingNotSchedulable is returned when Assign is called on a
// booking that is not in the scheduled state.
var ErrBookingNotSchedulable = errors.New("booking is not in a schedulable status")

// AvailabilitySource yields installers for a date and slot in
// priority order.
type AvailabilitySource interface {
	ListAvailable(ctx context.Context, date, slot string) ([]availability.Installer, error)
}

// Engine implements the assignment state machine. All mutations on a
// booking are serialized through a per-booking mutex so that the
// lead invariant and the single confirmed transition hold under
// concurrent accepts and declines.
type Engine struct {
	store    Store
	avail    AvailabilitySource
	notifier Notifier
	locks    *keyedMutex
	ttl      time.Duration
	logger   logger.Logger
}

func NewEngine(store Store, avail AvailabilitySource, notifier Notifier, confirmationTTL time.Duration, log logger.Logger) *Engine {
	return &Engine{
		store:    store,
		avail:    avail,
		notifier: notifier,
		locks:    newKeyedMutex(),
		ttl:      confirmationTTL,
		logger:   log,
	}
}

type AssignResult struct {
	BookingID            string   `json:"bookingId"`
	TotalNeeded          int      `json:"totalNeeded"`
	AssignedCount        int      `json:"assignedCount"`
	Shortfall            int      `json:"shortfall"`
	LeadInstallerID      string   `json:"leadInstallerId,omitempty"`
	AssignedInstallerIDs []string `json:"assignedInstallerIds"`
}

type ConfirmResult struct {
	AssignmentID           string `json:"assignmentId"`
	InstallerID            string `json:"installerId"`
	Status                 string `json:"status"`
	AlreadyResolved        bool   `json:"alreadyResolved"`
	BookingConfirmed       bool   `json:"bookingConfirmed"`
	ReplacementInstallerID string `json:"replacementInstallerId,omitempty"`
}

type ExpireResult struct {
	ExpiredCount    int      `json:"expiredCount"`
	ReassignedCount int      `json:"reassignedCount"`
	BookingIDs      []string `json:"bookingIds"`
}

// Assign staffs a booking with pending assignments up to the needed
// crew size. The first installer assigned to a booking without a lead
// becomes lead. A shortfall raises an admin alert but never fails the
// operation.
func (e *Engine) Assign(ctx context.Context, bookingID string) (*AssignResult, error) {
	unlock := e.locks.Lock(bookingID)
	defer unlock()

	booking, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != BookingScheduled {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrBookingNotSchedulable, bookingID, booking.Status)
	}

	existing, err := e.store.ListAssignments(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	assigned := map[string]bool{}
	hasLead := false
	active := 0
	leadID := ""
	for _, a := range existing {
		assigned[a.InstallerID] = true
		if a.IsLead {
			hasLead = true
			if a.Status != StatusDeclined {
				leadID = a.InstallerID
			}
		}
		if a.Status != StatusDeclined {
			active++
		}
	}

	result := &AssignResult{
		BookingID:            bookingID,
		TotalNeeded:          booking.InstallersNeeded,
		AssignedCount:        active,
		LeadInstallerID:      leadID,
		AssignedInstallerIDs: []string{},
	}

	needed := booking.InstallersNeeded - active
	if needed <= 0 {
		return result, nil
	}

	candidates, err := e.avail.ListAvailable(ctx, booking.ScheduledDate, booking.Slot)
	if err != nil {
		return nil, err
	}

	for _, inst := range candidates {
		if needed == 0 {
			break
		}
		if !inst.Available || assigned[inst.ID] {
			continue
		}

		isLead := !hasLead
		if err := e.createAssignment(ctx, booking, inst, isLead); err != nil {
			return nil, err
		}
		hasLead = hasLead || isLead
		if isLead {
			result.LeadInstallerID = inst.ID
		}

		assigned[inst.ID] = true
		result.AssignedInstallerIDs = append(result.AssignedInstallerIDs, inst.ID)
		result.AssignedCount++
		needed--
	}

	result.Shortfall = needed
	if needed > 0 {
		e.notifier.AdminAlert(ctx,
			"Bemanning saknas för bokning "+bookingID,
			fmt.Sprintf("Bokning %s (%s, %s) behöver %d installatörer till, endast %d av %d kunde tilldelas.",
				bookingID, booking.ScheduledDate, booking.Slot,
				needed, result.AssignedCount, booking.InstallersNeeded))
		e.logger.Warn("assignment shortfall", map[string]interface{}{
			"bookingId": bookingID,
			"shortfall": needed,
		})
	}

	return result, nil
}

// createAssignment inserts the pending row, one confirmation request
// per channel, the in-app task, and fires the outbound notifications.
func (e *Engine) createAssignment(ctx context.Context, booking *Booking, inst availability.Installer, isLead bool) error {
	a := &Assignment{
		ID:          uuid.NewString(),
		BookingID:   booking.ID,
		InstallerID: inst.ID,
		IsLead:      isLead,
		Status:      StatusPending,
	}
	if err := e.store.CreateAssignment(ctx, a); err != nil {
		return err
	}

	emailToken := uuid.NewString()
	discordToken := uuid.NewString()
	requests := []ConfirmationRequest{
		{ID: uuid.NewString(), AssignmentID: a.ID, Channel: ChannelEmail, Token: emailToken, Status: StatusPending},
		{ID: uuid.NewString(), AssignmentID: a.ID, Channel: ChannelDiscord, Token: discordToken, Status: StatusPending},
		{ID: uuid.NewString(), AssignmentID: a.ID, Channel: ChannelInApp, Status: StatusPending},
	}
	for i := range requests {
		if err := e.store.CreateConfirmationRequest(ctx, &requests[i]); err != nil {
			return err
		}
	}

	title := fmt.Sprintf("Bekräfta uppdrag %s (%s)", booking.ScheduledDate, booking.Slot)
	if err := e.store.CreateTask(ctx, a.ID, inst.ID, title); err != nil {
		return err
	}

	e.notifier.ConfirmationRequested(ctx, booking, inst, emailToken, discordToken)
	metrics.AssignmentsCreated.WithLabelValues(strconv.FormatBool(isLead)).Inc()

	e.logger.Info("assignment created", map[string]interface{}{
		"assignmentId": a.ID,
		"bookingId":    booking.ID,
		"installerId":  inst.ID,
		"isLead":       isLead,
	})
	return nil
}

// ResolveToken maps a channel token back to its assignment.
func (e *Engine) ResolveToken(ctx context.Context, token string) (*Assignment, error) {
	return e.store.GetAssignmentByToken(ctx, token)
}

// Accept marks the assignment accepted and, when every non-declined
// assignment on the booking is accepted, confirms the booking. The
// customer notification fires exactly once, on the status transition.
func (e *Engine) Accept(ctx context.Context, assignmentID string) (*ConfirmResult, error) {
	a, err := e.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(a.BookingID)
	defer unlock()

	// Re-read under the lock, a concurrent call may have resolved it.
	a, err = e.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending {
		return &ConfirmResult{
			AssignmentID:    a.ID,
			InstallerID:     a.InstallerID,
			Status:          a.Status,
			AlreadyResolved: true,
		}, nil
	}

	if err := e.resolve(ctx, a, StatusAccepted, StatusAccepted); err != nil {
		return nil, err
	}

	result := &ConfirmResult{
		AssignmentID: a.ID,
		InstallerID:  a.InstallerID,
		Status:       StatusAccepted,
	}

	confirmed, err := e.maybeConfirmBooking(ctx, a.BookingID)
	if err != nil {
		return nil, err
	}
	result.BookingConfirmed = confirmed

	metrics.ConfirmationOutcomes.WithLabelValues("accepted").Inc()
	return result, nil
}

// Decline marks the assignment declined and tries to reassign the
// next available installer who has never been offered this booking.
// The replacement is never lead.
func (e *Engine) Decline(ctx context.Context, assignmentID string) (*ConfirmResult, error) {
	a, err := e.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(a.BookingID)
	defer unlock()

	a, err = e.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending {
		return &ConfirmResult{
			AssignmentID:    a.ID,
			InstallerID:     a.InstallerID,
			Status:          a.Status,
			AlreadyResolved: true,
		}, nil
	}

	result, err := e.declineLocked(ctx, a, StatusDeclined)
	if err != nil {
		return nil, err
	}

	metrics.ConfirmationOutcomes.WithLabelValues("declined").Inc()
	return result, nil
}

// declineLocked runs the decline and reassignment path. The caller
// holds the booking lock. requestStatus distinguishes an explicit
// decline from an expiry.
func (e *Engine) declineLocked(ctx context.Context, a *Assignment, requestStatus string) (*ConfirmResult, error) {
	if err := e.resolve(ctx, a, StatusDeclined, requestStatus); err != nil {
		return nil, err
	}

	// A declining lead gives up the flag, otherwise a later top-up
	// would elect a second one.
	if a.IsLead {
		if err := e.store.ClearLead(ctx, a.ID); err != nil {
			return nil, err
		}
	}

	result := &ConfirmResult{
		AssignmentID: a.ID,
		InstallerID:  a.InstallerID,
		Status:       StatusDeclined,
	}

	booking, err := e.store.GetBooking(ctx, a.BookingID)
	if err != nil {
		return nil, err
	}

	// Anyone with an assignment row on this booking is off the table,
	// including previous decliners.
	assignments, err := e.store.ListAssignments(ctx, a.BookingID)
	if err != nil {
		return nil, err
	}
	offered := map[string]bool{}
	for _, existing := range assignments {
		offered[existing.InstallerID] = true
	}

	candidates, err := e.avail.ListAvailable(ctx, booking.ScheduledDate, booking.Slot)
	if err != nil {
		return nil, err
	}

	for _, inst := range candidates {
		if !inst.Available || offered[inst.ID] {
			continue
		}
		if err := e.createAssignment(ctx, booking, inst, false); err != nil {
			return nil, err
		}
		result.ReplacementInstallerID = inst.ID
		break
	}

	if result.ReplacementInstallerID == "" {
		e.notifier.AdminAlert(ctx,
			"Ingen ersättare för bokning "+booking.ID,
			fmt.Sprintf("Installatör %s avböjde bokning %s (%s, %s) och ingen ersättare finns tillgänglig.",
				a.InstallerID, booking.ID, booking.ScheduledDate, booking.Slot))
		e.logger.Warn("no replacement installer available", map[string]interface{}{
			"bookingId":   booking.ID,
			"installerId": a.InstallerID,
		})
	}

	return result, nil
}

// ExpirePending sweeps confirmation requests older than the TTL and
// routes each stale assignment through the decline path.
func (e *Engine) ExpirePending(ctx context.Context, now time.Time) (*ExpireResult, error) {
	cutoff := now.Add(-e.ttl)
	stale, err := e.store.ListExpiredPendingAssignments(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &ExpireResult{BookingIDs: []string{}}
	for i := range stale {
		a := &stale[i]

		unlock := e.locks.Lock(a.BookingID)
		current, err := e.store.GetAssignment(ctx, a.ID)
		if err != nil {
			unlock()
			return nil, err
		}
		if current.Status != StatusPending {
			unlock()
			continue
		}

		confirm, err := e.declineLocked(ctx, current, RequestExpired)
		unlock()
		if err != nil {
			return nil, err
		}

		result.ExpiredCount++
		result.BookingIDs = append(result.BookingIDs, a.BookingID)
		if confirm.ReplacementInstallerID != "" {
			result.ReassignedCount++
		}
		metrics.ConfirmationOutcomes.WithLabelValues("expired").Inc()

		e.logger.Info("pending confirmation expired", map[string]interface{}{
			"assignmentId": a.ID,
			"bookingId":    a.BookingID,
			"installerId":  a.InstallerID,
			"reassigned":   confirm.ReplacementInstallerID != "",
		})
	}

	return result, nil
}

// resolve applies a terminal status to the assignment, its pending
// confirmation requests and its in-app task.
func (e *Engine) resolve(ctx context.Context, a *Assignment, assignmentStatus, requestStatus string) error {
	if err := e.store.UpdateAssignmentStatus(ctx, a.ID, assignmentStatus); err != nil {
		return err
	}
	if err := e.store.ResolvePendingRequests(ctx, a.ID, requestStatus); err != nil {
		return err
	}
	return e.store.CloseTask(ctx, a.ID)
}

// maybeConfirmBooking transitions the booking to confirmed when every
// non-declined assignment is accepted. The conditional store update
// guarantees the customer notification fires at most once.
func (e *Engine) maybeConfirmBooking(ctx context.Context, bookingID string) (bool, error) {
	assignments, err := e.store.ListAssignments(ctx, bookingID)
	if err != nil {
		return false, err
	}

	accepted := 0
	for _, a := range assignments {
		switch a.Status {
		case StatusDeclined:
		case StatusAccepted:
			accepted++
		default:
			return false, nil
		}
	}
	if accepted == 0 {
		return false, nil
	}

	transitioned, err := e.store.ConfirmBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if !transitioned {
		return false, nil
	}

	booking, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	e.notifier.BookingConfirmed(ctx, booking)

	e.logger.Info("booking confirmed", map[string]interface{}{
		"bookingId":     bookingID,
		"acceptedCount": accepted,
	})
	return true, nil
}

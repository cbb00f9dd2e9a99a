// internal/workers/booking/auto-assign-installers/handler_test.go
package autoassigninstallers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/026iFly/foam-sub000/internal/assignment"
	commonerrors "github.com/026iFly/foam-sub000/internal/common/errors"
	"github.com/026iFly/foam-sub000/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAssigner struct {
	result *assignment.AssignResult
	err    error
	calls  []string
}

func (m *mockAssigner) Assign(_ context.Context, bookingID string) (*assignment.AssignResult, error) {
	m.calls = append(m.calls, bookingID)
	return m.result, m.err
}

func newHandler(engine Assigner) *Handler {
	return NewHandler(LoadConfig(), engine, logger.NewNoOpLogger())
}

func TestHandler_Execute_FullyStaffed(t *testing.T) {
	engine := &mockAssigner{
		result: &assignment.AssignResult{
			BookingID:            "bok-1",
			TotalNeeded:          2,
			AssignedCount:        2,
			LeadInstallerID:      "inst-a",
			AssignedInstallerIDs: []string{"inst-a", "inst-b"},
		},
	}

	output, err := newHandler(engine).Execute(context.Background(), &Input{BookingID: "bok-1"})

	require.NoError(t, err)
	assert.True(t, output.FullyStaffed)
	assert.Equal(t, "inst-a", output.LeadInstallerID)
	assert.Equal(t, []string{"bok-1"}, engine.calls)
}

func TestHandler_Execute_Shortfall(t *testing.T) {
	engine := &mockAssigner{
		result: &assignment.AssignResult{
			BookingID:     "bok-1",
			TotalNeeded:   3,
			AssignedCount: 1,
			Shortfall:     2,
		},
	}

	output, err := newHandler(engine).Execute(context.Background(), &Input{BookingID: "bok-1"})

	// Understaffing is not an error, the process continues
	require.NoError(t, err)
	assert.False(t, output.FullyStaffed)
	assert.Equal(t, 2, output.Shortfall)
}

func TestHandler_Execute_MissingBookingID(t *testing.T) {
	engine := &mockAssigner{}

	_, err := newHandler(engine).Execute(context.Background(), &Input{})

	assert.Error(t, err)
	assert.Empty(t, engine.calls)
}

func TestStandardError_Mapping(t *testing.T) {
	input := &Input{BookingID: "bok-1"}

	stdErr := standardError(sql.ErrNoRows, input)
	assert.Equal(t, commonerrors.ErrCodeBookingNotFound, stdErr.Code)
	assert.False(t, stdErr.Retryable)

	stdErr = standardError(fmt.Errorf("%w: booking bok-1 is cancelled", assignment.ErrBookingNotSchedulable), input)
	assert.Equal(t, commonerrors.ErrCodeBookingNotSchedulable, stdErr.Code)
	assert.False(t, stdErr.Retryable)

	stdErr = standardError(errors.New("availability query timed out"), input)
	assert.Equal(t, commonerrors.ErrCodeAssignmentFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)

	// Errors already in the taxonomy pass through unchanged.
	availErr := commonerrors.NewAvailabilityQueryFailedError(errors.New("connection refused"))
	assert.Same(t, availErr, standardError(availErr, input))
}

func TestHandler_Execute_MissingBookingID_Code(t *testing.T) {
	_, err := newHandler(&mockAssigner{}).Execute(context.Background(), &Input{})

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeBusinessRuleViolation, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

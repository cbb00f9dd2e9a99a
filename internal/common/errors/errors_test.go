// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Constructor Tests
// ==========================

func TestConstructors_CodesAndRetryability(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"quote validation", NewQuoteValidationFailedError("quoteId is required"), ErrCodeQuoteValidationFailed, false},
		{"quote calculation", NewQuoteCalculationFailedError(cause), ErrCodeQuoteCalculationFailed, false},
		{"quote persist", NewQuotePersistFailedError(cause), ErrCodeQuotePersistFailed, true},
		{"variable source", NewVariableSourceFailedError(cause), ErrCodeVariableSourceFailed, true},
		{"indexing", NewIndexingFailedError(cause), ErrCodeIndexingFailed, true},
		{"booking not found", NewBookingNotFoundError("bok-1"), ErrCodeBookingNotFound, false},
		{"booking not schedulable", NewBookingNotSchedulableError("status: cancelled"), ErrCodeBookingNotSchedulable, false},
		{"assignment not found", NewAssignmentNotFoundError("assignmentId: as-1"), ErrCodeAssignmentNotFound, false},
		{"assignment failed", NewAssignmentFailedError(cause), ErrCodeAssignmentFailed, true},
		{"confirmation failed", NewConfirmationFailedError(cause), ErrCodeConfirmationFailed, true},
		{"expiry sweep failed", NewExpirySweepFailedError(cause), ErrCodeExpirySweepFailed, true},
		{"availability query failed", NewAvailabilityQueryFailedError(cause), ErrCodeAvailabilityQueryFailed, true},
		{"notification send failed", NewNotificationSendFailedError("email", cause), ErrCodeNotificationSendFailed, true},
		{"business rule", NewBusinessRuleError("bookingId is required", ""), ErrCodeBusinessRuleViolation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.Message)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestStandardError_ErrorString(t *testing.T) {
	err := NewBookingNotFoundError("bok-404")
	assert.Equal(t, "StandardError[BOOKING_NOT_FOUND]: Booking not found", err.Error())
	assert.Equal(t, "bookingId: bok-404", err.Details)
}

func TestNotificationSendFailedError_CarriesChannel(t *testing.T) {
	err := NewNotificationSendFailedError("discord", errors.New("webhook 404"))
	assert.Contains(t, err.Details, "channel: discord")
	assert.Contains(t, err.Details, "webhook 404")
}

// ==========================
// BPMN Conversion Tests
// ==========================

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeQuotePersistFailed))
	assert.Equal(t, 3, GetRetryCount(ErrCodeAvailabilityQueryFailed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeQuoteValidationFailed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeBusinessRuleViolation))
}

func TestConvertToBPMNError(t *testing.T) {
	retryable := ConvertToBPMNError(NewConfirmationFailedError(errors.New("tx rollback")))
	assert.Equal(t, "CONFIRMATION_FAILED", retryable.Code)
	assert.True(t, retryable.Retryable)
	assert.Equal(t, 3, retryable.Retries)

	business := ConvertToBPMNError(NewBusinessRuleError("Unknown confirmation action", `action: "maybe"`))
	assert.Equal(t, "BUSINESS_RULE_VIOLATION", business.Code)
	assert.False(t, business.Retryable)
	assert.Equal(t, 0, business.Retries)
}

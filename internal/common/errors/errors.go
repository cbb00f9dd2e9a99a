// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeQuoteValidationFailed  ErrorCode = "QUOTE_VALIDATION_FAILED"
	ErrCodeQuoteCalculationFailed ErrorCode = "QUOTE_CALCULATION_FAILED"
	ErrCodeQuotePersistFailed     ErrorCode = "QUOTE_PERSIST_FAILED"
	ErrCodeVariableSourceFailed   ErrorCode = "VARIABLE_SOURCE_FAILED"
	ErrCodeIndexingFailed         ErrorCode = "INDEXING_FAILED"

	ErrCodeBookingNotFound         ErrorCode = "BOOKING_NOT_FOUND"
	ErrCodeBookingNotSchedulable   ErrorCode = "BOOKING_NOT_SCHEDULABLE"
	ErrCodeAssignmentNotFound      ErrorCode = "ASSIGNMENT_NOT_FOUND"
	ErrCodeAssignmentFailed        ErrorCode = "ASSIGNMENT_FAILED"
	ErrCodeConfirmationFailed      ErrorCode = "CONFIRMATION_FAILED"
	ErrCodeExpirySweepFailed       ErrorCode = "EXPIRY_SWEEP_FAILED"
	ErrCodeAvailabilityQueryFailed ErrorCode = "AVAILABILITY_QUERY_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeBusinessRuleViolation ErrorCode = "BUSINESS_RULE_VIOLATION"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
	Retries   int    `json:"retries"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 3. Error Constructors
// ==========================

// NewQuoteValidationFailedError creates a non-retryable input validation error.
func NewQuoteValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuoteValidationFailed,
		Message:   "Quote input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuoteCalculationFailedError reports a calculation the input cannot
// satisfy (unknown climate zone, infeasible build-up). Non-retryable.
func NewQuoteCalculationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuoteCalculationFailed,
		Message:   "Quote calculation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuotePersistFailedError creates a retryable database write error.
func NewQuotePersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotePersistFailed,
		Message:   "Failed to persist quote calculation",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVariableSourceFailedError creates a retryable variable lookup error.
func NewVariableSourceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVariableSourceFailed,
		Message:   "Failed to load calculation variables",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexingFailedError creates a retryable search-index error.
func NewIndexingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexingFailed,
		Message:   "Failed to index quote document",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBookingNotFoundError creates a non-retryable lookup error.
func NewBookingNotFoundError(bookingID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBookingNotFound,
		Message:   "Booking not found",
		Details:   fmt.Sprintf("bookingId: %s", bookingID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBookingNotSchedulableError reports an assignment attempt on a
// booking outside the scheduled state. Non-retryable business outcome.
func NewBookingNotSchedulableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBookingNotSchedulable,
		Message:   "Booking is not in a schedulable status",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssignmentNotFoundError creates a non-retryable lookup error.
func NewAssignmentNotFoundError(ref string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssignmentNotFound,
		Message:   "Assignment not found",
		Details:   ref,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssignmentFailedError creates a retryable assignment engine error.
func NewAssignmentFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssignmentFailed,
		Message:   "Installer assignment failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfirmationFailedError creates a retryable confirmation error.
func NewConfirmationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfirmationFailed,
		Message:   "Assignment confirmation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExpirySweepFailedError creates a retryable expiry sweep error.
func NewExpirySweepFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExpirySweepFailed,
		Message:   "Confirmation expiry sweep failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAvailabilityQueryFailedError creates a retryable availability lookup error.
func NewAvailabilityQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAvailabilityQueryFailed,
		Message:   "Installer availability lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBusinessRuleError creates a non-retryable rule violation, used for
// request-shape problems the caller has to correct.
func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBusinessRuleViolation,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQuotePersistFailed,
		ErrCodeVariableSourceFailed,
		ErrCodeIndexingFailed,
		ErrCodeAssignmentFailed,
		ErrCodeConfirmationFailed,
		ErrCodeExpirySweepFailed,
		ErrCodeAvailabilityQueryFailed,
		ErrCodeNotificationSendFailed:
		return 3 // Retryable technical errors

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
	}
}

/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on these with errors.Is / errors.As; the HTTP layer maps
  them to status codes.

ERROR CATEGORIES:
  1. Lookup errors - Missing or cross-tenant records (indistinguishable)
  2. Transition errors - Deciding a request that is no longer pending
  3. Dispatch errors - Side-effect failures during approval
  4. Validation errors - Malformed payloads, periods, rules

SEE ALSO:
  - approval/service.go: Wraps dispatch failures in DispatchError
  - api/errors.go: HTTP status mapping
*/
package labor

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the umbrella for every missing-record error. A record owned
	// by another company is reported the same way.
	ErrNotFound = errors.New("not found")

	ErrRequestNotFound = fmt.Errorf("pending request %w", ErrNotFound)
	ErrWorkerNotFound  = fmt.Errorf("worker %w", ErrNotFound)

	// ErrInvalidTransition is returned when deciding a request that is not pending.
	ErrInvalidTransition = errors.New("request already processed")

	// ErrNegativeOvertime is returned when a deduction would drop a worker's
	// overtime counter below zero.
	ErrNegativeOvertime = errors.New("overtime would become negative")

	// ErrRuleNotConfigured is returned when a company has no payroll rule.
	// There is no fallback rule.
	ErrRuleNotConfigured = errors.New("payroll rule not configured")

	// ErrDispatchFailed marks a failed side effect during approval.
	ErrDispatchFailed = errors.New("dispatch failed")

	ErrInvalidPayload     = errors.New("invalid request payload")
	ErrUnknownRequestType = errors.New("unknown request type")
	ErrInvalidPeriod      = errors.New("invalid period: end before start")
	ErrInvalidRule        = errors.New("invalid payroll rule")
	ErrInvalidStatus      = errors.New("invalid worker status")
	ErrInvalidWorker      = errors.New("invalid worker details")

	// ErrConcurrentModification is returned by a status compare-and-swap that
	// found the row in a different state than expected.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError reports an attempt to decide an already-decided request.
type TransitionError struct {
	RequestID RequestID
	Status    RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("request %s already processed (status: %s)", e.RequestID, e.Status)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NegativeOvertimeError provides details about a rejected deduction.
type NegativeOvertimeError struct {
	WorkerID WorkerID
	Current  decimal.Decimal
	Hours    decimal.Decimal
}

func (e *NegativeOvertimeError) Error() string {
	return fmt.Sprintf("deducting %s hours from worker %s would make overtime negative (current: %s)",
		e.Hours, e.WorkerID, e.Current)
}

func (e *NegativeOvertimeError) Unwrap() error {
	return ErrNegativeOvertime
}

// DispatchError wraps the cause of a failed approval side effect.
// It matches both ErrDispatchFailed and the underlying cause.
type DispatchError struct {
	RequestID RequestID
	Type      RequestType
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch of %s request %s failed: %v", e.Type, e.RequestID, e.Err)
}

func (e *DispatchError) Unwrap() []error {
	return []error{ErrDispatchFailed, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrUnknownRequestType) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidWorker)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

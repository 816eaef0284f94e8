/*
errors.go - Centralized error types for the governance engines

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every engine operation fails with an *Error carrying a stable Kind
  (machine readable) and a Message (human readable). Storage backends
  return the plain sentinels below; engines wrap them with domain context.

ERROR KINDS:
  validation_error      malformed input, limits exceeded
  illegal_transition    workflow precondition violated, state unchanged
  insufficient_balance  approval would overdraw the leave balance
  already_checked_in    attendance slot for the day already taken
  already_checked_out   check-out already recorded
  no_check_in_found     check-out without a check-in
  permission_denied     role or department mismatch, self-decision
  unauthenticated       missing, expired or forged bearer token
  not_found             unknown request or employee
  internal_error        unexpected storage failure

USAGE:
  if errors.Is(err, generic.ErrIllegalTransition) {
      // request was already decided
  }
  kind := generic.KindOf(err) // "illegal_transition"

SEE ALSO:
  - ledger.go: Uses the store sentinels
  - leave/workflow.go, attendance/engine.go: Produce kinds
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// KINDS
// =============================================================================

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindIllegalTransition   Kind = "illegal_transition"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindAlreadyCheckedIn    Kind = "already_checked_in"
	KindAlreadyCheckedOut   Kind = "already_checked_out"
	KindNoCheckInFound      Kind = "no_check_in_found"
	KindPermissionDenied    Kind = "permission_denied"
	KindUnauthenticated     Kind = "unauthenticated"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal_error"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation          = errors.New("validation error")
	ErrIllegalTransition   = errors.New("illegal transition")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyCheckedIn    = errors.New("already checked in")
	ErrAlreadyCheckedOut   = errors.New("already checked out")
	ErrNoCheckInFound      = errors.New("no check-in found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInternal            = errors.New("internal error")

	// ErrEntityNotFound is returned by stores when a referenced row doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDuplicateIdempotencyKey is returned when a ledger transaction with the
	// same idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicateAttendance is returned by stores when the (employee, date)
	// attendance slot is already taken.
	ErrDuplicateAttendance = errors.New("duplicate attendance record")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

var kindSentinels = map[Kind]error{
	KindValidation:          ErrValidation,
	KindIllegalTransition:   ErrIllegalTransition,
	KindInsufficientBalance: ErrInsufficientBalance,
	KindAlreadyCheckedIn:    ErrAlreadyCheckedIn,
	KindAlreadyCheckedOut:   ErrAlreadyCheckedOut,
	KindNoCheckInFound:      ErrNoCheckInFound,
	KindPermissionDenied:    ErrPermissionDenied,
	KindUnauthenticated:     ErrUnauthenticated,
	KindNotFound:            ErrEntityNotFound,
	KindInternal:            ErrInternal,
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Error is the error every engine operation returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return NewError(KindValidation, format, args...)
}

func IllegalTransition(format string, args ...any) *Error {
	return NewError(KindIllegalTransition, format, args...)
}

func PermissionDenied(format string, args ...any) *Error {
	return NewError(KindPermissionDenied, format, args...)
}

func Unauthenticated(format string, args ...any) *Error {
	return NewError(KindUnauthenticated, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return NewError(KindNotFound, format, args...)
}

// Internal wraps an unexpected failure. Errors that already carry a kind are
// returned unchanged so that domain failures raised inside a storage
// transaction keep their meaning.
func Internal(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	var balance *InsufficientBalanceError
	if errors.As(err, &balance) {
		return &Error{Kind: KindInsufficientBalance, Message: balance.Error(), Err: err}
	}
	if errors.Is(err, ErrEntityNotFound) {
		return &Error{Kind: KindNotFound, Message: message, Err: err}
	}
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EntityID  EntityID
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Shortfall() Amount {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %v, requested %v, shortfall %v",
		e.Available.Value, e.Requested.Value, e.Shortfall().Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf returns the stable kind of err, internal_error for anything untyped.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// MessageOf returns the human-readable part of err.
func MessageOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return err.Error()
}

// IsClientError returns true if the error is due to invalid client input or
// a state conflict the caller can observe.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindInternal, "":
		return false
	}
	return true
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of failure categories callers dispatch on.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidState      Kind = "invalid_state"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindConflict          Kind = "conflict"
	KindFatal             Kind = "fatal"
	KindInternal          Kind = "internal"
)

type ErrorCode string

const (
	AccountNotFound        ErrorCode = "account_not_found"
	ClientNotFound         ErrorCode = "client_not_found"
	MovementNotFound       ErrorCode = "movement_not_found"
	NoActiveAccounts       ErrorCode = "no_active_accounts"
	NoMovementsInRange     ErrorCode = "no_movements_in_range"
	InvalidInput           ErrorCode = "invalid_input"
	InvalidAmount          ErrorCode = "invalid_amount"
	InvalidStatus          ErrorCode = "invalid_status"
	InvalidDateRange       ErrorCode = "invalid_date_range"
	AccountNotActive       ErrorCode = "account_not_active"
	AccountHasBalance      ErrorCode = "account_has_balance"
	AccountNotDeleted      ErrorCode = "account_not_deleted"
	AccountDeleted         ErrorCode = "account_deleted"
	InsufficientFunds      ErrorCode = "insufficient_funds"
	ConcurrentModification ErrorCode = "concurrent_modification"
	DuplicateAccountNumber ErrorCode = "duplicate_account_number"
	AccountNumberExhausted ErrorCode = "account_number_exhausted"
	RequestCanceled        ErrorCode = "request_canceled"
	InternalError          ErrorCode = "internal_error"
)

var codeKinds = map[ErrorCode]Kind{
	AccountNotFound:        KindNotFound,
	ClientNotFound:         KindNotFound,
	MovementNotFound:       KindNotFound,
	NoActiveAccounts:       KindNotFound,
	NoMovementsInRange:     KindNotFound,
	InvalidInput:           KindInvalidInput,
	InvalidAmount:          KindInvalidInput,
	InvalidStatus:          KindInvalidInput,
	InvalidDateRange:       KindInvalidInput,
	AccountNotActive:       KindInvalidState,
	AccountHasBalance:      KindInvalidState,
	AccountNotDeleted:      KindInvalidState,
	AccountDeleted:         KindInvalidState,
	InsufficientFunds:      KindInsufficientFunds,
	ConcurrentModification: KindConflict,
	DuplicateAccountNumber: KindConflict,
	AccountNumberExhausted: KindFatal,
	RequestCanceled:        KindInternal,
	InternalError:          KindInternal,
}

type AppError struct {
	Kind    Kind      `json:"kind"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	// Reason narrows the code, e.g. which date-range rule was broken.
	Reason string `json:"reason,omitempty"`

	cause error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches on Code so that copies made by WithDetails still compare equal
// to the predefined values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Reason == "" || e.Reason == t.Reason)
}

func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindInvalidState, KindConflict:
		return http.StatusConflict
	case KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case KindFatal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may repeat the operation unchanged.
func (e *AppError) Retryable() bool {
	return e.Kind == KindConflict
}

func NewAppError(code ErrorCode, message string) *AppError {
	kind, ok := codeKinds[code]
	if !ok {
		kind = KindInternal
	}
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return NewAppError(code, fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of e carrying details; predefined errors are never mutated.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

func (e *AppError) WithReason(reason string) *AppError {
	cp := *e
	cp.Reason = reason
	return &cp
}

// WithCause returns a copy of e that wraps err. The cause is never rendered to clients.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.cause = err
	return &cp
}

// Internal wraps an unexpected failure behind a generic message.
func Internal(err error, message string) *AppError {
	return NewAppError(InternalError, message).WithCause(err)
}

// Conflict wraps a transient contention failure reported by storage or the lock layer.
func Conflict(err error, message string) *AppError {
	return NewAppError(ConcurrentModification, message).WithCause(err)
}

// Canceled wraps a storage call abandoned because the caller's context ended.
func Canceled(err error, message string) *AppError {
	return NewAppError(RequestCanceled, message).WithCause(err)
}

// From returns err as an AppError, wrapping anything else as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, "an unexpected error occurred")
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Date range sub-reasons.
const (
	ReasonMissingDates  = "missing_dates"
	ReasonStartAfterEnd = "start_after_end"
	ReasonRangeTooLong  = "range_too_long"
	ReasonFutureDate    = "future_date"
	ReasonInvalidFormat = "invalid_format"
)

// Predefined errors for common cases
var (
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrClientNotFound         = NewAppError(ClientNotFound, "client not found")
	ErrMovementNotFound       = NewAppError(MovementNotFound, "movement not found")
	ErrNoActiveAccounts       = NewAppError(NoActiveAccounts, "no active accounts for client")
	ErrNoMovementsInRange     = NewAppError(NoMovementsInRange, "no movements in range")
	ErrInvalidInput           = NewAppError(InvalidInput, "invalid input")
	ErrInvalidAccountID       = NewAppError(InvalidInput, "invalid account id")
	ErrInvalidAmount          = NewAppError(InvalidAmount, "invalid movement amount")
	ErrInvalidStatus          = NewAppError(InvalidStatus, "invalid account status")
	ErrInvalidDateRange       = NewAppError(InvalidDateRange, "invalid date range")
	ErrAccountNotActive       = NewAppError(AccountNotActive, "account is not active")
	ErrAccountHasBalance      = NewAppError(AccountHasBalance, "account still has a balance")
	ErrAccountNotDeleted      = NewAppError(AccountNotDeleted, "account is not deleted")
	ErrAccountDeleted         = NewAppError(AccountDeleted, "account is deleted, reactivate it first")
	ErrInsufficientFunds      = NewAppError(InsufficientFunds, "insufficient funds")
	ErrConcurrentModification = NewAppError(ConcurrentModification, "account was modified concurrently, retry the request")
	ErrDuplicateAccountNumber = NewAppError(DuplicateAccountNumber, "account number already in use")
	ErrAccountNumberExhausted = NewAppError(AccountNumberExhausted, "could not generate a unique account number")
	ErrCannotBeginTransaction = NewAppError(InternalError, "cannot begin transaction")
)

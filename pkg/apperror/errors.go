package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Exchange Business Logic (EXG) ----

func ErrInvalidAmount() *AppError {
	return New("EXG_001", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidLocation() *AppError {
	return New("EXG_002", "Invalid coordinates", http.StatusBadRequest)
}

func ErrActiveRequestExists() *AppError {
	return New("EXG_003", "An open exchange request already exists", http.StatusConflict)
}

func ErrInsufficientFunds() *AppError {
	return New("EXG_004", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New("EXG_005", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrExchangeInProgress() *AppError {
	return New("EXG_006", "Another exchange is already in progress", http.StatusConflict)
}

func ErrOwnRequest() *AppError {
	return New("EXG_007", "Cannot accept your own request", http.StatusConflict)
}

func ErrRequestUnavailable() *AppError {
	return New("EXG_008", "Request is not open for acceptance", http.StatusConflict)
}

func ErrNoOpenRequest() *AppError {
	return New("EXG_009", "No open request to trade with", http.StatusConflict)
}

func ErrDirectionMismatch() *AppError {
	return New("EXG_010", "Exchange directions are not opposite", http.StatusConflict)
}

func ErrOfferTooSmall() *AppError {
	return New("EXG_011", "Your request does not cover the target amount", http.StatusConflict)
}

func ErrRequestClaimed() *AppError {
	return New("EXG_012", "Request is no longer available", http.StatusConflict)
}

func ErrNotHelper() *AppError {
	return New("EXG_013", "Only the helper may settle this exchange", http.StatusForbidden)
}

func ErrNotAwaitingSettlement() *AppError {
	return New("EXG_014", "Request is not awaiting settlement", http.StatusConflict)
}

func ErrCodeMismatch() *AppError {
	return New("EXG_015", "Completion code does not match", http.StatusConflict)
}

func ErrNotRequester() *AppError {
	return New("EXG_016", "Only the requester may cancel this request", http.StatusForbidden)
}

func ErrCancelUnavailable() *AppError {
	return New("EXG_017", "Only unaccepted requests can be cancelled", http.StatusConflict)
}

func ErrAlreadyReversed() *AppError {
	return New("EXG_018", "Transaction is already reversed", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("AUTH_002", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAccountSuspended() *AppError {
	return New("AUTH_004", "Account is suspended", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns an EXG_001-style validation error.
func Validation(message string) *AppError {
	return New("EXG_001", message, http.StatusBadRequest)
}

package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("EXG_004", "Insufficient balance", http.StatusPaymentRequired),
			expected: "[EXG_004] Insufficient balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("EXG_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestExchangeErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidAmount", ErrInvalidAmount(), "EXG_001", 400},
		{"InvalidLocation", ErrInvalidLocation(), "EXG_002", 400},
		{"ActiveRequestExists", ErrActiveRequestExists(), "EXG_003", 409},
		{"InsufficientFunds", ErrInsufficientFunds(), "EXG_004", 402},
		{"NotFound", ErrNotFound("Request"), "EXG_005", 404},
		{"ExchangeInProgress", ErrExchangeInProgress(), "EXG_006", 409},
		{"OwnRequest", ErrOwnRequest(), "EXG_007", 409},
		{"RequestUnavailable", ErrRequestUnavailable(), "EXG_008", 409},
		{"NoOpenRequest", ErrNoOpenRequest(), "EXG_009", 409},
		{"DirectionMismatch", ErrDirectionMismatch(), "EXG_010", 409},
		{"OfferTooSmall", ErrOfferTooSmall(), "EXG_011", 409},
		{"RequestClaimed", ErrRequestClaimed(), "EXG_012", 409},
		{"NotHelper", ErrNotHelper(), "EXG_013", 403},
		{"NotAwaitingSettlement", ErrNotAwaitingSettlement(), "EXG_014", 409},
		{"CodeMismatch", ErrCodeMismatch(), "EXG_015", 409},
		{"NotRequester", ErrNotRequester(), "EXG_016", 403},
		{"CancelUnavailable", ErrCancelUnavailable(), "EXG_017", 409},
		{"AlreadyReversed", ErrAlreadyReversed(), "EXG_018", 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestAuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidCredentials", ErrInvalidCredentials(), "AUTH_001", 401},
		{"EmailExists", ErrEmailExists(), "AUTH_002", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"AccountSuspended", ErrAccountSuspended(), "AUTH_004", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	lockErr := ErrLockTimeout(inner)
	assert.Equal(t, "SYS_002", lockErr.Code)
	assert.Equal(t, 503, lockErr.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("User")
	assert.Contains(t, err.Message, "User")
	assert.Equal(t, "EXG_005", err.Code)
}

package ports

import (
	"context"
	"errors"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Storage-level sentinel errors. Repositories surface constraint violations
// through these so services can translate them without knowing the driver.
var (
	// ErrDuplicateEmail is returned when an insert hits the unique email constraint.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateActiveRequest is returned when an insert hits the
	// one-active-request-per-user partial unique index.
	ErrDuplicateActiveRequest = errors.New("user already has an active request")
	// ErrLockNotAvailable is returned when a row lock cannot be acquired
	// within the server's configured lock timeout.
	ErrLockNotAvailable = errors.New("row lock not available")
)

// UserRepository defines persistence operations for users and their balances.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, location domain.Point) error
	UpdateWebhookURL(ctx context.Context, id uuid.UUID, webhookURL *string) error
	// Credit adds amount to the user's balance.
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error
	// Debit subtracts amount from the user's balance. Returns false without
	// touching the row when the balance does not cover the amount.
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (bool, error)
	IncrementCompletedExchanges(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

// RequestRepository defines persistence operations for exchange requests.
// The Mark* methods are conditional writes: they apply only while the row is
// still in the expected state and report whether the row was claimed.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.ExchangeRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeRequest, error)
	// GetActiveByUserID returns the user's single CREATED or ACCEPTED request, if any.
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.ExchangeRequest, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.ExchangeRequest, int64, error)
	FindNearby(ctx context.Context, params NearbyParams) ([]domain.ExchangeRequest, int64, error)
	// IncrementViewCounts bumps the view counter of the given requests (best-effort).
	IncrementViewCounts(ctx context.Context, ids []uuid.UUID) error
	// MarkAccepted claims a CREATED, unclaimed, unexpired request for the helper,
	// linking it to the helper's own request in the same write.
	MarkAccepted(ctx context.Context, id, helperID, linkedRequestID uuid.UUID, code string, acceptedAt time.Time) (bool, error)
	// MarkLinked moves the helper's own CREATED request to ACCEPTED with a link to
	// the target. Safe to retry: re-applying the same link is a no-op success.
	MarkLinked(ctx context.Context, id, linkedRequestID uuid.UUID, acceptedAt time.Time) (bool, error)
	// MarkCompleted advances an ACCEPTED request to COMPLETED within a settlement transaction.
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) (bool, error)
	// MarkCancelled cancels a request only while it is still CREATED.
	MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time) (bool, error)
	// ExpireStale transitions CREATED requests whose deadline has passed to EXPIRED.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	// PurgeTerminal deletes terminal-state requests older than the cutoff.
	PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error)
}

// NearbyParams holds the discovery query: origin, radius, filters, pagination.
type NearbyParams struct {
	Origin            domain.Point
	MaxDistanceMeters float64
	ExcludeUserID     uuid.UUID
	Direction         *domain.Direction
	MinAmount         *int64
	MaxAmount         *int64
	Now               time.Time
	Page              int
	PageSize          int
}

// TransactionRepository defines persistence operations for settlement records.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*domain.Transaction, error)
	// MarkReversed flips a COMPLETED record to REVERSED within the reversal transaction.
	MarkReversed(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	UserID   uuid.UUID // Matches payer or payee
	Status   *domain.TransactionStatus
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

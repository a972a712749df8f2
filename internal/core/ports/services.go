package ports

import (
	"context"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"

	"github.com/google/uuid"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// Clock supplies wall-clock time so expiry logic stays testable.
type Clock interface {
	Now() time.Time
}

// CodeGenerator mints completion codes for accepted exchanges.
type CodeGenerator interface {
	// SixDigitCode returns a uniformly random zero-padded 6-digit string.
	SixDigitCode() (string, error)
}

// Notifier delivers exchange events to user webhooks asynchronously.
type Notifier interface {
	EnqueueRequestAccepted(ctx context.Context, request *domain.ExchangeRequest) error
	EnqueueExchangeCompleted(ctx context.Context, transaction *domain.Transaction) error
}

// --- Service Ports (Business Logic) ---

// ExchangeService owns the request lifecycle outside of acceptance and settlement.
type ExchangeService interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*domain.ExchangeRequest, error)
	GetRequest(ctx context.Context, actorID, requestID uuid.UUID) (*domain.ExchangeRequest, error)
	// GetActiveRequest returns the actor's single CREATED/ACCEPTED request, or nil.
	GetActiveRequest(ctx context.Context, actorID uuid.UUID) (*domain.ExchangeRequest, error)
	ListRequests(ctx context.Context, actorID uuid.UUID, page, pageSize int) ([]domain.ExchangeRequest, int64, error)
	Cancel(ctx context.Context, actorID, requestID uuid.UUID) (*domain.ExchangeRequest, error)
}

// CreateRequestInput holds validated input for request creation.
type CreateRequestInput struct {
	ActorID       uuid.UUID
	Amount        int64
	Direction     domain.Direction
	Location      domain.Point
	ExpiryMinutes *int // nil = configured default
	Notes         *string
}

// MatchingService discovers nearby compatible requests.
type MatchingService interface {
	FindNearby(ctx context.Context, query NearbyQuery) ([]domain.ExchangeRequest, int64, error)
	// FindCompatibleHelpers derives direction and amount filters from the
	// actor's own open request and delegates to FindNearby.
	FindCompatibleHelpers(ctx context.Context, actorID uuid.UUID, maxDistanceMeters float64, page, pageSize int) ([]domain.ExchangeRequest, int64, error)
}

// NearbyQuery holds validated input for discovery.
type NearbyQuery struct {
	ActorID           uuid.UUID
	Origin            domain.Point
	MaxDistanceMeters float64
	Direction         *domain.Direction
	MinAmount         *int64
	MaxAmount         *int64
	Page              int
	PageSize          int
}

// AcceptanceService pairs a helper with a target request.
type AcceptanceService interface {
	Accept(ctx context.Context, actorID, requestID uuid.UUID) (*AcceptResult, error)
}

// AcceptResult is the accepted target plus the code shown once to the helper.
type AcceptResult struct {
	Request        *domain.ExchangeRequest
	CompletionCode string
}

// SettlementService finalizes an accepted exchange.
type SettlementService interface {
	Complete(ctx context.Context, actorID, requestID uuid.UUID, code string) (*SettleResult, error)
	// Reverse undoes a settled transfer: the payee gives back the net amount,
	// the payer recovers the full amount and the record is marked REVERSED.
	// Operator-facing; there is no public route to it.
	Reverse(ctx context.Context, transactionID uuid.UUID, reason string) (*domain.Transaction, error)
}

// SettleResult is the completed target request and its settlement record.
type SettleResult struct {
	Request     *domain.ExchangeRequest
	Transaction *domain.Transaction
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Email      string
	Password   string
	Name       string
	Location   *domain.Point
	WebhookURL *string
}

// WalletService exposes profile reads, topups and settlement history.
type WalletService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	Topup(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) // returns new balance
	UpdateWebhookURL(ctx context.Context, userID uuid.UUID, webhookURL *string) error
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

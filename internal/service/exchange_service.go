package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/config"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ExchangeServiceImpl implements ports.ExchangeService.
type ExchangeServiceImpl struct {
	requestRepo ports.RequestRepository
	userRepo    ports.UserRepository
	clock       ports.Clock
	cfg         config.ExchangeConfig
	log         zerolog.Logger
}

// NewExchangeService creates a new ExchangeServiceImpl.
func NewExchangeService(
	requestRepo ports.RequestRepository,
	userRepo ports.UserRepository,
	clock ports.Clock,
	cfg config.ExchangeConfig,
	log zerolog.Logger,
) *ExchangeServiceImpl {
	return &ExchangeServiceImpl{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		clock:       clock,
		cfg:         cfg,
		log:         log,
	}
}

// CreateRequest opens a new exchange request for the actor.
// The platform fee is computed here and frozen onto the request so settlement
// stays deterministic if the fee schedule changes later.
func (s *ExchangeServiceImpl) CreateRequest(ctx context.Context, input ports.CreateRequestInput) (*domain.ExchangeRequest, error) {
	if input.Amount <= 0 || input.Amount < s.cfg.MinAmount || input.Amount > s.cfg.MaxAmount {
		return nil, apperror.ErrInvalidAmount()
	}
	if !input.Direction.Valid() {
		return nil, apperror.Validation("invalid direction")
	}
	if !input.Location.Valid() {
		return nil, apperror.ErrInvalidLocation()
	}

	expiryMinutes := s.cfg.DefaultExpiryMinutes
	if input.ExpiryMinutes != nil {
		if *input.ExpiryMinutes <= 0 {
			return nil, apperror.Validation("expiry_minutes must be positive")
		}
		expiryMinutes = *input.ExpiryMinutes
		if expiryMinutes > s.cfg.MaxExpiryMinutes {
			expiryMinutes = s.cfg.MaxExpiryMinutes
		}
	}

	// One active request per user
	active, err := s.requestRepo.GetActiveByUserID(ctx, input.ActorID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check active request: %w", err))
	}
	if active != nil {
		return nil, apperror.ErrActiveRequestExists()
	}

	user, err := s.userRepo.GetByID(ctx, input.ActorID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}
	if !user.IsActive() {
		return nil, apperror.ErrAccountSuspended()
	}

	// An ONLINE_TO_CASH requester will be the electronic payer at settlement,
	// so the balance must cover the full amount up front.
	if input.Direction == domain.DirectionOnlineToCash && !user.CanCover(input.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := s.clock.Now()
	request := &domain.ExchangeRequest{
		ID:          uuid.New(),
		RequesterID: input.ActorID,
		Amount:      input.Amount,
		PlatformFee: s.platformFee(input.Amount),
		Direction:   input.Direction,
		Location:    input.Location,
		Status:      domain.RequestStatusCreated,
		Notes:       input.Notes,
		ExpiresAt:   now.Add(time.Duration(expiryMinutes) * time.Minute),
		CreatedAt:   now,
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		// The partial unique index closes the check/insert race.
		if errors.Is(err, ports.ErrDuplicateActiveRequest) {
			return nil, apperror.ErrActiveRequestExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create request: %w", err))
	}

	// Track the user's last known position (best-effort)
	if err := s.userRepo.UpdateLocation(ctx, input.ActorID, input.Location); err != nil {
		s.log.Warn().Err(err).Str("user_id", input.ActorID.String()).Msg("failed to update user location")
	}

	s.log.Info().
		Str("request_id", request.ID.String()).
		Str("requester_id", input.ActorID.String()).
		Str("direction", string(input.Direction)).
		Int64("amount", input.Amount).
		Int64("platform_fee", request.PlatformFee).
		Msg("exchange request created")

	return request, nil
}

// GetRequest returns a single request. Requests still open for acceptance are
// visible to everyone; once claimed, only the two participants may see them.
func (s *ExchangeServiceImpl) GetRequest(ctx context.Context, actorID, requestID uuid.UUID) (*domain.ExchangeRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load request: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrNotFound("Request")
	}

	if request.Status != domain.RequestStatusCreated && !request.IsParticipant(actorID) {
		return nil, apperror.ErrNotFound("Request")
	}

	repairLink(ctx, s.requestRepo, s.log, request)

	return request, nil
}

// GetActiveRequest returns the actor's open request, or nil when there is none.
func (s *ExchangeServiceImpl) GetActiveRequest(ctx context.Context, actorID uuid.UUID) (*domain.ExchangeRequest, error) {
	request, err := s.requestRepo.GetActiveByUserID(ctx, actorID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load active request: %w", err))
	}
	return request, nil
}

// ListRequests returns the actor's own requests, newest first.
func (s *ExchangeServiceImpl) ListRequests(ctx context.Context, actorID uuid.UUID, page, pageSize int) ([]domain.ExchangeRequest, int64, error) {
	page, pageSize = clampPage(page, pageSize, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	requests, total, err := s.requestRepo.ListByUserID(ctx, actorID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list requests: %w", err))
	}
	return requests, total, nil
}

// Cancel withdraws the actor's own request while it is still unaccepted.
func (s *ExchangeServiceImpl) Cancel(ctx context.Context, actorID, requestID uuid.UUID) (*domain.ExchangeRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load request: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrNotFound("Request")
	}
	if request.RequesterID != actorID {
		return nil, apperror.ErrNotRequester()
	}
	if request.Status != domain.RequestStatusCreated {
		return nil, apperror.ErrCancelUnavailable()
	}

	now := s.clock.Now()
	ok, err := s.requestRepo.MarkCancelled(ctx, requestID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel request: %w", err))
	}
	if !ok {
		// Claimed by a helper between the read and the write. Expected
		// marketplace outcome, not an anomaly.
		s.log.Debug().Str("request_id", requestID.String()).Msg("cancel lost the race to an acceptance")
		return nil, apperror.ErrCancelUnavailable()
	}

	request.Status = domain.RequestStatusCancelled
	request.CancelledAt = &now

	s.log.Info().
		Str("request_id", requestID.String()).
		Str("requester_id", actorID.String()).
		Msg("exchange request cancelled")

	return request, nil
}

// clampPage normalizes paging input to sane bounds.
func clampPage(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}

// platformFee computes the frozen fee: fee_percent of the amount, rounded
// half away from zero to whole minor units.
func (s *ExchangeServiceImpl) platformFee(amount int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(s.cfg.FeePercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// repairLink reconciles the acceptance saga's second write. An ACCEPTED target
// whose counterpart is still CREATED had its link write interrupted; re-apply
// it. A counterpart claimed by a third request in the meantime cannot be
// repaired automatically and is logged for operator attention.
func repairLink(ctx context.Context, repo ports.RequestRepository, log zerolog.Logger, target *domain.ExchangeRequest) {
	if target.Status != domain.RequestStatusAccepted || target.LinkedRequestID == nil || target.AcceptedAt == nil {
		return
	}

	linked, err := repo.GetByID(ctx, *target.LinkedRequestID)
	if err != nil {
		log.Warn().Err(err).Str("request_id", target.ID.String()).Msg("link repair: failed to load counterpart")
		return
	}
	if linked == nil || linked.Status != domain.RequestStatusCreated {
		return
	}

	ok, err := repo.MarkLinked(ctx, linked.ID, target.ID, *target.AcceptedAt)
	if err != nil {
		log.Warn().Err(err).Str("request_id", target.ID.String()).Msg("link repair: write failed")
		return
	}
	if !ok {
		log.Error().
			Str("request_id", target.ID.String()).
			Str("linked_request_id", linked.ID.String()).
			Msg("link repair: counterpart claimed elsewhere, needs operator resolution")
		return
	}

	log.Info().
		Str("request_id", target.ID.String()).
		Str("linked_request_id", linked.ID.String()).
		Msg("link repair: re-applied pending link")
}

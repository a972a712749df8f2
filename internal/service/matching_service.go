package service

import (
	"context"
	"fmt"

	"github.com/CoderPravin-21/cash-exchange-prototype/config"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MatchingServiceImpl implements ports.MatchingService.
type MatchingServiceImpl struct {
	requestRepo ports.RequestRepository
	clock       ports.Clock
	cfg         config.ExchangeConfig
	log         zerolog.Logger
}

// NewMatchingService creates a new MatchingServiceImpl.
func NewMatchingService(
	requestRepo ports.RequestRepository,
	clock ports.Clock,
	cfg config.ExchangeConfig,
	log zerolog.Logger,
) *MatchingServiceImpl {
	return &MatchingServiceImpl{
		requestRepo: requestRepo,
		clock:       clock,
		cfg:         cfg,
		log:         log,
	}
}

// FindNearby returns open, unexpired requests around the origin ordered by
// distance, excluding the actor's own. Each returned request has its view
// counter bumped as a popularity signal.
func (s *MatchingServiceImpl) FindNearby(ctx context.Context, query ports.NearbyQuery) ([]domain.ExchangeRequest, int64, error) {
	if !query.Origin.Valid() {
		return nil, 0, apperror.ErrInvalidLocation()
	}

	radius := query.MaxDistanceMeters
	if radius <= 0 {
		radius = s.cfg.DefaultRadiusMeters
	}
	if radius > s.cfg.MaxRadiusMeters {
		radius = s.cfg.MaxRadiusMeters
	}

	page, pageSize := clampPage(query.Page, query.PageSize, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	requests, total, err := s.requestRepo.FindNearby(ctx, ports.NearbyParams{
		Origin:            query.Origin,
		MaxDistanceMeters: radius,
		ExcludeUserID:     query.ActorID,
		Direction:         query.Direction,
		MinAmount:         query.MinAmount,
		MaxAmount:         query.MaxAmount,
		Now:               s.clock.Now(),
		Page:              page,
		PageSize:          pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("find nearby requests: %w", err))
	}

	if len(requests) > 0 {
		ids := make([]uuid.UUID, len(requests))
		for i := range requests {
			ids[i] = requests[i].ID
		}
		if err := s.requestRepo.IncrementViewCounts(ctx, ids); err != nil {
			s.log.Warn().Err(err).Int("count", len(ids)).Msg("failed to increment view counts")
		}
	}

	return requests, total, nil
}

// FindCompatibleHelpers searches around the actor's own open request for
// counterparts that could accept it: opposite direction, amount at least
// the actor's own.
func (s *MatchingServiceImpl) FindCompatibleHelpers(ctx context.Context, actorID uuid.UUID, maxDistanceMeters float64, page, pageSize int) ([]domain.ExchangeRequest, int64, error) {
	own, err := s.requestRepo.GetActiveByUserID(ctx, actorID)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("load own request: %w", err))
	}
	if own == nil || own.Status != domain.RequestStatusCreated || own.IsExpired(s.clock.Now()) {
		return nil, 0, apperror.ErrNoOpenRequest()
	}

	opposite := own.Direction.Opposite()
	minAmount := own.Amount

	return s.FindNearby(ctx, ports.NearbyQuery{
		ActorID:           actorID,
		Origin:            own.Location,
		MaxDistanceMeters: maxDistanceMeters,
		Direction:         &opposite,
		MinAmount:         &minAmount,
		Page:              page,
		PageSize:          pageSize,
	})
}

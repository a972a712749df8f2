package service

import (
	"context"
	"fmt"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AcceptanceServiceImpl implements ports.AcceptanceService.
type AcceptanceServiceImpl struct {
	requestRepo ports.RequestRepository
	clock       ports.Clock
	codeGen     ports.CodeGenerator
	notifier    ports.Notifier
	log         zerolog.Logger
}

// NewAcceptanceService creates a new AcceptanceServiceImpl.
func NewAcceptanceService(
	requestRepo ports.RequestRepository,
	clock ports.Clock,
	codeGen ports.CodeGenerator,
	notifier ports.Notifier,
	log zerolog.Logger,
) *AcceptanceServiceImpl {
	return &AcceptanceServiceImpl{
		requestRepo: requestRepo,
		clock:       clock,
		codeGen:     codeGen,
		notifier:    notifier,
		log:         log,
	}
}

// Accept claims the target request for the acting helper. The claim itself is
// a single conditional write on the target row, so exactly one of any number
// of concurrent helpers wins; everyone else learns the request is gone.
// Linking the helper's own request is a second write that may be retried
// later if it fails here.
func (s *AcceptanceServiceImpl) Accept(ctx context.Context, actorID, requestID uuid.UUID) (*ports.AcceptResult, error) {
	now := s.clock.Now()

	// A helper already locked into an accepted exchange cannot take another.
	helperOwn, err := s.requestRepo.GetActiveByUserID(ctx, actorID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load helper request: %w", err))
	}
	if helperOwn != nil && helperOwn.Status == domain.RequestStatusAccepted {
		return nil, apperror.ErrExchangeInProgress()
	}

	target, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load target request: %w", err))
	}
	if target == nil {
		return nil, apperror.ErrNotFound("Request")
	}
	if target.RequesterID == actorID {
		return nil, apperror.ErrOwnRequest()
	}
	if target.Status != domain.RequestStatusCreated {
		if target.Status == domain.RequestStatusAccepted {
			repairLink(ctx, s.requestRepo, s.log, target)
		}
		return nil, apperror.ErrRequestUnavailable()
	}
	if target.IsExpired(now) {
		return nil, apperror.ErrRequestUnavailable()
	}

	// The helper must bring an open request of their own to the table.
	if helperOwn == nil || helperOwn.Status != domain.RequestStatusCreated || helperOwn.IsExpired(now) {
		return nil, apperror.ErrNoOpenRequest()
	}
	if helperOwn.Direction != target.Direction.Opposite() {
		return nil, apperror.ErrDirectionMismatch()
	}
	if helperOwn.Amount < target.Amount {
		return nil, apperror.ErrOfferTooSmall()
	}

	code, err := s.codeGen.SixDigitCode()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate completion code: %w", err))
	}

	// Claim the target. This write decides the winner among racing helpers.
	claimed, err := s.requestRepo.MarkAccepted(ctx, target.ID, actorID, helperOwn.ID, code, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("claim request: %w", err))
	}
	if !claimed {
		s.log.Debug().
			Str("request_id", target.ID.String()).
			Str("helper_id", actorID.String()).
			Msg("acceptance lost the race")
		return nil, apperror.ErrRequestClaimed()
	}

	// Link the helper's own request back. The claim above already committed,
	// so a failure here leaves a repairable state rather than rolling back.
	linked, err := s.requestRepo.MarkLinked(ctx, helperOwn.ID, target.ID, now)
	if err != nil {
		s.log.Warn().Err(err).
			Str("request_id", target.ID.String()).
			Str("linked_request_id", helperOwn.ID.String()).
			Msg("failed to link helper request, will repair on next access")
	} else if !linked {
		s.log.Warn().
			Str("request_id", target.ID.String()).
			Str("linked_request_id", helperOwn.ID.String()).
			Msg("helper request no longer linkable, will repair on next access")
	}

	target.HelperID = &actorID
	target.Status = domain.RequestStatusAccepted
	target.LinkedRequestID = &helperOwn.ID
	target.CompletionCode = &code
	target.AcceptedAt = &now

	if err := s.notifier.EnqueueRequestAccepted(ctx, target); err != nil {
		s.log.Warn().Err(err).Str("request_id", target.ID.String()).Msg("failed to enqueue acceptance notification")
	}

	s.log.Info().
		Str("request_id", target.ID.String()).
		Str("requester_id", target.RequesterID.String()).
		Str("helper_id", actorID.String()).
		Str("linked_request_id", helperOwn.ID.String()).
		Int64("amount", target.Amount).
		Msg("exchange request accepted")

	return &ports.AcceptResult{Request: target, CompletionCode: code}, nil
}

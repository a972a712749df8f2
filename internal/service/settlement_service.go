package service

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	requestRepo ports.RequestRepository
	userRepo    ports.UserRepository
	txRepo      ports.TransactionRepository
	transactor  ports.DBTransactor
	clock       ports.Clock
	notifier    ports.Notifier
	log         zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	requestRepo ports.RequestRepository,
	userRepo ports.UserRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	clock ports.Clock,
	notifier ports.Notifier,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		txRepo:      txRepo,
		transactor:  transactor,
		clock:       clock,
		notifier:    notifier,
		log:         log,
	}
}

// Complete settles an accepted exchange after the helper presents the
// completion code the requester read out in person. All balance movement,
// the settlement record and both status flips commit in one database
// transaction; any failure leaves every balance untouched.
func (s *SettlementServiceImpl) Complete(ctx context.Context, actorID, requestID uuid.UUID, code string) (*ports.SettleResult, error) {
	target, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load request: %w", err))
	}
	if target == nil {
		return nil, apperror.ErrNotFound("Request")
	}
	if target.HelperID == nil || *target.HelperID != actorID {
		return nil, apperror.ErrNotHelper()
	}
	if target.Status != domain.RequestStatusAccepted {
		return nil, apperror.ErrNotAwaitingSettlement()
	}

	linked, err := s.verifyPair(ctx, target)
	if err != nil {
		return nil, err
	}

	if target.CompletionCode == nil {
		return nil, apperror.InternalError(fmt.Errorf("accepted request %s has no completion code", target.ID))
	}
	if subtle.ConstantTimeCompare([]byte(*target.CompletionCode), []byte(code)) != 1 {
		return nil, apperror.ErrCodeMismatch()
	}

	payerID, payeeID := target.SettlementParties()
	now := s.clock.Now()

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock both parties in a fixed order so concurrent settlements
	// touching the same pair cannot deadlock.
	locked := make(map[uuid.UUID]*domain.User, 2)
	for _, id := range lockOrder(payerID, payeeID) {
		user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			if errors.Is(err, ports.ErrLockNotAvailable) {
				return nil, apperror.ErrLockTimeout(err)
			}
			return nil, apperror.ErrDatabaseError(err)
		}
		if user == nil {
			return nil, apperror.ErrNotFound("User")
		}
		locked[id] = user
	}
	payer, payee := locked[payerID], locked[payeeID]

	// Move the money: payer is debited the full amount, payee is credited
	// the amount net of the frozen platform fee.
	debited, err := s.userRepo.Debit(ctx, dbTx, payerID, target.Amount)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !debited {
		return nil, apperror.ErrInsufficientFunds()
	}
	if err := s.userRepo.Credit(ctx, dbTx, payeeID, target.NetAmount()); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	// Persist: settlement record with balances on both sides of the move
	transaction := &domain.Transaction{
		ID:                 uuid.New(),
		RequestID:          target.ID,
		LinkedRequestID:    linked.ID,
		PayerID:            payerID,
		PayeeID:            payeeID,
		Amount:             target.Amount,
		PlatformFee:        target.PlatformFee,
		NetAmount:          target.NetAmount(),
		PayerBalanceBefore: payer.Balance,
		PayerBalanceAfter:  payer.Balance - target.Amount,
		PayeeBalanceBefore: payee.Balance,
		PayeeBalanceAfter:  payee.Balance + target.NetAmount(),
		Status:             domain.TransactionStatusCompleted,
		CreatedAt:          now,
	}
	if err := s.txRepo.Create(ctx, dbTx, transaction); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	// Persist: both requests leave the ACCEPTED state together
	completed, err := s.requestRepo.MarkCompleted(ctx, dbTx, target.ID, now)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !completed {
		// A concurrent settlement of the same exchange got here first.
		return nil, apperror.ErrNotAwaitingSettlement()
	}
	completed, err = s.requestRepo.MarkCompleted(ctx, dbTx, linked.ID, now)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !completed {
		return nil, apperror.InternalError(fmt.Errorf("linked request %s not in settleable state", linked.ID))
	}

	if err := s.userRepo.IncrementCompletedExchanges(ctx, dbTx, target.RequesterID); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if err := s.userRepo.IncrementCompletedExchanges(ctx, dbTx, actorID); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	target.Status = domain.RequestStatusCompleted
	target.CompletedAt = &now
	linked.Status = domain.RequestStatusCompleted
	linked.CompletedAt = &now

	if err := s.notifier.EnqueueExchangeCompleted(ctx, transaction); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", transaction.ID.String()).Msg("failed to enqueue completion notification")
	}

	s.log.Info().
		Str("transaction_id", transaction.ID.String()).
		Str("request_id", target.ID.String()).
		Str("payer_id", payerID.String()).
		Str("payee_id", payeeID.String()).
		Int64("amount", transaction.Amount).
		Int64("net_amount", transaction.NetAmount).
		Msg("exchange settled successfully")

	return &ports.SettleResult{Request: target, Transaction: transaction}, nil
}

// Reverse undoes a settled transfer. The original payee returns the net
// amount and the original payer recovers the full amount; the fee
// difference is borne by the platform. The settlement record itself is
// flipped to REVERSED, never deleted.
func (s *SettlementServiceImpl) Reverse(ctx context.Context, transactionID uuid.UUID, reason string) (*domain.Transaction, error) {
	transaction, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load transaction: %w", err))
	}
	if transaction == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	if transaction.Status != domain.TransactionStatusCompleted {
		return nil, apperror.ErrAlreadyReversed()
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	for _, id := range lockOrder(transaction.PayerID, transaction.PayeeID) {
		user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			if errors.Is(err, ports.ErrLockNotAvailable) {
				return nil, apperror.ErrLockTimeout(err)
			}
			return nil, apperror.ErrDatabaseError(err)
		}
		if user == nil {
			return nil, apperror.ErrNotFound("User")
		}
	}

	debited, err := s.userRepo.Debit(ctx, dbTx, transaction.PayeeID, transaction.NetAmount)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !debited {
		return nil, apperror.ErrInsufficientFunds()
	}
	if err := s.userRepo.Credit(ctx, dbTx, transaction.PayerID, transaction.Amount); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	reversed, err := s.txRepo.MarkReversed(ctx, dbTx, transaction.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !reversed {
		return nil, apperror.ErrAlreadyReversed()
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	transaction.Status = domain.TransactionStatusReversed

	s.log.Info().
		Str("transaction_id", transaction.ID.String()).
		Str("payer_id", transaction.PayerID.String()).
		Str("payee_id", transaction.PayeeID.String()).
		Int64("amount", transaction.Amount).
		Str("reason", reason).
		Msg("transaction reversed")

	return transaction, nil
}

// verifyPair checks that the target's counterpart request mirrors the link
// before any money moves, repairing an interrupted acceptance if needed.
func (s *SettlementServiceImpl) verifyPair(ctx context.Context, target *domain.ExchangeRequest) (*domain.ExchangeRequest, error) {
	if target.LinkedRequestID == nil {
		return nil, apperror.InternalError(fmt.Errorf("accepted request %s has no linked request", target.ID))
	}

	linked, err := s.requestRepo.GetByID(ctx, *target.LinkedRequestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load linked request: %w", err))
	}
	if linked == nil {
		return nil, apperror.InternalError(fmt.Errorf("linked request %s not found", *target.LinkedRequestID))
	}

	if linked.Status == domain.RequestStatusCreated {
		repairLink(ctx, s.requestRepo, s.log, target)
		linked, err = s.requestRepo.GetByID(ctx, *target.LinkedRequestID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("reload linked request: %w", err))
		}
		if linked == nil {
			return nil, apperror.InternalError(fmt.Errorf("linked request %s not found", *target.LinkedRequestID))
		}
	}

	if linked.Status != domain.RequestStatusAccepted || linked.LinkedRequestID == nil || *linked.LinkedRequestID != target.ID {
		return nil, apperror.InternalError(fmt.Errorf("request pair %s/%s is inconsistent", target.ID, linked.ID))
	}

	return linked, nil
}

// lockOrder returns the two user IDs in a deterministic order for row locking.
func lockOrder(a, b uuid.UUID) [2]uuid.UUID {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return [2]uuid.UUID{a, b}
	}
	return [2]uuid.UUID{b, a}
}

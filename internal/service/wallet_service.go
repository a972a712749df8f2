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

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	userRepo   ports.UserRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	userRepo ports.UserRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		userRepo:   userRepo,
		txRepo:     txRepo,
		transactor: transactor,
		log:        log,
	}
}

// GetProfile returns the user's own account.
func (s *WalletServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}
	return user, nil
}

// GetBalance returns the user's current electronic balance.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// Topup adds external funds to the user's balance and returns the new total.
func (s *WalletServiceImpl) Topup(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}
	if user == nil {
		return 0, apperror.ErrNotFound("User")
	}

	if err := s.userRepo.Credit(ctx, dbTx, userID, amount); err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}

	newBalance := user.Balance + amount

	s.log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Int64("new_balance", newBalance).
		Msg("balance topped up")

	return newBalance, nil
}

// UpdateWebhookURL sets or clears the user's notification endpoint.
func (s *WalletServiceImpl) UpdateWebhookURL(ctx context.Context, userID uuid.UUID, webhookURL *string) error {
	if err := s.userRepo.UpdateWebhookURL(ctx, userID, webhookURL); err != nil {
		return apperror.InternalError(fmt.Errorf("update webhook url: %w", err))
	}
	return nil
}

// ListTransactions returns the user's settlement history, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	transactions, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return transactions, total, nil
}

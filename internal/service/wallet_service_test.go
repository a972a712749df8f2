package service

import (
	"context"
	"testing"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	userRepo   *mocks.MockUserRepository
	txRepo     *mocks.MockTransactionRepository
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		userRepo:   mocks.NewMockUserRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewWalletService(d.userRepo, d.txRepo, d.transactor, zerolog.Nop())
	return d
}

func TestWalletService_GetProfile_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{
		ID:      userID,
		Email:   "minh@example.com",
		Balance: 250000,
	}, nil)

	user, err := d.svc.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "minh@example.com", user.Email)
}

func TestWalletService_GetProfile_NotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(nil, nil)

	user, err := d.svc.GetProfile(ctx, userID)
	assert.Nil(t, user)
	assertAppError(t, err, "EXG_005")
}

func TestWalletService_GetBalance_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{
		ID:      userID,
		Balance: 250000,
	}, nil)

	balance, err := d.svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(250000), balance)
}

func TestWalletService_Topup_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID:      userID,
		Balance: 100000,
	}, nil)
	d.userRepo.EXPECT().Credit(ctx, tx, userID, int64(50000)).Return(nil)

	newBalance, err := d.svc.Topup(ctx, userID, 50000)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), newBalance)
}

func TestWalletService_Topup_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Topup(context.Background(), uuid.New(), 0)
	assertAppError(t, err, "EXG_001")

	_, err = d.svc.Topup(context.Background(), uuid.New(), -5000)
	assertAppError(t, err, "EXG_001")
}

func TestWalletService_Topup_UserNotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(nil, nil)

	_, err := d.svc.Topup(ctx, userID, 50000)
	assertAppError(t, err, "EXG_005")
}

func TestWalletService_UpdateWebhookURL_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	url := "https://hooks.example.com/exchange"

	d.userRepo.EXPECT().UpdateWebhookURL(ctx, userID, &url).Return(nil)

	err := d.svc.UpdateWebhookURL(ctx, userID, &url)
	require.NoError(t, err)
}

func TestWalletService_UpdateWebhookURL_Clear(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().UpdateWebhookURL(ctx, userID, nil).Return(nil)

	err := d.svc.UpdateWebhookURL(ctx, userID, nil)
	require.NoError(t, err)
}

func TestWalletService_ListTransactions_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	params := ports.TransactionListParams{UserID: userID, Page: 1, PageSize: 10}

	d.txRepo.EXPECT().List(ctx, params).Return([]domain.Transaction{
		{ID: uuid.New(), Amount: 500000},
	}, int64(1), nil)

	transactions, total, err := d.svc.ListTransactions(ctx, params)
	require.NoError(t, err)
	assert.Len(t, transactions, 1)
	assert.Equal(t, int64(1), total)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type acceptanceTestDeps struct {
	svc         *AcceptanceServiceImpl
	requestRepo *mocks.MockRequestRepository
	clock       *mocks.MockClock
	codeGen     *mocks.MockCodeGenerator
	notifier    *mocks.MockNotifier
	ctrl        *gomock.Controller
}

func setupAcceptanceService(t *testing.T) *acceptanceTestDeps {
	ctrl := gomock.NewController(t)
	d := &acceptanceTestDeps{
		requestRepo: mocks.NewMockRequestRepository(ctrl),
		clock:       mocks.NewMockClock(ctrl),
		codeGen:     mocks.NewMockCodeGenerator(ctrl),
		notifier:    mocks.NewMockNotifier(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewAcceptanceService(d.requestRepo, d.clock, d.codeGen, d.notifier, zerolog.Nop())
	return d
}

func openRequest(requesterID uuid.UUID, direction domain.Direction, amount int64, expiresAt time.Time) *domain.ExchangeRequest {
	return &domain.ExchangeRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Amount:      amount,
		PlatformFee: amount / 100,
		Direction:   direction,
		Location:    testOrigin,
		Status:      domain.RequestStatusCreated,
		ExpiresAt:   expiresAt,
		CreatedAt:   expiresAt.Add(-30 * time.Minute),
	}
}

// ==================== Accept Tests ====================

func TestAcceptanceService_Accept_Success(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	requesterID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	helperOwn := openRequest(helperID, domain.DirectionOnlineToCash, 600000, now.Add(25*time.Minute))
	target := openRequest(requesterID, domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(helperOwn, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)
	d.codeGen.EXPECT().SixDigitCode().Return("048291", nil)
	d.requestRepo.EXPECT().MarkAccepted(ctx, target.ID, helperID, helperOwn.ID, "048291", now).Return(true, nil)
	d.requestRepo.EXPECT().MarkLinked(ctx, helperOwn.ID, target.ID, now).Return(true, nil)
	d.notifier.EXPECT().EnqueueRequestAccepted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "048291", result.CompletionCode)
	assert.Equal(t, domain.RequestStatusAccepted, result.Request.Status)
	require.NotNil(t, result.Request.HelperID)
	assert.Equal(t, helperID, *result.Request.HelperID)
	require.NotNil(t, result.Request.LinkedRequestID)
	assert.Equal(t, helperOwn.ID, *result.Request.LinkedRequestID)
	require.NotNil(t, result.Request.AcceptedAt)
	assert.Equal(t, now, *result.Request.AcceptedAt)
}

func TestAcceptanceService_Accept_HelperAlreadyInExchange(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	targetID := uuid.New()
	otherID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	busy := openRequest(helperID, domain.DirectionOnlineToCash, 600000, now.Add(25*time.Minute))
	busy.Status = domain.RequestStatusAccepted
	busy.HelperID = &otherID

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(busy, nil)

	result, err := d.svc.Accept(ctx, helperID, targetID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_006")
}

func TestAcceptanceService_Accept_TargetNotFound(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	targetID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(nil, nil)
	d.requestRepo.EXPECT().GetByID(ctx, targetID).Return(nil, nil)

	result, err := d.svc.Accept(ctx, helperID, targetID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_005")
}

func TestAcceptanceService_Accept_OwnRequest(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	own := openRequest(actorID, domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, actorID).Return(own, nil)
	d.requestRepo.EXPECT().GetByID(ctx, own.ID).Return(own, nil)

	result, err := d.svc.Accept(ctx, actorID, own.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_007")
}

func TestAcceptanceService_Accept_TargetNotOpen(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	target := openRequest(uuid.New(), domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))
	target.Status = domain.RequestStatusCancelled

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(nil, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_008")
}

func TestAcceptanceService_Accept_TargetExpired(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	// Still CREATED in storage, but past its deadline; acceptance must
	// re-check the clock rather than trust the stored status.
	target := openRequest(uuid.New(), domain.DirectionCashToOnline, 500000, now.Add(-1*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(nil, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_008")
}

func TestAcceptanceService_Accept_NoOpenRequestOfOwn(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	target := openRequest(uuid.New(), domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(nil, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_009")
}

func TestAcceptanceService_Accept_OwnRequestExpired(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	helperOwn := openRequest(helperID, domain.DirectionOnlineToCash, 600000, now.Add(-5*time.Minute))
	target := openRequest(uuid.New(), domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(helperOwn, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_009")
}

func TestAcceptanceService_Accept_DirectionMismatch(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	// Both want cash converted the same way; the trade makes no sense.
	helperOwn := openRequest(helperID, domain.DirectionCashToOnline, 600000, now.Add(25*time.Minute))
	target := openRequest(uuid.New(), domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(helperOwn, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_010")
}

func TestAcceptanceService_Accept_OfferTooSmall(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	helperOwn := openRequest(helperID, domain.DirectionOnlineToCash, 400000, now.Add(25*time.Minute))
	target := openRequest(uuid.New(), domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(helperOwn, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_011")
}

func TestAcceptanceService_Accept_LostRace(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	helperOwn := openRequest(helperID, domain.DirectionOnlineToCash, 600000, now.Add(25*time.Minute))
	target := openRequest(uuid.New(), domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(helperOwn, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)
	d.codeGen.EXPECT().SixDigitCode().Return("771034", nil)
	// Another helper's conditional write landed first.
	d.requestRepo.EXPECT().MarkAccepted(ctx, target.ID, helperID, helperOwn.ID, "771034", now).Return(false, nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_012")
}

func TestAcceptanceService_Accept_LinkWriteFailureStillSucceeds(t *testing.T) {
	d := setupAcceptanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	helperID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	helperOwn := openRequest(helperID, domain.DirectionOnlineToCash, 600000, now.Add(25*time.Minute))
	target := openRequest(uuid.New(), domain.DirectionCashToOnline, 500000, now.Add(20*time.Minute))

	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().GetActiveByUserID(ctx, helperID).Return(helperOwn, nil)
	d.requestRepo.EXPECT().GetByID(ctx, target.ID).Return(target, nil)
	d.codeGen.EXPECT().SixDigitCode().Return("500137", nil)
	d.requestRepo.EXPECT().MarkAccepted(ctx, target.ID, helperID, helperOwn.ID, "500137", now).Return(true, nil)
	// The claim is the commit point; a failed link write is repaired later,
	// not rolled back.
	d.requestRepo.EXPECT().MarkLinked(ctx, helperOwn.ID, target.ID, now).Return(false, nil)
	d.notifier.EXPECT().EnqueueRequestAccepted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Accept(ctx, helperID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "500137", result.CompletionCode)
	assert.Equal(t, domain.RequestStatusAccepted, result.Request.Status)
}

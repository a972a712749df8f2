package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/config"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testExchangeConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		FeePercent:           1.0,
		MinAmount:            10000,
		MaxAmount:            10000000,
		DefaultExpiryMinutes: 30,
		MaxExpiryMinutes:     1440,
		DefaultRadiusMeters:  5000,
		MaxRadiusMeters:      50000,
		DefaultPageSize:      20,
		MaxPageSize:          100,
		SweepInterval:        time.Minute,
		Retention:            30 * 24 * time.Hour,
	}
}

var testOrigin = domain.Point{Lat: 10.762622, Lng: 106.660172}

type exchangeTestDeps struct {
	svc         *ExchangeServiceImpl
	requestRepo *mocks.MockRequestRepository
	userRepo    *mocks.MockUserRepository
	clock       *mocks.MockClock
	ctrl        *gomock.Controller
}

func setupExchangeService(t *testing.T) *exchangeTestDeps {
	ctrl := gomock.NewController(t)
	d := &exchangeTestDeps{
		requestRepo: mocks.NewMockRequestRepository(ctrl),
		userRepo:    mocks.NewMockUserRepository(ctrl),
		clock:       mocks.NewMockClock(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewExchangeService(d.requestRepo, d.userRepo, d.clock, testExchangeConfig(), zerolog.Nop())
	return d
}

// ==================== CreateRequest Tests ====================

func TestExchangeService_CreateRequest_Success(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	d.requestRepo.EXPECT().GetActiveByUserID(ctx, actorID).Return(nil, nil)
	d.userRepo.EXPECT().GetByID(ctx, actorID).Return(&domain.User{
		ID:      actorID,
		Status:  domain.UserStatusActive,
		Balance: 0,
	}, nil)
	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.userRepo.EXPECT().UpdateLocation(ctx, actorID, testOrigin).Return(nil)

	result, err := d.svc.CreateRequest(ctx, ports.CreateRequestInput{
		ActorID:   actorID,
		Amount:    500000,
		Direction: domain.DirectionCashToOnline,
		Location:  testOrigin,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, actorID, result.RequesterID)
	assert.Equal(t, int64(500000), result.Amount)
	assert.Equal(t, int64(5000), result.PlatformFee) // 1% frozen at creation
	assert.Equal(t, domain.RequestStatusCreated, result.Status)
	assert.Equal(t, now.Add(30*time.Minute), result.ExpiresAt)
}

func TestExchangeService_CreateRequest_InvalidAmount(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	for _, amount := range []int64{0, -500, 9999, 10000001} {
		result, err := d.svc.CreateRequest(context.Background(), ports.CreateRequestInput{
			ActorID:   uuid.New(),
			Amount:    amount,
			Direction: domain.DirectionCashToOnline,
			Location:  testOrigin,
		})
		assert.Nil(t, result)
		assertAppError(t, err, "EXG_001")
	}
}

func TestExchangeService_CreateRequest_InvalidDirection(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.CreateRequest(context.Background(), ports.CreateRequestInput{
		ActorID:   uuid.New(),
		Amount:    500000,
		Direction: domain.Direction("SIDEWAYS"),
		Location:  testOrigin,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_001")
}

func TestExchangeService_CreateRequest_InvalidLocation(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.CreateRequest(context.Background(), ports.CreateRequestInput{
		ActorID:   uuid.New(),
		Amount:    500000,
		Direction: domain.DirectionCashToOnline,
		Location:  domain.Point{Lat: 91.0, Lng: 106.660172},
	})
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_002")
}

func TestExchangeService_CreateRequest_ActiveRequestExists(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()

	d.requestRepo.EXPECT().GetActiveByUserID(ctx, actorID).Return(&domain.ExchangeRequest{
		ID:     uuid.New(),
		Status: domain.RequestStatusCreated,
	}, nil)

	result, err := d.svc.CreateRequest(ctx, ports.CreateRequestInput{
		ActorID:   actorID,
		Amount:    500000,
		Direction: domain.DirectionCashToOnline,
		Location:  testOrigin,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_003")
}

func TestExchangeService_CreateRequest_InsufficientFunds(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()

	d.requestRepo.EXPECT().GetActiveByUserID(ctx, actorID).Return(nil, nil)
	d.userRepo.EXPECT().GetByID(ctx, actorID).Return(&domain.User{
		ID:      actorID,
		Status:  domain.UserStatusActive,
		Balance: 100000, // cannot cover 500000
	}, nil)

	result, err := d.svc.CreateRequest(ctx, ports.CreateRequestInput{
		ActorID:   actorID,
		Amount:    500000,
		Direction: domain.DirectionOnlineToCash,
		Location:  testOrigin,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_004")
}

func TestExchangeService_CreateRequest_SuspendedUser(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()

	d.requestRepo.EXPECT().GetActiveByUserID(ctx, actorID).Return(nil, nil)
	d.userRepo.EXPECT().GetByID(ctx, actorID).Return(&domain.User{
		ID:     actorID,
		Status: domain.UserStatusSuspended,
	}, nil)

	result, err := d.svc.CreateRequest(ctx, ports.CreateRequestInput{
		ActorID:   actorID,
		Amount:    500000,
		Direction: domain.DirectionCashToOnline,
		Location:  testOrigin,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "AUTH_004")
}

func TestExchangeService_CreateRequest_DuplicateOnInsert(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	d.requestRepo.EXPECT().GetActiveByUserID(ctx, actorID).Return(nil, nil)
	d.userRepo.EXPECT().GetByID(ctx, actorID).Return(&domain.User{
		ID:     actorID,
		Status: domain.UserStatusActive,
	}, nil)
	d.clock.EXPECT().Now().Return(now)
	// Two concurrent creates slipped past the precheck; the unique index
	// rejects the second insert.
	d.requestRepo.EXPECT().Create(ctx, gomock.Any()).Return(ports.ErrDuplicateActiveRequest)

	result, err := d.svc.CreateRequest(ctx, ports.CreateRequestInput{
		ActorID:   actorID,
		Amount:    500000,
		Direction: domain.DirectionCashToOnline,
		Location:  testOrigin,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_003")
}

func TestExchangeService_CreateRequest_ExpiryCappedAndLocationBestEffort(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	requested := 10000 // way over the cap

	d.requestRepo.EXPECT().GetActiveByUserID(ctx, actorID).Return(nil, nil)
	d.userRepo.EXPECT().GetByID(ctx, actorID).Return(&domain.User{
		ID:     actorID,
		Status: domain.UserStatusActive,
	}, nil)
	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.userRepo.EXPECT().UpdateLocation(ctx, actorID, testOrigin).Return(errors.New("db error"))

	result, err := d.svc.CreateRequest(ctx, ports.CreateRequestInput{
		ActorID:       actorID,
		Amount:        500000,
		Direction:     domain.DirectionCashToOnline,
		Location:      testOrigin,
		ExpiryMinutes: &requested,
	})
	require.NoError(t, err) // location update failure is not fatal
	assert.Equal(t, now.Add(1440*time.Minute), result.ExpiresAt)
}

// ==================== GetRequest Tests ====================

func TestExchangeService_GetRequest_OpenVisibleToAnyone(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	requestID := uuid.New()
	stranger := uuid.New()

	d.requestRepo.EXPECT().GetByID(ctx, requestID).Return(&domain.ExchangeRequest{
		ID:          requestID,
		RequesterID: uuid.New(),
		Status:      domain.RequestStatusCreated,
	}, nil)

	result, err := d.svc.GetRequest(ctx, stranger, requestID)
	require.NoError(t, err)
	assert.Equal(t, requestID, result.ID)
}

func TestExchangeService_GetRequest_NotFound(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	requestID := uuid.New()

	d.requestRepo.EXPECT().GetByID(ctx, requestID).Return(nil, nil)

	result, err := d.svc.GetRequest(ctx, uuid.New(), requestID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_005")
}

func TestExchangeService_GetRequest_ClaimedHiddenFromStrangers(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	requestID := uuid.New()
	helperID := uuid.New()

	d.requestRepo.EXPECT().GetByID(ctx, requestID).Return(&domain.ExchangeRequest{
		ID:          requestID,
		RequesterID: uuid.New(),
		HelperID:    &helperID,
		Status:      domain.RequestStatusAccepted,
	}, nil)

	result, err := d.svc.GetRequest(ctx, uuid.New(), requestID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_005")
}

func TestExchangeService_GetRequest_RepairsInterruptedLink(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	requesterID := uuid.New()
	helperID := uuid.New()
	requestID := uuid.New()
	linkedID := uuid.New()
	acceptedAt := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

	d.requestRepo.EXPECT().GetByID(ctx, requestID).Return(&domain.ExchangeRequest{
		ID:              requestID,
		RequesterID:     requesterID,
		HelperID:        &helperID,
		Status:          domain.RequestStatusAccepted,
		LinkedRequestID: &linkedID,
		AcceptedAt:      &acceptedAt,
	}, nil)
	// The counterpart never got its link write; reading the pair heals it.
	d.requestRepo.EXPECT().GetByID(ctx, linkedID).Return(&domain.ExchangeRequest{
		ID:          linkedID,
		RequesterID: helperID,
		Status:      domain.RequestStatusCreated,
	}, nil)
	d.requestRepo.EXPECT().MarkLinked(ctx, linkedID, requestID, acceptedAt).Return(true, nil)

	result, err := d.svc.GetRequest(ctx, requesterID, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusAccepted, result.Status)
}

// ==================== GetActiveRequest / ListRequests Tests ====================

func TestExchangeService_GetActiveRequest_NoneIsNotAnError(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()

	d.requestRepo.EXPECT().GetActiveByUserID(ctx, actorID).Return(nil, nil)

	result, err := d.svc.GetActiveRequest(ctx, actorID)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestExchangeService_ListRequests_DefaultsPaging(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()

	d.requestRepo.EXPECT().ListByUserID(ctx, actorID, 1, 20).Return([]domain.ExchangeRequest{
		{ID: uuid.New()}, {ID: uuid.New()},
	}, int64(2), nil)

	requests, total, err := d.svc.ListRequests(ctx, actorID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, requests, 2)
	assert.Equal(t, int64(2), total)
}

func TestExchangeService_ListRequests_CapsPageSize(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()

	d.requestRepo.EXPECT().ListByUserID(ctx, actorID, 3, 100).Return(nil, int64(0), nil)

	_, _, err := d.svc.ListRequests(ctx, actorID, 3, 5000)
	require.NoError(t, err)
}

// ==================== Cancel Tests ====================

func TestExchangeService_Cancel_Success(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()
	requestID := uuid.New()
	now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	d.requestRepo.EXPECT().GetByID(ctx, requestID).Return(&domain.ExchangeRequest{
		ID:          requestID,
		RequesterID: actorID,
		Status:      domain.RequestStatusCreated,
	}, nil)
	d.clock.EXPECT().Now().Return(now)
	d.requestRepo.EXPECT().MarkCancelled(ctx, requestID, now).Return(true, nil)

	result, err := d.svc.Cancel(ctx, actorID, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusCancelled, result.Status)
	require.NotNil(t, result.CancelledAt)
	assert.Equal(t, now, *result.CancelledAt)
}

func TestExchangeService_Cancel_NotRequester(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	requestID := uuid.New()

	d.requestRepo.EXPECT().GetByID(ctx, requestID).Return(&domain.ExchangeRequest{
		ID:          requestID,
		RequesterID: uuid.New(),
		Status:      domain.RequestStatusCreated,
	}, nil)

	result, err := d.svc.Cancel(ctx, uuid.New(), requestID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_016")
}

func TestExchangeService_Cancel_AlreadyAccepted(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()
	requestID := uuid.New()
	helperID := uuid.New()

	d.requestRepo.EXPECT().GetByID(ctx, requestID).Return(&domain.ExchangeRequest{
		ID:          requestID,
		RequesterID: actorID,
		HelperID:    &helperID,
		Status:      domain.RequestStatusAccepted,
	}, nil)

	result, err := d.svc.Cancel(ctx, actorID, requestID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_017")
}

func TestExchangeService_Cancel_LostRaceToAcceptance(t *testing.T) {
	d := setupExchangeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()
	requestID := uuid.New()
	now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	d.requestRepo.EXPECT().GetByID(ctx, requestID).Return(&domain.ExchangeRequest{
		ID:          requestID,
		RequesterID: actorID,
		Status:      domain.RequestStatusCreated,
	}, nil)
	d.clock.EXPECT().Now().Return(now)
	// A helper claimed the request between the read and the write.
	d.requestRepo.EXPECT().MarkCancelled(ctx, requestID, now).Return(false, nil)

	result, err := d.svc.Cancel(ctx, actorID, requestID)
	assert.Nil(t, result)
	assertAppError(t, err, "EXG_017")
}

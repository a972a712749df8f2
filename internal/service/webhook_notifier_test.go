package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
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

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func fixedClock(ctrl *gomock.Controller, now time.Time) *mocks.MockClock {
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(now).AnyTimes()
	return clock
}

func TestWebhookNotifier_RequestAccepted_Delivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userRepo := mocks.NewMockUserRepository(ctrl)
	now := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

	delivered := make(chan []byte, 1)
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			delivered <- body
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(nil),
			}, nil
		},
	}

	svc := NewWebhookNotifier(userRepo, httpClient, fixedClock(ctrl, now), newTestLogger())

	requesterID := uuid.New()
	helperID := uuid.New()
	linkedID := uuid.New()
	webhookURL := "https://hooks.example.com/exchange"

	userRepo.EXPECT().GetByID(gomock.Any(), requesterID).Return(&domain.User{
		ID:         requesterID,
		WebhookURL: &webhookURL,
	}, nil)

	request := &domain.ExchangeRequest{
		ID:              uuid.New(),
		RequesterID:     requesterID,
		HelperID:        &helperID,
		Amount:          500000,
		Direction:       domain.DirectionCashToOnline,
		Status:          domain.RequestStatusAccepted,
		LinkedRequestID: &linkedID,
	}

	err := svc.EnqueueRequestAccepted(context.Background(), request)
	require.NoError(t, err)

	select {
	case body := <-delivered:
		var payload WebhookPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, EventRequestAccepted, payload.EventType)
		assert.Equal(t, request.ID.String(), payload.Data.RequestID)
		assert.Equal(t, linkedID.String(), payload.Data.LinkedRequestID)
		assert.Equal(t, int64(500000), payload.Data.Amount)
		assert.Equal(t, now.Unix(), payload.Data.Timestamp)
		// The completion code must never leave through a webhook.
		assert.NotContains(t, string(body), "completion_code")
	case <-time.After(2 * time.Second):
		t.Fatal("webhook delivery timed out")
	}
}

func TestWebhookNotifier_RequestAccepted_NoWebhookURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userRepo := mocks.NewMockUserRepository(ctrl)

	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			t.Error("should not be called")
			return nil, nil
		},
	}

	svc := NewWebhookNotifier(userRepo, httpClient, fixedClock(ctrl, time.Now()), newTestLogger())

	requesterID := uuid.New()
	userRepo.EXPECT().GetByID(gomock.Any(), requesterID).Return(&domain.User{
		ID:         requesterID,
		WebhookURL: nil,
	}, nil)

	err := svc.EnqueueRequestAccepted(context.Background(), &domain.ExchangeRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Status:      domain.RequestStatusAccepted,
	})
	assert.NoError(t, err)
}

func TestWebhookNotifier_RequestAccepted_LookupFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userRepo := mocks.NewMockUserRepository(ctrl)

	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, nil
		},
	}

	svc := NewWebhookNotifier(userRepo, httpClient, fixedClock(ctrl, time.Now()), newTestLogger())

	requesterID := uuid.New()
	userRepo.EXPECT().GetByID(gomock.Any(), requesterID).Return(nil, errors.New("db error"))

	err := svc.EnqueueRequestAccepted(context.Background(), &domain.ExchangeRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
	})
	assert.Error(t, err)
}

func TestWebhookNotifier_ExchangeCompleted_NotifiesBothParties(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userRepo := mocks.NewMockUserRepository(ctrl)
	now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	delivered := make(chan []byte, 2)
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			delivered <- body
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(nil),
			}, nil
		},
	}

	svc := NewWebhookNotifier(userRepo, httpClient, fixedClock(ctrl, now), newTestLogger())

	payerID := uuid.New()
	payeeID := uuid.New()
	payerURL := "https://payer.example.com/hook"
	payeeURL := "https://payee.example.com/hook"

	userRepo.EXPECT().GetByID(gomock.Any(), payerID).Return(&domain.User{
		ID: payerID, WebhookURL: &payerURL,
	}, nil)
	userRepo.EXPECT().GetByID(gomock.Any(), payeeID).Return(&domain.User{
		ID: payeeID, WebhookURL: &payeeURL,
	}, nil)

	transaction := &domain.Transaction{
		ID:              uuid.New(),
		RequestID:       uuid.New(),
		LinkedRequestID: uuid.New(),
		PayerID:         payerID,
		PayeeID:         payeeID,
		Amount:          500000,
		NetAmount:       495000,
		Status:          domain.TransactionStatusCompleted,
	}

	err := svc.EnqueueExchangeCompleted(context.Background(), transaction)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case body := <-delivered:
			var payload WebhookPayload
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, EventExchangeCompleted, payload.EventType)
			assert.Equal(t, transaction.ID.String(), payload.Data.TransactionID)
			assert.Equal(t, int64(495000), payload.Data.NetAmount)
		case <-time.After(2 * time.Second):
			t.Fatal("webhook delivery timed out")
		}
	}
}

func TestWebhookNotifier_ExchangeCompleted_SkipsPartyWithoutURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userRepo := mocks.NewMockUserRepository(ctrl)

	delivered := make(chan struct{}, 2)
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			delivered <- struct{}{}
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(nil),
			}, nil
		},
	}

	svc := NewWebhookNotifier(userRepo, httpClient, fixedClock(ctrl, time.Now()), newTestLogger())

	payerID := uuid.New()
	payeeID := uuid.New()
	payeeURL := "https://payee.example.com/hook"

	userRepo.EXPECT().GetByID(gomock.Any(), payerID).Return(&domain.User{ID: payerID}, nil)
	userRepo.EXPECT().GetByID(gomock.Any(), payeeID).Return(&domain.User{
		ID: payeeID, WebhookURL: &payeeURL,
	}, nil)

	err := svc.EnqueueExchangeCompleted(context.Background(), &domain.Transaction{
		ID:      uuid.New(),
		PayerID: payerID,
		PayeeID: payeeID,
		Status:  domain.TransactionStatusCompleted,
	})
	require.NoError(t, err)

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook delivery timed out")
	}
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// webhookRetryIntervals defines the backoff between delivery attempts.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
}

// Webhook event types
const (
	EventRequestAccepted   = "REQUEST_ACCEPTED"
	EventExchangeCompleted = "EXCHANGE_COMPLETED"
)

// WebhookPayload is the JSON structure sent to a user's webhook_url.
type WebhookPayload struct {
	EventType string             `json:"event_type"`
	Data      WebhookPayloadData `json:"data"`
}

// WebhookPayloadData holds the exchange details in the webhook. The
// completion code is deliberately absent: it travels only through the
// helper's acceptance response.
type WebhookPayloadData struct {
	RequestID       string `json:"request_id"`
	LinkedRequestID string `json:"linked_request_id,omitempty"`
	TransactionID   string `json:"transaction_id,omitempty"`
	Status          string `json:"status"`
	Direction       string `json:"direction,omitempty"`
	Amount          int64  `json:"amount"`
	NetAmount       int64  `json:"net_amount,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookNotifier implements ports.Notifier.
type webhookNotifier struct {
	userRepo   ports.UserRepository
	httpClient HTTPClient
	clock      ports.Clock
	log        zerolog.Logger
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(
	userRepo ports.UserRepository,
	httpClient HTTPClient,
	clock ports.Clock,
	log zerolog.Logger,
) ports.Notifier {
	return &webhookNotifier{
		userRepo:   userRepo,
		httpClient: httpClient,
		clock:      clock,
		log:        log,
	}
}

// EnqueueRequestAccepted tells the requester their request was claimed.
func (s *webhookNotifier) EnqueueRequestAccepted(ctx context.Context, request *domain.ExchangeRequest) error {
	data := WebhookPayloadData{
		RequestID: request.ID.String(),
		Status:    string(request.Status),
		Direction: string(request.Direction),
		Amount:    request.Amount,
		Timestamp: s.clock.Now().Unix(),
	}
	if request.LinkedRequestID != nil {
		data.LinkedRequestID = request.LinkedRequestID.String()
	}

	return s.enqueue(ctx, request.RequesterID, EventRequestAccepted, data, request.ID.String())
}

// EnqueueExchangeCompleted tells both parties the exchange settled.
func (s *webhookNotifier) EnqueueExchangeCompleted(ctx context.Context, transaction *domain.Transaction) error {
	data := WebhookPayloadData{
		RequestID:       transaction.RequestID.String(),
		LinkedRequestID: transaction.LinkedRequestID.String(),
		TransactionID:   transaction.ID.String(),
		Status:          string(transaction.Status),
		Amount:          transaction.Amount,
		NetAmount:       transaction.NetAmount,
		Timestamp:       s.clock.Now().Unix(),
	}

	for _, userID := range []uuid.UUID{transaction.PayerID, transaction.PayeeID} {
		if err := s.enqueue(ctx, userID, EventExchangeCompleted, data, transaction.ID.String()); err != nil {
			return err
		}
	}
	return nil
}

// enqueue looks up the recipient's webhook_url and fires delivery in the
// background. Users without a configured URL are skipped silently.
func (s *webhookNotifier) enqueue(ctx context.Context, userID uuid.UUID, eventType string, data WebhookPayloadData, refID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("webhook: failed to fetch user")
		return err
	}
	if user == nil || user.WebhookURL == nil || *user.WebhookURL == "" {
		s.log.Debug().Str("user_id", userID.String()).Msg("webhook: no webhook URL configured, skipping")
		return nil
	}

	payload := WebhookPayload{
		EventType: eventType,
		Data:      data,
	}

	// Fire async with retries
	go s.deliverWithRetries(*user.WebhookURL, payload, refID)

	return nil
}

// deliverWithRetries attempts to deliver the webhook, backing off between attempts.
func (s *webhookNotifier) deliverWithRetries(url string, payload WebhookPayload, refID string) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("ref_id", refID).Msg("webhook: failed to marshal payload")
		return
	}

	for attempt := 0; attempt <= len(webhookRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(webhookRetryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payloadBytes))
		if err != nil {
			s.log.Error().Err(err).Str("ref_id", refID).Int("attempt", attempt+1).Msg("webhook: failed to create request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("ref_id", refID).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Str("ref_id", refID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered successfully")
			return
		}

		s.log.Warn().Str("ref_id", refID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	s.log.Error().Str("ref_id", refID).Msg("webhook: all retry attempts exhausted")
}

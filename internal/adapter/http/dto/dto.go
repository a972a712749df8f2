package dto

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email      string   `json:"email" binding:"required,email,max=255"`
	Password   string   `json:"password" binding:"required,min=8,max=128"`
	Name       string   `json:"name" binding:"required,min=1,max=100"`
	Lat        *float64 `json:"lat,omitempty" binding:"omitempty,gte=-90,lte=90"`
	Lng        *float64 `json:"lng,omitempty" binding:"omitempty,gte=-180,lte=180"`
	WebhookURL *string  `json:"webhook_url,omitempty" binding:"omitempty,safe_url"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateExchangeRequest is the request body for opening an exchange request.
type CreateExchangeRequest struct {
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	Direction     string  `json:"direction" binding:"required,oneof=CASH_TO_ONLINE ONLINE_TO_CASH"`
	Lat           float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng           float64 `json:"lng" binding:"gte=-180,lte=180"`
	ExpiryMinutes *int    `json:"expiry_minutes,omitempty" binding:"omitempty,gt=0"`
	Notes         *string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// CompleteExchangeRequest carries the completion code for settlement.
// The code is deliberately unconstrained here: format mistakes get the
// same answer as wrong codes, from the same constant-time comparison.
type CompleteExchangeRequest struct {
	Code string `json:"code" binding:"required"`
}

// TopupRequest is the request body for a balance topup.
type TopupRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// UpdateWebhookRequest sets or clears the caller's webhook URL.
type UpdateWebhookRequest struct {
	WebhookURL *string `json:"webhook_url" binding:"omitempty,safe_url"`
}

// ExchangeResponse is the wire form of an exchange request. The completion
// code is not a field here on purpose; it only ever travels in the
// one-time accept response.
type ExchangeResponse struct {
	ID              string  `json:"id"`
	RequesterID     string  `json:"requester_id"`
	HelperID        *string `json:"helper_id,omitempty"`
	Amount          int64   `json:"amount"`
	PlatformFee     int64   `json:"platform_fee"`
	NetAmount       int64   `json:"net_amount"`
	Direction       string  `json:"direction"`
	Status          string  `json:"status"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	LinkedRequestID *string `json:"linked_request_id,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	ViewCount       int64   `json:"view_count"`
	DistanceMeters  float64 `json:"distance_meters,omitempty"` // discovery results only
	ExpiresAt       string  `json:"expires_at"`
	CreatedAt       string  `json:"created_at"`
	AcceptedAt      *string `json:"accepted_at,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty"`
	CancelledAt     *string `json:"cancelled_at,omitempty"`
}

// AcceptExchangeResponse is returned once to the helper who claimed a
// request. This is the only place the completion code leaves the server.
type AcceptExchangeResponse struct {
	Exchange       ExchangeResponse `json:"exchange"`
	CompletionCode string           `json:"completion_code"`
}

// CompleteExchangeResponse is returned after a successful settlement.
type CompleteExchangeResponse struct {
	Exchange    ExchangeResponse    `json:"exchange"`
	Transaction TransactionResponse `json:"transaction"`
}

// TransactionResponse is the wire form of a settlement record. Balance
// snapshots stay server-side; each party can see who paid whom and how
// much, not the other side's ledger.
type TransactionResponse struct {
	ID              string `json:"id"`
	RequestID       string `json:"request_id"`
	LinkedRequestID string `json:"linked_request_id"`
	PayerID         string `json:"payer_id"`
	PayeeID         string `json:"payee_id"`
	Amount          int64  `json:"amount"`
	PlatformFee     int64  `json:"platform_fee"`
	NetAmount       int64  `json:"net_amount"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

// ProfileResponse is the response for the authenticated user's profile.
type ProfileResponse struct {
	ID                 string  `json:"id"`
	Email              string  `json:"email"`
	Name               string  `json:"name"`
	Balance            int64   `json:"balance"`
	Status             string  `json:"status"`
	CompletedExchanges int64   `json:"completed_exchanges"`
	WebhookURL         *string `json:"webhook_url,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

// BalanceResponse is the response for a balance query or topup.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

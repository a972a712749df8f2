package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction says which way value flows for the requester: cash handed over
// for electronic balance, or balance spent for physical cash.
type Direction string

const (
	DirectionCashToOnline Direction = "CASH_TO_ONLINE"
	DirectionOnlineToCash Direction = "ONLINE_TO_CASH"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionCashToOnline || d == DirectionOnlineToCash
}

// Opposite returns the counterpart direction. A request can only be
// accepted by a helper whose own request runs the opposite way.
func (d Direction) Opposite() Direction {
	if d == DirectionCashToOnline {
		return DirectionOnlineToCash
	}
	return DirectionCashToOnline
}

// RequestStatus represents the lifecycle state of an exchange request.
type RequestStatus string

const (
	RequestStatusCreated   RequestStatus = "CREATED"
	RequestStatusAccepted  RequestStatus = "ACCEPTED"
	RequestStatusCompleted RequestStatus = "COMPLETED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
	RequestStatusExpired   RequestStatus = "EXPIRED"
)

// IsTerminal returns true if the status admits no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled || s == RequestStatusExpired
}

// IsActive returns true for the states that count against the
// one-open-request-per-user rule.
func (s RequestStatus) IsActive() bool {
	return s == RequestStatusCreated || s == RequestStatusAccepted
}

// CanTransition reports whether the state machine permits moving from s
// to next. CREATED may become ACCEPTED, CANCELLED or EXPIRED; ACCEPTED
// only ever becomes COMPLETED. There is no path back to CREATED.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	switch s {
	case RequestStatusCreated:
		return next == RequestStatusAccepted || next == RequestStatusCancelled || next == RequestStatusExpired
	case RequestStatusAccepted:
		return next == RequestStatusCompleted
	default:
		return false
	}
}

// ExchangeRequest is one side of a cash-for-balance trade. It is created
// by its requester, claimed by at most one helper, and settled together
// with the helper's linked request.
type ExchangeRequest struct {
	ID              uuid.UUID     `json:"id"`
	RequesterID     uuid.UUID     `json:"requester_id"`
	HelperID        *uuid.UUID    `json:"helper_id,omitempty"`
	Amount          int64         `json:"amount"` // In smallest currency unit
	PlatformFee     int64         `json:"platform_fee"`
	Direction       Direction     `json:"direction"`
	Location        Point         `json:"location"`
	Status          RequestStatus `json:"status"`
	LinkedRequestID *uuid.UUID    `json:"linked_request_id,omitempty"`
	CompletionCode  *string       `json:"-"` // Shared secret, never expose
	Notes           *string       `json:"notes,omitempty"`
	ViewCount       int64         `json:"view_count"`
	DistanceMeters  float64       `json:"distance_meters,omitempty"` // Populated by discovery queries only
	ExpiresAt       time.Time     `json:"expires_at"`
	CreatedAt       time.Time     `json:"created_at"`
	AcceptedAt      *time.Time    `json:"accepted_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
}

// IsExpired returns true if the acceptance window has passed. Only
// CREATED requests expire; an accepted pair stays claimable-for-settlement.
func (r *ExchangeRequest) IsExpired(now time.Time) bool {
	return r.Status == RequestStatusCreated && !r.ExpiresAt.After(now)
}

// IsParticipant returns true if the user is the requester or the assigned helper.
func (r *ExchangeRequest) IsParticipant(userID uuid.UUID) bool {
	return r.RequesterID == userID || (r.HelperID != nil && *r.HelperID == userID)
}

// NetAmount is what the payee receives after the frozen platform fee.
func (r *ExchangeRequest) NetAmount() int64 {
	return r.Amount - r.PlatformFee
}

// SettlementParties returns who is debited and who is credited when this
// request settles. The side converting electronic balance into cash is
// the electronic payer: for ONLINE_TO_CASH the requester pays the helper,
// for CASH_TO_ONLINE the helper pays the requester. Callers must only
// invoke this once a helper is assigned.
func (r *ExchangeRequest) SettlementParties() (payerID, payeeID uuid.UUID) {
	if r.Direction == DirectionOnlineToCash {
		return r.RequesterID, *r.HelperID
	}
	return *r.HelperID, r.RequesterID
}

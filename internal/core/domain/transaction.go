package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the final state of a settlement record.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusReversed  TransactionStatus = "REVERSED"
)

// Transaction is the immutable record of one settled exchange. It stores
// both parties' balances before and after the transfer so any ledger
// movement can be audited without replaying history.
type Transaction struct {
	ID                 uuid.UUID         `json:"id"`
	RequestID          uuid.UUID         `json:"request_id"`
	LinkedRequestID    uuid.UUID         `json:"linked_request_id"`
	PayerID            uuid.UUID         `json:"payer_id"`
	PayeeID            uuid.UUID         `json:"payee_id"`
	Amount             int64             `json:"amount"` // In smallest currency unit
	PlatformFee        int64             `json:"platform_fee"`
	NetAmount          int64             `json:"net_amount"`
	PayerBalanceBefore int64             `json:"payer_balance_before"`
	PayerBalanceAfter  int64             `json:"payer_balance_after"`
	PayeeBalanceBefore int64             `json:"payee_balance_before"`
	PayeeBalanceAfter  int64             `json:"payee_balance_after"`
	Status             TransactionStatus `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
}

package domain

import "time"

// ============================================================
// Transaction log
// ============================================================

// Transaction kinds.
const (
	TxDeposit    = "deposit"
	TxWithdrawal = "withdrawal"
	TxTransfer   = "transfer"
	TxCommission = "commission"
)

// Transaction statuses.
const (
	TxCompleted = "completed"
	TxPending   = "pending"
	TxFailed    = "failed"
)

// Transaction is one immutable entry in an account's transaction log.
//
// A peer-to-peer transfer writes two entries — a transfer entry on the
// sender and a deposit entry on the recipient — correlated by
// TransferGroupID. Amount is always positive; the kind carries the
// direction.
type Transaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Type            string    `json:"type"`
	Amount          float64   `json:"amount"`
	Date            time.Time `json:"date"`
	Status          string    `json:"status"`
	Description     string    `json:"description"`
	Recipient       string    `json:"recipient,omitempty"`
	RecipientEmail  string    `json:"recipient_email,omitempty"`
	Sender          string    `json:"sender,omitempty"`
	SenderEmail     string    `json:"sender_email,omitempty"`
	TransferGroupID string    `json:"transfer_group_id,omitempty"`
}

// TransferReceipt is returned to the caller after a successful transfer.
type TransferReceipt struct {
	TransferGroupID string    `json:"transferGroupId"`
	Amount          float64   `json:"amount"`
	RecipientName   string    `json:"recipientName"`
	RecipientEmail  string    `json:"recipientEmail"`
	NewBalance      float64   `json:"newBalance"`
	Timestamp       time.Time `json:"timestamp"`
}

// TransferRequest is the payload to initiate a transfer.
// Recipient is an email or an account number ("BM-" + 10 digits).
type TransferRequest struct {
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Note      string  `json:"note,omitempty"`
	Pin       string  `json:"pin,omitempty"`
}

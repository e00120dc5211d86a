package domain

import "time"

// ============================================================
// Escrow deals
// ============================================================

// DealStatus is the closed set of escrow deal states.
type DealStatus string

const (
	DealPendingAcceptance DealStatus = "pending_acceptance"
	DealActive            DealStatus = "active"
	DealCompleted         DealStatus = "completed"
	DealCancelled         DealStatus = "cancelled"
	DealDisputed          DealStatus = "disputed"
)

// CommissionRate is the fee withheld from the counterparty's payout,
// computed and frozen on the deal at creation time.
const CommissionRate = 0.05

// Deal is a bilateral escrow agreement. The creator's funds are held in
// their escrow balance from creation until release, cancellation or
// dispute resolution. Only the Escrow Engine mutates deals.
type Deal struct {
	ID                string     `json:"id"`
	CreatorID         string     `json:"creator_id"`
	CreatorName       string     `json:"creator_name"`
	CreatorEmail      string     `json:"creator_email"`
	CounterpartyID    string     `json:"counterparty_id"`
	CounterpartyName  string     `json:"counterparty_name"`
	CounterpartyEmail string     `json:"counterparty_email"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Task              string     `json:"task"`
	Amount            float64    `json:"amount"`
	Commission        float64    `json:"commission"`
	Status            DealStatus `json:"status"`
	DateCreated       time.Time  `json:"date_created"`
}

// CanAccept reports whether the deal may transition to active.
func (d *Deal) CanAccept() bool { return d.Status == DealPendingAcceptance }

// CanRelease reports whether escrowed funds may be paid out.
func (d *Deal) CanRelease() bool { return d.Status == DealActive }

// CanCancel reports whether the creator may take the funds back.
// Once the counterparty has accepted, cancellation requires the dispute path.
func (d *Deal) CanCancel() bool { return d.Status == DealPendingAcceptance }

// CanDispute reports whether either party may freeze the deal.
func (d *Deal) CanDispute() bool { return d.Status == DealActive }

// NetPayout is the amount the counterparty receives on release.
func (d *Deal) NetPayout() float64 { return d.Amount - d.Commission }

// DealRequest is the payload to create a deal.
type DealRequest struct {
	Title             string  `json:"title"`
	CounterpartyEmail string  `json:"counterpartyEmail"`
	Amount            float64 `json:"amount"`
	Description       string  `json:"description"`
	Task              string  `json:"task"`
}

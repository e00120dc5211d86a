package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// Roles a user account can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// KYC statuses.
const (
	KYCUnverified = "unverified"
	KYCPending    = "pending"
	KYCVerified   = "verified"
)

// BankName is stamped on every account at signup.
const BankName = "Bamboo Global Bank"

// Account represents a customer account document.
//
// Balance and EscrowBalance are mutated only by the Transfer and Escrow
// engines, inside an atomic write-set that also appends a matching
// transaction log entry. Both are >= 0 at all times.
type Account struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	AccountNumber string    `json:"account_number"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	Country       string    `json:"country,omitempty"`
	Address       string    `json:"address,omitempty"`
	BankName      string    `json:"bank_name"`
	Balance       float64   `json:"balance"`
	EscrowBalance float64   `json:"escrow_balance"`
	KYCStatus     string    `json:"kyc_status"`
	CreatedAt     time.Time `json:"created_at"`

	// Secrets. Never serialized to API responses; the handler layer
	// returns Profile() instead.
	PasswordHash string `json:"password_hash,omitempty"`
	PinHash      string `json:"pin_hash,omitempty"`
}

// HasPin reports whether a transaction PIN has been configured.
func (a *Account) HasPin() bool { return a.PinHash != "" }

// Profile is the API-safe view of an account.
type Profile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	AccountNumber string    `json:"accountNumber"`
	PhoneNumber   string    `json:"phoneNumber,omitempty"`
	Country       string    `json:"country,omitempty"`
	Address       string    `json:"address,omitempty"`
	BankName      string    `json:"bankName"`
	Balance       float64   `json:"balance"`
	EscrowBalance float64   `json:"escrowBalance"`
	KYCStatus     string    `json:"kycStatus"`
	HasPin        bool      `json:"hasPin"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Profile strips secrets from an account document.
func (a *Account) Profile() *Profile {
	return &Profile{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Role:          a.Role,
		AvatarURL:     a.AvatarURL,
		AccountNumber: a.AccountNumber,
		PhoneNumber:   a.PhoneNumber,
		Country:       a.Country,
		Address:       a.Address,
		BankName:      a.BankName,
		Balance:       a.Balance,
		EscrowBalance: a.EscrowBalance,
		KYCStatus:     a.KYCStatus,
		HasPin:        a.HasPin(),
		CreatedAt:     a.CreatedAt,
	}
}

package domain

// ============================================================
// Auth API types
// ============================================================

// SignupRequest is the body for POST /v1/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	AccessToken string   `json:"accessToken"`
	ExpiresIn   int      `json:"expiresIn"`
	User        *Profile `json:"user"`
}

// ProfileUpdateRequest carries the mutable profile fields.
// Nil pointers mean "leave unchanged".
type ProfileUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Country     *string `json:"country,omitempty"`
	Address     *string `json:"address,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

// PinUpdateRequest sets the 4-digit transaction PIN.
type PinUpdateRequest struct {
	Pin string `json:"pin"`
}

// PasswordUpdateRequest changes the login password.
type PasswordUpdateRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AdminStats is the platform overview for the admin dashboard.
type AdminStats struct {
	TotalUsers       int     `json:"totalUsers"`
	TotalVolume      float64 `json:"totalVolume"`
	CommissionEarned float64 `json:"commissionEarned"`
	ActiveDisputes   int     `json:"activeDisputes"`
}

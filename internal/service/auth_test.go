package service_test

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var accountNumberPattern = regexp.MustCompile(`^BM-\d{10}$`)

func TestSignup_CreatesWellFormedAccount(t *testing.T) {
	e := newEnv(t, "")

	resp, err := e.auth.Signup(context.Background(), &domain.SignupRequest{
		Name:     "Alice",
		Email:    "Alice@X.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotNil(t, resp.User)

	assert.Equal(t, "alice@x.com", resp.User.Email, "email is normalized to lower case")
	assert.Regexp(t, accountNumberPattern, resp.User.AccountNumber)
	assert.Equal(t, domain.BankName, resp.User.BankName)
	assert.Equal(t, domain.RoleUser, resp.User.Role)
	assert.Equal(t, domain.KYCUnverified, resp.User.KYCStatus)
	assert.Zero(t, resp.User.Balance)
	assert.Zero(t, resp.User.EscrowBalance)
	assert.False(t, resp.User.HasPin)
	assert.Contains(t, resp.User.AvatarURL, "ui-avatars.com")

	// The password never lands in the document as plain text.
	acct := e.account(t, resp.User.ID)
	assert.NotEqual(t, "hunter22", acct.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte("hunter22")))
}

func TestSignup_DuplicateEmail(t *testing.T) {
	e := newEnv(t, "")

	req := &domain.SignupRequest{Name: "Alice", Email: "alice@x.com", Password: "hunter22"}
	_, err := e.auth.Signup(context.Background(), req)
	require.NoError(t, err)

	_, err = e.auth.Signup(context.Background(), &domain.SignupRequest{Name: "Impostor", Email: "ALICE@x.com", Password: "changeme"})
	var conflict *domain.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestSignup_Validation(t *testing.T) {
	e := newEnv(t, "")

	cases := []struct {
		name  string
		req   domain.SignupRequest
		field string
	}{
		{"missing name", domain.SignupRequest{Email: "a@x.com", Password: "hunter22"}, "name"},
		{"bad email", domain.SignupRequest{Name: "A", Email: "not-an-email", Password: "hunter22"}, "email"},
		{"short password", domain.SignupRequest{Name: "A", Email: "a@x.com", Password: "12345"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.auth.Signup(context.Background(), &tc.req)
			var validation *domain.ErrValidation
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tc.field, validation.Field)
		})
	}
}

func TestLogin_RoundTrip(t *testing.T) {
	e := newEnv(t, "")
	signup, err := e.auth.Signup(context.Background(), &domain.SignupRequest{Name: "Alice", Email: "alice@x.com", Password: "hunter22"})
	require.NoError(t, err)

	login, err := e.auth.Login(context.Background(), &domain.LoginRequest{Email: " Alice@X.com ", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, login.User.ID)

	claims, err := e.auth.ValidateAccessToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, claims.Sub)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newEnv(t, "")
	_, err := e.auth.Signup(context.Background(), &domain.SignupRequest{Name: "Alice", Email: "alice@x.com", Password: "hunter22"})
	require.NoError(t, err)

	var unauthorized *domain.ErrUnauthorized

	_, err = e.auth.Login(context.Background(), &domain.LoginRequest{Email: "alice@x.com", Password: "wrong"})
	require.ErrorAs(t, err, &unauthorized)

	_, err = e.auth.Login(context.Background(), &domain.LoginRequest{Email: "nobody@x.com", Password: "hunter22"})
	require.ErrorAs(t, err, &unauthorized)
}

func TestValidateAccessToken_RejectsGarbage(t *testing.T) {
	e := newEnv(t, "")

	var unauthorized *domain.ErrUnauthorized
	_, err := e.auth.ValidateAccessToken("not.a.token")
	require.ErrorAs(t, err, &unauthorized)
}

func TestUpdateProfile_PartialUpdate(t *testing.T) {
	e := newEnv(t, "")
	resp, err := e.auth.Signup(context.Background(), &domain.SignupRequest{Name: "Alice", Email: "alice@x.com", Password: "hunter22"})
	require.NoError(t, err)

	country := "Portugal"
	profile, err := e.auth.UpdateProfile(context.Background(), resp.User.ID, &domain.ProfileUpdateRequest{Country: &country})
	require.NoError(t, err)
	assert.Equal(t, "Portugal", profile.Country)
	assert.Equal(t, "Alice", profile.Name, "unset fields stay untouched")

	empty := ""
	_, err = e.auth.UpdateProfile(context.Background(), resp.User.ID, &domain.ProfileUpdateRequest{Name: &empty})
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
}

func TestUpdatePin_FormatAndTransferFlow(t *testing.T) {
	e := newEnv(t, "")
	resp, err := e.auth.Signup(context.Background(), &domain.SignupRequest{Name: "Alice", Email: "alice@x.com", Password: "hunter22"})
	require.NoError(t, err)

	var validation *domain.ErrValidation
	for _, bad := range []string{"12", "12345", "abcd", ""} {
		err := e.auth.UpdatePin(context.Background(), resp.User.ID, bad)
		require.ErrorAs(t, err, &validation, "pin %q must be rejected", bad)
	}

	require.NoError(t, e.auth.UpdatePin(context.Background(), resp.User.ID, "4321"))

	acct := e.account(t, resp.User.ID)
	assert.True(t, acct.HasPin())
	assert.NotEqual(t, "4321", acct.PinHash)

	// The new PIN immediately gates transfers.
	e.seedAccount(t, &domain.Account{ID: "bob", Name: "Bob", Email: "bob@x.com"})
	e.setBalance(t, resp.User.ID, 50)

	_, err = e.transfers.Transfer(context.Background(), resp.User.ID, &domain.TransferRequest{Recipient: "bob@x.com", Amount: 10})
	var unauthorized *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)

	_, err = e.transfers.Transfer(context.Background(), resp.User.ID, &domain.TransferRequest{Recipient: "bob@x.com", Amount: 10, Pin: "4321"})
	require.NoError(t, err)
}

func TestUpdatePassword_RequiresCurrent(t *testing.T) {
	e := newEnv(t, "")
	resp, err := e.auth.Signup(context.Background(), &domain.SignupRequest{Name: "Alice", Email: "alice@x.com", Password: "hunter22"})
	require.NoError(t, err)

	err = e.auth.UpdatePassword(context.Background(), resp.User.ID, &domain.PasswordUpdateRequest{
		CurrentPassword: "wrong",
		NewPassword:     "betterpass",
	})
	var unauthorized *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)

	err = e.auth.UpdatePassword(context.Background(), resp.User.ID, &domain.PasswordUpdateRequest{
		CurrentPassword: "hunter22",
		NewPassword:     "betterpass",
	})
	require.NoError(t, err)

	_, err = e.auth.Login(context.Background(), &domain.LoginRequest{Email: "alice@x.com", Password: "betterpass"})
	require.NoError(t, err)
	_, err = e.auth.Login(context.Background(), &domain.LoginRequest{Email: "alice@x.com", Password: "hunter22"})
	require.ErrorAs(t, err, &unauthorized)
}

func TestAccountNumbersDoNotRepeatTrivially(t *testing.T) {
	e := newEnv(t, "")

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		resp, err := e.auth.Signup(context.Background(), &domain.SignupRequest{
			Name:     "User",
			Email:    "user" + strings.Repeat("x", i) + "@x.com",
			Password: "hunter22",
		})
		require.NoError(t, err)
		assert.False(t, seen[resp.User.AccountNumber])
		seen[resp.User.AccountNumber] = true
	}
}

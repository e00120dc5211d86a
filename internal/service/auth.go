// Package service holds the engines and application services: transfer,
// escrow, projections, auth and admin. Engines own every balance
// mutation; nothing else writes to the ledger.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const bcryptCost = 12

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// Claims carried in the access token.
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles signup, login, token validation and the
// settings-page mutations (profile, PIN, password). The heavy lifting of
// identity is delegated to the store; this service only hashes secrets
// and signs tokens.
type AuthService struct {
	runner    *ledger.Runner
	reader    *ledger.Reader
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(runner *ledger.Runner, reader *ledger.Reader, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		runner:    runner,
		reader:    reader,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// Signup registers a new account with zero balances, an unverified KYC
// status and a fresh BM- account number.
func (s *AuthService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Signup")
	defer span.End()

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "valid email required"}
	}
	if len(req.Password) < 6 {
		return nil, &domain.ErrValidation{Field: "password", Message: "must be at least 6 characters"}
	}

	existing, err := s.reader.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	number, err := generateAccountNumber()
	if err != nil {
		return nil, fmt.Errorf("generate account number: %w", err)
	}

	acct := &domain.Account{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Email:         req.Email,
		Role:          domain.RoleUser,
		AvatarURL:     avatarURL(req.Name),
		AccountNumber: number,
		BankName:      domain.BankName,
		Balance:       0,
		EscrowBalance: 0,
		KYCStatus:     domain.KYCUnverified,
		CreatedAt:     time.Now().UTC(),
		PasswordHash:  string(hash),
	}

	err = s.runner.Run(ctx, "signup", func(tx *ledger.Tx) error {
		return tx.PutAccount(acct)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("user_id", acct.ID),
		zap.String("account_number", acct.AccountNumber),
	)
	return s.issueToken(acct)
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()
	span.SetAttributes(attribute.String("email", req.Email))

	acct, err := s.reader.FindAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
		s.logger.Warn("login: bad password", zap.String("user_id", acct.ID))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	return s.issueToken(acct)
}

// ValidateAccessToken parses and verifies a bearer token.
func (s *AuthService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}
	return claims, nil
}

// UpdateProfile applies the mutable settings-page fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req *domain.ProfileUpdateRequest) (*domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.UpdateProfile")
	defer span.End()

	var profile *domain.Profile
	err := s.runner.Run(ctx, "profile_update", func(tx *ledger.Tx) error {
		acct, err := tx.Account(userID)
		if err != nil {
			return err
		}
		if req.Name != nil {
			if *req.Name == "" {
				return &domain.ErrValidation{Field: "name", Message: "must not be empty"}
			}
			acct.Name = *req.Name
		}
		if req.PhoneNumber != nil {
			acct.PhoneNumber = *req.PhoneNumber
		}
		if req.Country != nil {
			acct.Country = *req.Country
		}
		if req.Address != nil {
			acct.Address = *req.Address
		}
		if req.AvatarURL != nil {
			acct.AvatarURL = *req.AvatarURL
		}
		profile = acct.Profile()
		return tx.PutAccount(acct)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdatePin sets the 4-digit transaction PIN, stored only as a bcrypt hash.
func (s *AuthService) UpdatePin(ctx context.Context, userID, pin string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.UpdatePin")
	defer span.End()

	if !pinPattern.MatchString(pin) {
		return &domain.ErrValidation{Field: "pin", Message: "must be exactly 4 digits"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	return s.runner.Run(ctx, "pin_update", func(tx *ledger.Tx) error {
		acct, err := tx.Account(userID)
		if err != nil {
			return err
		}
		acct.PinHash = string(hash)
		return tx.PutAccount(acct)
	})
}

// UpdatePassword rotates the login password after verifying the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID string, req *domain.PasswordUpdateRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthService.UpdatePassword")
	defer span.End()

	if len(req.NewPassword) < 6 {
		return &domain.ErrValidation{Field: "newPassword", Message: "must be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.runner.Run(ctx, "password_update", func(tx *ledger.Tx) error {
		acct, err := tx.Account(userID)
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.CurrentPassword)) != nil {
			return &domain.ErrUnauthorized{Message: "current password is incorrect"}
		}
		acct.PasswordHash = string(hash)
		return tx.PutAccount(acct)
	})
}

func (s *AuthService) issueToken(acct *domain.Account) (*domain.AuthResponse, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  acct.ID,
		Role: acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &domain.AuthResponse{
		AccessToken: signed,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		User:        acct.Profile(),
	}, nil
}

// generateAccountNumber returns "BM-" followed by 10 decimal digits.
func generateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BM-%d", n.Int64()+1000000000), nil
}

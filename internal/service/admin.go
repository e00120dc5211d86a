package service

import (
	"context"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var adminTracer = otel.Tracer("service/admin")

// AdminService backs the administrator dashboard: user management and
// platform-level stats. Read-only; administrators move money through the
// same engines as everyone else.
type AdminService struct {
	reader *ledger.Reader
	logger *zap.Logger
}

// NewAdminService creates an admin service.
func NewAdminService(reader *ledger.Reader, logger *zap.Logger) *AdminService {
	return &AdminService{reader: reader, logger: logger}
}

// ListUsers returns account profiles ordered by name.
func (s *AdminService) ListUsers(ctx context.Context, actorRole string) ([]domain.Profile, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListUsers")
	defer span.End()

	if actorRole != domain.RoleAdmin {
		return nil, &domain.ErrForbidden{Action: "list users"}
	}

	accounts, err := s.reader.Accounts(ctx, adminAccountsLimit)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, 0, len(accounts))
	for i := range accounts {
		profiles = append(profiles, *accounts[i].Profile())
	}
	return profiles, nil
}

// Stats aggregates the platform overview numbers from the ledger.
func (s *AdminService) Stats(ctx context.Context, actorRole string) (*domain.AdminStats, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Stats")
	defer span.End()

	if actorRole != domain.RoleAdmin {
		return nil, &domain.ErrForbidden{Action: "view platform stats"}
	}

	accounts, err := s.reader.Accounts(ctx, 0)
	if err != nil {
		return nil, err
	}

	stats := &domain.AdminStats{TotalUsers: len(accounts)}
	for i := range accounts {
		deals, err := s.reader.DealsFor(ctx, accounts[i].ID)
		if err != nil {
			s.logger.Warn("stats: failed to load deals", zap.String("user_id", accounts[i].ID), zap.Error(err))
			continue
		}
		for _, d := range deals {
			if d.CreatorID != accounts[i].ID {
				continue // count each deal once, on its creator
			}
			stats.TotalVolume += d.Amount
			if d.Status == domain.DealCompleted {
				stats.CommissionEarned += d.Commission
			}
			if d.Status == domain.DealDisputed {
				stats.ActiveDisputes++
			}
		}
	}
	return stats, nil
}

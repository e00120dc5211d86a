package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/cache"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/observability"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/resilience"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger/memstore"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// env wires the engines against the in-memory store the way main does
// against the real one.
type env struct {
	store       *memstore.Store
	runner      *ledger.Runner
	reader      *ledger.Reader
	metrics     *observability.Metrics
	transfers   *service.TransferEngine
	escrow      *service.EscrowEngine
	auth        *service.AuthService
	projections *service.ProjectionService
	admin       *service.AdminService
}

func newEnv(t *testing.T, commissionAccountID string) *env {
	t.Helper()

	store := memstore.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	runner := ledger.NewRunner(store, 5, metrics)
	reader := ledger.NewReader(store)
	guard := resilience.NewGuard()

	return &env{
		store:       store,
		runner:      runner,
		reader:      reader,
		metrics:     metrics,
		transfers:   service.NewTransferEngine(runner, guard, metrics, logger),
		escrow:      service.NewEscrowEngine(runner, guard, metrics, logger, commissionAccountID),
		auth:        service.NewAuthService(runner, reader, "test-secret", 15*time.Minute, logger),
		projections: service.NewProjectionService(reader, cache.New[[]domain.Contact](time.Minute), metrics, logger),
		admin:       service.NewAdminService(reader, logger),
	}
}

func (e *env) seedAccount(t *testing.T, acct *domain.Account) {
	t.Helper()
	if acct.BankName == "" {
		acct.BankName = domain.BankName
	}
	if acct.Role == "" {
		acct.Role = domain.RoleUser
	}
	err := e.runner.Run(context.Background(), "seed", func(tx *ledger.Tx) error {
		return tx.PutAccount(acct)
	})
	require.NoError(t, err)
}

func (e *env) setBalance(t *testing.T, id string, balance float64) {
	t.Helper()
	err := e.runner.Run(context.Background(), "seed", func(tx *ledger.Tx) error {
		acct, err := tx.Account(id)
		if err != nil {
			return err
		}
		acct.Balance = balance
		return tx.PutAccount(acct)
	})
	require.NoError(t, err)
}

func (e *env) account(t *testing.T, id string) *domain.Account {
	t.Helper()
	acct, err := e.reader.Account(context.Background(), id)
	require.NoError(t, err)
	return acct
}

func (e *env) entries(t *testing.T, userID string) []domain.Transaction {
	t.Helper()
	entries, err := e.reader.Entries(context.Background(), userID, 0)
	require.NoError(t, err)
	return entries
}

func pinHash(t *testing.T, pin string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

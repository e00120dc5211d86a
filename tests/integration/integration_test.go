package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/handler"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/cache"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/observability"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/resilience"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger/memstore"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"go.uber.org/zap"
)

type bank struct {
	router http.Handler
	runner *ledger.Runner
}

func newBank(t *testing.T, commissionAccountID string) *bank {
	t.Helper()

	store := memstore.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	runner := ledger.NewRunner(store, 5, metrics)
	reader := ledger.NewReader(store)
	guard := resilience.NewGuard()

	router := handler.NewRouter(handler.Services{
		Auth:        service.NewAuthService(runner, reader, "integration-secret", 5*time.Minute, logger),
		Transfers:   service.NewTransferEngine(runner, guard, metrics, logger),
		Escrow:      service.NewEscrowEngine(runner, guard, metrics, logger, commissionAccountID),
		Projections: service.NewProjectionService(reader, cache.New[[]domain.Contact](time.Minute), metrics, logger),
		Admin:       service.NewAdminService(reader, logger),
	}, store, metrics, logger)

	return &bank{router: router, runner: runner}
}

func (b *bank) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	return rec
}

func (b *bank) signup(t *testing.T, name, email string) (token, userID string) {
	t.Helper()
	rec := b.do(t, http.MethodPost, "/v1/auth/signup", "", domain.SignupRequest{
		Name: name, Email: email, Password: "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: %d %s", email, rec.Code, rec.Body.String())
	}
	var resp domain.AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	return resp.AccessToken, resp.User.ID
}

func (b *bank) fund(t *testing.T, userID string, amount float64) {
	t.Helper()
	err := b.runner.Run(context.Background(), "seed", func(tx *ledger.Tx) error {
		acct, err := tx.Account(userID)
		if err != nil {
			return err
		}
		acct.Balance = amount
		return tx.PutAccount(acct)
	})
	if err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func (b *bank) profile(t *testing.T, token string) *domain.Profile {
	t.Helper()
	rec := b.do(t, http.MethodGet, "/v1/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	var p domain.Profile
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	return &p
}

// TestIntegration_TransferFlow walks the money-movement happy path over
// HTTP: two signups, one funded, a transfer, and the projections both
// parties see afterwards.
func TestIntegration_TransferFlow(t *testing.T) {
	b := newBank(t, "")

	aliceToken, aliceID := b.signup(t, "Alice", "alice@x.com")
	bobToken, _ := b.signup(t, "Bob", "bob@x.com")
	b.fund(t, aliceID, 500)

	rec := b.do(t, http.MethodPost, "/v1/transfers", aliceToken, domain.TransferRequest{
		Recipient: "bob@x.com", Amount: 120, Note: "invoice 42",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("transfer: %d %s", rec.Code, rec.Body.String())
	}
	var receipt domain.TransferReceipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.NewBalance != 380 {
		t.Errorf("expected balance 380 on the receipt, got %v", receipt.NewBalance)
	}

	if got := b.profile(t, aliceToken).Balance; got != 380 {
		t.Errorf("alice balance: expected 380, got %v", got)
	}
	if got := b.profile(t, bobToken).Balance; got != 120 {
		t.Errorf("bob balance: expected 120, got %v", got)
	}

	// Both sides see their half of the transfer, linked by one group id.
	var aliceLog, bobLog struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	rec = b.do(t, http.MethodGet, "/v1/me/transactions", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("alice transactions: %d", rec.Code)
	}
	json.NewDecoder(rec.Body).Decode(&aliceLog)
	rec = b.do(t, http.MethodGet, "/v1/me/transactions", bobToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bob transactions: %d", rec.Code)
	}
	json.NewDecoder(rec.Body).Decode(&bobLog)

	if len(aliceLog.Transactions) != 1 || len(bobLog.Transactions) != 1 {
		t.Fatalf("expected one entry each, got %d and %d", len(aliceLog.Transactions), len(bobLog.Transactions))
	}
	if aliceLog.Transactions[0].TransferGroupID != bobLog.Transactions[0].TransferGroupID {
		t.Error("expected both log entries to share one transfer group id")
	}
	if aliceLog.Transactions[0].Description != "Bamboo Send to Bob: invoice 42" {
		t.Errorf("unexpected sender description: %s", aliceLog.Transactions[0].Description)
	}
	if bobLog.Transactions[0].Description != "Bamboo Deposit from Alice: invoice 42" {
		t.Errorf("unexpected recipient description: %s", bobLog.Transactions[0].Description)
	}

	// Bob's notification calls the deposit a credit.
	var notifs struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	rec = b.do(t, http.MethodGet, "/v1/me/notifications", bobToken, nil)
	json.NewDecoder(rec.Body).Decode(&notifs)
	if len(notifs.Notifications) != 1 || notifs.Notifications[0].Title != "Green Credit Received" {
		t.Errorf("unexpected notifications: %+v", notifs.Notifications)
	}

	// Bob shows up in Alice's recent recipients.
	var contacts struct {
		Recipients []domain.Contact `json:"recipients"`
	}
	rec = b.do(t, http.MethodGet, "/v1/me/recipients", aliceToken, nil)
	json.NewDecoder(rec.Body).Decode(&contacts)
	if len(contacts.Recipients) != 1 || contacts.Recipients[0].Email != "bob@x.com" {
		t.Errorf("unexpected recipients: %+v", contacts.Recipients)
	}

	// The transfer lands in today's expense bucket.
	var activity struct {
		Activity []domain.ActivityPoint `json:"activity"`
	}
	rec = b.do(t, http.MethodGet, "/v1/me/activity", aliceToken, nil)
	json.NewDecoder(rec.Body).Decode(&activity)
	if len(activity.Activity) != 7 {
		t.Fatalf("expected 7 activity points, got %d", len(activity.Activity))
	}
	if activity.Activity[6].Expense != 120 {
		t.Errorf("expected today's expense 120, got %v", activity.Activity[6].Expense)
	}
}

// TestIntegration_DealLifecycle exercises an escrow deal end to end with
// a configured commission account.
func TestIntegration_DealLifecycle(t *testing.T) {
	b := newBank(t, "fee-sink")

	carolToken, carolID := b.signup(t, "Carol", "carol@x.com")
	daveToken, _ := b.signup(t, "Dave", "dave@x.com")
	b.fund(t, carolID, 200)

	err := b.runner.Run(context.Background(), "seed", func(tx *ledger.Tx) error {
		return tx.PutAccount(&domain.Account{
			ID: "fee-sink", Name: "Commission", Email: "fees@bamboo.internal",
			Role: domain.RoleAdmin, BankName: domain.BankName,
		})
	})
	if err != nil {
		t.Fatalf("seed commission account: %v", err)
	}

	rec := b.do(t, http.MethodPost, "/v1/deals", carolToken, domain.DealRequest{
		Title: "Garden wall", CounterpartyEmail: "dave@x.com", Amount: 100,
		Description: "build the wall", Task: "masonry",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create deal: %d %s", rec.Code, rec.Body.String())
	}
	var deal domain.Deal
	json.NewDecoder(rec.Body).Decode(&deal)
	if deal.Commission != 5 {
		t.Errorf("expected commission 5, got %v", deal.Commission)
	}

	carol := b.profile(t, carolToken)
	if carol.Balance != 100 || carol.EscrowBalance != 100 {
		t.Errorf("after hold: balance %v escrow %v", carol.Balance, carol.EscrowBalance)
	}

	// Premature release fails loudly without moving funds.
	rec = b.do(t, http.MethodPost, "/v1/deals/"+deal.ID+"/release", carolToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("premature release: expected 400, got %d", rec.Code)
	}

	rec = b.do(t, http.MethodPost, "/v1/deals/"+deal.ID+"/accept", daveToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", rec.Code, rec.Body.String())
	}

	rec = b.do(t, http.MethodPost, "/v1/deals/"+deal.ID+"/release", carolToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("release: %d %s", rec.Code, rec.Body.String())
	}
	json.NewDecoder(rec.Body).Decode(&deal)
	if deal.Status != domain.DealCompleted {
		t.Errorf("expected completed, got %s", deal.Status)
	}

	carol = b.profile(t, carolToken)
	dave := b.profile(t, daveToken)
	if carol.EscrowBalance != 0 {
		t.Errorf("expected escrow drained, got %v", carol.EscrowBalance)
	}
	if dave.Balance != 95 {
		t.Errorf("expected net payout 95, got %v", dave.Balance)
	}

	// 200 seeded = 100 spendable + 95 payout + 5 commission.
	var sink *domain.Account
	err = b.runner.Run(context.Background(), "check", func(tx *ledger.Tx) error {
		var err error
		sink, err = tx.Account("fee-sink")
		return err
	})
	if err != nil {
		t.Fatalf("read commission account: %v", err)
	}
	if sink.Balance != 5 {
		t.Errorf("expected commission balance 5, got %v", sink.Balance)
	}
}

// TestIntegration_AdminDashboard promotes a user to admin and reads the
// platform stats.
func TestIntegration_AdminDashboard(t *testing.T) {
	b := newBank(t, "")

	_, rootID := b.signup(t, "Root", "root@x.com")
	err := b.runner.Run(context.Background(), "seed", func(tx *ledger.Tx) error {
		acct, err := tx.Account(rootID)
		if err != nil {
			return err
		}
		acct.Role = domain.RoleAdmin
		return tx.PutAccount(acct)
	})
	if err != nil {
		t.Fatalf("promote admin: %v", err)
	}

	// Role is carried in the token, so log in again after the promotion.
	rec := b.do(t, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{
		Email: "root@x.com", Password: "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d", rec.Code)
	}
	var auth domain.AuthResponse
	json.NewDecoder(rec.Body).Decode(&auth)

	b.signup(t, "Alice", "alice@x.com")

	rec = b.do(t, http.MethodGet, "/v1/admin/users", auth.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin users: %d %s", rec.Code, rec.Body.String())
	}
	var users struct {
		Users []domain.Profile `json:"users"`
	}
	json.NewDecoder(rec.Body).Decode(&users)
	if len(users.Users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users.Users))
	}

	rec = b.do(t, http.MethodGet, "/v1/admin/stats", auth.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin stats: %d", rec.Code)
	}
	var stats domain.AdminStats
	json.NewDecoder(rec.Body).Decode(&stats)
	if stats.TotalUsers != 2 {
		t.Errorf("expected 2 total users, got %d", stats.TotalUsers)
	}

	rec = b.do(t, http.MethodGet, "/v1/admin/metrics", auth.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin metrics: %d", rec.Code)
	}
	var ops domain.OpsMetrics
	json.NewDecoder(rec.Body).Decode(&ops)
	if ops.Period == "" {
		t.Error("expected a period on the ops snapshot")
	}
}

package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransfer_MovesFundsAndWritesBothEntries(t *testing.T) {
	e := newEnv(t, "")
	e.seedAccount(t, &domain.Account{ID: "alice", Name: "Alice", Email: "alice@x.com", AccountNumber: "BM-1111111111", Balance: 100})
	e.seedAccount(t, &domain.Account{ID: "bob", Name: "Bob", Email: "bob@x.com", AccountNumber: "BM-2222222222", Balance: 20})

	receipt, err := e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
		Recipient: "bob@x.com",
		Amount:    30,
		Note:      "lunch",
	})
	require.NoError(t, err)
	assert.Equal(t, 70.0, receipt.NewBalance)
	assert.Equal(t, "Bob", receipt.RecipientName)
	require.NotEmpty(t, receipt.TransferGroupID)

	alice := e.account(t, "alice")
	bob := e.account(t, "bob")
	assert.Equal(t, 70.0, alice.Balance)
	assert.Equal(t, 50.0, bob.Balance)
	assert.Equal(t, 120.0, alice.Balance+bob.Balance, "total funds must be conserved")

	sent := e.entries(t, "alice")
	require.Len(t, sent, 1)
	assert.Equal(t, domain.TxTransfer, sent[0].Type)
	assert.Equal(t, domain.TxCompleted, sent[0].Status)
	assert.Equal(t, "Bamboo Send to Bob: lunch", sent[0].Description)
	assert.Equal(t, receipt.TransferGroupID, sent[0].TransferGroupID)

	received := e.entries(t, "bob")
	require.Len(t, received, 1)
	assert.Equal(t, domain.TxDeposit, received[0].Type)
	assert.Equal(t, "Bamboo Deposit from Alice: lunch", received[0].Description)
	assert.Equal(t, sent[0].TransferGroupID, received[0].TransferGroupID, "both entries share one group id")
}

func TestTransfer_ByAccountNumber(t *testing.T) {
	e := newEnv(t, "")
	e.seedAccount(t, &domain.Account{ID: "alice", Name: "Alice", Email: "alice@x.com", AccountNumber: "BM-1111111111", Balance: 50})
	e.seedAccount(t, &domain.Account{ID: "bob", Name: "Bob", Email: "bob@x.com", AccountNumber: "BM-2222222222"})

	receipt, err := e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
		Recipient: "BM-2222222222",
		Amount:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", receipt.RecipientEmail)
	assert.Equal(t, 10.0, e.account(t, "bob").Balance)
}

func TestTransfer_InsufficientFundsLeavesNoTrace(t *testing.T) {
	e := newEnv(t, "")
	e.seedAccount(t, &domain.Account{ID: "alice", Name: "Alice", Email: "alice@x.com", Balance: 10})
	e.seedAccount(t, &domain.Account{ID: "bob", Name: "Bob", Email: "bob@x.com"})

	_, err := e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
		Recipient: "bob@x.com",
		Amount:    25,
	})

	var insufficient *domain.ErrInsufficientFunds
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 10.0, insufficient.Available)
	assert.Equal(t, 25.0, insufficient.Required)

	assert.Equal(t, 10.0, e.account(t, "alice").Balance)
	assert.Equal(t, 0.0, e.account(t, "bob").Balance)
	assert.Empty(t, e.entries(t, "alice"), "a failed transfer must not append log entries")
	assert.Empty(t, e.entries(t, "bob"))
}

func TestTransfer_UnknownRecipient(t *testing.T) {
	e := newEnv(t, "")
	e.seedAccount(t, &domain.Account{ID: "alice", Name: "Alice", Email: "alice@x.com", Balance: 100})

	_, err := e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
		Recipient: "ghost@x.com",
		Amount:    10,
	})

	var notFound *domain.ErrRecipientNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 100.0, e.account(t, "alice").Balance)
	assert.Empty(t, e.entries(t, "alice"))
}

func TestTransfer_SelfTransferRejected(t *testing.T) {
	e := newEnv(t, "")
	e.seedAccount(t, &domain.Account{ID: "alice", Name: "Alice", Email: "alice@x.com", Balance: 100})

	_, err := e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
		Recipient: "alice@x.com",
		Amount:    10,
	})

	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "recipient", validation.Field)
}

func TestTransfer_InvalidAmount(t *testing.T) {
	e := newEnv(t, "")

	for _, amount := range []float64{0, -5} {
		_, err := e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
			Recipient: "bob@x.com",
			Amount:    amount,
		})
		var validation *domain.ErrValidation
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "amount", validation.Field)
	}
}

func TestTransfer_PinEnforcedWhenConfigured(t *testing.T) {
	e := newEnv(t, "")
	e.seedAccount(t, &domain.Account{ID: "alice", Name: "Alice", Email: "alice@x.com", Balance: 100, PinHash: pinHash(t, "4321")})
	e.seedAccount(t, &domain.Account{ID: "bob", Name: "Bob", Email: "bob@x.com"})

	_, err := e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
		Recipient: "bob@x.com",
		Amount:    10,
		Pin:       "0000",
	})
	var unauthorized *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, 100.0, e.account(t, "alice").Balance)

	_, err = e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
		Recipient: "bob@x.com",
		Amount:    10,
		Pin:       "4321",
	})
	require.NoError(t, err)
	assert.Equal(t, 90.0, e.account(t, "alice").Balance)
}

func TestTransfer_NoPinRequiredWhenUnset(t *testing.T) {
	e := newEnv(t, "")
	e.seedAccount(t, &domain.Account{ID: "alice", Name: "Alice", Email: "alice@x.com", Balance: 100})
	e.seedAccount(t, &domain.Account{ID: "bob", Name: "Bob", Email: "bob@x.com"})

	_, err := e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
		Recipient: "bob@x.com",
		Amount:    10,
	})
	require.NoError(t, err)
}

func TestTransfer_ConcurrentDoubleSpendSpendsOnce(t *testing.T) {
	e := newEnv(t, "")
	e.seedAccount(t, &domain.Account{ID: "alice", Name: "Alice", Email: "alice@x.com", Balance: 100})
	e.seedAccount(t, &domain.Account{ID: "bob", Name: "Bob", Email: "bob@x.com"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.transfers.Transfer(context.Background(), "alice", &domain.TransferRequest{
				Recipient: "bob@x.com",
				Amount:    60,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// The loser is turned away either at the door or at the balance check.
		var conflict *domain.ErrConflict
		var insufficient *domain.ErrInsufficientFunds
		if !errors.As(err, &conflict) && !errors.As(err, &insufficient) {
			t.Fatalf("unexpected failure mode: %v", err)
		}
	}
	require.Equal(t, 1, succeeded, "exactly one of the racing transfers may commit")

	assert.Equal(t, 40.0, e.account(t, "alice").Balance)
	assert.Equal(t, 60.0, e.account(t, "bob").Balance)
}

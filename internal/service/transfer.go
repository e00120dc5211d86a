package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/observability"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/resilience"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var transferTracer = otel.Tracer("service/transfer")

// TransferEngine executes peer-to-peer funds movements. Each transfer is
// one atomic unit spanning both account documents and both log entries:
// it either fully commits or has no visible effect, and the sum of the
// two balances is invariant across the operation.
type TransferEngine struct {
	runner  *ledger.Runner
	guard   *resilience.Guard
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransferEngine creates a transfer engine.
func NewTransferEngine(runner *ledger.Runner, guard *resilience.Guard, metrics *observability.Metrics, logger *zap.Logger) *TransferEngine {
	return &TransferEngine{
		runner:  runner,
		guard:   guard,
		metrics: metrics,
		logger:  logger,
	}
}

// Transfer moves req.Amount from the sender to the account resolved from
// req.Recipient (email first, then account number). The balance check,
// the recipient existence check and both mutations happen inside the
// same conditional write-set, so concurrent operations on either account
// force a transparent retry with a fresh read.
func (e *TransferEngine) Transfer(ctx context.Context, senderID string, req *domain.TransferRequest) (*domain.TransferReceipt, error) {
	ctx, span := transferTracer.Start(ctx, "TransferEngine.Transfer")
	defer span.End()
	span.SetAttributes(attribute.String("sender.id", senderID), attribute.Float64("amount", req.Amount))

	start := time.Now()
	defer func() { e.metrics.RecordRequestDuration("transfer", time.Since(start)) }()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if req.Recipient == "" {
		return nil, &domain.ErrValidation{Field: "recipient", Message: "required"}
	}
	if req.Note == "" {
		req.Note = "Transfer"
	}

	release, ok := e.guard.TryAcquire("transfer:" + senderID)
	if !ok {
		return nil, &domain.ErrConflict{Message: "another transfer from this account is still in progress"}
	}
	defer release()

	var receipt *domain.TransferReceipt

	err := e.runner.Run(ctx, "transfer", func(tx *ledger.Tx) error {
		sender, err := tx.Account(senderID)
		if err != nil {
			return err
		}

		if sender.HasPin() {
			if bcrypt.CompareHashAndPassword([]byte(sender.PinHash), []byte(req.Pin)) != nil {
				return &domain.ErrUnauthorized{Message: "invalid transaction PIN"}
			}
		}

		recipient, err := tx.AccountByIdentifier(req.Recipient)
		if err != nil {
			return err
		}
		if recipient.ID == sender.ID {
			return &domain.ErrValidation{Field: "recipient", Message: "cannot transfer to yourself"}
		}
		if sender.Balance < req.Amount {
			return &domain.ErrInsufficientFunds{Available: sender.Balance, Required: req.Amount}
		}

		sender.Balance -= req.Amount
		recipient.Balance += req.Amount
		if err := tx.PutAccount(sender); err != nil {
			return err
		}
		if err := tx.PutAccount(recipient); err != nil {
			return err
		}

		now := time.Now().UTC()
		groupID := uuid.New().String()

		if err := tx.AppendEntry(&domain.Transaction{
			ID:              uuid.New().String(),
			UserID:          sender.ID,
			Type:            domain.TxTransfer,
			Amount:          req.Amount,
			Date:            now,
			Status:          domain.TxCompleted,
			Recipient:       recipient.Name,
			RecipientEmail:  recipient.Email,
			Description:     fmt.Sprintf("Bamboo Send to %s: %s", recipient.Name, req.Note),
			TransferGroupID: groupID,
		}); err != nil {
			return err
		}
		if err := tx.AppendEntry(&domain.Transaction{
			ID:              uuid.New().String(),
			UserID:          recipient.ID,
			Type:            domain.TxDeposit,
			Amount:          req.Amount,
			Date:            now,
			Status:          domain.TxCompleted,
			Sender:          sender.Name,
			SenderEmail:     sender.Email,
			Description:     fmt.Sprintf("Bamboo Deposit from %s: %s", sender.Name, req.Note),
			TransferGroupID: groupID,
		}); err != nil {
			return err
		}

		receipt = &domain.TransferReceipt{
			TransferGroupID: groupID,
			Amount:          req.Amount,
			RecipientName:   recipient.Name,
			RecipientEmail:  recipient.Email,
			NewBalance:      sender.Balance,
			Timestamp:       now,
		}
		return nil
	})

	if err != nil {
		e.metrics.IncrTransfer("failed")
		return nil, err
	}

	e.metrics.IncrTransfer("completed")
	e.logger.Info("transfer completed",
		zap.String("sender_id", senderID),
		zap.String("transfer_group_id", receipt.TransferGroupID),
		zap.Float64("amount", req.Amount),
	)
	return receipt, nil
}

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
)

var escrowTracer = otel.Tracer("service/escrow")

// EscrowEngine owns the deal lifecycle. It is the only component that
// mutates deal documents, and together with the TransferEngine the only
// one that mutates balances. Funds move between a creator's spendable
// and escrow balances at creation, and from escrow to the counterparty
// (minus the frozen commission) at release.
type EscrowEngine struct {
	runner  *ledger.Runner
	guard   *resilience.Guard
	metrics *observability.Metrics
	logger  *zap.Logger

	// commissionAccountID, when set, receives the 5% fee on release.
	// Empty means the fee is burned, matching the behavior of the
	// original front-end.
	commissionAccountID string
}

// NewEscrowEngine creates an escrow engine.
func NewEscrowEngine(runner *ledger.Runner, guard *resilience.Guard, metrics *observability.Metrics, logger *zap.Logger, commissionAccountID string) *EscrowEngine {
	return &EscrowEngine{
		runner:              runner,
		guard:               guard,
		metrics:             metrics,
		logger:              logger,
		commissionAccountID: commissionAccountID,
	}
}

// CreateDeal holds req.Amount from the creator's spendable balance in
// escrow and opens the deal in pending_acceptance. The counterparty is
// resolved by email inside the transaction; no funds reach them yet.
func (e *EscrowEngine) CreateDeal(ctx context.Context, creatorID string, req *domain.DealRequest) (*domain.Deal, error) {
	ctx, span := escrowTracer.Start(ctx, "EscrowEngine.CreateDeal")
	defer span.End()
	span.SetAttributes(attribute.String("creator.id", creatorID), attribute.Float64("amount", req.Amount))

	start := time.Now()
	defer func() { e.metrics.RecordRequestDuration("deal_create", time.Since(start)) }()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if req.Title == "" {
		return nil, &domain.ErrValidation{Field: "title", Message: "required"}
	}
	if req.CounterpartyEmail == "" {
		return nil, &domain.ErrValidation{Field: "counterpartyEmail", Message: "required"}
	}

	release, ok := e.guard.TryAcquire("deal-create:" + creatorID)
	if !ok {
		return nil, &domain.ErrConflict{Message: "another deal creation for this account is still in progress"}
	}
	defer release()

	var deal *domain.Deal

	err := e.runner.Run(ctx, "deal_create", func(tx *ledger.Tx) error {
		creator, err := tx.Account(creatorID)
		if err != nil {
			return err
		}
		counterparty, err := tx.AccountByEmail(req.CounterpartyEmail)
		if err != nil {
			return err
		}
		if counterparty.ID == creator.ID {
			return &domain.ErrValidation{Field: "counterpartyEmail", Message: "cannot open a deal with yourself"}
		}
		if creator.Balance < req.Amount {
			return &domain.ErrInsufficientFunds{Available: creator.Balance, Required: req.Amount}
		}

		creator.Balance -= req.Amount
		creator.EscrowBalance += req.Amount
		if err := tx.PutAccount(creator); err != nil {
			return err
		}

		deal = &domain.Deal{
			ID:                uuid.New().String(),
			CreatorID:         creator.ID,
			CreatorName:       creator.Name,
			CreatorEmail:      creator.Email,
			CounterpartyID:    counterparty.ID,
			CounterpartyName:  counterparty.Name,
			CounterpartyEmail: counterparty.Email,
			Title:             req.Title,
			Description:       req.Description,
			Task:              req.Task,
			Amount:            req.Amount,
			Commission:        req.Amount * domain.CommissionRate,
			Status:            domain.DealPendingAcceptance,
			DateCreated:       time.Now().UTC(),
		}
		if err := tx.PutDeal(deal); err != nil {
			return err
		}

		return tx.AppendEntry(&domain.Transaction{
			ID:          uuid.New().String(),
			UserID:      creator.ID,
			Type:        domain.TxTransfer,
			Amount:      req.Amount,
			Date:        deal.DateCreated,
			Status:      domain.TxCompleted,
			Recipient:   counterparty.Name,
			Description: fmt.Sprintf("Escrow Hold: %s", req.Title),
		})
	})

	if err != nil {
		return nil, err
	}

	e.metrics.IncrDealEvent("created")
	e.logger.Info("deal created",
		zap.String("deal_id", deal.ID),
		zap.String("creator_id", creatorID),
		zap.Float64("amount", deal.Amount),
		zap.Float64("commission", deal.Commission),
	)
	return deal, nil
}

// AcceptDeal transitions pending_acceptance -> active. Only the named
// counterparty may accept. Accepting an already-active deal is an
// idempotent no-op; any other state fails loudly.
func (e *EscrowEngine) AcceptDeal(ctx context.Context, dealID, actorID string) (*domain.Deal, error) {
	ctx, span := escrowTracer.Start(ctx, "EscrowEngine.AcceptDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", dealID))

	var deal *domain.Deal

	err := e.runner.Run(ctx, "deal_accept", func(tx *ledger.Tx) error {
		var err error
		deal, err = tx.Deal(dealID)
		if err != nil {
			return err
		}
		if deal.CounterpartyID != actorID {
			return &domain.ErrForbidden{Action: "accept a deal you are not the counterparty of"}
		}
		if deal.Status == domain.DealActive {
			return nil // already accepted
		}
		if !deal.CanAccept() {
			return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot accept a deal in status '%s'", deal.Status)}
		}
		deal.Status = domain.DealActive
		return tx.PutDeal(deal)
	})

	if err != nil {
		return nil, err
	}

	e.metrics.IncrDealEvent("accepted")
	e.logger.Info("deal accepted", zap.String("deal_id", dealID), zap.String("counterparty_id", actorID))
	return deal, nil
}

// ReleaseDeal pays the escrowed funds out: the creator's escrow balance
// drops by the full amount, the counterparty's spendable balance rises
// by amount minus the frozen commission, and the deal completes. When a
// commission account is configured the fee lands there in the same
// atomic unit; otherwise it leaves the modeled system.
func (e *EscrowEngine) ReleaseDeal(ctx context.Context, dealID, actorID string) (*domain.Deal, error) {
	ctx, span := escrowTracer.Start(ctx, "EscrowEngine.ReleaseDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", dealID))

	start := time.Now()
	defer func() { e.metrics.RecordRequestDuration("deal_release", time.Since(start)) }()

	release, ok := e.guard.TryAcquire("deal:" + dealID)
	if !ok {
		return nil, &domain.ErrConflict{Message: "this deal is already being settled"}
	}
	defer release()

	var deal *domain.Deal

	err := e.runner.Run(ctx, "deal_release", func(tx *ledger.Tx) error {
		var err error
		deal, err = tx.Deal(dealID)
		if err != nil {
			return err
		}
		if deal.CreatorID != actorID {
			return &domain.ErrForbidden{Action: "release a deal you did not create"}
		}
		if !deal.CanRelease() {
			return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot release a deal in status '%s'", deal.Status)}
		}

		creator, err := tx.Account(deal.CreatorID)
		if err != nil {
			return err
		}
		counterparty, err := tx.Account(deal.CounterpartyID)
		if err != nil {
			return err
		}
		if creator.EscrowBalance < deal.Amount {
			return &domain.ErrInsufficientFunds{Available: creator.EscrowBalance, Required: deal.Amount}
		}

		now := time.Now().UTC()
		creator.EscrowBalance -= deal.Amount
		counterparty.Balance += deal.NetPayout()
		deal.Status = domain.DealCompleted

		if err := tx.PutAccount(creator); err != nil {
			return err
		}
		if err := tx.PutAccount(counterparty); err != nil {
			return err
		}
		if err := tx.PutDeal(deal); err != nil {
			return err
		}
		if err := tx.AppendEntry(&domain.Transaction{
			ID:          uuid.New().String(),
			UserID:      counterparty.ID,
			Type:        domain.TxDeposit,
			Amount:      deal.NetPayout(),
			Date:        now,
			Status:      domain.TxCompleted,
			Sender:      creator.Name,
			SenderEmail: creator.Email,
			Description: fmt.Sprintf("Escrow Released: %s", deal.Title),
		}); err != nil {
			return err
		}

		if e.commissionAccountID != "" && e.commissionAccountID != creator.ID && e.commissionAccountID != counterparty.ID {
			sink, err := tx.Account(e.commissionAccountID)
			if err != nil {
				return err
			}
			sink.Balance += deal.Commission
			if err := tx.PutAccount(sink); err != nil {
				return err
			}
			if err := tx.AppendEntry(&domain.Transaction{
				ID:          uuid.New().String(),
				UserID:      sink.ID,
				Type:        domain.TxCommission,
				Amount:      deal.Commission,
				Date:        now,
				Status:      domain.TxCompleted,
				Description: fmt.Sprintf("Deal commission: %s", deal.Title),
			}); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	e.metrics.IncrDealEvent("released")
	e.logger.Info("deal released",
		zap.String("deal_id", dealID),
		zap.String("creator_id", actorID),
		zap.Float64("net_payout", deal.NetPayout()),
		zap.Float64("commission", deal.Commission),
	)
	return deal, nil
}

// CancelDeal refunds a deal nobody has accepted yet: escrow flows back
// to the creator's spendable balance and the deal terminates.
func (e *EscrowEngine) CancelDeal(ctx context.Context, dealID, actorID string) (*domain.Deal, error) {
	ctx, span := escrowTracer.Start(ctx, "EscrowEngine.CancelDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", dealID))

	release, ok := e.guard.TryAcquire("deal:" + dealID)
	if !ok {
		return nil, &domain.ErrConflict{Message: "this deal is already being settled"}
	}
	defer release()

	var deal *domain.Deal

	err := e.runner.Run(ctx, "deal_cancel", func(tx *ledger.Tx) error {
		var err error
		deal, err = tx.Deal(dealID)
		if err != nil {
			return err
		}
		if deal.CreatorID != actorID {
			return &domain.ErrForbidden{Action: "cancel a deal you did not create"}
		}
		if !deal.CanCancel() {
			return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot cancel a deal in status '%s'", deal.Status)}
		}

		creator, err := tx.Account(deal.CreatorID)
		if err != nil {
			return err
		}
		if creator.EscrowBalance < deal.Amount {
			return &domain.ErrInsufficientFunds{Available: creator.EscrowBalance, Required: deal.Amount}
		}

		creator.EscrowBalance -= deal.Amount
		creator.Balance += deal.Amount
		deal.Status = domain.DealCancelled

		if err := tx.PutAccount(creator); err != nil {
			return err
		}
		if err := tx.PutDeal(deal); err != nil {
			return err
		}
		return tx.AppendEntry(&domain.Transaction{
			ID:          uuid.New().String(),
			UserID:      creator.ID,
			Type:        domain.TxDeposit,
			Amount:      deal.Amount,
			Date:        time.Now().UTC(),
			Status:      domain.TxCompleted,
			Description: fmt.Sprintf("Escrow Refund: %s", deal.Title),
		})
	})

	if err != nil {
		return nil, err
	}

	e.metrics.IncrDealEvent("cancelled")
	e.logger.Info("deal cancelled", zap.String("deal_id", dealID))
	return deal, nil
}

// DisputeDeal freezes an active deal. Either party may raise it; funds
// stay in the creator's escrow balance until resolved out of band.
func (e *EscrowEngine) DisputeDeal(ctx context.Context, dealID, actorID string) (*domain.Deal, error) {
	ctx, span := escrowTracer.Start(ctx, "EscrowEngine.DisputeDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", dealID))

	var deal *domain.Deal

	err := e.runner.Run(ctx, "deal_dispute", func(tx *ledger.Tx) error {
		var err error
		deal, err = tx.Deal(dealID)
		if err != nil {
			return err
		}
		if deal.CreatorID != actorID && deal.CounterpartyID != actorID {
			return &domain.ErrForbidden{Action: "dispute a deal you are not a party to"}
		}
		if !deal.CanDispute() {
			return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot dispute a deal in status '%s'", deal.Status)}
		}
		deal.Status = domain.DealDisputed
		return tx.PutDeal(deal)
	})

	if err != nil {
		return nil, err
	}

	e.metrics.IncrDealEvent("disputed")
	e.logger.Warn("deal disputed", zap.String("deal_id", dealID), zap.String("actor_id", actorID))
	return deal, nil
}

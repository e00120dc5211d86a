package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/observability"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger"
	"github.com/bamboobank/bamboo-bank-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var projectionTracer = otel.Tracer("service/projection")

const (
	maxNotifications   = 20
	maxRecentContacts  = 10
	defaultEntryLimit  = 100
	adminAccountsLimit = 50
)

// Overview bundles everything the dashboard renders in one shot.
type Overview struct {
	User         *domain.Profile        `json:"user"`
	Transactions []domain.Transaction   `json:"transactions"`
	Deals        []domain.Deal          `json:"deals"`
	Activity     []domain.ActivityPoint `json:"activity"`
}

// ProjectionService serves read-only views: balances and identity as of
// the most recent committed transaction, the transaction log, deals, the
// activity series, and the derived notification/contact lists. It never
// mutates anything; all views are safe against a live snapshot.
type ProjectionService struct {
	reader       *ledger.Reader
	contactCache port.Cache[[]domain.Contact]
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewProjectionService creates a projection service.
func NewProjectionService(reader *ledger.Reader, contactCache port.Cache[[]domain.Contact], metrics *observability.Metrics, logger *zap.Logger) *ProjectionService {
	return &ProjectionService{
		reader:       reader,
		contactCache: contactCache,
		metrics:      metrics,
		logger:       logger,
	}
}

// Me returns the caller's account projection.
func (s *ProjectionService) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := projectionTracer.Start(ctx, "ProjectionService.Me")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	acct, err := s.reader.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return acct.Profile(), nil
}

// GetOverview fetches account, transaction log and deals concurrently
// and derives the activity series from the log.
func (s *ProjectionService) GetOverview(ctx context.Context, userID string) (*Overview, error) {
	ctx, span := projectionTracer.Start(ctx, "ProjectionService.GetOverview")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("overview", time.Since(start)) }()

	var (
		acct    *domain.Account
		entries []domain.Transaction
		deals   []domain.Deal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		acct, err = s.reader.Account(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.reader.Entries(gctx, userID, defaultEntryLimit)
		return err
	})
	g.Go(func() error {
		var err error
		deals, err = s.reader.DealsFor(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Overview{
		User:         acct.Profile(),
		Transactions: entries,
		Deals:        deals,
		Activity:     ComputeActivity(entries, time.Now().UTC()),
	}, nil
}

// Transactions returns the user's log, newest first.
func (s *ProjectionService) Transactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := projectionTracer.Start(ctx, "ProjectionService.Transactions")
	defer span.End()

	return s.reader.Entries(ctx, userID, defaultEntryLimit)
}

// Deals returns every deal where the user is a party, newest first.
func (s *ProjectionService) Deals(ctx context.Context, userID string) ([]domain.Deal, error) {
	ctx, span := projectionTracer.Start(ctx, "ProjectionService.Deals")
	defer span.End()

	return s.reader.DealsFor(ctx, userID)
}

// Activity returns the 7-day income/expense series ending today.
func (s *ProjectionService) Activity(ctx context.Context, userID string) ([]domain.ActivityPoint, error) {
	ctx, span := projectionTracer.Start(ctx, "ProjectionService.Activity")
	defer span.End()

	entries, err := s.reader.Entries(ctx, userID, defaultEntryLimit)
	if err != nil {
		return nil, err
	}
	return ComputeActivity(entries, time.Now().UTC()), nil
}

// Notifications derives the notification list from the transaction log.
func (s *ProjectionService) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	ctx, span := projectionTracer.Start(ctx, "ProjectionService.Notifications")
	defer span.End()

	entries, err := s.reader.Entries(ctx, userID, defaultEntryLimit)
	if err != nil {
		return nil, err
	}

	notifs := make([]domain.Notification, 0, len(entries))
	for _, tx := range entries {
		n := domain.Notification{
			ID:      "notif-" + tx.ID,
			Date:    tx.Date,
			Message: tx.Description,
			Type:    "success",
			Title:   "Notification",
		}
		switch {
		case tx.Status == domain.TxFailed:
			n.Type = "error"
			n.Title = "Transfer Failed"
		case tx.Type == domain.TxDeposit:
			n.Title = "Green Credit Received"
		case tx.Type == domain.TxTransfer:
			n.Title = "Funds Dispatched"
		}
		notifs = append(notifs, n)
		if len(notifs) >= maxNotifications {
			break
		}
	}
	return notifs, nil
}

// RecentRecipients derives the contact shortcuts from outgoing
// transfers. The list only changes when the log does, so it sits behind
// a short TTL cache.
func (s *ProjectionService) RecentRecipients(ctx context.Context, userID string) ([]domain.Contact, error) {
	ctx, span := projectionTracer.Start(ctx, "ProjectionService.RecentRecipients")
	defer span.End()

	if contacts, ok := s.contactCache.Get(userID); ok {
		s.metrics.IncrCacheHit("contacts")
		return contacts, nil
	}
	s.metrics.IncrCacheMiss("contacts")

	entries, err := s.reader.Entries(ctx, userID, defaultEntryLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	contacts := make([]domain.Contact, 0, maxRecentContacts)
	for _, tx := range entries {
		if tx.Type != domain.TxTransfer || tx.RecipientEmail == "" || tx.Recipient == "" {
			continue
		}
		if seen[tx.RecipientEmail] {
			continue
		}
		seen[tx.RecipientEmail] = true
		contacts = append(contacts, domain.Contact{
			Name:   tx.Recipient,
			Email:  tx.RecipientEmail,
			Avatar: avatarURL(tx.Recipient),
		})
		if len(contacts) >= maxRecentContacts {
			break
		}
	}

	s.contactCache.Set(userID, contacts)
	return contacts, nil
}

// avatarURL builds the generated-avatar URL the front-end expects.
func avatarURL(name string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=166534&color=ffffff", url.QueryEscape(name))
}

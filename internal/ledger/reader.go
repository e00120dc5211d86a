package ledger

import (
	"context"
	"sort"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/port"
)

// Reader gives typed, non-transactional snapshot reads for projections.
// Safe for data that only renders; anything that gates a mutation must go
// through a Tx instead.
type Reader struct {
	store port.DocStore
}

// NewReader wraps a document store for read-only projections.
func NewReader(store port.DocStore) *Reader {
	return &Reader{store: store}
}

// Account returns the latest committed account document.
func (r *Reader) Account(ctx context.Context, id string) (*domain.Account, error) {
	doc, err := r.store.ReadDoc(ctx, port.ColAccounts, id)
	if err == port.ErrDocNotFound {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return decodeAccount(doc)
}

// FindAccountByEmail resolves an email to an account, or nil if absent.
func (r *Reader) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	docs, err := r.store.QueryDocs(ctx, port.ColAccounts, "email", email, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeAccount(&docs[0])
}

// Entries returns the user's transaction log, newest first. The limit
// applies after sorting: the store does not order query results, so
// truncating before the sort would drop an arbitrary subset instead of
// the oldest entries.
func (r *Reader) Entries(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	docs, err := r.store.QueryDocs(ctx, port.ColTransactions, "user_id", userID, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.Transaction, 0, len(docs))
	for i := range docs {
		t, err := decodeTransaction(&docs[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, *t)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// DealsFor returns deals where the user is creator or counterparty,
// newest first.
func (r *Reader) DealsFor(ctx context.Context, userID string) ([]domain.Deal, error) {
	created, err := r.store.QueryDocs(ctx, port.ColDeals, "creator_id", userID, 0)
	if err != nil {
		return nil, err
	}
	incoming, err := r.store.QueryDocs(ctx, port.ColDeals, "counterparty_id", userID, 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(created)+len(incoming))
	deals := make([]domain.Deal, 0, len(created)+len(incoming))
	for _, docs := range [][]port.Document{created, incoming} {
		for i := range docs {
			if seen[docs[i].ID] {
				continue
			}
			seen[docs[i].ID] = true
			d, err := decodeDeal(&docs[i])
			if err != nil {
				return nil, err
			}
			deals = append(deals, *d)
		}
	}
	sort.Slice(deals, func(i, j int) bool { return deals[i].DateCreated.After(deals[j].DateCreated) })
	return deals, nil
}

// Accounts lists account documents ordered by name. Used by the admin
// surface only. As with Entries, the limit truncates the sorted list,
// not the unordered query result.
func (r *Reader) Accounts(ctx context.Context, limit int) ([]domain.Account, error) {
	docs, err := r.store.QueryDocs(ctx, port.ColAccounts, "", "", 0)
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(docs))
	for i := range docs {
		a, err := decodeAccount(&docs[i])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

package ledger

import (
	"context"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/port"
)

// Tx is one attempt at an atomic unit of work. Reads record the version
// they observed; writes are staged in memory. Nothing reaches the store
// until commit, which applies the whole set conditionally or fails with
// port.ErrWriteConflict.
type Tx struct {
	ctx   context.Context
	store port.DocStore

	reads  map[string]port.Ref      // col/id -> version observed
	writes map[string]port.Document // col/id -> staged document
}

func newTx(ctx context.Context, store port.DocStore) *Tx {
	return &Tx{
		ctx:    ctx,
		store:  store,
		reads:  make(map[string]port.Ref),
		writes: make(map[string]port.Document),
	}
}

func key(collection, id string) string { return collection + "/" + id }

func (tx *Tx) readDoc(collection, id string) (*port.Document, error) {
	if staged, ok := tx.writes[key(collection, id)]; ok {
		return &staged, nil
	}
	doc, err := tx.store.ReadDoc(tx.ctx, collection, id)
	if err != nil {
		return nil, err
	}
	tx.reads[key(collection, id)] = port.Ref{Collection: collection, ID: id, Version: doc.Version}
	return doc, nil
}

// Account reads an account document inside the transaction.
func (tx *Tx) Account(id string) (*domain.Account, error) {
	doc, err := tx.readDoc(port.ColAccounts, id)
	if err == port.ErrDocNotFound {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return decodeAccount(doc)
}

// AccountByIdentifier resolves an email or account number to an account.
// The query itself is not isolated, but the matched document is re-read
// inside the transaction so its version guards the commit: if the account
// vanishes or changes before commit, the whole unit retries.
func (tx *Tx) AccountByIdentifier(identifier string) (*domain.Account, error) {
	docs, err := tx.store.QueryDocs(tx.ctx, port.ColAccounts, "email", identifier, 2)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		docs, err = tx.store.QueryDocs(tx.ctx, port.ColAccounts, "account_number", identifier, 2)
		if err != nil {
			return nil, err
		}
	}
	if len(docs) != 1 {
		return nil, &domain.ErrRecipientNotFound{Identifier: identifier}
	}
	acct, err := tx.Account(docs[0].ID)
	if err != nil {
		if _, ok := err.(*domain.ErrNotFound); ok {
			return nil, &domain.ErrRecipientNotFound{Identifier: identifier}
		}
		return nil, err
	}
	return acct, nil
}

// AccountByEmail resolves an email to an account with the same
// commit-time revalidation as AccountByIdentifier.
func (tx *Tx) AccountByEmail(email string) (*domain.Account, error) {
	docs, err := tx.store.QueryDocs(tx.ctx, port.ColAccounts, "email", email, 2)
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, &domain.ErrRecipientNotFound{Identifier: email}
	}
	acct, err := tx.Account(docs[0].ID)
	if err != nil {
		if _, ok := err.(*domain.ErrNotFound); ok {
			return nil, &domain.ErrRecipientNotFound{Identifier: email}
		}
		return nil, err
	}
	return acct, nil
}

// Deal reads a deal document inside the transaction.
func (tx *Tx) Deal(id string) (*domain.Deal, error) {
	doc, err := tx.readDoc(port.ColDeals, id)
	if err == port.ErrDocNotFound {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return decodeDeal(doc)
}

// PutAccount stages an account write at the version it was read.
func (tx *Tx) PutAccount(a *domain.Account) error {
	return tx.put(port.ColAccounts, a.ID, a)
}

// PutDeal stages a deal write. A deal never read in this transaction is
// treated as a creation (version 0).
func (tx *Tx) PutDeal(d *domain.Deal) error {
	return tx.put(port.ColDeals, d.ID, d)
}

// AppendEntry stages a new immutable transaction-log entry.
func (tx *Tx) AppendEntry(t *domain.Transaction) error {
	return tx.put(port.ColTransactions, t.ID, t)
}

func (tx *Tx) put(collection, id string, v any) error {
	version := int64(0)
	if ref, ok := tx.reads[key(collection, id)]; ok {
		version = ref.Version
	} else if staged, ok := tx.writes[key(collection, id)]; ok {
		version = staged.Version
	}
	doc, err := encode(collection, id, version, v)
	if err != nil {
		return err
	}
	tx.writes[key(collection, id)] = doc
	return nil
}

func (tx *Tx) commit() error {
	if len(tx.writes) == 0 {
		return nil
	}
	ws := port.WriteSet{}
	for k, ref := range tx.reads {
		if _, written := tx.writes[k]; !written {
			ws.Reads = append(ws.Reads, ref)
		}
	}
	for _, doc := range tx.writes {
		ws.Writes = append(ws.Writes, doc)
	}
	return tx.store.CommitWriteSet(tx.ctx, ws)
}

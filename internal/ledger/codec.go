// Package ledger layers typed, transactional access on top of the narrow
// document-store port. Engines never touch the store directly: reads that
// gate a mutation and the mutation itself go through one Tx, committed as
// a single conditional write-set with automatic retry on conflict.
package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/port"
)

func decodeAccount(doc *port.Document) (*domain.Account, error) {
	var a domain.Account
	if err := json.Unmarshal(doc.Data, &a); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", doc.ID, err)
	}
	a.ID = doc.ID
	return &a, nil
}

func decodeDeal(doc *port.Document) (*domain.Deal, error) {
	var d domain.Deal
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return nil, fmt.Errorf("decode deal %s: %w", doc.ID, err)
	}
	d.ID = doc.ID
	return &d, nil
}

func decodeTransaction(doc *port.Document) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := json.Unmarshal(doc.Data, &t); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", doc.ID, err)
	}
	t.ID = doc.ID
	return &t, nil
}

func encode(collection, id string, version int64, v any) (port.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return port.Document{}, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return port.Document{Collection: collection, ID: id, Version: version, Data: data}, nil
}

// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"errors"
)

// Collections in the document store.
const (
	ColAccounts     = "accounts"
	ColTransactions = "transactions"
	ColDeals        = "deals"
)

// ErrWriteConflict is returned by CommitWriteSet when any document in the
// read- or write-set changed version since it was read. The transaction
// runner retries the whole unit on this error.
var ErrWriteConflict = errors.New("store: write conflict")

// ErrDocNotFound is returned by ReadDoc for a missing document.
var ErrDocNotFound = errors.New("store: document not found")

// Document is an opaque versioned record. Data is the JSON encoding of
// the domain type for its collection.
type Document struct {
	Collection string
	ID         string
	Version    int64
	Data       []byte
}

// Ref identifies a document at the version it was read. A Ref with
// Version 0 asserts the document does not exist yet.
type Ref struct {
	Collection string
	ID         string
	Version    int64
}

// WriteSet is one atomic conditional commit: every Read ref and every
// Write's prior version is re-checked at commit time; the whole set is
// applied or none of it is.
type WriteSet struct {
	// Reads are documents the transaction observed but did not modify.
	// Their versions still guard the commit.
	Reads []Ref
	// Writes are created or replaced documents; Version is the version
	// observed when read (0 for a new document).
	Writes []Document
}

// Change is one push notification from the store.
type Change struct {
	Collection string
	DocID      string
}

// DocStore is the narrow contract with the hosted document database:
// snapshot reads, field queries, a conditional multi-document write-set,
// and push-based change notification.
type DocStore interface {
	ReadDoc(ctx context.Context, collection, id string) (*Document, error)
	// QueryDocs returns documents whose indexed field equals value.
	// Not transactionally isolated; callers that gate writes on the
	// result must re-read the matched document inside the write-set.
	QueryDocs(ctx context.Context, collection, field, value string, limit int) ([]Document, error)
	CommitWriteSet(ctx context.Context, ws WriteSet) error
	// Watch streams change events for documents whose field equals
	// value until ctx is done.
	Watch(ctx context.Context, collection, field, value string) (<-chan Change, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

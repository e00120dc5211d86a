// Package memstore is an in-memory implementation of the document-store
// port: versioned documents, conditional write-sets and change
// notification. It backs tests and local development; production uses
// the Supabase adapter.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bamboobank/bamboo-bank-go/internal/port"
)

type record struct {
	version int64
	data    []byte
}

type watcher struct {
	collection string
	field      string
	value      string
	ch         chan port.Change
}

// Store is a thread-safe in-memory document store with optimistic
// concurrency per document.
type Store struct {
	mu       sync.RWMutex
	cols     map[string]map[string]record
	watchers map[int]*watcher
	nextID   int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		cols:     make(map[string]map[string]record),
		watchers: make(map[int]*watcher),
	}
}

// ReadDoc returns a snapshot copy of a document.
func (s *Store) ReadDoc(_ context.Context, collection, id string) (*port.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.cols[collection][id]
	if !ok {
		return nil, port.ErrDocNotFound
	}
	return &port.Document{
		Collection: collection,
		ID:         id,
		Version:    rec.version,
		Data:       append([]byte(nil), rec.data...),
	}, nil
}

// QueryDocs matches documents whose JSON field equals value. An empty
// field matches every document in the collection.
func (s *Store) QueryDocs(_ context.Context, collection, field, value string, limit int) ([]port.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []port.Document
	for id, rec := range s.cols[collection] {
		if field != "" && fieldValue(rec.data, field) != value {
			continue
		}
		out = append(out, port.Document{
			Collection: collection,
			ID:         id,
			Version:    rec.version,
			Data:       append([]byte(nil), rec.data...),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CommitWriteSet applies all writes atomically if and only if every
// version in the read- and write-set still matches.
func (s *Store) CommitWriteSet(_ context.Context, ws port.WriteSet) error {
	s.mu.Lock()

	for _, ref := range ws.Reads {
		if s.currentVersion(ref.Collection, ref.ID) != ref.Version {
			s.mu.Unlock()
			return port.ErrWriteConflict
		}
	}
	for _, doc := range ws.Writes {
		if s.currentVersion(doc.Collection, doc.ID) != doc.Version {
			s.mu.Unlock()
			return port.ErrWriteConflict
		}
	}

	for _, doc := range ws.Writes {
		col, ok := s.cols[doc.Collection]
		if !ok {
			col = make(map[string]record)
			s.cols[doc.Collection] = col
		}
		col[doc.ID] = record{
			version: doc.Version + 1,
			data:    append([]byte(nil), doc.Data...),
		}
		// Notification happens under the lock so a cancelled watcher
		// cannot have its channel closed between match and send.
		change := port.Change{Collection: doc.Collection, DocID: doc.ID}
		for _, w := range s.watchers {
			if !w.matches(doc) {
				continue
			}
			select {
			case w.ch <- change:
			default: // slow subscriber, drop rather than block the commit
			}
		}
	}
	s.mu.Unlock()
	return nil
}

// Watch streams change events for matching documents until ctx is done.
func (s *Store) Watch(ctx context.Context, collection, field, value string) (<-chan port.Change, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	w := &watcher{collection: collection, field: field, value: value, ch: make(chan port.Change, 16)}
	s.watchers[id] = w
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
		close(w.ch)
	}()

	return w.ch, nil
}

func (s *Store) currentVersion(collection, id string) int64 {
	if rec, ok := s.cols[collection][id]; ok {
		return rec.version
	}
	return 0
}

// matches reports whether a written document hits this watcher. A watch
// on a field value also fires when the document id itself matches, so a
// user can watch their own account document by id.
func (w *watcher) matches(doc port.Document) bool {
	if w.collection != doc.Collection {
		return false
	}
	if w.field == "" {
		return true
	}
	return fieldValue(doc.Data, w.field) == w.value || doc.ID == w.value
}

// fieldValue extracts a top-level JSON field as a string.
func fieldValue(data []byte, field string) string {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	v, ok := m[field]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

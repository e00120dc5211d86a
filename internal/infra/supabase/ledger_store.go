package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/resilience"
	"github.com/bamboobank/bamboo-bank-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// docRow maps the documents table: one row per ledger document, with a
// version column bumped by the commit function on every write.
type docRow struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Version    int64           `json:"version"`
	Data       json.RawMessage `json:"data"`
}

type commitPayload struct {
	Reads  []commitRef `json:"reads"`
	Writes []commitDoc `json:"writes"`
}

type commitRef struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Version    int64  `json:"version"`
}

type commitDoc struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Version    int64           `json:"version"`
	Data       json.RawMessage `json:"data"`
}

// ErrorObserver is notified of failed store calls. Wired to the metrics
// registry in main; may be nil.
type ErrorObserver interface {
	IncrExternalError(service string)
}

// LedgerStore implements port.DocStore on top of a Supabase project.
type LedgerStore struct {
	client   *Client
	realtime *Realtime
	observer ErrorObserver
	logger   *zap.Logger
}

// NewLedgerStore creates the store adapter.
func NewLedgerStore(client *Client, realtime *Realtime, observer ErrorObserver, logger *zap.Logger) *LedgerStore {
	return &LedgerStore{client: client, realtime: realtime, observer: observer, logger: logger}
}

// ReadDoc fetches one versioned document.
func (s *LedgerStore) ReadDoc(ctx context.Context, collection, id string) (*port.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ReadDoc")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("doc.id", id))

	var body []byte
	_, err := s.client.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.client.cfg, func() error {
			path := fmt.Sprintf("documents?collection=eq.%s&id=eq.%s&limit=1",
				url.QueryEscape(collection), url.QueryEscape(id))
			var err error
			body, err = s.client.doGet(ctx, path)
			return err
		})
	})
	if err != nil {
		return nil, s.fail("read_doc", err)
	}

	var rows []docRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, s.fail("read_doc", fmt.Errorf("decode documents: %w", err))
	}
	if len(rows) == 0 {
		return nil, port.ErrDocNotFound
	}
	return rowToDocument(rows[0]), nil
}

// QueryDocs returns documents whose data field equals value. An empty
// field selects the whole collection.
func (s *LedgerStore) QueryDocs(ctx context.Context, collection, field, value string, limit int) ([]port.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.QueryDocs")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("field", field))

	path := fmt.Sprintf("documents?collection=eq.%s", url.QueryEscape(collection))
	if field != "" {
		path += fmt.Sprintf("&data->>%s=eq.%s", url.QueryEscape(field), url.QueryEscape(value))
	}
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}

	var body []byte
	_, err := s.client.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.client.cfg, func() error {
			var err error
			body, err = s.client.doGet(ctx, path)
			return err
		})
	})
	if err != nil {
		return nil, s.fail("query_docs", err)
	}

	var rows []docRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, s.fail("query_docs", fmt.Errorf("decode documents: %w", err))
	}
	docs := make([]port.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, *rowToDocument(r))
	}
	return docs, nil
}

// CommitWriteSet applies the whole write-set through the
// commit_write_set Postgres function. The function re-checks every read
// and write version inside one database transaction and raises a
// conflict (mapped to HTTP 409) when any of them moved. Commits are not
// retried at this layer: a conflicted commit must re-run the whole
// business function against fresh reads, which is the runner's job.
func (s *LedgerStore) CommitWriteSet(ctx context.Context, ws port.WriteSet) error {
	ctx, span := tracer.Start(ctx, "Supabase.CommitWriteSet")
	defer span.End()
	span.SetAttributes(attribute.Int("writes", len(ws.Writes)), attribute.Int("reads", len(ws.Reads)))

	payload := commitPayload{
		Reads:  make([]commitRef, 0, len(ws.Reads)),
		Writes: make([]commitDoc, 0, len(ws.Writes)),
	}
	for _, r := range ws.Reads {
		payload.Reads = append(payload.Reads, commitRef{Collection: r.Collection, ID: r.ID, Version: r.Version})
	}
	for _, w := range ws.Writes {
		payload.Writes = append(payload.Writes, commitDoc{Collection: w.Collection, ID: w.ID, Version: w.Version, Data: w.Data})
	}

	result, err := s.client.cb.Execute(func() (any, error) {
		status, body, err := s.client.doRPC(ctx, "commit_write_set", payload)
		if err != nil {
			return nil, err
		}
		if status == http.StatusConflict {
			return true, nil
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("commit_write_set returned %d: %s", status, string(body))
		}
		return false, nil
	})
	if err != nil {
		return s.fail("commit_write_set", err)
	}
	if conflicted, _ := result.(bool); conflicted {
		return port.ErrWriteConflict
	}
	return nil
}

// Watch streams change events over the Realtime websocket.
func (s *LedgerStore) Watch(ctx context.Context, collection, field, value string) (<-chan port.Change, error) {
	return s.realtime.Watch(ctx, collection, field, value)
}

// fail maps an adapter error onto the domain taxonomy and records it.
func (s *LedgerStore) fail(op string, err error) error {
	if s.observer != nil {
		s.observer.IncrExternalError("supabase")
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}
	s.logger.Warn("supabase: store call failed", zap.String("op", op), zap.Error(err))
	return &domain.ErrExternalService{Service: "supabase/" + op, Err: err}
}

func rowToDocument(r docRow) *port.Document {
	return &port.Document{
		Collection: r.Collection,
		ID:         r.ID,
		Version:    r.Version,
		Data:       []byte(r.Data),
	}
}

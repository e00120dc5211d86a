package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/port"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	realtimeHeartbeat = 30 * time.Second
	realtimeDialTO    = 10 * time.Second
)

// Realtime subscribes to row changes on the documents table over the
// Supabase Realtime websocket (a Phoenix channel endpoint).
type Realtime struct {
	wsURL  string
	apiKey string
	logger *zap.Logger
}

// NewRealtime creates a realtime subscriber for the given project.
func NewRealtime(baseURL, apiKey string, logger *zap.Logger) *Realtime {
	wsURL := baseURL
	if strings.HasPrefix(wsURL, "https") {
		wsURL = "wss" + wsURL[5:]
	} else if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[4:]
	}
	wsURL += "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	return &Realtime{wsURL: wsURL, apiKey: apiKey, logger: logger}
}

// phoenixMessage is the channel envelope for both directions.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload is the part of a postgres_changes event we care about.
type changePayload struct {
	Data struct {
		Record struct {
			Collection string          `json:"collection"`
			ID         string          `json:"id"`
			Data       json.RawMessage `json:"data"`
		} `json:"record"`
	} `json:"data"`
}

// Watch opens a dedicated connection subscribed to one collection and
// streams matching changes until ctx is done. field/value narrow the
// stream to documents whose data field equals value; an empty field
// passes every change in the collection through.
func (r *Realtime) Watch(ctx context.Context, collection, field, value string) (<-chan port.Change, error) {
	dialer := websocket.Dialer{HandshakeTimeout: realtimeDialTO}
	conn, _, err := dialer.DialContext(ctx, r.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	topic := fmt.Sprintf("realtime:public:documents:collection=eq.%s", collection)
	join := map[string]any{
		"topic": topic,
		"event": "phx_join",
		"payload": map[string]any{
			"config": map[string]any{
				"postgres_changes": []map[string]any{{
					"event":  "*",
					"schema": "public",
					"table":  "documents",
					"filter": "collection=eq." + collection,
				}},
			},
		},
		"ref": "1",
	}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime join: %w", err)
	}

	out := make(chan port.Change, 16)

	// Heartbeats keep the Phoenix connection alive; closing the
	// connection on ctx.Done unblocks the read loop.
	go func() {
		ticker := time.NewTicker(realtimeHeartbeat)
		defer ticker.Stop()
		ref := 1
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				ref++
				hb := map[string]any{
					"topic":   "phoenix",
					"event":   "heartbeat",
					"payload": map[string]any{},
					"ref":     fmt.Sprintf("%d", ref),
				}
				if err := conn.WriteJSON(hb); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		defer close(out)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Warn("realtime: connection closed", zap.String("topic", topic), zap.Error(err))
				}
				return
			}

			var msg phoenixMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Event != "postgres_changes" {
				continue
			}

			var payload changePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			rec := payload.Data.Record
			if rec.ID == "" {
				continue
			}
			if field != "" && !fieldMatches(rec.Data, field, value) {
				continue
			}

			change := port.Change{Collection: rec.Collection, DocID: rec.ID}
			select {
			case out <- change:
			default:
				// Slow consumer; the client re-projects on the next
				// event, so dropping one is harmless.
			}
		}
	}()

	return out, nil
}

func fieldMatches(data json.RawMessage, field, value string) bool {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	s, ok := m[field].(string)
	return ok && s == value
}

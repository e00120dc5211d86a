package handler

import (
	"net/http"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/infra/observability"
	"github.com/bamboobank/bamboo-bank-go/internal/port"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Tokens already gate the route; the socket carries no state of
	// its own, so cross-origin pages are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const streamWriteTimeout = 10 * time.Second

// streamHandler upgrades to a websocket and pushes a fresh account
// overview whenever one of the user's documents changes. The client
// treats every frame as a full replacement, so dropped or coalesced
// change events cost nothing but latency.
func streamHandler(svc *service.ProjectionService, store port.DocStore, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromContext(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("stream: upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		metrics.StreamClientConnected()
		defer metrics.StreamClientDisconnected()

		ctx := r.Context()

		watches := []struct {
			collection string
			field      string
		}{
			{port.ColAccounts, "id"},
			{port.ColTransactions, "user_id"},
			{port.ColDeals, "creator_id"},
			{port.ColDeals, "counterparty_id"},
		}
		changes := make(chan port.Change, 16)
		for _, wt := range watches {
			ch, err := store.Watch(ctx, wt.collection, wt.field, userID)
			if err != nil {
				logger.Warn("stream: watch failed",
					zap.String("collection", wt.collection),
					zap.Error(err),
				)
				continue
			}
			go func(ch <-chan port.Change) {
				for c := range ch {
					select {
					case changes <- c:
					default:
					}
				}
			}(ch)
		}

		// Reads are discarded but must be drained for close frames and
		// connection errors to surface.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		push := func() bool {
			overview, err := svc.GetOverview(ctx, userID)
			if err != nil {
				logger.Warn("stream: projection failed", zap.String("user_id", userID), zap.Error(err))
				return true
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(overview); err != nil {
				return false
			}
			return true
		}

		if !push() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-clientGone:
				return
			case <-changes:
				// Coalesce bursts from multi-document commits.
				drain := true
				for drain {
					select {
					case <-changes:
					default:
						drain = false
					}
				}
				if !push() {
					return
				}
			}
		}
	}
}

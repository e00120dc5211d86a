package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Escrow deals — /v1/deals
// ============================================================

func listDealsHandler(svc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/deals")
		defer span.End()

		deals, err := svc.Deals(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deals": deals})
	}
}

func createDealHandler(engine *service.EscrowEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/deals")
		defer span.End()

		var req domain.DealRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.Float64("amount", req.Amount))

		deal, err := engine.CreateDeal(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, deal)
	}
}

// dealActionHandler wraps the four lifecycle transitions, which all
// share the shape (dealID, actorID) -> (deal, error).
func dealActionHandler(action func(ctx context.Context, dealID, actorID string) (*domain.Deal, error), name string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/deals/{dealId}/"+name)
		defer span.End()

		dealID := chi.URLParam(r, "dealId")
		if dealID == "" {
			writeError(w, http.StatusBadRequest, "dealId is required")
			return
		}
		span.SetAttributes(attribute.String("deal.id", dealID))

		deal, err := action(ctx, dealID, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, deal)
	}
}

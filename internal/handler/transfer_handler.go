package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transfers — POST /v1/transfers
// ============================================================

func transferHandler(engine *service.TransferEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers")
		defer span.End()

		var req domain.TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.Float64("amount", req.Amount))

		receipt, err := engine.Transfer(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, receipt)
	}
}

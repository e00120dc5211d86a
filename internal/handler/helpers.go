package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses. Every
// actionable failure keeps its own status so the client can tell an
// unknown recipient from an empty wallet.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var recipientNotFound *domain.ErrRecipientNotFound
	var insufficientFunds *domain.ErrInsufficientFunds
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden
	var conflict *domain.ErrConflict
	var retryExhausted *domain.ErrConflictRetryExhausted
	var circuitOpen *domain.ErrCircuitOpen
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &recipientNotFound):
		logger.Debug("recipient not found", zap.String("identifier", recipientNotFound.Identifier))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &insufficientFunds):
		logger.Warn("insufficient funds",
			zap.Float64("available", insufficientFunds.Available),
			zap.Float64("required", insufficientFunds.Required),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &retryExhausted):
		logger.Warn("conflict retries exhausted",
			zap.String("operation", retryExhausted.Operation),
			zap.Int("attempts", retryExhausted.Attempts),
		)
		writeError(w, http.StatusConflict, "the operation kept colliding with concurrent updates, please retry")
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream store unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

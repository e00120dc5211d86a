package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Account projections — GET /v1/me/*
// ============================================================

func meHandler(svc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me")
		defer span.End()

		profile, err := svc.Me(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func overviewHandler(svc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/overview")
		defer span.End()

		overview, err := svc.GetOverview(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func transactionsHandler(svc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/transactions")
		defer span.End()

		txns, err := svc.Transactions(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
	}
}

func activityHandler(svc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/activity")
		defer span.End()

		points, err := svc.Activity(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"activity": points})
	}
}

func notificationsHandler(svc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/notifications")
		defer span.End()

		items, err := svc.Notifications(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
	}
}

func recipientsHandler(svc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/recipients")
		defer span.End()

		contacts, err := svc.RecentRecipients(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recipients": contacts})
	}
}

// ============================================================
// Settings — PUT /v1/me/profile, /v1/me/pin, /v1/me/password
// ============================================================

func updateProfileHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me/profile")
		defer span.End()

		var req domain.ProfileUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := authSvc.UpdateProfile(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func updatePinHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me/pin")
		defer span.End()

		var req domain.PinUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := authSvc.UpdatePin(ctx, UserIDFromContext(ctx), req.Pin); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updatePasswordHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me/password")
		defer span.End()

		var req domain.PasswordUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := authSvc.UpdatePassword(ctx, UserIDFromContext(ctx), &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

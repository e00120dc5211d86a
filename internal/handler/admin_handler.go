package handler

import (
	"net/http"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/observability"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Admin dashboard — /v1/admin/*
// ============================================================

func adminUsersHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/users")
		defer span.End()

		users, err := svc.ListUsers(ctx, RoleFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

func adminStatsHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/stats")
		defer span.End()

		stats, err := svc.Stats(ctx, RoleFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func adminMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden: view operational metrics")
			return
		}
		writeJSON(w, http.StatusOK, metrics.GetOpsSnapshot())
	}
}

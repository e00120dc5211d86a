package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/infra/observability"
	"github.com/bamboobank/bamboo-bank-go/internal/port"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles the application services the router dispatches to.
type Services struct {
	Auth        *service.AuthService
	Transfers   *service.TransferEngine
	Escrow      *service.EscrowEngine
	Projections *service.ProjectionService
	Admin       *service.AdminService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, store port.DocStore, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authSignupHandler(svcs.Auth, logger))
			r.Post("/login", authLoginHandler(svcs.Auth, logger))
		})

		// Everything else requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			// Account projections
			r.Get("/me", meHandler(svcs.Projections, logger))
			r.Get("/me/overview", overviewHandler(svcs.Projections, logger))
			r.Get("/me/transactions", transactionsHandler(svcs.Projections, logger))
			r.Get("/me/activity", activityHandler(svcs.Projections, logger))
			r.Get("/me/notifications", notificationsHandler(svcs.Projections, logger))
			r.Get("/me/recipients", recipientsHandler(svcs.Projections, logger))

			// Settings
			r.Put("/me/profile", updateProfileHandler(svcs.Auth, logger))
			r.Put("/me/pin", updatePinHandler(svcs.Auth, logger))
			r.Put("/me/password", updatePasswordHandler(svcs.Auth, logger))

			// Money movement
			r.Post("/transfers", transferHandler(svcs.Transfers, logger))

			// Escrow deals
			r.Get("/deals", listDealsHandler(svcs.Projections, logger))
			r.Post("/deals", createDealHandler(svcs.Escrow, logger))
			r.Post("/deals/{dealId}/accept", dealActionHandler(svcs.Escrow.AcceptDeal, "accept", logger))
			r.Post("/deals/{dealId}/release", dealActionHandler(svcs.Escrow.ReleaseDeal, "release", logger))
			r.Post("/deals/{dealId}/cancel", dealActionHandler(svcs.Escrow.CancelDeal, "cancel", logger))
			r.Post("/deals/{dealId}/dispute", dealActionHandler(svcs.Escrow.DisputeDeal, "dispute", logger))

			// Admin dashboard
			r.Get("/admin/users", adminUsersHandler(svcs.Admin, logger))
			r.Get("/admin/stats", adminStatsHandler(svcs.Admin, logger))
			r.Get("/admin/metrics", adminMetricsHandler(metrics, logger))

			// Live updates
			r.Get("/stream", streamHandler(svcs.Projections, store, metrics, logger))
		})
	})

	return r
}

// healthzHandler probes the store with a cheap read. A missing document
// is the expected answer from a healthy store.
func healthzHandler(store port.DocStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, err := store.ReadDoc(r.Context(), port.ColAccounts, "health-check")
		latency := time.Since(start).Milliseconds()

		status := "healthy"
		code := http.StatusOK
		if err != nil && !errors.Is(err, port.ErrDocNotFound) {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]any{
			"status":           status,
			"store_latency_ms": latency,
			"checked_at":       time.Now().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

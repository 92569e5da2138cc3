package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/handler"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/middleware"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ShareHandler      *handler.ShareHandler
	DepositHandler    *handler.DepositHandler
	WithdrawalHandler *handler.WithdrawalHandler
	EventHandler      *handler.EventHandler
	HealthHandler     *handler.HealthHandler
	IdempotencyStore  usecase.IdempotencyStore
	Logger            zerolog.Logger
	RateLimit         float64
	RateBurst         int
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)

	if cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst).Limit)
	}

	// Health and metrics endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		r.Get("/events", cfg.EventHandler.List)

		r.Route("/clients/{clientID}/shares/{shareID}", func(r chi.Router) {
			r.Get("/", cfg.ShareHandler.Status)
			r.Post("/deposits", cfg.DepositHandler.Create)
			r.Get("/checkpoints/{index}/balances/{assetID}", cfg.ShareHandler.GetCheckpointBalance)

			r.Route("/accounts/{accountID}", func(r chi.Router) {
				r.Put("/", cfg.ShareHandler.SetAccountShare)
				r.Delete("/", cfg.ShareHandler.RemoveAccountShare)
				r.Get("/", cfg.ShareHandler.GetAccountShare)
				r.Get("/periods/{index}", cfg.ShareHandler.GetPeriod)
				r.Get("/periods/{index}/withdrawals/{assetID}", cfg.WithdrawalHandler.GetCheckpoint)
				r.Post("/withdrawals", cfg.WithdrawalHandler.Create)
				r.Get("/withdrawable", cfg.WithdrawalHandler.Withdrawable)
			})
		})
	})

	return r
}

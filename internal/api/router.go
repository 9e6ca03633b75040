package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/usagegate/usagegate/internal/database"
	"github.com/usagegate/usagegate/internal/events"
	mw "github.com/usagegate/usagegate/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Rate limiter
	RateLimitCheck  http.HandlerFunc
	RateLimitStatus http.HandlerFunc

	// Quota manager
	QuotaCheck   http.HandlerFunc
	QuotaConsume http.HandlerFunc

	// Credit ledger
	ConsumeCredits http.HandlerFunc
	GrantCredits   http.HandlerFunc
	CreditBalance  http.HandlerFunc
	RefundCredits  http.HandlerFunc

	// Prepaid accounts
	ManageAccount http.HandlerFunc
	GetAccount    http.HandlerFunc

	// Plan assignment
	AssignPlan http.HandlerFunc
	GetPlan    http.HandlerFunc

	// Usage reporting
	ListUsageLog http.HandlerFunc

	// Service authentication
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AbuseGuard         func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, eventsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe. Always 200, no dependency checks.
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe. Checks the ledger store and the event bus.
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if eventsClient != nil && !eventsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if eventsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1: every engine route requires a service token, and the abuse
	// guard throttles misbehaving callers before any decision runs.
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AbuseGuard != nil {
			r.Use(cfg.AbuseGuard)
		}
		r.Use(h.AuthMiddleware)

		r.Route("/ratelimit", func(r chi.Router) {
			r.Post("/check", h.RateLimitCheck)
			r.Get("/status/{userID}", h.RateLimitStatus)
		})

		r.Route("/quota", func(r chi.Router) {
			r.Post("/consume", h.QuotaConsume)
			r.Get("/{userID}/{resourceType}", h.QuotaCheck)
		})

		r.Route("/credits", func(r chi.Router) {
			r.Post("/consume", h.ConsumeCredits)
			r.Post("/grant", h.GrantCredits)
			r.Post("/refund", h.RefundCredits)
			r.Get("/balance/{userID}", h.CreditBalance)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/credits", h.ManageAccount)
			r.Get("/{userID}/{subscriptionID}", h.GetAccount)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Put("/{userID}", h.AssignPlan)
			r.Get("/{userID}", h.GetPlan)
		})

		r.Get("/usage/log", h.ListUsageLog)
	})

	return r
}

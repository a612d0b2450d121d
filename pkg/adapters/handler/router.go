package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/config"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.LinkService, log zerolog.Logger) http.Handler {
	h := NewHTTPHandler(service, log)
	mw := NewMiddleware(cfg, log)
	authHandler := NewAuthHandler(cfg, log)
	createLimiter := NewIPRateLimiter(cfg.CreateRatePerMinute, cfg.CreateRatePerMinute, cfg.TrustProxy, log)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /shortener/create", createLimiter.Limit(h.Create))
	mux.HandleFunc("GET /shortener/redirect/{code}", h.RedirectJSON)
	mux.HandleFunc("GET /shortener/analytics/{code}", h.Analytics)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	// Protected Routes
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /api/v1/links", h.List)
	protectedMux.HandleFunc("GET /api/v1/dashboard", h.Dashboard)
	mux.Handle("/api/v1/", mw.AuthMiddleware(protectedMux))

	// Browser redirects take any single-segment path not claimed above
	mux.HandleFunc("GET /{code}", h.Redirect)

	return mw.Recovery(mw.RequestLogger(mw.Metrics(mux)))
}

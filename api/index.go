package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/app"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/config"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)

	// On Vercel, db.sqlite is ephemeral unless DATABASE_URL points at Turso or PostgreSQL
	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	mux = application.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}

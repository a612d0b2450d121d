// Package app wires configuration into a ready-to-serve handler.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/adapters/cache"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/config"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

type App struct {
	Handler http.Handler
	Service *services.LinkService
	Store   ports.Store

	cache *cache.RedisLinkCache
}

// New opens the store named by cfg.DatabaseURL, puts the Redis cache in
// front of link lookups when REDIS_URL is set, and builds the router.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", repository.Backend(cfg.DatabaseURL)).Msg("storage initialized")

	a := &App{Store: store}

	var links ports.LinkRepository = store
	if cfg.RedisURL != "" {
		a.cache, err = cache.NewRedisLinkCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			store.Close()
			return nil, err
		}
		links = cache.NewCachedLinkRepository(store, a.cache, log)
		log.Info().Dur("ttl", cfg.CacheTTL).Msg("redis link cache enabled")
	}

	a.Service = services.NewLinkService(links, store, services.Options{
		ShortURLBase:      cfg.ShortURLBase,
		MaxCreateAttempts: cfg.MaxCreateAttempts,
		BestEffortClicks:  cfg.BestEffortClicks(),
		RecentClicksLimit: cfg.RecentClicksLimit,
	}, log)
	a.Handler = handler.NewRouter(cfg, a.Service, log)

	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}

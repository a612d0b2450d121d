// Package cache puts a read-through link cache in front of a store.
// Cache failures are logged and never fail the request.
package cache

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/metrics"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

// CachedLinkRepository decorates a LinkRepository with cache-aside lookups.
// Links are immutable once created, so entries never need invalidating.
type CachedLinkRepository struct {
	ports.LinkRepository
	cache ports.LinkCache
	log   zerolog.Logger
}

func NewCachedLinkRepository(backend ports.LinkRepository, cache ports.LinkCache, log zerolog.Logger) *CachedLinkRepository {
	return &CachedLinkRepository{
		LinkRepository: backend,
		cache:          cache,
		log:            log.With().Str("component", "link_cache").Logger(),
	}
}

func (r *CachedLinkRepository) Create(ctx context.Context, link *domain.ShortLink) error {
	if err := r.LinkRepository.Create(ctx, link); err != nil {
		return err
	}

	if err := r.cache.Set(ctx, link); err != nil {
		r.log.Warn().Err(err).Str("code", link.Code).Msg("cache set failed")
	}
	return nil
}

func (r *CachedLinkRepository) GetByCode(ctx context.Context, code string) (*domain.ShortLink, error) {
	cached, err := r.cache.Get(ctx, code)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		r.log.Warn().Err(err).Str("code", code).Msg("cache get failed")
	case cached != nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	link, err := r.LinkRepository.GetByCode(ctx, code)
	if err != nil || link == nil {
		return link, err
	}

	if err := r.cache.Set(ctx, link); err != nil {
		r.log.Warn().Err(err).Str("code", code).Msg("cache set failed")
	}
	return link, nil
}

var _ ports.LinkRepository = (*CachedLinkRepository)(nil)

// Package memory is an in-process store for development and tests.
// Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

type Repository struct {
	mu     sync.RWMutex
	links  map[string]*domain.ShortLink
	order  []string // codes in insertion order
	clicks []domain.ClickEvent
	nextID int64
}

func NewRepository() *Repository {
	return &Repository{
		links: make(map[string]*domain.ShortLink),
	}
}

func (r *Repository) Create(ctx context.Context, link *domain.ShortLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.Code]; exists {
		return domain.ErrCodeTaken
	}

	r.nextID++
	link.ID = r.nextID
	stored := *link
	r.links[link.Code] = &stored
	r.order = append(r.order, link.Code)
	return nil
}

// GetByCode returns a copy so callers cannot mutate stored links
func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.ShortLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, exists := r.links[code]
	if !exists {
		return nil, nil
	}
	linkCopy := *link
	return &linkCopy, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int, search string) ([]domain.ShortLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.matching(search)
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *Repository) Count(ctx context.Context, search string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.matching(search))), nil
}

func (r *Repository) TopLinks(ctx context.Context, limit int) ([]domain.ShortLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, c := range r.clicks {
		counts[c.Code]++
	}

	links := r.matching("")
	for i := range links {
		links[i].Clicks = counts[links[i].Code]
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Clicks != links[j].Clicks {
			return links[i].Clicks > links[j].Clicks
		}
		return links[i].ID < links[j].ID
	})

	if len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

func (r *Repository) Dump(ctx context.Context) ([]domain.ShortLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]domain.ShortLink, 0, len(r.order))
	for _, code := range r.order {
		links = append(links, *r.links[code])
	}
	return links, nil
}

func (r *Repository) Record(ctx context.Context, click *domain.ClickEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	click.ID = r.nextID
	r.clicks = append(r.clicks, *click)
	return nil
}

func (r *Repository) CountByCode(ctx context.Context, code string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, c := range r.clicks {
		if c.Code == code {
			n++
		}
	}
	return n, nil
}

// RecentByCode walks the log backwards; appends happen in time order so
// the newest clicks come first.
func (r *Repository) RecentByCode(ctx context.Context, code string, limit int) ([]domain.ClickEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ClickEvent
	for i := len(r.clicks) - 1; i >= 0 && len(out) < limit; i-- {
		if r.clicks[i].Code == code {
			out = append(out, r.clicks[i])
		}
	}
	return out, nil
}

func (r *Repository) TotalClicks(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.clicks)), nil
}

func (r *Repository) Close() error { return nil }

// matching returns links newest first, filtered by a case-insensitive
// substring of the code or destination. Caller holds the lock.
func (r *Repository) matching(search string) []domain.ShortLink {
	search = strings.ToLower(search)
	var out []domain.ShortLink
	for i := len(r.order) - 1; i >= 0; i-- {
		link := r.links[r.order[i]]
		if search != "" &&
			!strings.Contains(strings.ToLower(link.Code), search) &&
			!strings.Contains(strings.ToLower(link.DestinationURL), search) {
			continue
		}
		out = append(out, *link)
	}
	return out
}

// Ensure interface compliance
var _ ports.Store = (*Repository)(nil)

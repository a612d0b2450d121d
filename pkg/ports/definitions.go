package ports

import (
	"context"
	"io"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
)

// LinkRepository defines storage operations for links
type LinkRepository interface {
	// Create inserts a link atomically. A duplicate code yields domain.ErrCodeTaken.
	Create(ctx context.Context, link *domain.ShortLink) error
	// GetByCode returns nil, nil when the code is unknown.
	GetByCode(ctx context.Context, code string) (*domain.ShortLink, error)

	// Admin
	List(ctx context.Context, limit, offset int, search string) ([]domain.ShortLink, error)
	Count(ctx context.Context, search string) (int64, error)
	TopLinks(ctx context.Context, limit int) ([]domain.ShortLink, error)
	Dump(ctx context.Context) ([]domain.ShortLink, error) // For migration
}

// ClickRepository defines the append-only click log
type ClickRepository interface {
	Record(ctx context.Context, click *domain.ClickEvent) error
	CountByCode(ctx context.Context, code string) (int64, error)
	// RecentByCode returns at most limit clicks, newest first.
	RecentByCode(ctx context.Context, code string, limit int) ([]domain.ClickEvent, error)
	TotalClicks(ctx context.Context) (int64, error)
}

// Store is a backend holding both links and clicks
type Store interface {
	LinkRepository
	ClickRepository
	io.Closer
}

// LinkCache caches code lookups in front of a LinkRepository.
// Get returns nil, nil on a miss.
type LinkCache interface {
	Get(ctx context.Context, code string) (*domain.ShortLink, error)
	Set(ctx context.Context, link *domain.ShortLink) error
}

// LinkService defines the business logic operations
type LinkService interface {
	Create(ctx context.Context, destinationURL, customAlias string) (*domain.CreateResult, error)
	Resolve(ctx context.Context, code string, meta domain.RequestMetadata) (string, error)
	GetAnalytics(ctx context.Context, code string) (*domain.Analytics, error)

	// Admin
	ListLinks(ctx context.Context, page, limit int, search string) ([]domain.ShortLink, int64, error)
	GetDashboard(ctx context.Context, limit int) (*domain.Dashboard, error)
}

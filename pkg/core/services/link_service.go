package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/codegen"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/metrics"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

const (
	DefaultMaxCreateAttempts = 10
	DefaultRecentClicksLimit = 20

	minAliasLength = 3
	maxAliasLength = 32

	maxListLimit = 100
	maxListPage  = 1 << 20
)

// reservedAliases are first path segments owned by fixed routes. A link
// under one of them could never be reached through GET /{code}.
var reservedAliases = map[string]bool{
	"api":       true,
	"auth":      true,
	"healthz":   true,
	"metrics":   true,
	"shortener": true,
}

// Options tunes LinkService behaviour. Zero values fall back to defaults.
type Options struct {
	// ShortURLBase is the scheme and host short codes are appended to
	ShortURLBase string
	// MaxCreateAttempts bounds the generated-code retry loop
	MaxCreateAttempts int
	// BestEffortClicks lets a redirect succeed when its click write fails
	BestEffortClicks bool
	// RecentClicksLimit caps the clicks returned by GetAnalytics
	RecentClicksLimit int
}

type LinkService struct {
	links  ports.LinkRepository
	clicks ports.ClickRepository
	opts   Options
	log    zerolog.Logger

	generate func() string
	now      func() time.Time
}

func NewLinkService(links ports.LinkRepository, clicks ports.ClickRepository, opts Options, log zerolog.Logger) *LinkService {
	if opts.MaxCreateAttempts <= 0 {
		opts.MaxCreateAttempts = DefaultMaxCreateAttempts
	}
	if opts.RecentClicksLimit <= 0 {
		opts.RecentClicksLimit = DefaultRecentClicksLimit
	}
	opts.ShortURLBase = strings.TrimRight(opts.ShortURLBase, "/")

	return &LinkService{
		links:    links,
		clicks:   clicks,
		opts:     opts,
		log:      log.With().Str("component", "link_service").Logger(),
		generate: codegen.Generate,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new short link. With a custom alias the insert is tried
// once; otherwise random codes are tried until the store accepts one or
// MaxCreateAttempts is reached.
func (s *LinkService) Create(ctx context.Context, destinationURL, customAlias string) (*domain.CreateResult, error) {
	if err := ValidateDestination(destinationURL); err != nil {
		return nil, err
	}

	if customAlias != "" {
		return s.createCustom(ctx, destinationURL, customAlias)
	}
	return s.createGenerated(ctx, destinationURL)
}

func (s *LinkService) createCustom(ctx context.Context, destinationURL, alias string) (*domain.CreateResult, error) {
	if err := ValidateAlias(alias); err != nil {
		return nil, err
	}

	link := &domain.ShortLink{
		Code:           alias,
		DestinationURL: destinationURL,
		IsCustomAlias:  true,
		CreatedAt:      s.now(),
	}

	if err := s.links.Create(ctx, link); err != nil {
		if errors.Is(err, domain.ErrCodeTaken) {
			return nil, fmt.Errorf("%w: custom alias %q is already taken", domain.ErrAlreadyExists, alias)
		}
		return nil, fmt.Errorf("create link %q: %w", alias, err)
	}

	metrics.LinksCreated.WithLabelValues("custom").Inc()
	s.log.Info().Str("code", alias).Bool("custom", true).Msg("short link created")
	return s.result(link), nil
}

func (s *LinkService) createGenerated(ctx context.Context, destinationURL string) (*domain.CreateResult, error) {
	for attempt := 1; attempt <= s.opts.MaxCreateAttempts; attempt++ {
		link := &domain.ShortLink{
			Code:           s.generate(),
			DestinationURL: destinationURL,
			CreatedAt:      s.now(),
		}

		err := s.links.Create(ctx, link)
		if err == nil {
			metrics.LinksCreated.WithLabelValues("generated").Inc()
			s.log.Info().Str("code", link.Code).Int("attempt", attempt).Msg("short link created")
			return s.result(link), nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return nil, fmt.Errorf("create link: %w", err)
		}

		metrics.CodeCollisions.Inc()
		s.log.Debug().Str("code", link.Code).Int("attempt", attempt).Msg("generated code collided, retrying")
	}

	metrics.CreateExhausted.Inc()
	s.log.Error().
		Int("attempts", s.opts.MaxCreateAttempts).
		Msg("every generated short code collided; code space saturated or generator broken")
	return nil, fmt.Errorf("%w after %d attempts", domain.ErrExhausted, s.opts.MaxCreateAttempts)
}

// Resolve looks up a code and records the click before returning the
// destination. Unknown codes record nothing.
func (s *LinkService) Resolve(ctx context.Context, code string, meta domain.RequestMetadata) (string, error) {
	link, err := s.lookup(ctx, code)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrNotFound) {
			outcome = "not_found"
		}
		metrics.Resolutions.WithLabelValues(outcome).Inc()
		return "", err
	}
	metrics.Resolutions.WithLabelValues("found").Inc()

	click := &domain.ClickEvent{
		Code:        link.Code,
		OccurredAt:  s.now(),
		RequesterIP: meta.IP,
		UserAgent:   meta.UserAgent,
		Referrer:    meta.Referrer,
		Country:     meta.Country,
		City:        meta.City,
	}
	if click.RequesterIP == "" {
		click.RequesterIP = domain.UnknownIP
	}

	if err := s.clicks.Record(ctx, click); err != nil {
		metrics.ClicksRecorded.WithLabelValues("failed").Inc()
		if !s.opts.BestEffortClicks {
			return "", fmt.Errorf("record click for %q: %w", code, err)
		}
		s.log.Warn().Err(err).Str("code", code).Msg("click not recorded, redirecting anyway")
		return link.DestinationURL, nil
	}

	metrics.ClicksRecorded.WithLabelValues("ok").Inc()
	return link.DestinationURL, nil
}

// GetAnalytics returns the click total and the most recent clicks, newest first.
func (s *LinkService) GetAnalytics(ctx context.Context, code string) (*domain.Analytics, error) {
	link, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	total, err := s.clicks.CountByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("count clicks for %q: %w", code, err)
	}

	recent, err := s.clicks.RecentByCode(ctx, code, s.opts.RecentClicksLimit)
	if err != nil {
		return nil, fmt.Errorf("recent clicks for %q: %w", code, err)
	}
	if recent == nil {
		recent = []domain.ClickEvent{}
	}

	return &domain.Analytics{
		Code:           link.Code,
		DestinationURL: link.DestinationURL,
		TotalClicks:    total,
		RecentClicks:   recent,
		CreatedAt:      link.CreatedAt,
	}, nil
}

func (s *LinkService) ListLinks(ctx context.Context, page, limit int, search string) ([]domain.ShortLink, int64, error) {
	if page < 1 {
		page = 1
	}
	if page > maxListPage {
		page = maxListPage
	}
	if limit < 1 {
		limit = 10
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := (page - 1) * limit

	links, err := s.links.List(ctx, limit, offset, search)
	if err != nil {
		return nil, 0, err
	}
	if links == nil {
		links = []domain.ShortLink{}
	}

	count, err := s.links.Count(ctx, search)
	if err != nil {
		return nil, 0, err
	}

	return links, count, nil
}

func (s *LinkService) GetDashboard(ctx context.Context, limit int) (*domain.Dashboard, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	top, err := s.links.TopLinks(ctx, limit)
	if err != nil {
		return nil, err
	}
	if top == nil {
		top = []domain.ShortLink{}
	}

	total, err := s.clicks.TotalClicks(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Dashboard{TopLinks: top, TotalClicks: total}, nil
}

func (s *LinkService) lookup(ctx context.Context, code string) (*domain.ShortLink, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", domain.ErrNotFound)
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", code, err)
	}
	if link == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, code)
	}
	return link, nil
}

func (s *LinkService) result(link *domain.ShortLink) *domain.CreateResult {
	return &domain.CreateResult{
		Code:           link.Code,
		ShortURL:       s.opts.ShortURLBase + "/" + link.Code,
		DestinationURL: link.DestinationURL,
	}
}

// ValidateDestination enforces the http(s) scheme rule every stored
// destination must satisfy.
func ValidateDestination(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: url is required", domain.ErrInvalidArgument)
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return fmt.Errorf("%w: url must start with http:// or https://", domain.ErrInvalidArgument)
	}
	return nil
}

// ValidateAlias checks a caller-chosen code: 3-32 alphabet symbols and
// not a reserved route segment.
func ValidateAlias(alias string) error {
	if len(alias) < minAliasLength || len(alias) > maxAliasLength {
		return fmt.Errorf("%w: custom alias must be %d-%d characters", domain.ErrInvalidArgument, minAliasLength, maxAliasLength)
	}
	if !codegen.IsAlphabet(alias) {
		return fmt.Errorf("%w: custom alias may only contain letters and digits", domain.ErrInvalidArgument)
	}
	if reservedAliases[strings.ToLower(alias)] {
		return fmt.Errorf("%w: custom alias %q is reserved", domain.ErrInvalidArgument, alias)
	}
	return nil
}

var _ ports.LinkService = (*LinkService)(nil)

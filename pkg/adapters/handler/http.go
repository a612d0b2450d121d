package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

type HTTPHandler struct {
	service  ports.LinkService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHTTPHandler(service ports.LinkService, log zerolog.Logger) *HTTPHandler {
	v := validator.New()
	// Report json field names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &HTTPHandler{
		service:  service,
		validate: v,
		log:      log.With().Str("component", "http").Logger(),
	}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	URL         string `json:"url" validate:"required"`
	CustomAlias string `json:"customAlias,omitempty" validate:"omitempty,alphanum,min=3,max=32"`
}

type CreateLinkResponse struct {
	ShortCode   string `json:"shortCode"`
	ShortURL    string `json:"shortUrl"`
	OriginalURL string `json:"originalUrl"`
}

type RedirectResponse struct {
	URL string `json:"url"`
}

type ClickResponse struct {
	OccurredAt time.Time `json:"occurredAt"`
	Country    *string   `json:"country"`
	City       *string   `json:"city"`
	Referrer   *string   `json:"referrer"`
}

type AnalyticsResponse struct {
	ShortCode    string          `json:"shortCode"`
	OriginalURL  string          `json:"originalUrl"`
	TotalClicks  int64           `json:"totalClicks"`
	RecentClicks []ClickResponse `json:"recentClicks"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Create handles POST /shortener/create
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorJSON(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.errorJSON(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	result, err := h.service.Create(r.Context(), req.URL, req.CustomAlias)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, CreateLinkResponse{
		ShortCode:   result.Code,
		ShortURL:    result.ShortURL,
		OriginalURL: result.DestinationURL,
	}, http.StatusCreated)
}

// RedirectJSON handles GET /shortener/redirect/{code}. The click is
// recorded exactly like a browser redirect.
func (h *HTTPHandler) RedirectJSON(w http.ResponseWriter, r *http.Request) {
	destination, err := h.service.Resolve(r.Context(), r.PathValue("code"), requestMetadata(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, RedirectResponse{URL: destination}, http.StatusOK)
}

// Redirect handles GET /{code} with a 302 to the destination
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	destination, err := h.service.Resolve(r.Context(), r.PathValue("code"), requestMetadata(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	http.Redirect(w, r, destination, http.StatusFound)
}

// Analytics handles GET /shortener/analytics/{code}
func (h *HTTPHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetAnalytics(r.Context(), r.PathValue("code"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	clicks := make([]ClickResponse, 0, len(stats.RecentClicks))
	for _, c := range stats.RecentClicks {
		clicks = append(clicks, ClickResponse{
			OccurredAt: c.OccurredAt,
			Country:    c.Country,
			City:       c.City,
			Referrer:   c.Referrer,
		})
	}

	h.writeJSON(w, AnalyticsResponse{
		ShortCode:    stats.Code,
		OriginalURL:  stats.DestinationURL,
		TotalClicks:  stats.TotalClicks,
		RecentClicks: clicks,
		CreatedAt:    stats.CreatedAt,
	}, http.StatusOK)
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"message": "ok"}, http.StatusOK)
}

// serviceError maps domain errors to status codes. Internal failures get a
// generic body so store details never reach the client.
func (h *HTTPHandler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		h.errorJSON(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrAlreadyExists):
		h.errorJSON(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound):
		h.errorJSON(w, "short code not found", http.StatusNotFound)
	default:
		h.log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		h.errorJSON(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, data any, status int) {
	writeJSON(w, h.log, data, status)
}

func (h *HTTPHandler) errorJSON(w http.ResponseWriter, message string, status int) {
	writeJSON(w, h.log, map[string]string{"error": message}, status)
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("encode json failed")
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "alphanum":
		return fe.Field() + " may only contain letters and digits"
	case "min", "max":
		return fe.Field() + " must be 3-32 characters"
	default:
		return fe.Field() + " is invalid"
	}
}

// Geolocation headers set by the edge in front of the service
const (
	headerVercelCountry     = "X-Vercel-IP-Country"
	headerVercelCity        = "X-Vercel-IP-City"
	headerCloudflareCountry = "CF-IPCountry"
)

// requestMetadata captures who asked for a redirect. The requester IP is the
// first X-Forwarded-For entry; absent headers stay nil.
func requestMetadata(r *http.Request) domain.RequestMetadata {
	meta := domain.RequestMetadata{
		IP:        forwardedFor(r),
		UserAgent: optionalHeader(r, "User-Agent"),
		Referrer:  optionalHeader(r, "Referer"),
		Country:   optionalHeader(r, headerVercelCountry),
		City:      optionalHeader(r, headerVercelCity),
	}
	if meta.IP == "" {
		meta.IP = domain.UnknownIP
	}
	if meta.Country == nil {
		meta.Country = optionalHeader(r, headerCloudflareCountry)
	}
	// Vercel percent-encodes city names
	if meta.City != nil {
		if city, err := url.PathUnescape(*meta.City); err == nil {
			meta.City = &city
		}
	}
	return meta
}

func forwardedFor(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	return strings.TrimSpace(first)
}

func optionalHeader(r *http.Request, name string) *string {
	v := strings.TrimSpace(r.Header.Get(name))
	if v == "" {
		return nil
	}
	return &v
}

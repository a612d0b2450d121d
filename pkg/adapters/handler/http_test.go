package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/config"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/logger"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

const testSecret = "testsecret"

func newTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:           testSecret,
		ShortURLBase:        "https://sho.rt",
		CreateRatePerMinute: 1000,
		FrontendURL:         "http://localhost:8080/dashboard",
	}
}

func newTestRouter(t *testing.T) (http.Handler, *memory.Repository) {
	t.Helper()
	store := memory.NewRepository()
	service := services.NewLinkService(store, store, services.Options{
		ShortURLBase:     "https://sho.rt",
		BestEffortClicks: true,
	}, logger.Nop())
	return NewRouter(newTestConfig(), service, logger.Nop()), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCreateRedirectAnalytics(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/shortener/create", map[string]string{"url": "https://example.com/page"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created CreateLinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Len(t, created.ShortCode, 6)
	assert.Equal(t, "https://sho.rt/"+created.ShortCode, created.ShortURL)
	assert.Equal(t, "https://example.com/page", created.OriginalURL)

	rr = doJSON(t, router, http.MethodGet, "/shortener/redirect/"+created.ShortCode, nil, map[string]string{
		"X-Forwarded-For":     "203.0.113.7, 10.0.0.1",
		"Referer":             "https://news.example.com",
		"X-Vercel-IP-Country": "TH",
		"X-Vercel-IP-City":    "Chiang%20Mai",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"url":"https://example.com/page"}`, rr.Body.String())

	rr = doJSON(t, router, http.MethodGet, "/"+created.ShortCode, nil, nil)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com/page", rr.Header().Get("Location"))

	rr = doJSON(t, router, http.MethodGet, "/shortener/analytics/"+created.ShortCode, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats AnalyticsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, created.ShortCode, stats.ShortCode)
	assert.Equal(t, "https://example.com/page", stats.OriginalURL)
	assert.Equal(t, int64(2), stats.TotalClicks)
	require.Len(t, stats.RecentClicks, 2)

	// newest first: the browser redirect carried no headers
	assert.Nil(t, stats.RecentClicks[0].Country)
	require.NotNil(t, stats.RecentClicks[1].Country)
	assert.Equal(t, "TH", *stats.RecentClicks[1].Country)
	require.NotNil(t, stats.RecentClicks[1].City)
	assert.Equal(t, "Chiang Mai", *stats.RecentClicks[1].City)
	require.NotNil(t, stats.RecentClicks[1].Referrer)
	assert.Equal(t, "https://news.example.com", *stats.RecentClicks[1].Referrer)
}

func TestAnalyticsWithoutClicks(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/shortener/create", map[string]string{"url": "https://example.com", "customAlias": "fresh"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/shortener/analytics/fresh", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"recentClicks":[]`)
	assert.Contains(t, rr.Body.String(), `"totalClicks":0`)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{}`},
		{"ftp scheme", `{"url":"ftp://bad.example"}`},
		{"no scheme", `{"url":"example.com"}`},
		{"alias too short", `{"url":"https://example.com","customAlias":"ab"}`},
		{"alias too long", `{"url":"https://example.com","customAlias":"` + strings.Repeat("a", 33) + `"}`},
		{"alias with symbols", `{"url":"https://example.com","customAlias":"my-link"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := newTestRouter(t)

			req := httptest.NewRequest(http.MethodPost, "/shortener/create", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), `"error"`)

			count, err := store.Count(context.Background(), "")
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestCreateCustomAliasConflict(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/shortener/create", map[string]string{"url": "https://a.com", "customAlias": "promo"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"shortUrl":"https://sho.rt/promo"`)

	rr = doJSON(t, router, http.MethodPost, "/shortener/create", map[string]string{"url": "https://b.com", "customAlias": "promo"}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/shortener/redirect/promo", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"url":"https://a.com"}`, rr.Body.String())
}

func TestUnknownCode(t *testing.T) {
	router, store := newTestRouter(t)

	for _, path := range []string{"/shortener/redirect/nope", "/shortener/analytics/nope", "/nope"} {
		rr := doJSON(t, router, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.JSONEq(t, `{"error":"short code not found"}`, rr.Body.String(), path)
	}

	total, err := store.TotalClicks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

// failingService fails every call with an error that must not leak
type failingService struct{}

var errLeaky = errors.New("dial tcp 10.0.0.5:5432: connect refused for https://secret.example")

func (failingService) Create(ctx context.Context, destinationURL, customAlias string) (*domain.CreateResult, error) {
	return nil, errLeaky
}

func (failingService) Resolve(ctx context.Context, code string, meta domain.RequestMetadata) (string, error) {
	return "", errLeaky
}

func (failingService) GetAnalytics(ctx context.Context, code string) (*domain.Analytics, error) {
	return nil, errLeaky
}

func (failingService) ListLinks(ctx context.Context, page, limit int, search string) ([]domain.ShortLink, int64, error) {
	return nil, 0, errLeaky
}

func (failingService) GetDashboard(ctx context.Context, limit int) (*domain.Dashboard, error) {
	return nil, errLeaky
}

var _ ports.LinkService = failingService{}

func TestInternalErrorsAreGeneric(t *testing.T) {
	router := NewRouter(newTestConfig(), failingService{}, logger.Nop())

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/shortener/create", map[string]string{"url": "https://example.com"}},
		{http.MethodGet, "/shortener/redirect/abc123", nil},
		{http.MethodGet, "/shortener/analytics/abc123", nil},
		{http.MethodGet, "/abc123", nil},
	}

	for _, req := range requests {
		rr := doJSON(t, router, req.method, req.path, req.body, nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, req.path)
		assert.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String(), req.path)
		assert.Empty(t, rr.Header().Get("Location"))
	}
}

func TestRequestMetadata(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		ip      string
		country *string
		city    *string
	}{
		{
			name: "no headers",
			ip:   domain.UnknownIP,
		},
		{
			name:    "vercel edge",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Vercel-IP-Country": "TH", "X-Vercel-IP-City": "Bangkok"},
			ip:      "203.0.113.7",
			country: strPtr("TH"),
			city:    strPtr("Bangkok"),
		},
		{
			name:    "cloudflare edge",
			headers: map[string]string{"X-Forwarded-For": " 198.51.100.4 , 10.0.0.1", "CF-IPCountry": "DE"},
			ip:      "198.51.100.4",
			country: strPtr("DE"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/abc123", nil)
			req.RemoteAddr = "192.0.2.1:4000"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			meta := requestMetadata(req)
			assert.Equal(t, tt.ip, meta.IP)
			assert.Equal(t, tt.country, meta.Country)
			assert.Equal(t, tt.city, meta.City)
			assert.Nil(t, meta.Referrer)
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, alias := range []string{"first", "second"} {
		rr := doJSON(t, router, http.MethodPost, "/shortener/create", map[string]string{"url": "https://" + alias + ".com", "customAlias": alias}, nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := doJSON(t, router, http.MethodGet, "/second", nil, nil)
	require.Equal(t, http.StatusFound, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/links", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	cookie := &http.Cookie{Name: authCookie, Value: generateTestToken(t, testSecret, time.Minute)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/links?page=1&limit=1", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Data  []domain.ShortLink `json:"data"`
		Total int64              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "second", list.Data[0].Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var dashboard domain.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dashboard))
	assert.Equal(t, int64(1), dashboard.TotalClicks)
	require.NotEmpty(t, dashboard.TopLinks)
	assert.Equal(t, "second", dashboard.TopLinks[0].Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"ok"}`, rr.Body.String())

	rr = doJSON(t, router, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func strPtr(s string) *string { return &s }

func TestCreateLongURL(t *testing.T) {
	router, _ := newTestRouter(t)

	long := "https://example.com/?q=" + strings.Repeat("a", 2100)
	rr := doJSON(t, router, http.MethodPost, "/shortener/create", map[string]string{"url": long}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created CreateLinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, long, created.OriginalURL)
}

func TestCreateRejectsReservedAlias(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, alias := range []string{"healthz", "metrics", "shortener", "auth", "api"} {
		rr := doJSON(t, router, http.MethodPost, "/shortener/create", map[string]string{"url": "https://example.com", "customAlias": alias}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, alias)
	}

	rr := doJSON(t, router, http.MethodGet, "/healthz", nil, nil)
	assert.JSONEq(t, `{"message":"ok"}`, rr.Body.String())
}

func TestAdminListHugePage(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/links?page=9223372036854775807&limit=100", nil)
	req.AddCookie(&http.Cookie{Name: authCookie, Value: generateTestToken(t, testSecret, time.Minute)})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"data":[]`)
}

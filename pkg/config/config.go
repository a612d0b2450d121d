package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Click recording modes for the redirect path
const (
	ClickRecordingStrict     = "strict"
	ClickRecordingBestEffort = "best_effort"
)

type Config struct {
	Port        string
	DatabaseURL string
	AppEnv      string
	LogLevel    string
	BaseURL     string

	// ShortURLBase is prepended to codes when building short URLs
	ShortURLBase      string
	MaxCreateAttempts int
	ClickRecording    string
	RecentClicksLimit int

	RedisURL string
	CacheTTL time.Duration

	CreateRatePerMinute int
	// TrustProxy takes the client address from X-Forwarded-For. Enable only
	// behind a proxy that overwrites the header.
	TrustProxy bool

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	FrontendURL        string
	AllowedEmails      []string
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", "file:db.sqlite"),
		AppEnv:              getEnv("APP_ENV", "local"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		BaseURL:             baseURL,
		ShortURLBase:        strings.TrimRight(getEnv("SHORT_URL_BASE", baseURL), "/"),
		MaxCreateAttempts:   getEnvInt("SHORTENER_MAX_ATTEMPTS", 10),
		ClickRecording:      getEnv("CLICK_RECORDING", ClickRecordingBestEffort),
		RecentClicksLimit:   getEnvInt("RECENT_CLICKS_LIMIT", 20),
		RedisURL:            getEnv("REDIS_URL", ""),
		CacheTTL:            getEnvDuration("CACHE_TTL", 24*time.Hour),
		CreateRatePerMinute: getEnvInt("CREATE_RATE_PER_MINUTE", 30),
		TrustProxy:          getEnvBool("TRUST_PROXY", false),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:   getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		JWTSecret:           getEnv("JWT_SECRET", "secret"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:8080/dashboard"),
		AllowedEmails:       splitList(getEnv("ALLOWED_EMAILS", "")),
	}
}

// BestEffortClicks reports whether a failed click write should still let
// the redirect succeed.
func (c *Config) BestEffortClicks() bool {
	return c.ClickRecording != ClickRecordingStrict
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

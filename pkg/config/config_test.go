package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BASE_URL", "https://tools.example.com/")
	t.Setenv("SHORT_URL_BASE", "https://go.example.com/")
	t.Setenv("SHORTENER_MAX_ATTEMPTS", "")
	t.Setenv("CACHE_TTL", "bogus")
	t.Setenv("ALLOWED_EMAILS", " a@example.com, ,b@example.com ")
	t.Setenv("TRUST_PROXY", "maybe")

	cfg := Load()

	assert.Equal(t, "https://go.example.com", cfg.ShortURLBase)
	assert.Equal(t, 10, cfg.MaxCreateAttempts)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.AllowedEmails)
	assert.False(t, cfg.TrustProxy)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHORTENER_MAX_ATTEMPTS", "3")
	t.Setenv("RECENT_CLICKS_LIMIT", "5")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CLICK_RECORDING", ClickRecordingStrict)
	t.Setenv("TRUST_PROXY", "true")

	cfg := Load()

	assert.Equal(t, 3, cfg.MaxCreateAttempts)
	assert.Equal(t, 5, cfg.RecentClicksLimit)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.BestEffortClicks())
	assert.True(t, cfg.TrustProxy)
}

func TestBestEffortClicks(t *testing.T) {
	tests := []struct {
		mode string
		want bool
	}{
		{ClickRecordingStrict, false},
		{ClickRecordingBestEffort, true},
		{"", true},
		{"anything", true},
	}

	for _, tt := range tests {
		cfg := &Config{ClickRecording: tt.mode}
		assert.Equal(t, tt.want, cfg.BestEffortClicks(), "mode %q", tt.mode)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/app"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/config"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/logger"
)

func TestIntegration(t *testing.T) {
	// 1. Setup app on a private in-memory SQLite database
	cfg := &config.Config{
		DatabaseURL:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		ShortURLBase:        "https://sho.rt",
		ClickRecording:      config.ClickRecordingStrict,
		CreateRatePerMinute: 100,
		JWTSecret:           "secret",
	}
	application, err := app.New(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to init app: %v", err)
	}
	defer application.Close()

	server := httptest.NewServer(application.Handler)
	defer server.Close()

	client := server.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	// TEST 1: Create Link
	body, _ := json.Marshal(map[string]string{"url": "https://example.com"})
	resp, err := client.Post(server.URL+"/shortener/create", "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("Failed JSON POST: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var created struct {
		ShortCode   string `json:"shortCode"`
		ShortURL    string `json:"shortUrl"`
		OriginalURL string `json:"originalUrl"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if len(created.ShortCode) != 6 {
		t.Fatalf("Expected a 6 character code, got %q", created.ShortCode)
	}
	if created.ShortURL != "https://sho.rt/"+created.ShortCode {
		t.Errorf("Short url mismatch: %s", created.ShortURL)
	}

	// TEST 2: Custom alias, then the same alias again
	body, _ = json.Marshal(map[string]string{"url": "https://example.org", "customAlias": "promo2026"})
	resp, _ = client.Post(server.URL+"/shortener/create", "application/json", bytes.NewBuffer(body))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Alias expected 201, got %d", resp.StatusCode)
	}
	resp, _ = client.Post(server.URL+"/shortener/create", "application/json", bytes.NewBuffer(body))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Duplicate alias expected 409, got %d", resp.StatusCode)
	}

	// TEST 3: Redirect (JSON and browser)
	resp, err = client.Get(server.URL + "/shortener/redirect/" + created.ShortCode)
	if err != nil {
		t.Fatal(err)
	}
	var redirect struct {
		URL string `json:"url"`
	}
	json.NewDecoder(resp.Body).Decode(&redirect)
	resp.Body.Close()
	if redirect.URL != "https://example.com" {
		t.Errorf("Redirect url mismatch: %s", redirect.URL)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/"+created.ShortCode, nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("CF-IPCountry", "TH")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("Redirect expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://example.com" {
		t.Errorf("Redirect location mismatch: %s", loc)
	}

	// TEST 4: Analytics sees both clicks synchronously
	resp, err = client.Get(server.URL + "/shortener/analytics/" + created.ShortCode)
	if err != nil {
		t.Fatal(err)
	}
	var stats struct {
		TotalClicks  int64 `json:"totalClicks"`
		RecentClicks []struct {
			Country *string `json:"country"`
		} `json:"recentClicks"`
	}
	json.NewDecoder(resp.Body).Decode(&stats)
	resp.Body.Close()
	if stats.TotalClicks != 2 {
		t.Errorf("Expected 2 clicks, got %d", stats.TotalClicks)
	}
	if len(stats.RecentClicks) != 2 || stats.RecentClicks[0].Country == nil || *stats.RecentClicks[0].Country != "TH" {
		t.Errorf("Newest click should carry the edge country: %+v", stats.RecentClicks)
	}

	// TEST 5: Unknown code
	resp, _ = client.Get(server.URL + "/shortener/redirect/missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown code expected 404, got %d", resp.StatusCode)
	}

	// TEST 6: Export (Dump)
	links, err := application.Store.Dump(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Errorf("Expected 2 links in dump, got %d", len(links))
	}
}

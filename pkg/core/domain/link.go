package domain

import "time"

// ShortLink maps a short code to its destination URL.
// Links are immutable once stored.
type ShortLink struct {
	ID             int64     `json:"id"`
	Code           string    `json:"short_code"`
	DestinationURL string    `json:"original_url"`
	IsCustomAlias  bool      `json:"is_custom_alias"`
	CreatedAt      time.Time `json:"created_at"`
	Clicks         int64     `json:"clicks,omitempty"` // Aggregated count, admin views only
}

// CreateResult is returned by a successful creation
type CreateResult struct {
	Code           string
	ShortURL       string
	DestinationURL string
}

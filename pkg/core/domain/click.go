package domain

import "time"

// UnknownIP is stored when the request carried no forwarded address
const UnknownIP = "unknown"

// ClickEvent is one resolved redirect. Rows are append-only history and
// reference links by code only, so a click can outlive its link row.
type ClickEvent struct {
	ID          int64     `json:"id"`
	Code        string    `json:"short_code"`
	OccurredAt  time.Time `json:"occurred_at"`
	RequesterIP string    `json:"requester_ip"`
	UserAgent   *string   `json:"user_agent,omitempty"`
	Referrer    *string   `json:"referrer,omitempty"`
	Country     *string   `json:"country,omitempty"`
	City        *string   `json:"city,omitempty"`
}

// RequestMetadata is what the HTTP layer captured about the requester.
// Nil fields were absent on the request.
type RequestMetadata struct {
	IP        string
	UserAgent *string
	Referrer  *string
	Country   *string
	City      *string
}

// Analytics aggregates clicks for one link
type Analytics struct {
	Code           string
	DestinationURL string
	TotalClicks    int64
	RecentClicks   []ClickEvent
	CreatedAt      time.Time
}

// Dashboard is the admin summary across all links
type Dashboard struct {
	TopLinks    []ShortLink `json:"top_links"`
	TotalClicks int64       `json:"total_system_clicks"`
}

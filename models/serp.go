package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PayloadKind distinguishes which representation the scraping service returned
type PayloadKind string

const (
	PayloadJSON PayloadKind = "json"
	PayloadHTML PayloadKind = "html"
)

// SerpResult is one successful page fetch. Immutable after creation.
type SerpResult struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	JobID        uuid.UUID       `json:"job_id" db:"job_id"`
	Query        string          `json:"query" db:"query"`
	Location     string          `json:"location" db:"location"`
	Platform     string          `json:"platform" db:"platform"`
	PayloadKind  PayloadKind     `json:"payload_kind" db:"payload_kind"`
	RawContent   []byte          `json:"-" db:"raw_content"`
	AdsCount     int             `json:"ads_count" db:"ads_count"`
	OrganicCount int             `json:"organic_count" db:"organic_count"`
	LocalCount   int             `json:"local_count" db:"local_count"`
	FetchedAt    time.Time       `json:"fetched_at" db:"fetched_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Ad categories within a results page
const (
	AdCategoryTop      = "top"
	AdCategoryBottom   = "bottom"
	AdCategoryShopping = "shopping"
)

// AdvertiserUnknown marks an ad whose registrable domain could not be parsed.
// Downstream consumers must tolerate an explicit unknown over a missing field.
const AdvertiserUnknown = "unknown"

// Ad is one extracted advertisement
type Ad struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	SerpID           uuid.UUID       `json:"serp_id" db:"serp_id"`
	Platform         string          `json:"platform" db:"platform"`
	Category         string          `json:"category" db:"category"`
	Position         int             `json:"position" db:"position"`                 // 1..n within category
	PositionOverall  int             `json:"position_overall" db:"position_overall"` // 1..n across top+bottom
	Title            string          `json:"title" db:"title"`
	Description      string          `json:"description" db:"description"`
	DisplayURL       string          `json:"display_url" db:"display_url"`
	DestinationURL   string          `json:"destination_url" db:"destination_url"`
	AdvertiserDomain string          `json:"advertiser_domain" db:"advertiser_domain"`
	Sitelinks        json.RawMessage `json:"sitelinks,omitempty" db:"sitelinks"`
	Extensions       json.RawMessage `json:"extensions,omitempty" db:"extensions"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Advertiser is a registrable domain seen on at least one ad
type Advertiser struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Domain      string    `json:"domain" db:"domain"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// Rendering targets and types
const (
	RenderTargetSERP        = "serp"
	RenderTargetLandingPage = "landing_page"

	RenderTypeHTML = "html"
	RenderTypePNG  = "png"
)

// Rendering status
const (
	RenderStatusPending  = "pending"
	RenderStatusCaptured = "captured"
	RenderStatusFailed   = "failed"
)

// AdRendering is an optional HTML/PNG artifact tied to one Ad. Its failure
// never invalidates the Ad it targets.
type AdRendering struct {
	ID           uuid.UUID `json:"id" db:"id"`
	AdID         uuid.UUID `json:"ad_id" db:"ad_id"`
	Target       string    `json:"rendering_target" db:"rendering_target"` // serp, landing_page
	Type         string    `json:"rendering_type" db:"rendering_type"`     // html, png
	URL          string    `json:"url" db:"url"`                           // page to capture
	Status       string    `json:"status" db:"status"`
	StorageURL   *string   `json:"storage_url" db:"storage_url"`
	ErrorMessage string    `json:"error_message" db:"error_message"`
	Attempts     int       `json:"attempts" db:"attempts"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

package models

import "time"

// Listing is one comparable-sale observation ingested from a marketplace
// scraper. Nullable marketplace fields are pointers; scrapers rarely manage
// to extract everything.
type Listing struct {
	Brand          string    `json:"brand"`
	Model          string    `json:"model"`
	RAM            *string   `json:"ram"`
	Storage        *string   `json:"storage"`
	Condition      int       `json:"condition"`
	PTAApproved    *bool     `json:"pta_approved"`
	IsPanelChanged *bool     `json:"is_panel_changed"`
	ScreenCrack    *bool     `json:"screen_crack"`
	PanelDot       *bool     `json:"panel_dot"`
	PanelLine      *bool     `json:"panel_line"`
	PanelShade     *bool     `json:"panel_shade"`
	CameraLensOK   *bool     `json:"camera_lens_ok"`
	FingerprintOK  *bool     `json:"fingerprint_ok"`
	WithBox        *bool     `json:"with_box"`
	WithCharger    *bool     `json:"with_charger"`
	Price          *float64  `json:"price"`
	Images         []string  `json:"images"`
	PostDate       *string   `json:"post_date"`
	ListingSource  string    `json:"listing_source"`
	City           string    `json:"city"`
	ExtractionDate time.Time `json:"extraction_date"`
}

// Validate checks a stored record against the listing schema. Records that
// fail are skipped by the data access layer, not fatal.
func (l *Listing) Validate() error {
	if l.Model == "" {
		return &ValidationError{Field: "model", Reason: "must not be empty"}
	}
	if l.Condition < 1 || l.Condition > 10 {
		return &ValidationError{Field: "condition", Reason: "must be between 1 and 10"}
	}
	if l.ExtractionDate.IsZero() {
		return &ValidationError{Field: "extraction_date", Reason: "must be set"}
	}
	return nil
}

// QueryDevice is the device a price is requested for. Same shape as Listing
// minus price and store-only fields (images, post_date, listing_source, city,
// extraction_date).
type QueryDevice struct {
	Brand          string  `json:"brand"`
	Model          string  `json:"model"`
	RAM            *string `json:"ram"`
	Storage        *string `json:"storage"`
	Condition      int     `json:"condition"`
	PTAApproved    *bool   `json:"pta_approved"`
	IsPanelChanged *bool   `json:"is_panel_changed"`
	ScreenCrack    *bool   `json:"screen_crack"`
	PanelDot       *bool   `json:"panel_dot"`
	PanelLine      *bool   `json:"panel_line"`
	PanelShade     *bool   `json:"panel_shade"`
	CameraLensOK   *bool   `json:"camera_lens_ok"`
	FingerprintOK  *bool   `json:"fingerprint_ok"`
	WithBox        *bool   `json:"with_box"`
	WithCharger    *bool   `json:"with_charger"`
}

// Validate rejects a malformed query device. Unlike stored records this is
// fatal for the request.
func (q *QueryDevice) Validate() error {
	if q.Model == "" {
		return &ValidationError{Field: "model", Reason: "must not be empty"}
	}
	if q.Condition < 1 || q.Condition > 10 {
		return &ValidationError{Field: "condition", Reason: "must be between 1 and 10"}
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"mobile-price-api/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const listingColumns = `brand, model, ram, storage, condition, pta_approved,
	is_panel_changed, screen_crack, panel_dot, panel_line, panel_shade,
	camera_lens_ok, fingerprint_ok, with_box, with_charger,
	price, images, post_date, listing_source, city, extraction_date`

// Database is the subset of pgxpool.Pool the listing store uses.
type Database interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ListingStore reads and writes comparable-sale listings in Postgres. The
// store is append-only from the pipeline's point of view; only ingest writes.
type ListingStore struct {
	db         Database
	freshness  time.Duration
	minSamples int
}

func NewListingStore(db Database, freshnessDays, minSamples int) *ListingStore {
	return &ListingStore{
		db:         db,
		freshness:  time.Duration(freshnessDays) * 24 * time.Hour,
		minSamples: minSamples,
	}
}

// modelPattern escapes regex metacharacters in user input before it is used
// in a case-insensitive match, so "Pixel 6A (5G)" cannot inject a pattern.
func modelPattern(model string) string {
	return regexp.QuoteMeta(model)
}

// FetchTrainingData returns all listings whose model matches case-insensitively
// and whose extraction_date falls inside the freshness window. Rows that fail
// to scan or validate are skipped with a warning. Fails with
// InsufficientDataError when fewer than the minimum survive.
func (s *ListingStore) FetchTrainingData(ctx context.Context, model string) ([]models.Listing, error) {
	cutoff := time.Now().UTC().Add(-s.freshness)

	rows, err := s.db.Query(ctx, `
		SELECT `+listingColumns+`
		FROM used_listings
		WHERE model ~* $1 AND extraction_date >= $2
	`, modelPattern(model), cutoff)
	if err != nil {
		return nil, fmt.Errorf("query used_listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(
			&l.Brand, &l.Model, &l.RAM, &l.Storage, &l.Condition, &l.PTAApproved,
			&l.IsPanelChanged, &l.ScreenCrack, &l.PanelDot, &l.PanelLine, &l.PanelShade,
			&l.CameraLensOK, &l.FingerprintOK, &l.WithBox, &l.WithCharger,
			&l.Price, &l.Images, &l.PostDate, &l.ListingSource, &l.City, &l.ExtractionDate,
		); err != nil {
			log.Printf("skipping listing, scan failed: %v", err)
			continue
		}
		if err := l.Validate(); err != nil {
			log.Printf("skipping listing for %q: %v", model, err)
			continue
		}
		listings = append(listings, l)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate used_listings: %w", rows.Err())
	}

	if len(listings) < s.minSamples {
		return nil, &models.InsufficientDataError{
			Model:    model,
			Found:    len(listings),
			Required: s.minSamples,
		}
	}

	return listings, nil
}

// Insert writes one listing. ExtractionDate must already be stamped by the
// ingest boundary; it is immutable once written.
func (s *ListingStore) Insert(ctx context.Context, l *models.Listing) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO used_listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`,
		l.Brand, l.Model, l.RAM, l.Storage, l.Condition, l.PTAApproved,
		l.IsPanelChanged, l.ScreenCrack, l.PanelDot, l.PanelLine, l.PanelShade,
		l.CameraLensOK, l.FingerprintOK, l.WithBox, l.WithCharger,
		l.Price, l.Images, l.PostDate, l.ListingSource, l.City, l.ExtractionDate,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// Recent returns the newest listings by extraction_date, optionally only
// those before a cursor timestamp. Used by the read API, not the pipeline.
func (s *ListingStore) Recent(ctx context.Context, limit int, before *time.Time) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM used_listings
	`
	args := []any{limit}
	if before != nil {
		query += ` WHERE extraction_date < $2`
		args = append(args, *before)
	}
	query += ` ORDER BY extraction_date DESC LIMIT $1`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(
			&l.Brand, &l.Model, &l.RAM, &l.Storage, &l.Condition, &l.PTAApproved,
			&l.IsPanelChanged, &l.ScreenCrack, &l.PanelDot, &l.PanelLine, &l.PanelShade,
			&l.CameraLensOK, &l.FingerprintOK, &l.WithBox, &l.WithCharger,
			&l.Price, &l.Images, &l.PostDate, &l.ListingSource, &l.City, &l.ExtractionDate,
		); err != nil {
			log.Printf("skipping listing, scan failed: %v", err)
			continue
		}
		listings = append(listings, l)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate recent listings: %w", rows.Err())
	}

	return listings, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"mobile-price-api/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ── Pattern escaping ──

func TestModelPatternEscapesRegexInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain model", "Pixel 6A", "Pixel 6A"},
		{"parentheses", "Pixel 6A (5G)", `Pixel 6A \(5G\)`},
		{"plus variant", "Galaxy S21+", `Galaxy S21\+`},
		{"dot wildcard", "X.1", `X\.1`},
		{"injection attempt", ".*", `\.\*`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := modelPattern(tt.in); got != tt.want {
				t.Errorf("modelPattern(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewListingStoreWindow(t *testing.T) {
	s := NewListingStore(nil, 30, 50)
	if s.freshness.Hours() != 30*24 {
		t.Errorf("freshness = %v hours, want %v", s.freshness.Hours(), 30*24)
	}
	if s.minSamples != 50 {
		t.Errorf("minSamples = %d, want 50", s.minSamples)
	}
}

// ── Fetch path against a fake database ──

// fakeRows plays back listings through the pgx.Rows interface, optionally
// failing Scan on selected row indexes.
type fakeRows struct {
	listings []models.Listing
	scanErrs map[int]error
	i        int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.listings) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	idx := r.i - 1
	if err, ok := r.scanErrs[idx]; ok {
		return err
	}
	l := r.listings[idx]
	*dest[0].(*string) = l.Brand
	*dest[1].(*string) = l.Model
	*dest[2].(**string) = l.RAM
	*dest[3].(**string) = l.Storage
	*dest[4].(*int) = l.Condition
	*dest[5].(**bool) = l.PTAApproved
	*dest[6].(**bool) = l.IsPanelChanged
	*dest[7].(**bool) = l.ScreenCrack
	*dest[8].(**bool) = l.PanelDot
	*dest[9].(**bool) = l.PanelLine
	*dest[10].(**bool) = l.PanelShade
	*dest[11].(**bool) = l.CameraLensOK
	*dest[12].(**bool) = l.FingerprintOK
	*dest[13].(**bool) = l.WithBox
	*dest[14].(**bool) = l.WithCharger
	*dest[15].(**float64) = l.Price
	*dest[16].(*[]string) = l.Images
	*dest[17].(**string) = l.PostDate
	*dest[18].(*string) = l.ListingSource
	*dest[19].(*string) = l.City
	*dest[20].(*time.Time) = l.ExtractionDate
	return nil
}

type fakeDB struct {
	rows     *fakeRows
	queryErr error
	lastSQL  string
	lastArgs []any
}

func (d *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.lastSQL = sql
	d.lastArgs = args
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	return d.rows, nil
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.lastSQL = sql
	d.lastArgs = args
	return pgconn.CommandTag{}, nil
}

func storedListings(n int) []models.Listing {
	price := 45000.0
	listings := make([]models.Listing, 0, n)
	for i := 0; i < n; i++ {
		listings = append(listings, models.Listing{
			Brand:          "Google",
			Model:          "Pixel 6A",
			Condition:      6 + i%5,
			Price:          &price,
			ExtractionDate: time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		})
	}
	return listings
}

func TestFetchTrainingDataInsufficient(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{listings: storedListings(3)}}
	s := NewListingStore(db, 30, 50)

	_, err := s.FetchTrainingData(context.Background(), "Pixel 6A")
	var insufficientErr *models.InsufficientDataError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficientErr.Found != 3 {
		t.Errorf("Found = %d, want 3 (the observed count)", insufficientErr.Found)
	}
	if insufficientErr.Required != 50 {
		t.Errorf("Required = %d, want 50", insufficientErr.Required)
	}
	if insufficientErr.Model != "Pixel 6A" {
		t.Errorf("Model = %q, want %q", insufficientErr.Model, "Pixel 6A")
	}
}

func TestFetchTrainingDataSkipsBadRowsBeforeGate(t *testing.T) {
	// 52 stored rows: one corrupt (scan error), two invalid (condition 0).
	// Only the 49 survivors count against the minimum.
	listings := storedListings(52)
	listings[10].Condition = 0
	listings[20].Condition = 0
	db := &fakeDB{rows: &fakeRows{
		listings: listings,
		scanErrs: map[int]error{5: fmt.Errorf("cannot scan NULL into int")},
	}}
	s := NewListingStore(db, 30, 50)

	_, err := s.FetchTrainingData(context.Background(), "Pixel 6A")
	var insufficientErr *models.InsufficientDataError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficientErr.Found != 49 {
		t.Errorf("Found = %d, want 49 (skipped rows must not count)", insufficientErr.Found)
	}
}

func TestFetchTrainingDataEnoughAfterSkips(t *testing.T) {
	listings := storedListings(52)
	listings[0].Condition = 0
	db := &fakeDB{rows: &fakeRows{listings: listings}}
	s := NewListingStore(db, 30, 50)

	got, err := s.FetchTrainingData(context.Background(), "Pixel 6A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 51 {
		t.Errorf("got %d listings, want 51", len(got))
	}
}

func TestFetchTrainingDataQueryWindow(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{listings: storedListings(50)}}
	s := NewListingStore(db, 30, 50)

	if _, err := s.FetchTrainingData(context.Background(), "Pixel 6A (5G)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(db.lastSQL, "model ~* $1") {
		t.Errorf("query must match model case-insensitively, got: %s", db.lastSQL)
	}
	if !strings.Contains(db.lastSQL, "extraction_date >= $2") {
		t.Errorf("query must bound extraction_date, got: %s", db.lastSQL)
	}
	if len(db.lastArgs) != 2 {
		t.Fatalf("got %d query args, want 2", len(db.lastArgs))
	}
	if db.lastArgs[0] != `Pixel 6A \(5G\)` {
		t.Errorf("pattern arg = %v, want escaped model name", db.lastArgs[0])
	}
	cutoff, ok := db.lastArgs[1].(time.Time)
	if !ok {
		t.Fatalf("cutoff arg = %T, want time.Time", db.lastArgs[1])
	}
	wantCutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if d := cutoff.Sub(wantCutoff); d < -time.Minute || d > time.Minute {
		t.Errorf("cutoff = %v, want ~30 days before now", cutoff)
	}
}

func TestFetchTrainingDataStoreErrorSurfaced(t *testing.T) {
	queryErr := errors.New("connection refused")
	db := &fakeDB{queryErr: queryErr}
	s := NewListingStore(db, 30, 50)

	_, err := s.FetchTrainingData(context.Background(), "Pixel 6A")
	if !errors.Is(err, queryErr) {
		t.Fatalf("store error must surface unchanged, got %v", err)
	}
	var insufficientErr *models.InsufficientDataError
	if errors.As(err, &insufficientErr) {
		t.Error("a store failure must not be reported as insufficient data")
	}
}

package pricing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mobile-price-api/config"
	"mobile-price-api/models"
)

type fakeSource struct {
	listings []models.Listing
	err      error
	calls    int
}

func (f *fakeSource) FetchTrainingData(ctx context.Context, model string) ([]models.Listing, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func testPricingConfig() config.PricingConfig {
	return config.PricingConfig{FreshnessDays: 30, MinSamples: 50, Trees: 30, Seed: 42}
}

// pixelListings builds n fresh "Pixel 6A" listings with prices around 45000.
func pixelListings(n int) []models.Listing {
	listings := make([]models.Listing, 0, n)
	for i := 0; i < n; i++ {
		ram := "6GB"
		if i%3 == 0 {
			ram = "4GB"
		}
		storage := "128GB"
		price := 43000 + float64(i%10)*400
		approved := true
		listings = append(listings, models.Listing{
			Brand:          "Google",
			Model:          "Pixel 6A",
			RAM:            &ram,
			Storage:        &storage,
			Condition:      6 + i%5,
			PTAApproved:    &approved,
			Price:          &price,
			ListingSource:  "OLX",
			City:           "Lahore",
			ExtractionDate: time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		})
	}
	return listings
}

func cleanPixelDevice() models.QueryDevice {
	ram := "4GB"
	storage := "128GB"
	approved := true
	ok := true
	no := false
	return models.QueryDevice{
		Brand:          "Google",
		Model:          "Pixel 6A",
		RAM:            &ram,
		Storage:        &storage,
		Condition:      9,
		PTAApproved:    &approved,
		IsPanelChanged: &no,
		ScreenCrack:    &no,
		PanelDot:       &no,
		PanelLine:      &no,
		PanelShade:     &no,
		CameraLensOK:   &ok,
		FingerprintOK:  &ok,
	}
}

func TestEstimateReturnsMultipleOf500NearSample(t *testing.T) {
	source := &fakeSource{listings: pixelListings(60)}
	estimator := NewEstimator(source, testPricingConfig())

	price, err := estimator.Estimate(context.Background(), cleanPixelDevice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price < 0 {
		t.Errorf("price = %d, want non-negative", price)
	}
	if price%500 != 0 {
		t.Errorf("price = %d, want a multiple of 500", price)
	}
	// Sample prices span 43000..46600; a clean device must land near that.
	if price < 42500 || price > 47500 {
		t.Errorf("price = %d, want near the sample's central tendency", price)
	}
}

func TestEstimateDeterministicForFixedSeed(t *testing.T) {
	source := &fakeSource{listings: pixelListings(60)}
	estimator := NewEstimator(source, testPricingConfig())

	first, err := estimator.Estimate(context.Background(), cleanPixelDevice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		got, err := estimator.Estimate(context.Background(), cleanPixelDevice())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != first {
			t.Fatalf("repeat run predicted %d, first run %d; same data and seed must match", got, first)
		}
	}
}

func TestEstimateScreenCrackStrictlyLower(t *testing.T) {
	source := &fakeSource{listings: pixelListings(60)}
	estimator := NewEstimator(source, testPricingConfig())

	clean, err := estimator.Estimate(context.Background(), cleanPixelDevice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cracked := cleanPixelDevice()
	yes := true
	cracked.ScreenCrack = &yes
	crackedPrice, err := estimator.Estimate(context.Background(), cracked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if crackedPrice >= clean {
		t.Errorf("cracked = %d, clean = %d; screen crack must lower the price", crackedPrice, clean)
	}
}

func TestEstimateMonotonicPerAdjustmentFlag(t *testing.T) {
	source := &fakeSource{listings: pixelListings(60)}
	estimator := NewEstimator(source, testPricingConfig())

	clean, err := estimator.Estimate(context.Background(), cleanPixelDevice())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	yes, no := true, false
	variants := map[string]func(*models.QueryDevice){
		"panel_changed":       func(q *models.QueryDevice) { q.IsPanelChanged = &yes },
		"panel_dot":           func(q *models.QueryDevice) { q.PanelDot = &yes },
		"panel_line":          func(q *models.QueryDevice) { q.PanelLine = &yes },
		"panel_shade":         func(q *models.QueryDevice) { q.PanelShade = &yes },
		"screen_crack":        func(q *models.QueryDevice) { q.ScreenCrack = &yes },
		"camera_lens_damaged": func(q *models.QueryDevice) { q.CameraLensOK = &no },
		"fingerprint_broken":  func(q *models.QueryDevice) { q.FingerprintOK = &no },
		"non_pta":             func(q *models.QueryDevice) { q.PTAApproved = &no },
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			device := cleanPixelDevice()
			mutate(&device)
			got, err := estimator.Estimate(context.Background(), device)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got > clean {
				t.Errorf("%s device = %d, clean = %d; defect must not raise the price", name, got, clean)
			}
		})
	}
}

func TestEstimateInsufficientData(t *testing.T) {
	source := &fakeSource{err: &models.InsufficientDataError{Model: "Pixel 6A", Found: 12, Required: 50}}
	estimator := NewEstimator(source, testPricingConfig())

	_, err := estimator.Estimate(context.Background(), cleanPixelDevice())
	var insufficientErr *models.InsufficientDataError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficientErr.Found != 12 {
		t.Errorf("Found = %d, want 12", insufficientErr.Found)
	}
}

func TestEstimateValidatesDevice(t *testing.T) {
	source := &fakeSource{listings: pixelListings(60)}
	estimator := NewEstimator(source, testPricingConfig())

	tests := []struct {
		name   string
		device models.QueryDevice
	}{
		{"missing model", models.QueryDevice{Condition: 8}},
		{"condition too low", models.QueryDevice{Model: "Pixel 6A", Condition: 0}},
		{"condition too high", models.QueryDevice{Model: "Pixel 6A", Condition: 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source.calls = 0
			_, err := estimator.Estimate(context.Background(), tt.device)
			var validationErr *models.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if source.calls != 0 {
				t.Error("store must not be queried for an invalid device")
			}
		})
	}
}

func TestEstimateImputationFailure(t *testing.T) {
	listings := pixelListings(60)
	for i := range listings {
		listings[i].RAM = nil
		listings[i].Storage = nil
	}
	source := &fakeSource{listings: listings}
	estimator := NewEstimator(source, testPricingConfig())

	_, err := estimator.Estimate(context.Background(), cleanPixelDevice())
	var impErr *models.ImputationError
	if !errors.As(err, &impErr) {
		t.Fatalf("expected ImputationError, got %v", err)
	}
}

func TestEstimateAllUnpriced(t *testing.T) {
	listings := pixelListings(60)
	for i := range listings {
		listings[i].Price = nil
	}
	source := &fakeSource{listings: listings}
	estimator := NewEstimator(source, testPricingConfig())

	_, err := estimator.Estimate(context.Background(), cleanPixelDevice())
	var fitErr *models.ModelFitError
	if !errors.As(err, &fitErr) {
		t.Fatalf("expected ModelFitError, got %v", err)
	}
}

func TestEstimatePropagatesStoreError(t *testing.T) {
	storeErr := fmt.Errorf("connection refused")
	source := &fakeSource{err: storeErr}
	estimator := NewEstimator(source, testPricingConfig())

	_, err := estimator.Estimate(context.Background(), cleanPixelDevice())
	if !errors.Is(err, storeErr) {
		t.Fatalf("store error must surface unchanged, got %v", err)
	}
}

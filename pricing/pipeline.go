package pricing

import (
	"context"
	"time"

	"mobile-price-api/config"
	"mobile-price-api/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	estimatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobileprice_estimates_total",
		Help: "Total number of price estimates returned.",
	})
	estimatesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobileprice_estimate_failures_total",
		Help: "Total number of estimate requests that failed.",
	})
	estimateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mobileprice_estimate_duration_seconds",
		Help:    "Duration of a full estimate pipeline run.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	})
)

// ListingSource supplies the fresh comparable-sale sample for a model name.
// Implemented by storage.ListingStore.
type ListingSource interface {
	FetchTrainingData(ctx context.Context, model string) ([]models.Listing, error)
}

// Estimator runs the estimation pipeline: fetch comparables, encode, fit an
// ephemeral forest, score the query device, apply adjustments, round. Nothing
// survives a request; two concurrent requests never share a model.
type Estimator struct {
	source ListingSource
	trees  int
	seed   int64
	rules  []AdjustmentRule
}

func NewEstimator(source ListingSource, cfg config.PricingConfig) *Estimator {
	return &Estimator{
		source: source,
		trees:  cfg.Trees,
		seed:   cfg.Seed,
		rules:  DefaultAdjustments,
	}
}

// Estimate returns the predicted resale price for the device, always a
// multiple of 500. The first failing stage aborts the request; no partial
// result is returned.
func (e *Estimator) Estimate(ctx context.Context, device models.QueryDevice) (int, error) {
	start := time.Now()
	defer func() {
		estimateDuration.Observe(time.Since(start).Seconds())
	}()

	if err := device.Validate(); err != nil {
		estimatesFailed.Inc()
		return 0, err
	}

	listings, err := e.source.FetchTrainingData(ctx, device.Model)
	if err != nil {
		estimatesFailed.Inc()
		return 0, err
	}

	rows, prices, fallback, err := EncodeListings(device.Model, listings)
	if err != nil {
		estimatesFailed.Inc()
		return 0, err
	}

	forest, err := TrainForest(rows, prices, e.trees, e.seed)
	if err != nil {
		estimatesFailed.Inc()
		return 0, err
	}

	queryRow := EncodeDevice(device, fallback)
	raw := forest.Predict(queryRow)
	adjusted := applyAdjustments(raw, device, e.rules)

	estimatesTotal.Inc()
	return roundToNearest500(adjusted), nil
}

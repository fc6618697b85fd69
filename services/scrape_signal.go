package services

import (
	"context"
	"log"
	"time"
)

// ScrapeRequestChannel is where the API asks the scraper fleet for fresh
// listings of a model it could not price.
const ScrapeRequestChannel = "phones:scrape:requests"

// LiveListingsChannel carries every listing the ingest daemon stores, as the
// raw scraper payload.
const LiveListingsChannel = "phones:listings:live"

type ScrapeRequest struct {
	Model       string    `json:"model"`
	Found       int       `json:"found"`
	Required    int       `json:"required"`
	RequestedAt time.Time `json:"requested_at"`
}

// ScrapeSignal publishes scrape requests over Redis pub/sub. Best effort:
// a failed publish is logged, the estimate response is not affected.
type ScrapeSignal struct {
	cache *CacheService
}

func NewScrapeSignal(cache *CacheService) *ScrapeSignal {
	return &ScrapeSignal{cache: cache}
}

func (s *ScrapeSignal) Request(ctx context.Context, model string, found, required int) {
	req := ScrapeRequest{
		Model:       model,
		Found:       found,
		Required:    required,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.cache.Publish(ctx, ScrapeRequestChannel, req); err != nil {
		log.Printf("scrape request publish failed for model=%q: %v", model, err)
		return
	}
	log.Printf("scrape requested for model=%q (found %d of %d)", model, found, required)
}

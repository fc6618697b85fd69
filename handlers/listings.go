package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"mobile-price-api/models"
	"mobile-price-api/services"
	"mobile-price-api/storage"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// listingPage is one cursor window over the listing feed. The cursor is the
// extraction_date of the last listing on the previous page, RFC3339Nano.
type listingPage struct {
	Limit  int
	Before *time.Time
}

type listingPageResponse struct {
	Data       []models.Listing `json:"data"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

func parseListingPage(c *gin.Context) listingPage {
	p := listingPage{Limit: defaultPageSize}

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			p.Limit = l
		}
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}

	if beforeStr := c.Query("before"); beforeStr != "" {
		if t, err := time.Parse(time.RFC3339Nano, beforeStr); err == nil {
			p.Before = &t
		}
	}

	return p
}

func (p listingPage) cursor() string {
	if p.Before == nil {
		return ""
	}
	return p.Before.Format(time.RFC3339Nano)
}

type ListingsHandler struct {
	store *storage.ListingStore
	cache *services.CacheService
}

func NewListingsHandler(store *storage.ListingStore, cache *services.CacheService) *ListingsHandler {
	return &ListingsHandler{store: store, cache: cache}
}

// GetRecent handles GET /api/v1/listings, newest first by extraction_date.
func (h *ListingsHandler) GetRecent(c *gin.Context) {
	p := parseListingPage(c)
	cacheKey := services.ListingPageKey(p.Limit, p.cursor())

	var cached listingPageResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	rows, err := h.store.Recent(c.Request.Context(), p.Limit+1, p.Before)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].ExtractionDate.Format(time.RFC3339Nano)
	}

	resp := listingPageResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
	go h.cache.Set(context.Background(), cacheKey, resp, services.ListingPageTTL)

	c.JSON(http.StatusOK, resp)
}

package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"mobile-price-api/models"
	"mobile-price-api/services"

	"github.com/gin-gonic/gin"
)

// Estimator is the pipeline entry point. Implemented by pricing.Estimator.
type Estimator interface {
	Estimate(ctx context.Context, device models.QueryDevice) (int, error)
}

type EstimateHandler struct {
	estimator Estimator
	scrape    *services.ScrapeSignal
}

func NewEstimateHandler(estimator Estimator, scrape *services.ScrapeSignal) *EstimateHandler {
	return &EstimateHandler{estimator: estimator, scrape: scrape}
}

// Estimate handles POST /api/v1/estimates. The body is a query device; the
// response is an integer price, always a multiple of 500. Failure kinds map
// to status codes so callers can branch without parsing messages.
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var device models.QueryDevice
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": "validation"})
		return
	}

	price, err := h.estimator.Estimate(c.Request.Context(), device)
	if err != nil {
		h.renderError(c, device, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model": device.Model,
		"price": price,
	})
}

func (h *EstimateHandler) renderError(c *gin.Context, device models.QueryDevice, err error) {
	var validationErr *models.ValidationError
	var insufficientErr *models.InsufficientDataError
	var imputationErr *models.ImputationError
	var fitErr *models.ModelFitError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
	case errors.As(err, &insufficientErr):
		// Ask the scraper fleet for fresh listings so a retry can succeed.
		if h.scrape != nil {
			go h.scrape.Request(context.Background(), insufficientErr.Model, insufficientErr.Found, insufficientErr.Required)
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":            err.Error(),
			"kind":             "insufficient_data",
			"found":            insufficientErr.Found,
			"required":         insufficientErr.Required,
			"scrape_requested": h.scrape != nil,
		})
	case errors.As(err, &imputationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": "imputation"})
	case errors.As(err, &fitErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": "model_fit"})
	default:
		log.Printf("estimate failed for model=%q: %v", device.Model, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "estimate failed", "kind": "internal"})
	}
}

package main

import (
	"context"
	"fmt"
	"log"

	"mobile-price-api/config"
	"mobile-price-api/handlers"
	"mobile-price-api/middleware"
	"mobile-price-api/pricing"
	"mobile-price-api/services"
	"mobile-price-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbPool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("db pool init failed: %v", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatalf("db ping failed: %v", err)
	}
	log.Printf("db connected")

	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		// Degrade: listing pages go uncached and scrape requests are dropped.
		log.Printf("redis unavailable: %v", err)
	}
	defer cache.Close()

	store := storage.NewListingStore(dbPool, cfg.Pricing.FreshnessDays, cfg.Pricing.MinSamples)
	estimator := pricing.NewEstimator(store, cfg.Pricing)
	scrape := services.NewScrapeSignal(cache)

	estimateHandler := handlers.NewEstimateHandler(estimator, scrape)
	listingsHandler := handlers.NewListingsHandler(store, cache)

	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "UP",
			"message": "Mobile Price API is running",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/estimates", estimateHandler.Estimate)
		v1.GET("/listings", listingsHandler.GetRecent)
		v1.GET("/listings/live", handlers.LiveWebSocket(cache))
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

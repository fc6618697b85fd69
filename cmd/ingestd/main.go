package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mobile-price-api/config"
	"mobile-price-api/models"
	"mobile-price-api/services"
	"mobile-price-api/storage"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// imageList accepts both a JSON array of URLs and the comma-joined string
// some scrapers still publish.
type imageList []string

func (l *imageList) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err == nil {
		*l = urls
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*l = nil
	for _, part := range strings.Split(joined, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			*l = append(*l, trimmed)
		}
	}
	return nil
}

// ListingPayload is what scraper collaborators publish. extraction_date is
// never taken from the payload; the ingest boundary stamps it.
type ListingPayload struct {
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
	Images         imageList `json:"images"`
	PostDate       *string   `json:"post_date"`
	ListingSource  string    `json:"listing_source"`
	City           string    `json:"city"`
}

var (
	msgsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobileprice_ingest_messages_received_total",
		Help: "Total number of MQTT listing messages received.",
	})
	msgsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobileprice_ingest_messages_stored_total",
		Help: "Total number of listings successfully inserted.",
	})
	msgsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mobileprice_ingest_messages_failed_total",
		Help: "Total number of listings rejected or failed to store.",
	})
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	metricsAddr := getEnv("METRICS_ADDR", ":8081")

	dbPool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("db pool init failed: %v", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatalf("db ping failed: %v", err)
	}

	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("redis unavailable, live feed disabled: %v", err)
	}
	defer cache.Close()

	store := storage.NewListingStore(dbPool, cfg.Pricing.FreshnessDays, cfg.Pricing.MinSamples)

	go serveHTTP(metricsAddr)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.URL)
	opts.SetClientID("ingestd-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(client mqtt.Client, message mqtt.Message) {
		processMessage(ctx, store, cache, message.Payload())
	})
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(cfg.MQTT.Topic, 0, nil)
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqtt subscribe error: %v", token.Error())
			return
		}
		log.Printf("ingestd subscribed to topic=%s", cfg.MQTT.Topic)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		log.Fatalf("mqtt connection failed: %v", token.Error())
	}

	log.Printf("ingestd running, mqtt=%s db=ok metrics=%s", cfg.MQTT.URL, metricsAddr)

	<-ctx.Done()
	log.Printf("ingestd shutting down")
	client.Disconnect(250)
}

func serveHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("metrics server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("metrics server failed: %v", err)
	}
}

func processMessage(ctx context.Context, store *storage.ListingStore, cache *services.CacheService, payloadRaw []byte) {
	msgsReceived.Inc()

	var payload ListingPayload
	if err := json.Unmarshal(payloadRaw, &payload); err != nil {
		msgsFailed.Inc()
		log.Printf("invalid payload: %v", err)
		return
	}

	listing := models.Listing{
		Brand:          payload.Brand,
		Model:          payload.Model,
		RAM:            payload.RAM,
		Storage:        payload.Storage,
		Condition:      payload.Condition,
		PTAApproved:    payload.PTAApproved,
		IsPanelChanged: payload.IsPanelChanged,
		ScreenCrack:    payload.ScreenCrack,
		PanelDot:       payload.PanelDot,
		PanelLine:      payload.PanelLine,
		PanelShade:     payload.PanelShade,
		CameraLensOK:   payload.CameraLensOK,
		FingerprintOK:  payload.FingerprintOK,
		WithBox:        payload.WithBox,
		WithCharger:    payload.WithCharger,
		Price:          payload.Price,
		Images:         payload.Images,
		PostDate:       payload.PostDate,
		ListingSource:  payload.ListingSource,
		City:           payload.City,
		ExtractionDate: time.Now().UTC(),
	}

	if err := listing.Validate(); err != nil {
		msgsFailed.Inc()
		log.Printf("rejecting listing: %v", err)
		return
	}

	if err := store.Insert(ctx, &listing); err != nil {
		msgsFailed.Inc()
		log.Printf("db insert failed: %v", err)
		return
	}

	msgsStored.Inc()

	if cache.Available() {
		if err := cache.Client().Publish(ctx, services.LiveListingsChannel, payloadRaw).Err(); err != nil {
			log.Printf("live publish failed: %v", err)
		}
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	CORS     CORSConfig
	Pricing  PricingConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type MQTTConfig struct {
	URL   string
	Topic string
}

type CORSConfig struct {
	AllowedOrigins string
}

// PricingConfig holds the knobs of the estimation pipeline. The defaults
// mirror the marketplace dataset this system was tuned on: listings older
// than 30 days are stale, and fewer than 50 comparables is not enough to
// fit a usable model.
type PricingConfig struct {
	FreshnessDays int
	MinSamples    int
	Trees         int
	Seed          int64
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

func LoadConfig() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	freshnessDays, err := getIntEnv("PRICING_FRESHNESS_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICING_FRESHNESS_DAYS: %w", err)
	}

	minSamples, err := getIntEnv("PRICING_MIN_SAMPLES", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICING_MIN_SAMPLES: %w", err)
	}

	trees, err := getIntEnv("PRICING_TREES", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICING_TREES: %w", err)
	}

	seed, err := getIntEnv("PRICING_SEED", 42)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICING_SEED: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "mobileprice"),
			Password: getEnv("DB_PASSWORD", "mobileprice_dev_password"),
			Name:     getEnv("DB_NAME", "mobileprice"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		MQTT: MQTTConfig{
			URL:   getEnv("MQTT_URL", "tcp://localhost:1883"),
			Topic: getEnv("MQTT_TOPIC", "phones/listings/+"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Pricing: PricingConfig{
			FreshnessDays: freshnessDays,
			MinSamples:    minSamples,
			Trees:         trees,
			Seed:          int64(seed),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

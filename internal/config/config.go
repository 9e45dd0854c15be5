// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration, built once in main and handed
// down; there are no process-wide config singletons.
type Config struct {
	Addr        string
	DatabaseDSN string

	RedisAddr     string // empty disables Redis (in-memory limiter, no cache)
	RedisPassword string
	RedisDB       int

	VoucherRadiusKm float64

	PlacesAPIKey  string
	PlacesCountry string
}

// Load reads configuration from environment variables, with a local .env
// file as a development convenience.
func Load() (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:            ":8080",
		VoucherRadiusKm: 2,
		PlacesCountry:   "au",
	}

	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}

	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN environment variable is required")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", db, err)
		}
		cfg.RedisDB = n
	}

	if radius := os.Getenv("VOUCHER_RADIUS_KM"); radius != "" {
		r, err := strconv.ParseFloat(radius, 64)
		if err != nil || r <= 0 {
			return nil, fmt.Errorf("invalid VOUCHER_RADIUS_KM %q", radius)
		}
		cfg.VoucherRadiusKm = r
	}

	cfg.PlacesAPIKey = os.Getenv("GOOGLE_PLACES_API_KEY")
	if country := os.Getenv("PLACES_COUNTRY"); country != "" {
		cfg.PlacesCountry = country
	}

	return cfg, nil
}

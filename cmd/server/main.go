// Command server starts the voucherd HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lootlocal/voucherd/internal/cache"
	"github.com/lootlocal/voucherd/internal/config"
	"github.com/lootlocal/voucherd/internal/limiter"
	"github.com/lootlocal/voucherd/internal/migrate"
	"github.com/lootlocal/voucherd/internal/places"
	"github.com/lootlocal/voucherd/internal/repository/postgres"
	apihttp "github.com/lootlocal/voucherd/internal/server/http"
	"github.com/lootlocal/voucherd/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// Rate limit tiers, requests per minute per client IP. The places tiers are
// tighter because every request spends upstream API quota.
const (
	standardLimit     = 30
	autocompleteLimit = 20
	detailsLimit      = 10
	limitWindow       = time.Minute
)

// main loads configuration, runs migrations, and starts the HTTP server.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional: without it the cache is a no-op and rate limits
	// apply per process.
	var (
		store cache.Cache = cache.Noop{}
		lims  apihttp.Limiters
	)
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		store = cache.NewRedis(client)
		lims = apihttp.Limiters{
			Standard:     limiter.NewRedis(client, "standard", standardLimit, limitWindow),
			Autocomplete: limiter.NewRedis(client, "autocomplete", autocompleteLimit, limitWindow),
			Details:      limiter.NewRedis(client, "details", detailsLimit, limitWindow),
		}
	} else {
		logger.Warn("no REDIS_ADDR configured, using in-memory rate limits and no cache")
		std := limiter.NewMemory(limitWindow, standardLimit)
		auto := limiter.NewMemory(limitWindow, autocompleteLimit)
		det := limiter.NewMemory(limitWindow, detailsLimit)
		defer std.Close()
		defer auto.Close()
		defer det.Close()
		lims = apihttp.Limiters{Standard: std, Autocomplete: auto, Details: det}
	}

	userRepo := postgres.NewUserRepo(db)
	discountRepo := postgres.NewDiscountRepo(db)
	storeRepo := postgres.NewStoreRepo(db)
	claimRepo := postgres.NewClaimRepo(db)

	svc := service.New(userRepo, discountRepo, storeRepo, claimRepo, store, logger, cfg.VoucherRadiusKm)

	var placesHandler *apihttp.PlacesHandler
	if cfg.PlacesAPIKey != "" {
		placesHandler = apihttp.NewPlacesHandler(places.New(cfg.PlacesAPIKey, cfg.PlacesCountry), logger)
	} else {
		logger.Warn("no GOOGLE_PLACES_API_KEY configured, places endpoints disabled")
	}

	router := apihttp.NewRouter(apihttp.NewVoucherHandler(svc, logger), placesHandler, lims, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

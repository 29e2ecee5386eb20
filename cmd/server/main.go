package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pokedan/cardwatch/backend/internal/api"
	"github.com/pokedan/cardwatch/backend/internal/collection"
	"github.com/pokedan/cardwatch/backend/internal/config"
	"github.com/pokedan/cardwatch/backend/internal/database"
	"github.com/pokedan/cardwatch/backend/internal/logging"
	"github.com/pokedan/cardwatch/backend/internal/rates"
	"github.com/pokedan/cardwatch/backend/internal/scrape"
)

func main() {
	cfg, err := config.Load(os.Getenv("CARDWATCH_CONFIG"))
	if err != nil {
		fallback := logging.NewLogger(logging.Config{})
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.NewLogger(cfg.Logging)

	// Initialize database (rate cache persistence + snapshot history). An
	// unusable store degrades to memory-only operation, it never blocks startup.
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Database.Path).Msg("could not open database, continuing without persistence")
		db = nil
	}

	// Currency rate cache with ordered provider fallback
	rateCache := rates.NewCache(db, rates.NewProviders(cfg.Rates), cfg.Rates.TTL, logger)

	// Listing scraper
	listingClient := scrape.NewListingClient(cfg.Listing, logger)
	extractor := scrape.NewExtractor(nil, logger)

	// High-res image resolver with LRU cache over detail-page fetches
	imageResolver, err := collection.NewHTTPImageResolver(cfg.Listing.BaseURL, cfg.Images, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize image resolver")
	}

	pipeline := collection.NewPipeline(
		listingClient,
		extractor,
		rateCache,
		imageResolver,
		cfg.Listing.MaxPages,
		cfg.Images.Concurrency,
		logger,
	)

	service := collection.NewService(pipeline, collection.NewHistory(db), cfg.Refresh.Interval, logger)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background refresh worker: the external scheduler driving the pipeline
	go service.Start(ctx)

	router := api.SetupRouter(cfg.Server, service)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("seller", cfg.Listing.Seller).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	// Stop the refresh worker
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

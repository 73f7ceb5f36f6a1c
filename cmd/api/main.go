package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gallery/internal/adapter/repo"
	"gallery/internal/export"
	"gallery/internal/http/handlers"
	"gallery/internal/http/httpapi"
	"gallery/internal/imaging"
	"gallery/internal/infra"
	"gallery/internal/infra/geoip"
	"gallery/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	var geo geoip.CountryResolver
	if cfg.GeoIPDBPath != "" {
		geo, err = geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip database unavailable, country resolution disabled")
		}
	}

	signer, err := storage.NewHMACSigner(cfg.StorageBaseURL, cfg.StorageSignSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid storage configuration")
	}

	collections := repo.NewCollectionRepository(dbpool)
	profiles := repo.NewProfileRepository(dbpool)
	history := repo.NewHistoryRepository(dbpool)

	fetcher := export.NewFetcher(signer, logger, export.FetcherOptions{
		Retries:      cfg.ExportFetchRetries,
		Timeout:      cfg.ExportFetchTimeout,
		SignedURLTTL: cfg.SignedURLTTL,
	})
	recorder := export.NewRecorder(collections, history, geo, logger)
	exports := export.NewService(collections, profiles, fetcher, imaging.NewTransformer(), recorder, export.Options{
		Concurrency: cfg.ExportConcurrency,
		ZipLevel:    cfg.ExportZipLevel,
		MaxAssets:   cfg.ExportMaxAssets,
	}, logger)

	app := handlers.NewApp(cfg, logger, exports)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

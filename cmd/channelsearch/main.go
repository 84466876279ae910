// Package main wires together the channel catalog service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openvideo/channelsearch/internal/api"
	"github.com/openvideo/channelsearch/internal/config"
	"github.com/openvideo/channelsearch/internal/export"
	"github.com/openvideo/channelsearch/internal/fetch"
	"github.com/openvideo/channelsearch/internal/logging"
	"github.com/openvideo/channelsearch/internal/metrics"
	"github.com/openvideo/channelsearch/internal/pipeline"
	"github.com/openvideo/channelsearch/internal/scraper"
	"github.com/openvideo/channelsearch/internal/sitemap"
	"github.com/openvideo/channelsearch/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewChannelStore(ctx, postgres.ChannelStoreConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer store.Close()

	pageFetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.ScrapeTimeout(),
	})
	source := sitemap.New(pageFetcher, cfg.Sitemap.URL, logger.Named("sitemap"))
	pageScraper := scraper.New(pageFetcher, logger.Named("scraper"))
	indexer := pipeline.New(source, pageScraper, store, logger.Named("pipeline"))

	exporter, err := export.New(store, cfg.Export.Path, logger.Named("export"))
	if err != nil {
		logger.Fatal("exporter init failed", zap.Error(err))
	}

	apiServer := api.NewServer(store, indexer, exporter, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

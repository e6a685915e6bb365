package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/civitaslabs/fedwatch/internal/api"
	"github.com/civitaslabs/fedwatch/internal/config"
	"github.com/civitaslabs/fedwatch/internal/indexer"
	"github.com/civitaslabs/fedwatch/internal/registry"
	"github.com/civitaslabs/fedwatch/internal/relevance"
	"github.com/civitaslabs/fedwatch/internal/storage"
	fwsync "github.com/civitaslabs/fedwatch/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, sync worker, and scheduler (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "fedwatch version %s\n", version)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Server.APIToken == "" {
		return fmt.Errorf("missing API token: set server.apiToken in the config file or FEDWATCH_API_TOKEN")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	orch := buildOrchestrator(cfg, store, logger)
	worker := fwsync.NewWorker(store, orch, time.Duration(cfg.Sync.PollInterval), logger)
	scheduler := fwsync.NewScheduler(store, time.Duration(cfg.Sync.Interval), logger)

	taxonomy := relevance.DefaultTaxonomy()
	handler := api.NewHandler(api.AppDeps{
		Store:    store,
		Scorer:   relevance.NewScorer(taxonomy),
		Taxonomy: taxonomy,
		Weights:  cfg.Scoring.Weights,
		Token:    cfg.Server.APIToken,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("fedwatch listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildOrchestrator wires the sync pipeline from config. The indexer is only
// attached when a base URL is configured.
func buildOrchestrator(cfg config.Config, store *storage.Store, logger *slog.Logger) *fwsync.Orchestrator {
	regClient := registry.NewClient(registry.Options{
		BaseURL:           cfg.Registry.BaseURL,
		RequestsPerMinute: cfg.Registry.RequestsPerMinute,
		PerPage:           cfg.Registry.PerPage,
	})

	var idx fwsync.DocumentIndexer
	if cfg.Indexer.BaseURL != "" {
		idx = indexer.New(cfg.Indexer.BaseURL, cfg.Indexer.APIKey, nil)
	}

	taxonomy := relevance.DefaultTaxonomy()
	scorer := relevance.NewScorer(taxonomy)
	notifier := fwsync.NewNotifier(store, scorer, taxonomy, cfg.Scoring.Weights, logger)
	refresher := fwsync.NewRefresher(regClient, store, logger)
	return fwsync.NewOrchestrator(regClient, store, notifier, refresher, idx, logger)
}

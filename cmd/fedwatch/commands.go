package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/civitaslabs/fedwatch/internal/config"
	"github.com/civitaslabs/fedwatch/internal/domain"
	"github.com/civitaslabs/fedwatch/internal/storage"
	fwsync "github.com/civitaslabs/fedwatch/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the Federal Register",
	Long: `Run one sync pass against the Federal Register.

Examples:
  fedwatch sync
  fedwatch sync --days 7 --type RULE --type PRORULE
  fedwatch sync --agency environmental-protection-agency`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		rawTypes, _ := cmd.Flags().GetStringSlice("type")
		agency, _ := cmd.Flags().GetString("agency")

		types := make([]domain.DocumentType, 0, len(rawTypes))
		known := map[domain.DocumentType]struct{}{}
		for _, t := range domain.DefaultDocumentTypes() {
			known[t] = struct{}{}
		}
		for _, raw := range rawTypes {
			t := domain.DocumentType(raw)
			if _, ok := known[t]; !ok {
				return fmt.Errorf("unknown document type %q (valid: RULE, PRORULE, NOTICE, PRESDOCU)", raw)
			}
			types = append(types, t)
		}

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch := buildOrchestrator(cfg, store, logger)
		summary, err := orch.Run(ctx, fwsync.Request{
			Type:          fwsync.JobManualSync,
			DocumentTypes: types,
			DaysBack:      days,
			AgencySlug:    agency,
		})
		if err != nil {
			return err
		}

		printStatus("Fetched", "%d", summary.DocumentsFetched)
		printStatus("Stored", "%d", summary.DocumentsStored)
		printStatus("Notifications", "%d", summary.NotificationsCreated)
		printStatus("Opportunities", "%d", summary.OpportunitiesRefreshed)
		printSuccess("Sync %s completed", summary.SyncLogID)
		return nil
	},
}

func init() {
	syncCmd.Flags().Int("days", 0, "how many days back to fetch (default 1)")
	syncCmd.Flags().StringSlice("type", nil, "document types to fetch (default all)")
	syncCmd.Flags().String("agency", "", "restrict the fetch to one agency slug")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored counts and recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		docs, err := store.CountDocuments()
		if err != nil {
			return fmt.Errorf("counting documents: %w", err)
		}
		notifications, err := store.CountNotifications()
		if err != nil {
			return fmt.Errorf("counting notifications: %w", err)
		}

		printStatus("Documents", "%d", docs)
		printStatus("Notifications", "%d", notifications)

		logs, err := store.ListRecentSyncLogs(5)
		if err != nil {
			return fmt.Errorf("listing sync runs: %w", err)
		}
		if len(logs) == 0 {
			printStatus("Syncs", "none yet")
			return nil
		}
		for _, log := range logs {
			printStatus("Sync "+log.StartedAt.Format("2006-01-02 15:04"),
				"%s %s (fetched %d, stored %d, notified %d)",
				log.SyncType, log.Status, log.DocumentsFetched, log.DocumentsStored, log.NotificationsCreated)
		}
		return nil
	},
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-photosync/internal/config"
	"go-photosync/internal/downloader"
	"go-photosync/internal/photos"
	"go-photosync/internal/prober"
	"go-photosync/internal/reconciler"
	"go-photosync/internal/store"
	"go-photosync/internal/syncer"
)

var (
	syncCatalogFlag     string
	syncSinceFlag       string
	syncRecentFlag      int
	syncConcurrencyFlag int
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local store against the catalog and download what is missing",
	Long: `Sync walks the catalog, compares every asset against the tracking database
and the files on disk, and downloads only the renditions that are missing,
drifted or corrupted. Interrupted runs resume where they left off.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncCatalogFlag, "catalog", "", "Path of the JSON catalog manifest to sync from")
	syncCmd.Flags().StringVar(&syncSinceFlag, "since", "", "Only sync assets created at or after this RFC 3339 instant")
	syncCmd.Flags().IntVar(&syncRecentFlag, "recent", 0, "Only sync the N most recent assets (0 means all)")
	syncCmd.Flags().IntVarP(&syncConcurrencyFlag, "concurrency", "c", 0, "Number of concurrent downloads (0 uses config default)")
}

// collectSyncFlags picks up sync-scoped flags the user explicitly set. For
// commands that don't define them, Changed reports false across the board.
func collectSyncFlags(cmd *cobra.Command) *config.CliSyncFlags {
	set := cmd.Flags()
	flags := &config.CliSyncFlags{}
	changed := false
	if set.Changed("catalog") {
		flags.Catalog = &syncCatalogFlag
		changed = true
	}
	if set.Changed("since") {
		flags.Since = &syncSinceFlag
		changed = true
	}
	if set.Changed("recent") {
		flags.Recent = &syncRecentFlag
		changed = true
	}
	if set.Changed("concurrency") {
		flags.Concurrency = &syncConcurrencyFlag
		changed = true
	}
	if !changed {
		return nil
	}
	return flags
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	if cfg.Sync.Catalog == "" {
		return fmt.Errorf("no catalog configured (set --catalog or Sync.Catalog in config)")
	}

	if err := os.MkdirAll(cfg.SavePath, 0750); err != nil {
		return fmt.Errorf("failed to create save path %s: %w", cfg.SavePath, err)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	var src photos.Source = photos.NewCatalogSource(cfg.Sync.Catalog)
	if since := config.SinceTime(cfg); !since.IsZero() {
		src = photos.Since(src, since)
	}
	if cfg.Sync.Recent > 0 {
		src = photos.Recent(src, cfg.Sync.Recent)
	}

	p := prober.New(cfg.SavePath)
	dl := downloader.New(nil, cfg.SavePath,
		cfg.MaxRetries,
		time.Duration(cfg.InitialRetryDelayMs)*time.Millisecond,
		time.Duration(cfg.DownloadTimeoutSec)*time.Second)

	writer := uilive.New()
	writer.Start()
	defer writer.Stop()

	orch := syncer.New(db, p, reconciler.New(db, p), dl, cfg.Sync.Concurrency, writer)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := orch.Run(ctx, src)

	fmt.Fprintf(writer.Bypass(), "Sync complete: %s\n", summary)
	for _, skipped := range summary.Skipped {
		log.Warnf("Skipped asset %s: %s", skipped.AssetID, skipped.Reason)
	}
	for _, failed := range summary.Failed {
		log.Warnf("Failed %s/%s (%s): %s", failed.AssetID, failed.Kind, failed.Class, failed.Err)
	}

	if runErr != nil {
		return fmt.Errorf("sync aborted: %w", runErr)
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("sync finished with %d failed download(s)", len(summary.Failed))
	}
	return nil
}

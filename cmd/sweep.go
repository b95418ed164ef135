package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/glefebvre/guidepost/internal/assets"
	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/logger"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove stale files from the image cache",
	Long: `Scan the image cache and remove files older than the retention period
(images.retention_days, default 14).

An import already sweeps the files it did not use. Run this when imports are
disabled or to reclaim space between runs. The cache is locked while sweeping,
so a concurrent import is never disturbed.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		retentionDays, _ := cmd.Flags().GetInt("retention-days")

		cfg := config.Get()
		log := logger.AppLogger()

		if retentionDays <= 0 {
			retentionDays = cfg.Images.RetentionDays
		}

		fmt.Println("=== Image Cache Sweep ===")
		if dryRun {
			fmt.Println("Mode: DRY RUN (no files will be deleted)")
		}
		fmt.Printf("Cache directory: %s\n", cfg.Images.CacheDir)
		fmt.Printf("Retention: %d days\n\n", retentionDays)

		deleted, err := sweepCache(cfg.Images.CacheDir, time.Duration(retentionDays)*24*time.Hour, dryRun, log)
		if errors.Is(err, assets.ErrLocked) {
			fmt.Fprintln(os.Stderr, "The image cache is in use by another run, try again later")
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sweep: %v\n", err)
			os.Exit(1)
		}

		if dryRun {
			fmt.Printf("\n%d files would be removed\n", deleted)
			return
		}
		fmt.Printf("\nSweep complete: %d files removed\n", deleted)
	},
}

// sweepCache locks dir, removes stale files and releases the lock before returning
func sweepCache(dir string, retention time.Duration, dryRun bool, log *logger.Logger) (int, error) {
	storage, err := assets.NewDiskStorage(dir, 0)
	if err != nil {
		return 0, err
	}

	cache, err := assets.Open(assets.Options{
		ProxyAvailable: true,
		Retention:      retention,
		DryRun:         dryRun,
		Logger:         log,
	}, storage, nil)
	if err != nil {
		return 0, err
	}

	deleted, err := cache.Sweep()
	if cerr := cache.Close(); cerr != nil {
		log.Error("Failed to release the image cache lock", cerr)
	}
	return deleted, err
}

func init() {
	sweepCmd.Flags().Bool("dry-run", false, "list files that would be removed without deleting them")
	sweepCmd.Flags().Int("retention-days", 0, "override images.retention_days")
}

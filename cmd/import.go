package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/database"
	apperrors "github.com/glefebvre/guidepost/internal/errors"
	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/metrics"
	"github.com/glefebvre/guidepost/internal/processor"
	"github.com/glefebvre/guidepost/internal/report"
	"github.com/glefebvre/guidepost/internal/shutdown"
)

var importCmd = &cobra.Command{
	Use:   "import [feed]",
	Short: "Import an XMLTV feed into the guide",
	Long: `Read an XMLTV feed (a local file, optionally gzip, bzip2 or xz compressed,
or an http(s) URL) and merge its channels and programmes into the guide.

When no feed is given, feed.path from the configuration is used.

The command will:
- Build one ordered schedule per channel, dropping programmes with unknown
  channels or unusable start/stop times
- Map genres onto the category table and record unknown genres
- Normalize episode numbering and classify programmes
- Mirror channel and programme images into the image cache
- Apply channel overrides and replace the imported window in the guide

Use --dry-run to see the summary without writing anything.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		noImages, _ := cmd.Flags().GetBool("no-images")
		formatFlag, _ := cmd.Flags().GetString("format")
		noDatabase, _ := cmd.Flags().GetBool("no-database")

		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --format: %v\n", err)
			os.Exit(1)
		}

		cfg := config.Get()
		log := logger.AppLogger()

		shutdownHandler := shutdown.New(30 * time.Second)
		shutdownHandler.Listen()
		ctx := shutdownHandler.Context(context.Background())

		var db *gorm.DB
		if !noDatabase {
			db = openDatabase()
			shutdownHandler.Register("database", func(ctx context.Context) error {
				log.Debug("closing database connection")
				return database.Close()
			})
		}

		source := ""
		if len(args) == 1 {
			source = args[0]
		}

		importer := processor.NewImporter(cfg, db, metrics.Default(), log)
		rep, err := importer.Import(ctx, processor.ImportOptions{
			Source:   source,
			DryRun:   dryRun,
			NoImages: noImages,
		})

		if rep != nil && rep.Result != nil {
			if werr := report.FromImport(rep).Write(os.Stdout, format); werr != nil {
				log.Error("Failed to write report", werr)
			}
		}

		if serr := shutdownHandler.Shutdown(); serr != nil {
			log.Error("Shutdown hooks failed", serr)
		}

		if err != nil {
			log.WithFields(map[string]interface{}{
				"code":  string(apperrors.GetErrorCode(err)),
				"fatal": apperrors.IsFatal(err),
			}).Error("Import failed", err)
			os.Exit(1)
		}
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "build and report without writing to the guide or the image cache")
	importCmd.Flags().Bool("no-images", false, "leave image references untouched")
	importCmd.Flags().String("format", "auto", "summary format: auto, table or json")
	importCmd.Flags().Bool("no-database", false, "run without a database (empty category table, nothing persisted)")
}

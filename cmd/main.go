package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/database"
	"github.com/glefebvre/guidepost/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "guidepost",
	Short: "Guidepost imports XMLTV guide data into a normalized programme guide",
	Long: `Guidepost reads XMLTV feeds, normalizes channels, programme times, categories
and episode numbering, mirrors artwork into a local cache and merges the result
into a guide database that can be served over a small REST API.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Guidepost",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Guidepost %s\n", version)
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	// Skip config loading for version command
	if len(os.Args) > 1 && os.Args[1] == "version" {
		return
	}

	if err := config.LoadFrom(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()
	logger.InitializeLoggersWithFormat(cfg.GetAppLogLevel(), cfg.GetDatabaseLogLevel(), cfg.Logging.Format)
}

// openDatabase connects to the configured database or exits
func openDatabase() *gorm.DB {
	if err := database.Initialize(); err != nil {
		logger.AppLogger().Error("Failed to initialize database", err)
		os.Exit(1)
	}
	return database.Get()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

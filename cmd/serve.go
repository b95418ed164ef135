package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/glefebvre/guidepost/internal/api"
	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/database"
	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/metrics"
	"github.com/glefebvre/guidepost/internal/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the guide over a read-only REST API",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		cfg := config.Get()
		log := logger.AppLogger()
		if port <= 0 {
			port = cfg.API.Port
		}
		if cfg.GetAppLogLevel() != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		db := openDatabase()

		shutdownHandler := shutdown.New(30 * time.Second)
		shutdownHandler.Register("database", func(ctx context.Context) error {
			log.Debug("closing database connection")
			return database.Close()
		})
		shutdownHandler.Listen()
		ctx := shutdownHandler.Context(context.Background())

		server := api.NewServer(db, cfg.API, metrics.Default(), log)
		if err := server.Run(ctx, port); err != nil {
			log.Error("API server failed", err)
			shutdownHandler.Shutdown()
			os.Exit(1)
		}

		if err := shutdownHandler.Shutdown(); err != nil {
			log.Error("Shutdown hooks failed", err)
		}
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default api.port)")
}

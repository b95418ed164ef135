package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/metrics"
	"github.com/glefebvre/guidepost/internal/store"
)

// Server represents the API server
type Server struct {
	router  *gin.Engine
	db      *gorm.DB
	guide   *store.GuideStore
	cats    *store.CategoryStore
	runs    *store.RunStore
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewServer creates a new API server instance
func NewServer(db *gorm.DB, cfg config.APIConfig, rec *metrics.Recorder, log *logger.Logger) *Server {
	if log == nil {
		log = logger.AppLogger()
	}
	if rec == nil {
		rec = metrics.Default()
	}

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(errorHandlerMiddleware(log))
	router.Use(metricsMiddleware(rec))
	if c, ok := corsConfig(cfg.CORSOrigins); ok {
		router.Use(cors.New(c))
	}

	s := &Server{
		router:  router,
		db:      db,
		guide:   store.NewGuideStore(db),
		cats:    store.NewCategoryStore(db),
		runs:    store.NewRunStore(db),
		metrics: rec,
		logger:  log,
	}

	s.setupRoutes()

	return s
}

// Handler exposes the router, used by tests and custom listeners
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on port until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(map[string]interface{}{"port": port}).Info("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		// Guide
		v1.GET("/channels", s.listChannels)
		v1.GET("/channels/:id", s.getChannel)
		v1.GET("/channels/:id/schedule", s.getSchedule)

		// Category table and ledger
		v1.GET("/categories", s.listCategories)
		v1.GET("/categories/undefined", s.listUndefined)

		// Import history
		v1.GET("/runs", s.listRuns)
	}
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c, true
		}
	}
	c.AllowOrigins = origins
	return c, true
}

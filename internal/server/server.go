// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vidfeed/internal/api"
	"github.com/stwalsh4118/vidfeed/internal/banner"
	"github.com/stwalsh4118/vidfeed/internal/catalog"
	"github.com/stwalsh4118/vidfeed/internal/config"
	"github.com/stwalsh4118/vidfeed/internal/db"
	"github.com/stwalsh4118/vidfeed/internal/logger"
	"github.com/stwalsh4118/vidfeed/internal/middleware"
	"github.com/stwalsh4118/vidfeed/internal/notify"
	"github.com/stwalsh4118/vidfeed/internal/playback"
	"github.com/stwalsh4118/vidfeed/internal/session"
)

// Server represents the HTTP server
type Server struct {
	config    *config.Config
	db        *db.DB
	repos     *db.Repositories
	catalog   *catalog.Client
	playback  *playback.Service
	sdkLoader playback.Loader
	sessions  *session.Manager
	poller    *notify.Poller
	carousel  *banner.Carousel
	router    *gin.Engine
	server    *http.Server

	// sdkCancel stops the background SDK preload on shutdown
	sdkCancel context.CancelFunc
	sdkDone   sync.WaitGroup
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)

	catalogClient, err := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}

	// Players are built per socket, so the service has no default factory.
	playbackService := playback.NewService(playback.NewGate(), playback.NewRegistry(), nil, cfg.Playback.Origin)
	sdkLoader := playback.HTTPLoader(&http.Client{Timeout: cfg.Playback.LoadTimeout}, cfg.Playback.SDKURL)

	carousel := banner.NewCarousel(catalogClient, cfg.Banners.RotateInterval)

	retry := catalog.DefaultRetryConfig
	retry.MaxRetries = cfg.Notifications.Retries
	poller := notify.NewPoller(catalogClient, repos.ViewerState, notify.Options{
		Interval:    cfg.Notifications.PollInterval,
		RecentLimit: cfg.Notifications.RecentLimit,
		Retry:       retry,
	})

	sessions := session.NewManager(catalogClient, carousel, repos.ViewerState, session.Config{
		PageSize:              cfg.Catalog.PageSize,
		SearchDebounce:        cfg.Feed.SearchDebounce,
		URLSyncDebounce:       cfg.Feed.URLSyncDebounce,
		ScrollThreshold:       cfg.Feed.ScrollThreshold,
		ScrollEventsPerSecond: cfg.Feed.ScrollEventsPerSecond,
		IdleTimeout:           cfg.Feed.SessionIdleTimeout,
		CleanupInterval:       cfg.Feed.SessionCleanupInterval,
		Locales:               cfg.Feed.Locales,
	})

	return &Server{
		config:    cfg,
		db:        database,
		repos:     repos,
		catalog:   catalogClient,
		playback:  playbackService,
		sdkLoader: sdkLoader,
		sessions:  sessions,
		poller:    poller,
		carousel:  carousel,
	}, nil
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create new Gin router
	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	// Create API route group
	apiGroup := s.router.Group("/api")

	// Register service routes
	api.SetupHealthRoutes(apiGroup, s.db, s.sessions, s.playback.Gate())
	api.SetupSessionRoutes(apiGroup, s.sessions)
	api.SetupCatalogRoutes(apiGroup, s.catalog, s.carousel, s.poller)
	api.SetupPlayerRoutes(apiGroup, s.playback, api.PlayerOptions{
		SDKURL:         s.config.Playback.SDKURL,
		Loader:         s.sdkLoader,
		MountTimeout:   s.config.Playback.LoadTimeout,
		CommandTimeout: s.config.Playback.CommandTimeout,
	})
}

// Start starts the background workers and the HTTP server
func (s *Server) Start() error {
	s.setupRouter()

	if err := s.sessions.Start(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}
	if err := s.poller.Start(); err != nil {
		return fmt.Errorf("failed to start notification poller: %w", err)
	}
	s.preloadSDK()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Str("catalog", s.config.Catalog.BaseURL).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// preloadSDK loads the player SDK in the background. A renderer can still
// signal readiness itself through the sdk-ready route.
func (s *Server) preloadSDK() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Playback.LoadTimeout)
	s.sdkCancel = cancel
	s.sdkDone.Add(1)

	go func() {
		defer s.sdkDone.Done()
		defer cancel()
		if err := s.playback.Gate().Load(ctx, s.sdkLoader); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Warn().Err(err).Str("sdk_url", s.config.Playback.SDKURL).Msg("Player SDK preload failed")
		}
	}()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Stop accepting requests before tearing down the sessions behind them
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	if s.sdkCancel != nil {
		s.sdkCancel()
		s.sdkDone.Wait()
	}

	s.sessions.Stop()
	s.poller.Stop()
	s.carousel.Close()

	logger.Log.Info().Msg("Server stopped")
	return nil
}

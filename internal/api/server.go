package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/client"
	"github.com/netpulse-project/netpulse/internal/config"
	intnet "github.com/netpulse-project/netpulse/internal/network"
)

// Server is the local REST API server.
type Server struct {
	cfg     *config.Config
	network *client.Network

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server over the network client.
func NewServer(cfg *config.Config, network *client.Network) *Server {
	if cfg.ApplicationData.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:     cfg,
		network: network,
	}
}

// Start initializes and starts the API server. It blocks until the
// context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	app := s.cfg.GetApplicationData()
	addr := fmt.Sprintf("%s:%d", app.API.Host, app.API.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// SO_REUSEADDR allows immediate rebinding after restart.
	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	app := s.cfg.GetApplicationData()
	allowedOrigins := app.Security.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(app.Security.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.GET("/status", s.handleStatus)
		api.GET("/runtime", s.handleRuntime)

		api.GET("/servers", s.handleGetServers)
		api.GET("/servers/:id", s.handleGetServer)
		api.GET("/servers/:id/players", s.handleGetServerPlayers)
		api.GET("/stats", s.handleGetStats)
		api.GET("/players/:uuid", s.handleGetPlayer)

		api.GET("/maintenance", s.handleGetMaintenance)
		api.POST("/maintenance", s.handleSetMaintenance)

		api.GET("/uptime", s.handleGetUptime)

		api.GET("/notices", s.handleGetNotices)
		api.POST("/notices/request", s.handleRequestNotices)

		api.POST("/connect", s.handleConnect)
		api.POST("/disconnect", s.handleDisconnect)
		api.POST("/pause", s.handlePause)
		api.POST("/resume", s.handleResume)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

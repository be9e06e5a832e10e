package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KevinKickass/PowerWatchdog/internal/power"
)

// Server is the central hub: it hands out per-client configuration, reports
// the current UPS status (live value or scenario playback) and collects the
// watchdogs' phase reports.
type Server struct {
	cfg         *Config
	store       Store
	verifier    *TokenVerifier
	broadcaster *Broadcaster
	logger      *zap.Logger
	router      *gin.Engine
	server      *http.Server

	mu            sync.RWMutex
	manual        *power.Reading
	scenario      *Scenario
	scenarioStart time.Time
}

func NewServer(cfg *Config, store Store, logger *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:         cfg,
		store:       store,
		verifier:    NewTokenVerifier(cfg.Auth.TokenHashes),
		broadcaster: NewBroadcaster(logger),
		logger:      logger,
		router:      gin.New(),
	}

	if cfg.UPS.ScenarioFile != "" {
		scenario, err := LoadScenario(cfg.UPS.ScenarioFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario: %w", err)
		}
		s.scenario = scenario
		s.scenarioStart = time.Now()
		logger.Info("Simulation scenario loaded",
			zap.String("file", cfg.UPS.ScenarioFile),
			zap.Int("steps", len(scenario.Steps)))
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) Start() error {
	s.logger.Info("Starting hub server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("Hub server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down hub server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))

	// Public routes
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ws/live", s.wsLive)

	// Client API (bearer token)
	api := s.router.Group("/")
	api.Use(s.verifier.Middleware())
	{
		api.GET("/config", s.getConfig)
		api.GET("/upsc", s.getUPSStatus)
		api.POST("/status", s.postStatus)
		api.POST("/ups", s.setUPSStatus)
		api.GET("/clients", s.listClients)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// GET /health
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GET /config?ip=<clientIP>
func (s *Server) getConfig(c *gin.Context) {
	record := s.cfg.Clients.Defaults
	if override, ok := s.cfg.Clients.Overrides[c.Query("ip")]; ok {
		record = override
	}
	c.JSON(http.StatusOK, record)
}

// GET /upsc
func (s *Server) getUPSStatus(c *gin.Context) {
	reading := s.currentReading()
	c.JSON(http.StatusOK, gin.H{
		"ups": gin.H{
			"status":    reading.Status,
			"simulated": reading.Simulated,
		},
	})
}

// POST /status
func (s *Server) postStatus(c *gin.Context) {
	var req struct {
		IP               string `json:"ip"`
		Status           string `json:"status" binding:"required"`
		RemainingSeconds int64  `json:"remaining_seconds"`
		ShutdownDelay    int    `json:"shutdown_delay"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report body"})
		return
	}
	if req.IP == "" {
		req.IP = c.ClientIP()
	}

	report := Report{
		ID:               uuid.New(),
		IP:               req.IP,
		Status:           req.Status,
		RemainingSeconds: req.RemainingSeconds,
		ShutdownDelay:    req.ShutdownDelay,
		ReceivedAt:       time.Now(),
	}

	if err := s.store.SaveReport(c.Request.Context(), report); err != nil {
		s.logger.Error("Failed to store report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report"})
		return
	}

	s.broadcaster.Broadcast(report)

	s.logger.Info("Client report received",
		zap.String("ip", report.IP),
		zap.String("phase", report.Status),
		zap.Int64("remaining_seconds", report.RemainingSeconds))

	c.JSON(http.StatusOK, gin.H{"id": report.ID})
}

// POST /ups sets the live status an operator wants reported. A manual value
// takes precedence over a running scenario.
func (s *Server) setUPSStatus(c *gin.Context) {
	var req struct {
		Status    string `json:"status" binding:"required"`
		Simulated bool   `json:"simulated"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status body"})
		return
	}

	s.mu.Lock()
	s.manual = &power.Reading{Status: req.Status, Simulated: req.Simulated}
	s.mu.Unlock()

	s.logger.Info("UPS status set",
		zap.String("status", req.Status),
		zap.Bool("simulated", req.Simulated))

	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

// GET /clients
func (s *Server) listClients(c *gin.Context) {
	reports, err := s.store.LatestByClient(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list clients", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list clients"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": reports})
}

// GET /ws/live
func (s *Server) wsLive(c *gin.Context) {
	s.broadcaster.ServeWS(c.Writer, c.Request)
}

func (s *Server) currentReading() power.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.manual != nil {
		return *s.manual
	}
	if s.scenario != nil {
		if reading, ok := s.scenario.At(time.Since(s.scenarioStart)); ok {
			return reading
		}
	}
	return power.Reading{
		Status:    s.cfg.UPS.Status,
		Simulated: s.cfg.UPS.Simulated,
	}
}

// Package server wires the HTTP API, the websocket endpoint, and the
// real-time hub together.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"parceltrack/pkg/auth"
	"parceltrack/pkg/config"
	"parceltrack/pkg/health"
	"parceltrack/pkg/hub"
	"parceltrack/pkg/logger"
	"parceltrack/pkg/middleware"
	"parceltrack/pkg/storage"
)

// Server is the top-level service object. It owns the storage layer,
// the hub, and the HTTP server; route handlers and write-path services
// receive it by reference rather than through globals.
type Server struct {
	cfg     *config.ServerConfig
	store   storage.Store
	hub     *hub.Hub
	tokens  *auth.TokenService
	authn   auth.Authenticator
	events  *Events
	monitor *health.Monitor

	engine     *gin.Engine
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds a fully wired server and starts the hub's serving
// loop. Call Start to begin listening and Shutdown to tear down.
func NewServer(cfg *config.ServerConfig) (*Server, error) {
	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Get().Warn("no jwt_secret configured, generated an ephemeral one; tokens will not survive restarts")
	}
	tokens := auth.NewTokenService(secret, cfg.Auth.TokenLifetime)

	h := hub.New(hub.Config{
		SendBufferSize:  cfg.Hub.SendBufferSize,
		NotifyQueueSize: cfg.Hub.NotifyQueueSize,
		Ownership:       store,
	})
	h.Start()

	s := &Server{
		cfg:     cfg,
		store:   store,
		hub:     h,
		tokens:  tokens,
		authn:   auth.NewTokenAuthenticator(tokens, store),
		events:  NewEvents(h.Bridge()),
		monitor: health.NewMonitor(),
		log:     logger.Component("server"),
	}
	s.engine = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	r.GET("/healthz", s.handleHealth)
	r.GET("/ws/connect", s.handleWebSocket)

	api := r.Group("/api")
	api.POST("/login", s.handleLogin)
	api.POST("/users", s.handleRegister)

	authed := api.Group("")
	authed.Use(s.requireAuth())
	authed.GET("/packages", s.handleListPackages)
	authed.POST("/packages", s.handleCreatePackage)
	authed.PATCH("/packages/:id/status", s.handleUpdatePackageStatus)
	authed.POST("/packages/:id/assign", s.handleAssignCourier)
	authed.POST("/deliveries", s.handleCreateDelivery)
	authed.POST("/deliveries/:id/location", s.handleUpdateDeliveryLocation)
	authed.POST("/announcements", s.handleAnnounce)

	return r
}

// Handler exposes the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving HTTP (and websocket upgrades) on the configured
// address. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.engine,
	}

	s.log.Info("listening", "address", s.cfg.Address, "tls", s.cfg.TLS.Enabled)
	var err error
	if s.cfg.TLS.Enabled {
		err = s.httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server, the hub, and the store
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.hub.Stop()
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.log.Info("shutdown complete")
	return firstErr
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

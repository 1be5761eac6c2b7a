// Package api provides the CollabHub HTTP REST API server.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/collabhub/collabhub/internal/api/auth"
	"github.com/collabhub/collabhub/internal/api/health"
	"github.com/collabhub/collabhub/internal/api/middleware"
	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address          string
	JWTSecret        []byte
	CORSOrigins      []string // Allowed browser origins; empty disables CORS
	TrustedProxies   []string // Trusted proxy IPs/CIDRs for X-Forwarded-For
	HTTPTLSEnabled   bool
	HTTPTLSCertFile  string
	HTTPTLSKeyFile   string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	BcryptCost       int
	RateLimitPerIP   int           // Requests per AuthRateWindow on public auth routes
	AuthRateWindow   time.Duration
	RateLimitPerUser int           // Requests per minute on authenticated routes
	LockoutThreshold int
	LockoutDuration  time.Duration
	ResetURL         string        // Frontend page receiving password reset tokens
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":5000"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = auth.DefaultBcryptCost
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 20
	}
	if c.AuthRateWindow == 0 {
		c.AuthRateWindow = 15 * time.Minute
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 100 // 100 requests per minute
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = 5 // 5 failed attempts
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = 30 * time.Minute
	}
	if c.ResetURL == "" {
		c.ResetURL = "http://localhost:3000/reset-password"
	}
}

// Deps are the optional collaborators injected by the server command.
type Deps struct {
	// Lockout defaults to an in-process tracker.
	Lockout auth.LockoutStore
	// Mailer may be nil, in which case reset links are only logged.
	Mailer auth.Mailer
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	storage       storage.Storage
	deps          Deps
	ips           *middleware.ClientIPResolver
	server        *http.Server
	healthHandler *health.Handler
	closers       []func()
}

// New creates a new API server.
func New(cfg *Config, store storage.Storage, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT secret is required")
	}

	cfg.SetDefaults()

	ips, err := middleware.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		config:        cfg,
		storage:       store,
		deps:          deps,
		ips:           ips,
		healthHandler: health.NewHandler(),
	}

	if s.deps.Lockout == nil {
		tracker := auth.NewLockoutTracker(cfg.LockoutThreshold, cfg.LockoutDuration)
		s.deps.Lockout = tracker
		s.closers = append(s.closers, tracker.Close)
	}

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		logger.Infof("HTTP API listening on %s", s.config.Address)
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Infof("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)
		s.Close()
		return err
	case err := <-errChan:
		s.Close()
		return err
	}
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	for _, c := range s.closers {
		c()
	}
	s.closers = nil
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}

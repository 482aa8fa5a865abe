// Package server runs the HTTP front of a resource registry: timeouts,
// TLS, optional HTTP/2, database pool limits, and graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server wraps an http.Server with listener management so callers can
// bind first and serve later.
type Server struct {
	httpServer *http.Server
	config     *Config
	listener   net.Listener
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address, such as ":8080". Use ":0" to let
	// the kernel pick a port and read it back from Addr.
	Address string

	// Handler serves the requests. Required.
	Handler http.Handler

	// TLS enables HTTPS when set.
	TLS *TLSConfig

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration

	MaxHeaderBytes int

	// Database applies pool limits and a startup ping to the backing
	// connection when set.
	Database *DatabaseConfig

	// EnableHTTP2 advertises h2 in the TLS handshake.
	EnableHTTP2 bool
}

// TLSConfig holds the TLS material and floor.
type TLSConfig struct {
	CertFile string
	KeyFile  string

	// MinVersion defaults to TLS 1.2.
	MinVersion uint16

	// Config overrides the built configuration entirely when set.
	Config *tls.Config
}

// DatabaseConfig bounds the connection pool behind a SQL-backed store.
type DatabaseConfig struct {
	DB *sql.DB

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns the stock timeouts for an API serving small
// JSON payloads.
func DefaultConfig(handler http.Handler) *Config {
	return &Config{
		Address:           ":8080",
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		EnableHTTP2:       true,
	}
}

// DefaultDatabaseConfig returns pool limits suited to a single API
// process.
func DefaultDatabaseConfig(db *sql.DB) *DatabaseConfig {
	return &DatabaseConfig{
		DB:              db,
		MaxOpenConns:    100,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// New validates the configuration and builds a server. The database
// pool, when configured, is bounded and pinged here so a bad connection
// string fails at startup rather than under traffic.
func New(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	if config.Database != nil {
		if err := configureDatabasePool(config.Database); err != nil {
			return nil, fmt.Errorf("failed to configure database pool: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              config.Address,
		Handler:           config.Handler,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		MaxHeaderBytes:    config.MaxHeaderBytes,
	}

	if config.TLS != nil {
		httpServer.TLSConfig = buildTLSConfig(config.TLS, config.EnableHTTP2)
	}

	return &Server{
		httpServer: httpServer,
		config:     config,
	}, nil
}

// Listen binds the configured address without serving yet. Addr reports
// the bound address afterwards.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener
	return nil
}

// Serve accepts connections on the bound listener until Shutdown or
// Close. Call Listen first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening, call Listen first")
	}
	if s.config.TLS != nil {
		return s.httpServer.Serve(tls.NewListener(s.listener, s.httpServer.TLSConfig))
	}
	return s.httpServer.Serve(s.listener)
}

// Start binds and serves in one call.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// ListenAndServe serves using the certificate files from the TLS
// configuration when present.
func (s *Server) ListenAndServe() error {
	if s.config.TLS != nil {
		return s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
// to finish, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Close drops all connections immediately.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

// Addr returns the bound address after Listen, the configured address
// before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

func configureDatabasePool(config *DatabaseConfig) error {
	if config.DB == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	config.DB.SetMaxOpenConns(config.MaxOpenConns)
	config.DB.SetMaxIdleConns(config.MaxIdleConns)
	config.DB.SetConnMaxLifetime(config.ConnMaxLifetime)
	config.DB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := config.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func buildTLSConfig(tlsConfig *TLSConfig, enableHTTP2 bool) *tls.Config {
	if tlsConfig.Config != nil {
		config := tlsConfig.Config.Clone()
		if enableHTTP2 {
			config.NextProtos = []string{"h2", "http/1.1"}
		}
		return config
	}

	config := &tls.Config{
		MinVersion: tlsConfig.MinVersion,
	}
	if config.MinVersion == 0 {
		config.MinVersion = tls.VersionTLS12
	}
	if enableHTTP2 {
		config.NextProtos = []string{"h2", "http/1.1"}
	}
	return config
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// GracefulShutdown ties a server's lifecycle to OS signals and runs
// cleanup hooks before the listener closes. Stores, caches, and
// throttlers register their Close functions as hooks.
type GracefulShutdown struct {
	server        *Server
	hooks         []ShutdownHook
	timeout       time.Duration
	signals       []os.Signal
	log           *zap.Logger
	mu            sync.Mutex
	shutdownOnce  sync.Once
	shutdownChan  chan struct{}
	shutdownError error
}

// ShutdownHook runs during graceful shutdown, bounded by the shutdown
// context.
type ShutdownHook func(ctx context.Context) error

// ShutdownConfig holds graceful shutdown configuration.
type ShutdownConfig struct {
	// Timeout bounds the whole shutdown, hooks included.
	Timeout time.Duration

	// Signals to listen for. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal

	// Log receives shutdown progress. Defaults to a nop logger.
	Log *zap.Logger
}

// DefaultShutdownConfig returns the stock shutdown configuration.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// NewGracefulShutdown wires a shutdown handler around the server.
func NewGracefulShutdown(srv *Server, config *ShutdownConfig) *GracefulShutdown {
	if config == nil {
		config = DefaultShutdownConfig()
	}
	log := config.Log
	if log == nil {
		log = zap.NewNop()
	}
	signals := config.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	return &GracefulShutdown{
		server:       srv,
		hooks:        make([]ShutdownHook, 0),
		timeout:      config.Timeout,
		signals:      signals,
		log:          log,
		shutdownChan: make(chan struct{}),
	}
}

// RegisterHook adds a cleanup hook. Hooks run in registration order; a
// failing hook is logged and the rest still run.
func (gs *GracefulShutdown) RegisterHook(hook ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, hook)
}

// Start serves until a shutdown signal arrives or the server fails,
// then shuts down gracefully.
func (gs *GracefulShutdown) Start() error {
	errChan := make(chan error, 1)
	go func() {
		gs.log.Info("starting server", zap.String("addr", gs.server.Addr()))
		if err := gs.server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, gs.signals...)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		gs.log.Info("shutdown signal received", zap.String("signal", sig.String()))
		return gs.Shutdown()
	case err := <-errChan:
		return err
	}
}

// Shutdown runs the hooks and stops the server. It is safe to call from
// multiple goroutines; every caller observes the same outcome.
func (gs *GracefulShutdown) Shutdown() error {
	gs.shutdownOnce.Do(func() {
		gs.log.Info("shutting down", zap.Duration("timeout", gs.timeout))

		ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
		defer cancel()

		gs.mu.Lock()
		hooks := make([]ShutdownHook, len(gs.hooks))
		copy(hooks, gs.hooks)
		gs.mu.Unlock()

		for i, hook := range hooks {
			if err := hook(ctx); err != nil {
				gs.log.Warn("shutdown hook failed",
					zap.Int("hook", i), zap.Error(err))
			}
		}

		if err := gs.server.Shutdown(ctx); err != nil {
			gs.shutdownError = fmt.Errorf("server shutdown error: %w", err)
			gs.log.Error("server shutdown failed", zap.Error(err))
		} else {
			gs.log.Info("server shutdown complete")
		}

		close(gs.shutdownChan)
	})

	<-gs.shutdownChan
	return gs.shutdownError
}

// Wait blocks until shutdown completes.
func (gs *GracefulShutdown) Wait() error {
	<-gs.shutdownChan
	return gs.shutdownError
}

package server

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig(okHandler())

	if config.Address != ":8080" {
		t.Errorf("Expected address :8080, got %s", config.Address)
	}
	if config.ReadTimeout != 15*time.Second {
		t.Errorf("Expected ReadTimeout 15s, got %v", config.ReadTimeout)
	}
	if config.WriteTimeout != 15*time.Second {
		t.Errorf("Expected WriteTimeout 15s, got %v", config.WriteTimeout)
	}
	if config.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout 60s, got %v", config.IdleTimeout)
	}
	if config.MaxHeaderBytes != 1<<20 {
		t.Errorf("Expected MaxHeaderBytes 1MB, got %d", config.MaxHeaderBytes)
	}
	if !config.EnableHTTP2 {
		t.Error("Expected HTTP/2 to be enabled")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("Expected error for nil config")
	}

	if _, err := New(DefaultConfig(nil)); err == nil {
		t.Error("Expected error for nil handler")
	}
}

func TestNewServer(t *testing.T) {
	srv, err := New(DefaultConfig(okHandler()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if srv == nil {
		t.Fatal("Server is nil")
	}
	if srv.Addr() != ":8080" {
		t.Errorf("Expected address :8080 before Listen, got %s", srv.Addr())
	}
}

func TestServerWithDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	config := DefaultConfig(okHandler())
	config.Database = DefaultDatabaseConfig(db)

	if _, err := New(config); err != nil {
		t.Fatalf("Failed to create server with database: %v", err)
	}

	stats := db.Stats()
	if stats.MaxOpenConnections != 100 {
		t.Errorf("Expected MaxOpenConnections 100, got %d", stats.MaxOpenConnections)
	}
}

func TestServerWithNilDatabase(t *testing.T) {
	config := DefaultConfig(okHandler())
	config.Database = &DatabaseConfig{}

	if _, err := New(config); err == nil {
		t.Error("Expected error for nil database connection")
	}
}

func TestDefaultDatabaseConfig(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	config := DefaultDatabaseConfig(db)

	if config.MaxOpenConns != 100 {
		t.Errorf("Expected MaxOpenConns 100, got %d", config.MaxOpenConns)
	}
	if config.MaxIdleConns != 10 {
		t.Errorf("Expected MaxIdleConns 10, got %d", config.MaxIdleConns)
	}
	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected ConnMaxLifetime 1h, got %v", config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime != 10*time.Minute {
		t.Errorf("Expected ConnMaxIdleTime 10m, got %v", config.ConnMaxIdleTime)
	}
}

func TestListenServeShutdown(t *testing.T) {
	config := DefaultConfig(okHandler())
	config.Address = "127.0.0.1:0"

	srv, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/", srv.Addr()))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}

	if err := <-serveErr; err != http.ErrServerClosed {
		t.Errorf("Expected ErrServerClosed from Serve, got %v", err)
	}
}

func TestServeWithoutListen(t *testing.T) {
	srv, err := New(DefaultConfig(okHandler()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Serve(); err == nil {
		t.Error("Expected error when serving without a listener")
	}
}

func TestBuildTLSConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config := buildTLSConfig(&TLSConfig{}, false)

		if config.MinVersion != tls.VersionTLS12 {
			t.Errorf("Expected TLS 1.2 floor, got %d", config.MinVersion)
		}
		if len(config.NextProtos) != 0 {
			t.Errorf("Expected no ALPN protocols, got %v", config.NextProtos)
		}
	})

	t.Run("http2", func(t *testing.T) {
		config := buildTLSConfig(&TLSConfig{}, true)

		if len(config.NextProtos) != 2 || config.NextProtos[0] != "h2" {
			t.Errorf("Expected h2 first in ALPN, got %v", config.NextProtos)
		}
	})

	t.Run("explicit floor is kept", func(t *testing.T) {
		config := buildTLSConfig(&TLSConfig{MinVersion: tls.VersionTLS13}, false)

		if config.MinVersion != tls.VersionTLS13 {
			t.Errorf("Expected TLS 1.3 floor, got %d", config.MinVersion)
		}
	})

	t.Run("custom config is cloned", func(t *testing.T) {
		custom := &tls.Config{ServerName: "api.example.com"}
		config := buildTLSConfig(&TLSConfig{Config: custom}, true)

		if config == custom {
			t.Error("Expected a clone, got the original")
		}
		if config.ServerName != "api.example.com" {
			t.Errorf("Expected cloned ServerName, got %s", config.ServerName)
		}
		if len(custom.NextProtos) != 0 {
			t.Error("Original config must not be mutated")
		}
	})
}

package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nestful/nestful/pkg/auth"
)

// LoggingConfig holds configuration for the logging middleware.
type LoggingConfig struct {
	// Logger receives one entry per completed request.
	Logger func(LogEntry)
	// SkipPaths lists exact paths that are never logged.
	SkipPaths []string
}

// LogEntry describes a completed request.
type LogEntry struct {
	RequestID    string
	Method       string
	Path         string
	StatusCode   int
	Duration     time.Duration
	BytesWritten int
	RemoteAddr   string
	UserAgent    string
}

// DefaultLoggingConfig returns a configuration logging through the
// global zap logger.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Logger:    ZapLogger(zap.L()),
		SkipPaths: []string{},
	}
}

// ZapLogger adapts a zap logger into a LogEntry sink.
func ZapLogger(logger *zap.Logger) func(LogEntry) {
	return func(entry LogEntry) {
		logger.Info("request",
			zap.String("request_id", entry.RequestID),
			zap.String("method", entry.Method),
			zap.String("path", entry.Path),
			zap.Int("status", entry.StatusCode),
			zap.Duration("duration", entry.Duration),
			zap.Int("bytes", entry.BytesWritten),
			zap.String("remote_addr", entry.RemoteAddr),
			zap.String("user_agent", entry.UserAgent),
		)
	}
}

// Logging creates a logging middleware with default configuration.
func Logging() Middleware {
	return LoggingWithConfig(DefaultLoggingConfig())
}

// LoggingWithConfig creates a logging middleware with custom
// configuration.
func LoggingWithConfig(config LoggingConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skipPath := range config.SkipPaths {
				if r.URL.Path == skipPath {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			if config.Logger != nil {
				config.Logger(LogEntry{
					RequestID:    auth.GetRequestID(r.Context()),
					Method:       r.Method,
					Path:         r.URL.Path,
					StatusCode:   rw.statusCode,
					Duration:     time.Since(start),
					BytesWritten: rw.bytesWritten,
					RemoteAddr:   r.RemoteAddr,
					UserAgent:    r.UserAgent(),
				})
			}
		})
	}
}

// responseWriter captures the status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

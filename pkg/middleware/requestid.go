package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nestful/nestful/pkg/auth"
)

// RequestIDConfig holds configuration for the request ID middleware.
type RequestIDConfig struct {
	// HeaderName is the header the ID is read from and echoed to.
	HeaderName string
	// Generator produces IDs when the inbound request carries none.
	Generator func() string
}

// DefaultRequestIDConfig returns the default request ID configuration.
func DefaultRequestIDConfig() RequestIDConfig {
	return RequestIDConfig{
		HeaderName: "X-Request-ID",
		Generator:  func() string { return uuid.New().String() },
	}
}

// RequestID tags each request with a unique ID, honoring an inbound
// X-Request-ID header when present. The ID is stored on the request
// context and echoed in the response.
func RequestID() Middleware {
	return RequestIDWithConfig(DefaultRequestIDConfig())
}

// RequestIDWithConfig creates a request ID middleware with custom
// configuration.
func RequestIDWithConfig(config RequestIDConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(config.HeaderName)
			if requestID == "" {
				requestID = config.Generator()
			}

			ctx := auth.SetRequestID(r.Context(), requestID)
			w.Header().Set(config.HeaderName, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

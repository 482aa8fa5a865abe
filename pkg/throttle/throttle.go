// Package throttle provides the request throttling capability injected
// into resources, with in-memory token bucket and Redis sliding window
// implementations. A single Allow call both checks and records an access.
package throttle

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// Throttler decides whether an access identified by key may proceed.
type Throttler interface {
	// Allow checks if a request should be allowed for the given key and
	// records it when allowed.
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info describes the throttling state after an Allow call.
type Info struct {
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Remaining is the number of requests left in the current window
	Remaining int
	// ResetAt is when the window resets
	ResetAt time.Time
	// Allowed indicates whether the request may proceed
	Allowed bool
}

// ClientIP extracts the client address for use as a throttle key.
// It honors X-Forwarded-For and X-Real-IP before falling back to
// the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// The first entry is the originating client.
		if i := strings.Index(xff, ","); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

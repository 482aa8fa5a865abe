package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/nestful/nestful/pkg/response"
)

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace controls whether stack traces are captured.
	EnableStackTrace bool
	// Logger receives the recovered error and stack trace.
	Logger func(error, []byte)
	// ResponseHandler writes the response after a recovered panic.
	ResponseHandler func(http.ResponseWriter, *http.Request, interface{})
}

// DefaultRecoveryConfig returns the default recovery configuration,
// logging through the global zap logger.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace: true,
		Logger: func(err error, stack []byte) {
			zap.L().Error("panic recovered",
				zap.Error(err),
				zap.ByteString("stack", stack),
			)
		},
		ResponseHandler: defaultRecoveryResponse,
	}
}

// Recovery creates a middleware that converts panics into JSON 500
// responses. Dispatch runs under this boundary.
func Recovery() Middleware {
	return RecoveryWithConfig(DefaultRecoveryConfig())
}

// RecoveryWithConfig creates a recovery middleware with custom
// configuration.
func RecoveryWithConfig(config RecoveryConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					var stack []byte
					if config.EnableStackTrace {
						stack = debug.Stack()
					}

					if config.Logger != nil {
						var err error
						switch e := recovered.(type) {
						case error:
							err = e
						default:
							err = &panicError{value: recovered}
						}
						config.Logger(err, stack)
					}

					if config.ResponseHandler != nil {
						config.ResponseHandler(w, r, recovered)
					} else {
						defaultRecoveryResponse(w, r, recovered)
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// defaultRecoveryResponse writes the standard error envelope without
// leaking the panic value to the client.
func defaultRecoveryResponse(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	response.Write(w, response.Error(http.StatusInternalServerError, "An unexpected error occurred"))
}

// panicError wraps a non-error panic value.
type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	if err, ok := e.value.(error); ok {
		return err.Error()
	}
	return "panic occurred"
}

package response

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorBody is the standard error payload.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error creates an error response with the given status and message.
// The machine-readable code is derived from the status.
func Error(status int, message string) *Response {
	return New(status, ErrorBody{
		Error:   "error",
		Message: message,
		Code:    errorCodeFromStatus(status),
	})
}

// BadRequest creates a 400 response.
func BadRequest(message string) *Response {
	if message == "" {
		message = "Bad request"
	}
	return Error(http.StatusBadRequest, message)
}

// Unauthorized creates a 401 response.
func Unauthorized(message string) *Response {
	if message == "" {
		message = "Authentication required"
	}
	return Error(http.StatusUnauthorized, message)
}

// Forbidden creates a 403 response.
func Forbidden(message string) *Response {
	if message == "" {
		message = "Access denied"
	}
	return Error(http.StatusForbidden, message)
}

// NotFound creates a 404 response.
func NotFound(message string) *Response {
	if message == "" {
		message = "Resource not found"
	}
	return Error(http.StatusNotFound, message)
}

// MultipleChoices creates a 300 response for lookups matching more than
// one object.
func MultipleChoices(message string) *Response {
	if message == "" {
		message = "Multiple resources found at this URI"
	}
	return Error(http.StatusMultipleChoices, message)
}

// MethodNotAllowed creates a 405 response advertising the allowed
// methods.
func MethodNotAllowed(allowed ...string) *Response {
	resp := Error(http.StatusMethodNotAllowed, "Method not allowed")
	if len(allowed) > 0 {
		resp.Header.Set("Allow", strings.Join(allowed, ", "))
	}
	return resp
}

// TooManyRequests creates a 429 response with a Retry-After hint in
// seconds.
func TooManyRequests(retryAfter int) *Response {
	resp := Error(http.StatusTooManyRequests, "Rate limit exceeded")
	if retryAfter > 0 {
		resp.Header.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	}
	return resp
}

// InternalError creates a 500 response. The error detail is included in
// the message; callers log the underlying error separately.
func InternalError(err error) *Response {
	message := "Internal server error"
	if err != nil {
		message = err.Error()
	}
	return Error(http.StatusInternalServerError, message)
}

// NotImplemented creates a 501 response.
func NotImplemented(message string) *Response {
	if message == "" {
		message = "Not implemented"
	}
	return Error(http.StatusNotImplemented, message)
}

// errorCodeFromStatus maps HTTP status codes to error codes.
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusMultipleChoices:
		return "multiple_choices"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusNotImplemented:
		return "not_implemented"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}

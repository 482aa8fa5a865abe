package resource

import (
	"context"
	"net/http"

	"github.com/nestful/nestful/pkg/response"
)

// HandlerFunc serves one (verb, shape) combination. Handlers return a
// Result rather than writing to the connection; the dispatch machine
// renders it after the remaining states have run. The error return is
// for taxonomy outcomes (store sentinels) and hard failures, never for
// ordinary responses.
type HandlerFunc func(ctx context.Context, r *http.Request, rctx *Context) (Result, error)

// Result is what a handler produces: either an explicit response or an
// acceptance that normalizes to 204 No Content. The zero Result is
// invalid; construct one with Respond or Accepted.
type Result struct {
	resp     *response.Response
	accepted bool
}

// Respond wraps an explicit response.
func Respond(resp *response.Response) Result {
	return Result{resp: resp}
}

// Accepted marks the request as performed with nothing to return. The
// dispatch machine renders it as 204 No Content.
func Accepted() Result {
	return Result{accepted: true}
}

// IsAccepted reports whether the result is a bare acceptance.
func (r Result) IsAccepted() bool {
	return r.accepted
}

// Response returns the explicit response, or nil for acceptances.
func (r Result) Response() *response.Response {
	return r.resp
}

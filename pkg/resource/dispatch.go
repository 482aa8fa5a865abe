package resource

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nestful/nestful/pkg/auth"
	"github.com/nestful/nestful/pkg/response"
	"github.com/nestful/nestful/pkg/store"
	"github.com/nestful/nestful/pkg/throttle"
)

// methodOverrideHeader lets clients tunnel verbs through POST-only
// intermediaries. It is honored once per request.
const methodOverrideHeader = "X-HTTP-Method-Override"

// Dispatch runs the state machine for one request: method override,
// verb gate, handler lookup, authentication, throttling, authorization,
// handler invocation, and result normalization. Taxonomy outcomes are
// written to w; the error return carries only failures the machine does
// not own, for the route boundary to log and convert.
func (rsc *Resource) Dispatch(shape Shape, w http.ResponseWriter, r *http.Request, rctx *Context) error {
	if rctx == nil {
		rctx = NewContext()
	}

	rsc.applyMethodOverride(r, rctx)

	allowed := rsc.allowedMethods(shape, rctx)
	if !methodAllowed(allowed, r.Method) {
		return response.Write(w, response.MethodNotAllowed(allowed...))
	}

	handler := rsc.handlers[HandlerKey{Method: r.Method, Shape: shape}]
	if handler == nil {
		return response.Write(w, response.NotImplemented(""))
	}

	return rsc.invoke(handler, shape, w, r, rctx)
}

// dispatchAction runs the same states for a detail action, gated by the
// action's own verb set.
func (rsc *Resource) dispatchAction(action *DetailAction, w http.ResponseWriter, r *http.Request, rctx *Context) error {
	rsc.applyMethodOverride(r, rctx)

	if !methodAllowed(action.Methods, r.Method) {
		return response.Write(w, response.MethodNotAllowed(action.Methods...))
	}

	return rsc.invoke(action.Handler, ShapeAction, w, r, rctx)
}

// invoke runs the post-routing states shared by every dispatch path.
func (rsc *Resource) invoke(handler HandlerFunc, shape Shape, w http.ResponseWriter, r *http.Request, rctx *Context) error {
	r, ok := rsc.authenticate(w, r)
	if !ok {
		return nil
	}
	if !rsc.throttleCheck(w, r) {
		return nil
	}
	if !rsc.authorize(w, r, shape, rctx) {
		return nil
	}

	result, err := handler(r.Context(), r, rctx)
	if err != nil {
		return rsc.writeTaxonomy(w, err)
	}

	if result.IsAccepted() {
		return response.Write(w, response.NoContent())
	}
	return response.Write(w, result.Response())
}

// applyMethodOverride replaces the effective verb from the override
// header, at most once per request even across nested delegation.
func (rsc *Resource) applyMethodOverride(r *http.Request, rctx *Context) {
	if rctx.methodOverridden {
		return
	}
	if override := r.Header.Get(methodOverrideHeader); override != "" {
		r.Method = strings.ToUpper(override)
	}
	rctx.methodOverridden = true
}

// authenticate identifies the caller, storing the identity on the
// request context. A rejection writes 401 and halts dispatch; an
// anonymous pass-through proceeds without an identity.
func (rsc *Resource) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	identity, err := rsc.authn.Authenticate(r)
	if err != nil {
		response.Write(w, response.Unauthorized(""))
		return r, false
	}
	if identity != nil {
		r = r.WithContext(auth.SetIdentity(r.Context(), identity))
	}
	return r, true
}

// throttleCheck records the access and halts with 429 when the caller
// is over its limit. A throttler failure fails open. The key is the
// authenticated subject when present, the client IP otherwise.
func (rsc *Resource) throttleCheck(w http.ResponseWriter, r *http.Request) bool {
	if rsc.throttle == nil {
		return true
	}

	info, err := rsc.throttle.Allow(r.Context(), rsc.throttleKey(r))
	if err != nil {
		rsc.log.Warn("throttle check failed, allowing request",
			zap.String("resource", rsc.name), zap.Error(err))
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

	if !info.Allowed {
		retryAfter := int(time.Until(info.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		response.Write(w, response.TooManyRequests(retryAfter))
		return false
	}
	return true
}

func (rsc *Resource) throttleKey(r *http.Request) string {
	if identity := auth.GetIdentity(r.Context()); identity != nil && identity.Subject != "" {
		return identity.Subject
	}
	return throttle.ClientIP(r)
}

// authorize gates the request. Nested requests consult the parent's
// per-relation hook when one is registered and proceed otherwise;
// top-level requests consult the resource's own delegate.
func (rsc *Resource) authorize(w http.ResponseWriter, r *http.Request, shape Shape, rctx *Context) bool {
	var decision Decision

	if rctx.IsNested() {
		link := rctx.Parent()
		hooks, ok := link.Resource.authz.(RelationHooks)
		if !ok {
			return true
		}
		fn, ok := hooks.RelationAuthorize(link.Relation)
		if !ok {
			return true
		}
		decision = fn(r, link.Object, rctx.Child())
	} else {
		decision = rsc.authz.Authorize(r, shape, nil)
	}

	if decision.response != nil {
		response.Write(w, decision.response)
		return false
	}
	if !decision.allowed {
		response.Write(w, response.Unauthorized(""))
		return false
	}
	return true
}

// writeTaxonomy converts a handler error into its response. Errors
// outside the taxonomy, configuration defects included, return to the
// boundary.
func (rsc *Resource) writeTaxonomy(w http.ResponseWriter, err error) error {
	switch {
	case store.IsInvalidLookup(err):
		return response.Write(w, response.BadRequest("Invalid resource lookup data provided (mismatched type)."))
	case store.IsNotFound(err):
		return response.Write(w, response.NotFound(""))
	case store.IsMultipleObjects(err):
		return response.Write(w, response.MultipleChoices("More than one resource is found at this URI."))
	default:
		return err
	}
}

// wrap is the route boundary: dispatch errors are logged and rendered
// as an opaque 500.
func (rsc *Resource) wrap(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			rsc.log.Error("dispatch failed",
				zap.String("resource", rsc.name),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", auth.GetRequestID(r.Context())),
				zap.Error(err))
			response.Write(w, response.InternalError(nil))
		}
	}
}

func methodAllowed(allowed []string, method string) bool {
	for _, verb := range allowed {
		if verb == method {
			return true
		}
	}
	return false
}

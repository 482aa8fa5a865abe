package resource

import (
	"net/http"

	"github.com/nestful/nestful/pkg/response"
	"github.com/nestful/nestful/pkg/store"
)

// Decision is the outcome of an authorization check. Allow lets
// dispatch proceed; Deny stops it with a 401; DenyWith stops it with an
// explicit response.
type Decision struct {
	allowed  bool
	response *response.Response
}

// Allow permits the request.
func Allow() Decision {
	return Decision{allowed: true}
}

// Deny rejects the request with the standard 401 response.
func Deny() Decision {
	return Decision{}
}

// DenyWith rejects the request with a caller-supplied response.
func DenyWith(resp *response.Response) Decision {
	return Decision{response: resp}
}

// Authorization gates and narrows access to a resource's objects.
type Authorization interface {
	// Authorize runs before the handler. obj is nil for shapes that do
	// not address a single object.
	Authorize(r *http.Request, shape Shape, obj store.Object) Decision

	// Limit narrows a candidate object list to what the request may
	// see. It runs before uniqueness is judged, so scoping can turn a
	// would-be match into not-found.
	Limit(r *http.Request, shape Shape, objects []store.Object) []store.Object
}

// ParentAuthorization optionally gates nested access to a parent
// object. A false return is reported as not-found, hiding the parent's
// existence. Authorization implementations opt in by implementing it.
type ParentAuthorization interface {
	AuthorizeParent(r *http.Request, parent store.Object) bool
}

// RelationLimitFunc narrows a nested object list in the context of its
// parent.
type RelationLimitFunc func(r *http.Request, parent store.Object, objects []store.Object) []store.Object

// RelationAuthorizeFunc gates a nested request in the context of its
// parent. child is nil for collection shapes.
type RelationAuthorizeFunc func(r *http.Request, parent store.Object, child store.Object) Decision

// RelationHooks supplies per-relation authorization hooks consulted by
// the dispatch machine when a resource acts as a parent. Lookups are by
// explicit relation name; an absent hook means the nested request
// proceeds unhindered.
type RelationHooks interface {
	RelationLimit(relation string) (RelationLimitFunc, bool)
	RelationAuthorize(relation string) (RelationAuthorizeFunc, bool)
}

// AllowAll is the default authorization: every request proceeds and no
// narrowing is applied.
type AllowAll struct{}

// Authorize permits everything.
func (AllowAll) Authorize(r *http.Request, shape Shape, obj store.Object) Decision {
	return Allow()
}

// Limit returns the object list unchanged.
func (AllowAll) Limit(r *http.Request, shape Shape, objects []store.Object) []store.Object {
	return objects
}

// Hooks is a registry of per-relation authorization hooks. Embed a
// *Hooks in an Authorization implementation to satisfy RelationHooks.
type Hooks struct {
	limits     map[string]RelationLimitFunc
	authorizes map[string]RelationAuthorizeFunc
}

// NewHooks returns an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{
		limits:     make(map[string]RelationLimitFunc),
		authorizes: make(map[string]RelationAuthorizeFunc),
	}
}

// OnLimit registers a narrowing hook for the named relation.
func (h *Hooks) OnLimit(relation string, fn RelationLimitFunc) *Hooks {
	h.limits[relation] = fn
	return h
}

// OnAuthorize registers a gating hook for the named relation.
func (h *Hooks) OnAuthorize(relation string, fn RelationAuthorizeFunc) *Hooks {
	h.authorizes[relation] = fn
	return h
}

// RelationLimit returns the narrowing hook for the named relation.
func (h *Hooks) RelationLimit(relation string) (RelationLimitFunc, bool) {
	fn, ok := h.limits[relation]
	return fn, ok
}

// RelationAuthorize returns the gating hook for the named relation.
func (h *Hooks) RelationAuthorize(relation string) (RelationAuthorizeFunc, bool) {
	fn, ok := h.authorizes[relation]
	return fn, ok
}

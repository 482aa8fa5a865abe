// Package resource implements URL-addressable REST resources with
// nested relation dispatch. A Resource couples a persistence Store with
// authentication, throttling, and authorization collaborators; a
// Registry mounts resources under a shared URL prefix. Relations expose
// one resource under another's detail URI, delegating requests with the
// parent object resolved and the child's filters scoped to it.
package resource

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/nestful/nestful/pkg/auth"
	"github.com/nestful/nestful/pkg/cache"
	"github.com/nestful/nestful/pkg/store"
	"github.com/nestful/nestful/pkg/throttle"
)

// Shape tags the request form a handler serves. List and detail carry
// the usual collection/single-object split; nested gates verbs for
// requests delegated through a parent; schema, set, and action cover
// the auxiliary endpoints.
type Shape string

const (
	ShapeList   Shape = "list"
	ShapeDetail Shape = "detail"
	ShapeNested Shape = "nested"
	ShapeSchema Shape = "schema"
	ShapeSet    Shape = "set"
	ShapeAction Shape = "action"
)

// DefaultIdentifierPattern matches identifiers made of word characters
// and hyphens, starting with a word character.
const DefaultIdentifierPattern = `\w[\w-]*`

// Dispatcher is the uniform capability a relation target must provide.
// Any implementor can be nested under a parent resource without being
// registered in a registry of its own.
type Dispatcher interface {
	Name() string
	Dispatch(shape Shape, w http.ResponseWriter, r *http.Request, rctx *Context) error
}

// Descriptor configures a resource. Zero values select the documented
// defaults; New validates the descriptor and returns an immutable
// Resource.
type Descriptor struct {
	// Name is the unique resource name and first URL segment.
	Name string

	// IdentifierAttribute is the object attribute used in detail URIs.
	// Defaults to "id".
	IdentifierAttribute string

	// IdentifierPattern is the regex an identifier path segment must
	// match. Defaults to DefaultIdentifierPattern.
	IdentifierPattern string

	// Allowed maps a request shape to its permitted verbs. Only the
	// list, detail, and nested shapes are configurable. The nested set
	// gates requests delegated through a parent; when empty the
	// delegated shape's own set applies.
	Allowed map[Shape][]string

	// Store is the persistence capability. Required.
	Store store.Store

	// Authorization gates and narrows access. Defaults to AllowAll.
	Authorization Authorization

	// Authenticator identifies the caller. Defaults to auth.Anonymous.
	Authenticator auth.Authenticator

	// Throttle rate-limits dispatches when set.
	Throttle throttle.Throttler

	// Cache backs single-object resolution, including parent resolution
	// for nested requests. Nil disables caching.
	Cache cache.Cache

	// Log receives dispatch diagnostics. Defaults to a nop logger.
	Log *zap.Logger

	// Relations lists the resources reachable under this resource's
	// detail URI, by explicit name.
	Relations []Relation

	// Actions lists extra verb+subpath endpoints under the detail URI.
	Actions []DetailAction

	// Handlers overrides entries of the default handler set.
	Handlers map[HandlerKey]HandlerFunc
}

// Relation exposes a target resource under this resource's detail URI.
// The accessor is the parent attribute named by Attribute, or the
// Derive function when no attribute is named; Attribute wins when both
// are set.
type Relation struct {
	// Name is the URL segment and hook key for this relation.
	Name string

	// To handles requests delegated through this relation.
	To Dispatcher

	// Attribute names the parent object attribute holding the related
	// value: a store.RelatedSet for collections or a child object.
	Attribute string

	// Derive computes the related value from the parent object.
	Derive store.Accessor
}

// DetailAction is a custom endpoint mounted under the detail URI.
type DetailAction struct {
	// Path is the URL segment appended after the identifier.
	Path string

	// Methods lists the verbs the action accepts. Defaults to GET.
	Methods []string

	// Handler serves the action.
	Handler HandlerFunc
}

// HandlerKey addresses one entry of a resource's handler set.
type HandlerKey struct {
	Method string
	Shape  Shape
}

// Resource is a validated, immutable REST resource. Create one with
// New.
type Resource struct {
	name                string
	identifierAttribute string
	identifierPattern   string
	identifierRx        *regexp.Regexp

	allowed  map[Shape][]string
	store    store.Store
	authz    Authorization
	authn    auth.Authenticator
	throttle throttle.Throttler
	cache    cache.Cache
	keys     *cache.KeyGenerator
	log      *zap.Logger

	relations []Relation
	actions   []DetailAction
	handlers  map[HandlerKey]HandlerFunc

	// uri reverses an object into its detail URI once the resource is
	// registered.
	uri func(store.Object) (string, error)
}

var segmentRx = regexp.MustCompile(`^\w[\w-]*$`)

// New validates the descriptor and builds a resource. Configuration
// defects are reported as ErrConfiguration wraps.
func New(d Descriptor) (*Resource, error) {
	if d.Name == "" {
		return nil, configErrorf("resource name is required")
	}
	if !segmentRx.MatchString(d.Name) {
		return nil, configErrorf("resource name %q is not a valid URL segment", d.Name)
	}
	if d.Store == nil {
		return nil, configErrorf("resource %q has no store", d.Name)
	}

	rsc := &Resource{
		name:                d.Name,
		identifierAttribute: d.IdentifierAttribute,
		identifierPattern:   d.IdentifierPattern,
		store:               d.Store,
		authz:               d.Authorization,
		authn:               d.Authenticator,
		throttle:            d.Throttle,
		cache:               d.Cache,
		keys:                cache.DefaultKeyGenerator(),
		log:                 d.Log,
	}

	if rsc.identifierAttribute == "" {
		rsc.identifierAttribute = "id"
	}
	if rsc.identifierPattern == "" {
		rsc.identifierPattern = DefaultIdentifierPattern
	}
	rx, err := regexp.Compile(`^(?:` + rsc.identifierPattern + `)$`)
	if err != nil {
		return nil, configErrorf("resource %q identifier pattern %q does not compile: %v",
			d.Name, rsc.identifierPattern, err)
	}
	rsc.identifierRx = rx

	if rsc.authz == nil {
		rsc.authz = AllowAll{}
	}
	if rsc.authn == nil {
		rsc.authn = auth.Anonymous{}
	}
	if rsc.log == nil {
		rsc.log = zap.NewNop()
	}

	if err := rsc.buildAllowed(d.Allowed); err != nil {
		return nil, err
	}
	if err := rsc.buildRelations(d.Relations); err != nil {
		return nil, err
	}
	if err := rsc.buildActions(d.Actions); err != nil {
		return nil, err
	}

	rsc.handlers = rsc.defaultHandlers()
	for key, handler := range d.Handlers {
		if handler == nil {
			return nil, configErrorf("resource %q handler override %s %s is nil",
				d.Name, key.Method, key.Shape)
		}
		rsc.handlers[HandlerKey{Method: strings.ToUpper(key.Method), Shape: key.Shape}] = handler
	}

	return rsc, nil
}

// defaultAllowed returns the verb sets applied when the descriptor
// leaves a shape unconfigured. List deliberately omits DELETE and
// detail omits POST; the corresponding unimplemented paths stay
// reachable for the shapes that allow more verbs than the default
// handler set binds.
func defaultAllowed() map[Shape][]string {
	return map[Shape][]string{
		ShapeList:   {http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		ShapeDetail: {http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete},
		ShapeNested: {http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}
}

func (rsc *Resource) buildAllowed(configured map[Shape][]string) error {
	rsc.allowed = defaultAllowed()
	for shape, verbs := range configured {
		switch shape {
		case ShapeList, ShapeDetail, ShapeNested:
		default:
			return configErrorf("resource %q configures verbs for unknown shape %q", rsc.name, shape)
		}
		normalized := make([]string, 0, len(verbs))
		for _, verb := range verbs {
			normalized = append(normalized, strings.ToUpper(verb))
		}
		rsc.allowed[shape] = normalized
	}
	return nil
}

func (rsc *Resource) buildRelations(relations []Relation) error {
	seen := make(map[string]struct{}, len(relations))
	rsc.relations = make([]Relation, 0, len(relations))
	for _, rel := range relations {
		if rel.Name == "" || !segmentRx.MatchString(rel.Name) {
			return configErrorf("resource %q relation name %q is not a valid URL segment", rsc.name, rel.Name)
		}
		if _, dup := seen[rel.Name]; dup {
			return configErrorf("resource %q declares relation %q twice", rsc.name, rel.Name)
		}
		if rel.To == nil {
			return configErrorf("resource %q relation %q has no target", rsc.name, rel.Name)
		}
		if rel.Attribute == "" && rel.Derive == nil {
			return configErrorf("resource %q relation %q has neither an attribute nor a derive function",
				rsc.name, rel.Name)
		}
		seen[rel.Name] = struct{}{}
		rsc.relations = append(rsc.relations, rel)
	}
	return nil
}

func (rsc *Resource) buildActions(actions []DetailAction) error {
	seen := make(map[string]struct{}, len(actions))
	rsc.actions = make([]DetailAction, 0, len(actions))
	for _, action := range actions {
		if action.Path == "" || !segmentRx.MatchString(action.Path) {
			return configErrorf("resource %q action path %q is not a valid URL segment", rsc.name, action.Path)
		}
		if _, dup := seen[action.Path]; dup {
			return configErrorf("resource %q declares action %q twice", rsc.name, action.Path)
		}
		if action.Handler == nil {
			return configErrorf("resource %q action %q has no handler", rsc.name, action.Path)
		}
		if len(action.Methods) == 0 {
			action.Methods = []string{http.MethodGet}
		} else {
			normalized := make([]string, 0, len(action.Methods))
			for _, verb := range action.Methods {
				normalized = append(normalized, strings.ToUpper(verb))
			}
			action.Methods = normalized
		}
		seen[action.Path] = struct{}{}
		rsc.actions = append(rsc.actions, action)
	}
	return nil
}

// Name returns the resource name.
func (rsc *Resource) Name() string {
	return rsc.name
}

// IdentifierAttribute returns the attribute used in detail URIs.
func (rsc *Resource) IdentifierAttribute() string {
	return rsc.identifierAttribute
}

// URI reverses an object into its detail URI. The resource must be
// registered and the object must carry the identifier attribute.
func (rsc *Resource) URI(obj store.Object) (string, error) {
	if rsc.uri == nil {
		return "", fmt.Errorf("resource %q is not registered, no URI prefix known", rsc.name)
	}
	return rsc.uri(obj)
}

// relation returns the named relation.
func (rsc *Resource) relation(name string) (*Relation, bool) {
	for i := range rsc.relations {
		if rsc.relations[i].Name == name {
			return &rsc.relations[i], true
		}
	}
	return nil, false
}

// allowedMethods returns the verb set gating the given shape. Nested
// requests consult the nested set, falling back to the delegated
// shape's set when it is empty. Schema and set endpoints are read-only.
func (rsc *Resource) allowedMethods(shape Shape, rctx *Context) []string {
	switch shape {
	case ShapeSchema, ShapeSet:
		return []string{http.MethodGet}
	}
	if rctx != nil && rctx.IsNested() {
		if nested := rsc.allowed[ShapeNested]; len(nested) > 0 {
			return nested
		}
	}
	return rsc.allowed[shape]
}

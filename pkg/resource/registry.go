package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nestful/nestful/pkg/response"
	"github.com/nestful/nestful/pkg/store"
)

// Registry mounts resources under a shared URL prefix and serves them.
// Routes are matched with trailing slashes normalized away, and
// unmatched paths answer with the standard JSON error envelope.
type Registry struct {
	prefix    string
	mux       *chi.Mux
	resources map[string]*Resource
	order     []string
	routes    []Route
	log       *zap.Logger
}

// RegistryOption configures a registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger, inherited by nothing; resources
// carry their own.
func WithLogger(log *zap.Logger) RegistryOption {
	return func(reg *Registry) {
		reg.log = log
	}
}

// NewRegistry creates a registry mounted at prefix, such as "/api/v1".
// An empty prefix mounts at the root.
func NewRegistry(prefix string, opts ...RegistryOption) *Registry {
	reg := &Registry{
		prefix:    normalizePrefix(prefix),
		mux:       chi.NewRouter(),
		resources: make(map[string]*Resource),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(reg)
	}

	reg.mux.Use(chimiddleware.StripSlashes)
	reg.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Write(w, response.NotFound(""))
	})
	reg.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Write(w, response.MethodNotAllowed())
	})

	return reg
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// Register mounts a resource. Registering two resources with the same
// name is a configuration error.
func (reg *Registry) Register(rsc *Resource) error {
	if _, dup := reg.resources[rsc.name]; dup {
		return configErrorf("resource %q is already registered", rsc.name)
	}

	prefix := reg.prefix
	rsc.uri = func(obj store.Object) (string, error) {
		value, ok := obj[rsc.identifierAttribute]
		if !ok || value == nil {
			return "", fmt.Errorf("object has no %q attribute to build a URI from", rsc.identifierAttribute)
		}
		return fmt.Sprintf("%s/%s/%v", prefix, rsc.name, value), nil
	}

	for _, route := range rsc.buildRoutes() {
		route.Pattern = reg.prefix + route.Pattern
		reg.mux.HandleFunc(route.Pattern, route.handler)
		reg.routes = append(reg.routes, route)
	}

	reg.resources[rsc.name] = rsc
	reg.order = append(reg.order, rsc.name)
	return nil
}

// Resource returns the registered resource with the given name.
func (reg *Registry) Resource(name string) (*Resource, bool) {
	rsc, ok := reg.resources[name]
	return rsc, ok
}

// Routes returns the mounted routes in registration and precedence
// order.
func (reg *Registry) Routes() []Route {
	out := make([]Route, len(reg.routes))
	copy(out, reg.routes)
	return out
}

// ServeHTTP serves the mounted resources.
func (reg *Registry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reg.mux.ServeHTTP(w, r)
}

// URI reverses an object of the named resource into its detail URI.
func (reg *Registry) URI(name string, obj store.Object) (string, error) {
	rsc, ok := reg.resources[name]
	if !ok {
		return "", fmt.Errorf("no resource named %q is registered", name)
	}
	return rsc.URI(obj)
}

// Resolve turns an API detail URI back into its resource and object.
// The lookup is unscoped; callers holding a request should run their
// own authorization against the result.
func (reg *Registry) Resolve(ctx context.Context, uri string) (*Resource, store.Object, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, nil, resolveError(uri)
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	if reg.prefix != "" {
		if !strings.HasPrefix(path, reg.prefix+"/") {
			return nil, nil, resolveError(uri)
		}
		path = strings.TrimPrefix(path, reg.prefix)
	}

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) != 2 {
		return nil, nil, resolveError(uri)
	}

	rsc, ok := reg.resources[segments[0]]
	if !ok {
		return nil, nil, resolveError(uri)
	}

	identifier, err := url.PathUnescape(segments[1])
	if err != nil || !rsc.identifierRx.MatchString(identifier) {
		return nil, nil, resolveError(uri)
	}

	obj, err := rsc.resolveAny(ctx, rsc.detailFilters(identifier))
	if err != nil {
		return nil, nil, err
	}
	return rsc, obj, nil
}

func resolveError(uri string) error {
	return fmt.Errorf("the URL %q is not a link to a valid resource: %w", uri, store.ErrNotFound)
}

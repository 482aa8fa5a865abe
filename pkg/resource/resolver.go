package resource

import (
	"context"
	"net/http"

	"github.com/nestful/nestful/pkg/store"
)

// resolve turns filters into exactly one object, applying
// authorization scoping before uniqueness is judged. Zero matches yield
// store.ErrNotFound, more than one store.ErrMultipleObjects; filter
// values the backend cannot interpret surface as store.ErrInvalidLookup
// from the store itself.
func (rsc *Resource) resolve(ctx context.Context, r *http.Request, rctx *Context, filters store.Filters) (store.Object, error) {
	filters = scrubReserved(filters)

	objects, err := rsc.store.Filter(ctx, filters)
	if err != nil {
		return nil, err
	}

	objects = rsc.limitObjects(r, rctx, ShapeDetail, objects)

	return rsc.exactlyOne(objects, filters)
}

// resolveAny is resolve without authorization scoping, for internal
// callers that must observe the full object set and run their own
// checks.
func (rsc *Resource) resolveAny(ctx context.Context, filters store.Filters) (store.Object, error) {
	filters = scrubReserved(filters)

	objects, err := rsc.store.Filter(ctx, filters)
	if err != nil {
		return nil, err
	}

	return rsc.exactlyOne(objects, filters)
}

// limitObjects applies the scoping appropriate to the request: the
// parent's per-relation hook for nested requests when one is
// registered, otherwise the resource's own authorization. An
// unregistered relation hook narrows nothing.
func (rsc *Resource) limitObjects(r *http.Request, rctx *Context, shape Shape, objects []store.Object) []store.Object {
	if rctx != nil && rctx.IsNested() {
		link := rctx.Parent()
		if hooks, ok := link.Resource.authz.(RelationHooks); ok {
			if limit, ok := hooks.RelationLimit(link.Relation); ok {
				return limit(r, link.Object, objects)
			}
		}
		return objects
	}
	return rsc.authz.Limit(r, shape, objects)
}

func (rsc *Resource) exactlyOne(objects []store.Object, filters store.Filters) (store.Object, error) {
	switch len(objects) {
	case 0:
		return nil, notFoundf(rsc.name, filters)
	case 1:
		return objects[0], nil
	default:
		return nil, multipleFoundf(rsc.name, filters)
	}
}

package resource

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nestful/nestful/pkg/response"
	"github.com/nestful/nestful/pkg/store"
)

// dispatchNested serves ALL /{name}/{identifier}/{relation}. The parent
// resource authenticates and throttles, resolves itself through the
// resolution cache, locates the related value, and delegates to the
// relation target with the parent chain extended. The target runs its
// own dispatch states, so its authenticator and verb sets apply to the
// delegated request.
func (rsc *Resource) dispatchNested(relationName string, w http.ResponseWriter, r *http.Request) error {
	rel, ok := rsc.relation(relationName)
	if !ok {
		return configErrorf("resource %q routed unknown relation %q", rsc.name, relationName)
	}

	r, ok = rsc.authenticate(w, r)
	if !ok {
		return nil
	}
	if !rsc.throttleCheck(w, r) {
		return nil
	}

	identifier := chi.URLParam(r, rsc.identifierAttribute)
	filters := rsc.detailFilters(identifier)

	parent, err := rsc.parentGet(r.Context(), r, filters)
	if err != nil {
		switch {
		case store.IsMultipleObjects(err):
			return response.Write(w, response.MultipleChoices("More than one parent resource is found at this URI."))
		case store.IsNotFound(err):
			return response.Write(w, response.NotFound(""))
		case store.IsInvalidLookup(err):
			return response.Write(w, response.BadRequest("Invalid resource lookup data provided (mismatched type)."))
		default:
			return err
		}
	}

	related, err := rel.access(r.Context(), parent)
	if err != nil {
		return err
	}

	// Params start empty so the parent identifier never leaks into the
	// nested resource's filters.
	rctx := NewContext()
	rctx.Parents = append(rctx.Parents, ParentLink{
		Resource: rsc,
		Object:   parent,
		Relation: relationName,
	})

	shape := ShapeDetail
	switch v := related.(type) {
	case store.RelatedSet:
		shape = ShapeList
		rctx.Related = v
		for key, value := range scrubReserved(v.CoreFilters()) {
			rctx.Params[key] = value
		}
	case nil:
		rctx.CarryChild(nil)
	case store.Object:
		rctx.CarryChild(v)
	case map[string]interface{}:
		rctx.CarryChild(store.Object(v))
	default:
		return configErrorf("resource %q relation %q accessor produced %T, want store.RelatedSet or store.Object",
			rsc.name, relationName, related)
	}

	return rel.To.Dispatch(shape, w, r, rctx)
}

// access locates the related value on the parent: the named attribute
// when configured, the derive function otherwise. A configured
// attribute missing from the object reads as nil, which downstream
// renders as not-found rather than a configuration defect. A derive
// function reporting not-found likewise reads as nil.
func (rel *Relation) access(ctx context.Context, parent store.Object) (interface{}, error) {
	if rel.Attribute != "" {
		return parent[rel.Attribute], nil
	}
	if rel.Derive != nil {
		value, err := rel.Derive(ctx, parent)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return value, nil
	}
	return nil, configErrorf("relation %q has neither an attribute nor a derive function", rel.Name)
}

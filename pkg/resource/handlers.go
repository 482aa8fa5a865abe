package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nestful/nestful/pkg/response"
	"github.com/nestful/nestful/pkg/store"
)

// Paging bounds for list responses.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// defaultHandlers binds the stock CRUD, schema, and bulk-get handlers.
// PUT, PATCH, and DELETE on lists and POST on details stay unbound;
// those verbs remain in the allowed sets so their paths answer 501.
func (rsc *Resource) defaultHandlers() map[HandlerKey]HandlerFunc {
	return map[HandlerKey]HandlerFunc{
		{Method: http.MethodGet, Shape: ShapeList}:      rsc.getList,
		{Method: http.MethodPost, Shape: ShapeList}:     rsc.postList,
		{Method: http.MethodGet, Shape: ShapeDetail}:    rsc.getDetail,
		{Method: http.MethodPut, Shape: ShapeDetail}:    rsc.putDetail,
		{Method: http.MethodPatch, Shape: ShapeDetail}:  rsc.patchDetail,
		{Method: http.MethodDelete, Shape: ShapeDetail}: rsc.deleteDetail,
		{Method: http.MethodGet, Shape: ShapeSchema}:    rsc.getSchema,
		{Method: http.MethodGet, Shape: ShapeSet}:       rsc.getSet,
	}
}

// getList serves collections: the related set for nested requests, a
// filtered store query otherwise, with authorization narrowing and
// limit/offset paging.
func (rsc *Resource) getList(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
	limit, offset, err := pagingParams(r)
	if err != nil {
		return Result{}, err
	}

	var objects []store.Object
	if rctx.Related != nil {
		objects, err = rctx.Related.All(ctx)
	} else {
		objects, err = rsc.store.Filter(ctx, scrubReserved(rctx.Params))
	}
	if err != nil {
		return Result{}, err
	}

	objects = rsc.limitObjects(r, rctx, ShapeList, objects)

	total := len(objects)
	page := pageSlice(objects, limit, offset)

	out := make([]store.Object, 0, len(page))
	for _, obj := range page {
		out = append(out, serializable(obj))
	}

	return Respond(response.List(out, response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})), nil
}

// postList creates an object. URL-derived filters overwrite body fields
// so a nested create cannot detach itself from its parent linkage.
func (rsc *Resource) postList(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
	payload, err := decodeBody(r)
	if err != nil {
		return Respond(response.BadRequest(err.Error())), nil
	}

	obj := store.Object(payload)
	for key, value := range scrubReserved(rctx.Params) {
		obj[key] = value
	}

	var saved store.Object
	if rctx.Related != nil {
		saved, err = rctx.Related.Add(ctx, obj)
	} else {
		saved, err = rsc.store.Save(ctx, obj)
	}
	if err != nil {
		return Result{}, err
	}

	location := ""
	if rsc.uri != nil {
		if u, uriErr := rsc.uri(saved); uriErr == nil {
			location = u
		}
	}

	return Respond(response.Created(serializable(saved), location)), nil
}

// getDetail serves one object: the child carried by the nested engine
// when present, a cached resolution otherwise.
func (rsc *Resource) getDetail(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
	if rctx.HasChild() {
		if rctx.Child() == nil {
			return Respond(response.NotFound("")), nil
		}
		return Respond(response.JSON(serializable(rctx.Child()))), nil
	}

	obj, err := rsc.cachedGet(ctx, r, rctx, rctx.Params)
	if err != nil {
		return Result{}, err
	}
	return Respond(response.JSON(serializable(obj))), nil
}

// putDetail replaces every non-identifier field with the request body.
func (rsc *Resource) putDetail(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
	current, err := rsc.currentObject(ctx, r, rctx)
	if err != nil {
		return Result{}, err
	}

	payload, err := decodeBody(r)
	if err != nil {
		return Respond(response.BadRequest(err.Error())), nil
	}

	replacement := store.Object{
		rsc.identifierAttribute: current[rsc.identifierAttribute],
	}
	for key, value := range payload {
		if key == rsc.identifierAttribute {
			continue
		}
		replacement[key] = value
	}
	rsc.overlayParams(replacement, rctx)

	saved, err := rsc.store.Save(ctx, replacement)
	if err != nil {
		return Result{}, err
	}
	rsc.invalidateDetail(ctx, rctx)

	return Respond(response.JSON(serializable(saved))), nil
}

// patchDetail merges the request body over the current object.
func (rsc *Resource) patchDetail(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
	current, err := rsc.currentObject(ctx, r, rctx)
	if err != nil {
		return Result{}, err
	}

	payload, err := decodeBody(r)
	if err != nil {
		return Respond(response.BadRequest(err.Error())), nil
	}

	merged := current.Clone()
	for key, value := range payload {
		if key == rsc.identifierAttribute {
			continue
		}
		merged[key] = value
	}
	rsc.overlayParams(merged, rctx)

	saved, err := rsc.store.Save(ctx, merged)
	if err != nil {
		return Result{}, err
	}
	rsc.invalidateDetail(ctx, rctx)

	return Respond(response.JSON(serializable(saved))), nil
}

// deleteDetail removes the addressed object.
func (rsc *Resource) deleteDetail(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
	current, err := rsc.currentObject(ctx, r, rctx)
	if err != nil {
		return Result{}, err
	}

	if err := rsc.store.Delete(ctx, current); err != nil {
		return Result{}, err
	}
	rsc.invalidateDetail(ctx, rctx)

	return Accepted(), nil
}

// getSchema serves the descriptor introspection document.
func (rsc *Resource) getSchema(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
	relations := make([]map[string]interface{}, 0, len(rsc.relations))
	for _, rel := range rsc.relations {
		entry := map[string]interface{}{
			"name":   rel.Name,
			"target": rel.To.Name(),
		}
		if rel.Attribute != "" {
			entry["attribute"] = rel.Attribute
		} else {
			entry["derived"] = true
		}
		relations = append(relations, entry)
	}

	actions := make([]map[string]interface{}, 0, len(rsc.actions))
	for _, action := range rsc.actions {
		actions = append(actions, map[string]interface{}{
			"path":    action.Path,
			"methods": action.Methods,
		})
	}

	return Respond(response.JSON(map[string]interface{}{
		"name":                 rsc.name,
		"identifier_attribute": rsc.identifierAttribute,
		"identifier_pattern":   rsc.identifierPattern,
		"allowed": map[Shape][]string{
			ShapeList:   rsc.allowed[ShapeList],
			ShapeDetail: rsc.allowed[ShapeDetail],
			ShapeNested: rsc.allowed[ShapeNested],
		},
		"relations": relations,
		"actions":   actions,
	})), nil
}

// getSet serves bulk-get: each identifier in the semicolon-separated
// list resolves independently with authorization scoping; identifiers
// that resolve to nothing are reported in not_found rather than failing
// the request.
func (rsc *Resource) getSet(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
	raw, _ := rctx.Params[rsc.identifierAttribute+"_list"].(string)

	objects := make([]store.Object, 0)
	notFound := make([]string, 0)

	for _, identifier := range strings.Split(raw, ";") {
		if identifier == "" {
			continue
		}
		obj, err := rsc.resolve(ctx, r, rctx, store.Filters{rsc.identifierAttribute: identifier})
		switch {
		case err == nil:
			objects = append(objects, serializable(obj))
		case store.IsNotFound(err):
			notFound = append(notFound, identifier)
		default:
			return Result{}, err
		}
	}

	body := map[string]interface{}{"objects": objects}
	if len(notFound) > 0 {
		body["not_found"] = notFound
	}
	return Respond(response.JSON(body)), nil
}

// currentObject locates the object a detail mutation addresses: the
// carried child for nested requests, a scoped resolution otherwise.
// Mutations bypass the cache so they always act on fresh state.
func (rsc *Resource) currentObject(ctx context.Context, r *http.Request, rctx *Context) (store.Object, error) {
	if rctx.HasChild() {
		if rctx.Child() == nil {
			return nil, notFoundf(rsc.name, rctx.Params)
		}
		return rctx.Child(), nil
	}
	return rsc.resolve(ctx, r, rctx, rctx.Params)
}

// overlayParams writes the URL-derived filters over an object so
// linkage constraints stay authoritative, leaving the identifier to the
// resolved object.
func (rsc *Resource) overlayParams(obj store.Object, rctx *Context) {
	for key, value := range scrubReserved(rctx.Params) {
		if key == rsc.identifierAttribute {
			continue
		}
		obj[key] = value
	}
}

// invalidateDetail drops the cached resolution for a URL-addressed
// object after a mutation. Child-carried objects have no detail key of
// their own.
func (rsc *Resource) invalidateDetail(ctx context.Context, rctx *Context) {
	if rctx.HasChild() || len(rctx.Params) == 0 {
		return
	}
	rsc.invalidate(ctx, rctx.Params)
}

// serializable returns a copy of the object safe to render: related-set
// handles and routing bookkeeping never appear in payloads.
func serializable(obj store.Object) store.Object {
	out := make(store.Object, len(obj))
	for key, value := range obj {
		if _, reserved := reservedParams[key]; reserved {
			continue
		}
		if _, isSet := value.(store.RelatedSet); isSet {
			continue
		}
		out[key] = value
	}
	return out
}

// decodeBody parses a JSON object request body.
func decodeBody(r *http.Request) (map[string]interface{}, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("request body is required")
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed JSON body: %v", err)
	}
	return payload, nil
}

// pagingParams reads limit and offset from the query string. Values
// that do not parse or are negative are invalid lookups; a zero or
// absent limit selects the default.
func pagingParams(r *http.Request) (limit, offset int, err error) {
	limit = DefaultPageLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid limit %q: %w", raw, store.ErrInvalidLookup)
		}
		if parsed > 0 {
			limit = parsed
		}
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q: %w", raw, store.ErrInvalidLookup)
		}
		offset = parsed
	}

	return limit, offset, nil
}

func pageSlice(objects []store.Object, limit, offset int) []store.Object {
	if offset >= len(objects) {
		return []store.Object{}
	}
	end := offset + limit
	if end > len(objects) {
		end = len(objects)
	}
	return objects[offset:end]
}

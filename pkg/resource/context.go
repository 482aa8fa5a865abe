package resource

import (
	"github.com/nestful/nestful/pkg/store"
)

// ParentLink records one step of the nested dispatch chain: the parent
// resource that ran the engine, the object it resolved, and the
// relation the request traversed.
type ParentLink struct {
	Resource *Resource
	Object   store.Object
	Relation string
}

// Context carries the per-request resource state through dispatch:
// URL-derived filters, the parent chain for nested requests, and the
// related value located by the nested engine.
type Context struct {
	// Params holds the URL-derived filters forwarded to handlers. The
	// nested engine strips the parent identifier before delegation and
	// merges the related set's core filters in its place.
	Params store.Filters

	// Parents is the nested dispatch chain, outermost first.
	Parents []ParentLink

	// Related is the collection accessor for nested list requests.
	Related store.RelatedSet

	child        store.Object
	childCarried bool

	methodOverridden bool
}

// NewContext returns an empty dispatch context.
func NewContext() *Context {
	return &Context{Params: store.Filters{}}
}

// IsNested reports whether the request was delegated through a parent.
func (c *Context) IsNested() bool {
	return len(c.Parents) > 0
}

// Parent returns the innermost parent link, or nil for top-level
// requests.
func (c *Context) Parent() *ParentLink {
	if len(c.Parents) == 0 {
		return nil
	}
	return &c.Parents[len(c.Parents)-1]
}

// CarryChild attaches the single related object located by the nested
// engine. A nil child is carried deliberately and renders as not-found
// in the detail handler.
func (c *Context) CarryChild(obj store.Object) {
	c.child = obj
	c.childCarried = true
}

// HasChild reports whether a child object was carried, including a nil
// one.
func (c *Context) HasChild() bool {
	return c.childCarried
}

// Child returns the carried child object.
func (c *Context) Child() store.Object {
	return c.child
}

// reservedParams are routing bookkeeping keys that must never reach a
// store as filters or object fields.
var reservedParams = map[string]struct{}{
	"api_name":        {},
	"resource_name":   {},
	"relation":        {},
	"related_set":     {},
	"child_object":    {},
	"parent_resource": {},
	"parent_object":   {},
}

// scrubReserved returns filters with bookkeeping keys removed. The
// input is not modified.
func scrubReserved(filters store.Filters) store.Filters {
	cleaned := make(store.Filters, len(filters))
	for key, value := range filters {
		if _, reserved := reservedParams[key]; reserved {
			continue
		}
		cleaned[key] = value
	}
	return cleaned
}

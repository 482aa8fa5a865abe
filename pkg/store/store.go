// Package store defines the persistence capability consumed by the resource
// dispatch engine. Records are schemaless maps so resources stay decoupled
// from any particular backend; implementations translate filter maps into
// their native lookup semantics and report outcomes through the shared
// sentinel errors.
package store

import (
	"context"
	"errors"
)

// Object is a single persisted record.
type Object map[string]interface{}

// Clone returns a shallow copy of the object.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Filters is a set of attribute constraints. A scalar value means equality;
// a slice value means membership.
type Filters map[string]interface{}

// Clone returns a shallow copy of the filter set.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge returns a new filter set with entries from other overriding f.
func (f Filters) Merge(other Filters) Filters {
	out := f.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Store is the minimal persistence surface a resource needs.
type Store interface {
	// Filter returns all objects matching the filter set.
	Filter(ctx context.Context, filters Filters) ([]Object, error)

	// Get returns the single object matching the filter set. It returns
	// ErrNotFound for zero matches and ErrMultipleObjects for more than one.
	Get(ctx context.Context, filters Filters) (Object, error)

	// Save persists the object, assigning an identifier when it has none,
	// and returns the stored form.
	Save(ctx context.Context, obj Object) (Object, error)

	// Delete removes the object. It returns ErrNotFound when the object
	// does not exist.
	Delete(ctx context.Context, obj Object) error
}

// RelatedSet is a handle on a collection of objects scoped to a parent,
// the dispatch-side analog of a relation accessor result. Anything exposing
// this capability is treated as a collection by the nested dispatch engine.
type RelatedSet interface {
	// All returns every object in the set.
	All(ctx context.Context) ([]Object, error)

	// CoreFilters returns the constraints tying the set to its parent.
	CoreFilters() Filters

	// Add links an object into the set and persists it.
	Add(ctx context.Context, obj Object) (Object, error)
}

// Lookup outcome errors shared by all implementations
var (
	// ErrNotFound is returned when a lookup matches no objects
	ErrNotFound = errors.New("object not found")

	// ErrMultipleObjects is returned when a single-object lookup matches
	// more than one object
	ErrMultipleObjects = errors.New("multiple objects returned")

	// ErrInvalidLookup is returned when a filter value cannot be applied to
	// the backing attribute, as distinct from matching nothing
	ErrInvalidLookup = errors.New("invalid lookup value")
)

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMultipleObjects returns true if the error is ErrMultipleObjects
func IsMultipleObjects(err error) bool {
	return errors.Is(err, ErrMultipleObjects)
}

// IsInvalidLookup returns true if the error is ErrInvalidLookup
func IsInvalidLookup(err error) bool {
	return errors.Is(err, ErrInvalidLookup)
}

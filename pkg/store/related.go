package store

import (
	"context"
	"fmt"
)

// relatedSet scopes a Store to the objects matching a fixed core filter
// set. It works over any Store implementation.
type relatedSet struct {
	store Store
	core  Filters
}

// NewRelatedSet returns a RelatedSet over the objects of s matching core.
// The core filters are the constraints tying members to their parent; Add
// applies them to new objects before saving.
func NewRelatedSet(s Store, core Filters) RelatedSet {
	return &relatedSet{store: s, core: core.Clone()}
}

// All returns every object in the set.
func (r *relatedSet) All(ctx context.Context) ([]Object, error) {
	return r.store.Filter(ctx, r.core)
}

// CoreFilters returns a copy of the constraints tying the set to its parent.
func (r *relatedSet) CoreFilters() Filters {
	return r.core.Clone()
}

// Add stamps the core filters onto the object and saves it.
func (r *relatedSet) Add(ctx context.Context, obj Object) (Object, error) {
	record := obj.Clone()
	if record == nil {
		record = Object{}
	}
	for k, v := range r.core {
		record[k] = v
	}
	return r.store.Save(ctx, record)
}

// Accessor derives a relation value from a parent object. The result is a
// RelatedSet for collections, an Object (or nil) for single relations.
type Accessor func(ctx context.Context, parent Object) (interface{}, error)

// ForeignKey returns an Accessor exposing the child objects whose fk
// attribute equals the parent's attr value, as a RelatedSet.
func ForeignKey(child Store, fk, attr string) Accessor {
	return func(ctx context.Context, parent Object) (interface{}, error) {
		value, ok := parent[attr]
		if !ok {
			return nil, fmt.Errorf("parent object has no %q attribute", attr)
		}
		return NewRelatedSet(child, Filters{fk: value}), nil
	}
}

// Reference returns an Accessor resolving the single target object whose
// attr value equals the parent's fk attribute. A nil fk value or a missing
// target yields nil rather than an error.
func Reference(target Store, attr, fk string) Accessor {
	return func(ctx context.Context, parent Object) (interface{}, error) {
		value, ok := parent[fk]
		if !ok || value == nil {
			return nil, nil
		}
		obj, err := target.Get(ctx, Filters{attr: value})
		if err != nil {
			if IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return obj, nil
	}
}

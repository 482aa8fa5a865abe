package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory Store keyed by an identifier attribute. It is
// safe for concurrent use and preserves insertion order in Filter results.
type Memory struct {
	mu         sync.RWMutex
	identifier string
	objects    map[string]Object
	order      []string
}

// NewMemory creates an in-memory store keyed by the given identifier
// attribute. An empty attribute defaults to "id".
func NewMemory(identifier string) *Memory {
	if identifier == "" {
		identifier = "id"
	}
	return &Memory{
		identifier: identifier,
		objects:    make(map[string]Object),
	}
}

// Seed saves the given objects, panicking on error. It is intended for
// tests and example setup only.
func (m *Memory) Seed(objs ...Object) *Memory {
	for _, obj := range objs {
		if _, err := m.Save(context.Background(), obj); err != nil {
			panic(fmt.Sprintf("store: seed failed: %v", err))
		}
	}
	return m
}

// Filter returns all objects matching the filter set in insertion order.
func (m *Memory) Filter(ctx context.Context, filters Filters) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Object
	for _, key := range m.order {
		obj := m.objects[key]
		ok, err := matchObject(obj, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, obj.Clone())
		}
	}
	return results, nil
}

// Get returns the single object matching the filter set.
func (m *Memory) Get(ctx context.Context, filters Filters) (Object, error) {
	results, err := m.Filter(ctx, filters)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, fmt.Errorf("%w: no object matches %v", ErrNotFound, filters)
	case 1:
		return results[0], nil
	default:
		return nil, fmt.Errorf("%w: %d objects match %v", ErrMultipleObjects, len(results), filters)
	}
}

// Save stores a copy of the object, generating a UUID identifier when the
// object has none, and returns the stored form.
func (m *Memory) Save(ctx context.Context, obj Object) (Object, error) {
	record := obj.Clone()
	if record == nil {
		record = Object{}
	}
	if v, ok := record[m.identifier]; !ok || v == nil {
		record[m.identifier] = uuid.New().String()
	}

	key := identifierKey(record[m.identifier])

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; !exists {
		m.order = append(m.order, key)
	}
	m.objects[key] = record
	return record.Clone(), nil
}

// Delete removes the object by its identifier attribute.
func (m *Memory) Delete(ctx context.Context, obj Object) error {
	v, ok := obj[m.identifier]
	if !ok || v == nil {
		return fmt.Errorf("%w: object has no %q attribute", ErrNotFound, m.identifier)
	}
	key := identifierKey(v)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; !exists {
		return fmt.Errorf("%w: %s=%s", ErrNotFound, m.identifier, key)
	}
	delete(m.objects, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// identifierKey normalizes an identifier value into a map key.
func identifierKey(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// matchObject reports whether an object satisfies every filter entry.
func matchObject(obj Object, filters Filters) (bool, error) {
	for attr, want := range filters {
		have, ok := obj[attr]
		if !ok {
			return false, nil
		}
		matched, err := matchValue(have, want)
		if err != nil {
			return false, fmt.Errorf("%w: attribute %q: %v", ErrInvalidLookup, attr, err)
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// matchValue compares a stored attribute against a filter value. Slice
// filter values mean membership. String filter values are coerced toward
// the stored type; a value that cannot be coerced is an invalid lookup,
// not a miss.
func matchValue(have, want interface{}) (bool, error) {
	switch w := want.(type) {
	case []interface{}:
		for _, elem := range w {
			ok, err := matchValue(have, elem)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case []string:
		for _, elem := range w {
			ok, err := matchValue(have, elem)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	if want == nil || have == nil {
		return have == nil && want == nil, nil
	}

	if hn, hok := toFloat(have); hok {
		if wn, wok := toFloat(want); wok {
			return hn == wn, nil
		}
		ws, ok := want.(string)
		if !ok {
			return false, fmt.Errorf("cannot compare %T against numeric attribute", want)
		}
		wn, err := strconv.ParseFloat(ws, 64)
		if err != nil {
			return false, fmt.Errorf("value %q is not numeric", ws)
		}
		return hn == wn, nil
	}

	switch h := have.(type) {
	case string:
		ws, ok := stringValue(want)
		if !ok {
			return false, fmt.Errorf("cannot compare %T against string attribute", want)
		}
		return h == ws, nil
	case bool:
		switch w := want.(type) {
		case bool:
			return h == w, nil
		case string:
			wb, err := strconv.ParseBool(w)
			if err != nil {
				return false, fmt.Errorf("value %q is not boolean", w)
			}
			return h == wb, nil
		}
		return false, fmt.Errorf("cannot compare %T against boolean attribute", want)
	case fmt.Stringer:
		ws, ok := stringValue(want)
		if !ok {
			return false, fmt.Errorf("cannot compare %T against %T attribute", want, have)
		}
		return h.String() == ws, nil
	}

	return have == want, nil
}

// toFloat widens integer and float values to float64 for comparison.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// stringValue renders string-like filter values.
func stringValue(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	return "", false
}

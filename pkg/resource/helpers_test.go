package resource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nestful/nestful/pkg/auth"
	"github.com/nestful/nestful/pkg/store"
)

// blogFixture is the user/entry/info API most tests run against: users
// expose a nested entries collection, entries expose a nested single
// info object.
type blogFixture struct {
	registry *Registry
	users    *store.Memory
	entries  *store.Memory
	infos    *store.Memory
	user     *Resource
	entry    *Resource
	info     *Resource
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	userDescriptor  func(*Descriptor)
	entryDescriptor func(*Descriptor)
}

func withUserDescriptor(mutate func(*Descriptor)) fixtureOption {
	return func(cfg *fixtureConfig) { cfg.userDescriptor = mutate }
}

func withEntryDescriptor(mutate func(*Descriptor)) fixtureOption {
	return func(cfg *fixtureConfig) { cfg.entryDescriptor = mutate }
}

func newBlogFixture(t *testing.T, opts ...fixtureOption) *blogFixture {
	t.Helper()

	cfg := &fixtureConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	users := store.NewMemory("id").Seed(
		store.Object{"id": "3", "username": "ada"},
		store.Object{"id": "7", "username": "grace"},
	)
	entries := store.NewMemory("id").Seed(
		store.Object{"id": "1", "user_id": "3", "title": "First post"},
		store.Object{"id": "2", "user_id": "3", "title": "Second post"},
		store.Object{"id": "5", "user_id": "7", "title": "Meeting notes"},
	)
	infos := store.NewMemory("id").Seed(
		store.Object{"id": "i1", "entry_id": "1", "views": 42},
	)

	info, err := New(Descriptor{Name: "info", Store: infos})
	require.NoError(t, err)

	entryDesc := Descriptor{
		Name:  "entry",
		Store: entries,
		Relations: []Relation{
			{Name: "info", To: info, Derive: store.Reference(infos, "entry_id", "id")},
		},
	}
	if cfg.entryDescriptor != nil {
		cfg.entryDescriptor(&entryDesc)
	}
	entry, err := New(entryDesc)
	require.NoError(t, err)

	userDesc := Descriptor{
		Name:  "user",
		Store: users,
		Relations: []Relation{
			{Name: "entries", To: entry, Derive: store.ForeignKey(entries, "user_id", "id")},
		},
	}
	if cfg.userDescriptor != nil {
		cfg.userDescriptor(&userDesc)
	}
	user, err := New(userDesc)
	require.NoError(t, err)

	registry := NewRegistry("/api/v1")
	require.NoError(t, registry.Register(user))
	require.NoError(t, registry.Register(entry))
	require.NoError(t, registry.Register(info))

	return &blogFixture{
		registry: registry,
		users:    users,
		entries:  entries,
		infos:    infos,
		user:     user,
		entry:    entry,
		info:     info,
	}
}

// do runs a request through the registry and returns the recorder.
func (f *blogFixture) do(method, target string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	f.registry.ServeHTTP(w, r)
	return w
}

// serve runs a bodyless request through an ad hoc registry.
func serve(registry *Registry, method, target string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	registry.ServeHTTP(w, r)
	return w
}

var errAuthRefused = errors.New("credentials refused")

// decodeJSON unmarshals a recorded response body.
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

// objectsOf extracts the objects array from a list or set envelope.
func objectsOf(t *testing.T, body map[string]interface{}) []map[string]interface{} {
	t.Helper()
	raw, ok := body["objects"].([]interface{})
	require.True(t, ok, "no objects array in %v", body)
	out := make([]map[string]interface{}, 0, len(raw))
	for _, elem := range raw {
		obj, ok := elem.(map[string]interface{})
		require.True(t, ok)
		out = append(out, obj)
	}
	return out
}

// countingStore wraps a Store and counts Filter calls.
type countingStore struct {
	store.Store
	filterCalls int
}

func (c *countingStore) Filter(ctx context.Context, filters store.Filters) ([]store.Object, error) {
	c.filterCalls++
	return c.Store.Filter(ctx, filters)
}

// staticAuthenticator returns a fixed outcome for every request.
type staticAuthenticator struct {
	identity *auth.Identity
	err      error
}

func (s staticAuthenticator) Authenticate(r *http.Request) (*auth.Identity, error) {
	return s.identity, s.err
}

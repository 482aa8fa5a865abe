package resource

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestful/nestful/pkg/store"
)

func TestRegisterDuplicate(t *testing.T) {
	registry := NewRegistry("/api/v1")

	first, err := New(Descriptor{Name: "entry", Store: store.NewMemory("id")})
	require.NoError(t, err)
	second, err := New(Descriptor{Name: "entry", Store: store.NewMemory("id")})
	require.NoError(t, err)

	require.NoError(t, registry.Register(first))
	err = registry.Register(second)
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestRegistryURI(t *testing.T) {
	f := newBlogFixture(t)

	uri, err := f.registry.URI("entry", store.Object{"id": "5", "title": "Meeting notes"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/entry/5", uri)

	_, err = f.registry.URI("entry", store.Object{"title": "no identifier"})
	assert.Error(t, err)

	_, err = f.registry.URI("unknown", store.Object{"id": "5"})
	assert.Error(t, err)
}

func TestRegistryResolve(t *testing.T) {
	f := newBlogFixture(t)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		uri, err := f.registry.URI("user", store.Object{"id": "3"})
		require.NoError(t, err)

		rsc, obj, err := f.registry.Resolve(ctx, uri)
		require.NoError(t, err)
		assert.Equal(t, "user", rsc.Name())
		assert.Equal(t, "ada", obj["username"])
	})

	t.Run("absolute URL", func(t *testing.T) {
		_, obj, err := f.registry.Resolve(ctx, "http://example.com/api/v1/user/7")
		require.NoError(t, err)
		assert.Equal(t, "grace", obj["username"])
	})

	t.Run("trailing slash", func(t *testing.T) {
		_, obj, err := f.registry.Resolve(ctx, "/api/v1/user/3/")
		require.NoError(t, err)
		assert.Equal(t, "ada", obj["username"])
	})

	t.Run("missing object", func(t *testing.T) {
		_, _, err := f.registry.Resolve(ctx, "/api/v1/user/99")
		require.Error(t, err)
		assert.True(t, store.IsNotFound(err))
	})

	tests := []struct {
		name string
		uri  string
	}{
		{"wrong prefix", "/api/v2/user/3"},
		{"no identifier segment", "/api/v1/user"},
		{"too many segments", "/api/v1/user/3/entries"},
		{"unknown resource", "/api/v1/widget/3"},
		{"identifier fails the pattern", "/api/v1/user/not%2Fvalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.registry.Resolve(ctx, tt.uri)
			require.Error(t, err)
			assert.True(t, store.IsNotFound(err), "want a not-found wrap, got %v", err)
		})
	}
}

func TestRegistryServeDetail(t *testing.T) {
	f := newBlogFixture(t)

	w := f.do(http.MethodGet, "/api/v1/user/3", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.Equal(t, "ada", body["username"])
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestRegistryServeList(t *testing.T) {
	f := newBlogFixture(t)

	w := f.do(http.MethodGet, "/api/v1/entry", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.Len(t, objectsOf(t, body), 3)

	meta, ok := body["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, meta["total"])
}

func TestRegistryTrailingSlash(t *testing.T) {
	f := newBlogFixture(t)

	w := f.do(http.MethodGet, "/api/v1/user/3/", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRegistryNotFoundEnvelope(t *testing.T) {
	f := newBlogFixture(t)

	w := f.do(http.MethodGet, "/api/v1/widget", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "not_found", body["code"])
}

func TestSchemaBeforeIdentifier(t *testing.T) {
	// "schema" matches the identifier pattern; the literal route must
	// win anyway.
	f := newBlogFixture(t)

	w := f.do(http.MethodGet, "/api/v1/user/schema", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.Equal(t, "user", body["name"])
	assert.Equal(t, "id", body["identifier_attribute"])
}

func TestRegistryRoutesCarryPrefix(t *testing.T) {
	f := newBlogFixture(t)

	patterns := make(map[string]string)
	for _, route := range f.registry.Routes() {
		patterns[route.Name] = route.Pattern
	}
	assert.Equal(t, "/api/v1/user", patterns["user.list"])
	assert.Equal(t, "/api/v1/entry/schema", patterns["entry.schema"])
}

func TestRegistryEmptyPrefix(t *testing.T) {
	registry := NewRegistry("")
	rsc, err := New(Descriptor{Name: "entry", Store: store.NewMemory("id").Seed(
		store.Object{"id": "1", "title": "First post"},
	)})
	require.NoError(t, err)
	require.NoError(t, registry.Register(rsc))

	uri, err := registry.URI("entry", store.Object{"id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "/entry/1", uri)

	_, obj, err := registry.Resolve(context.Background(), "/entry/1")
	require.NoError(t, err)
	assert.Equal(t, "First post", obj["title"])
}

func TestRegistryPrefixNormalization(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/api/v1", "/api/v1"},
		{"/api/v1/", "/api/v1"},
		{"api/v1", "/api/v1"},
		{"", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePrefix(tt.raw), "prefix %q", tt.raw)
	}
}

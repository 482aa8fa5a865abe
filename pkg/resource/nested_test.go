package resource

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestful/nestful/pkg/response"
	"github.com/nestful/nestful/pkg/store"
)

func TestNestedCollection(t *testing.T) {
	f := newBlogFixture(t)

	w := f.do(http.MethodGet, "/api/v1/user/3/entries", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeJSON(t, w)
	objects := objectsOf(t, body)
	require.Len(t, objects, 2)

	titles := []string{objects[0]["title"].(string), objects[1]["title"].(string)}
	assert.ElementsMatch(t, []string{"First post", "Second post"}, titles)

	meta, ok := body["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, meta["total"])
}

func TestNestedCollectionScopedToParent(t *testing.T) {
	f := newBlogFixture(t)

	w := f.do(http.MethodGet, "/api/v1/user/7/entries", "")
	require.Equal(t, http.StatusOK, w.Code)

	objects := objectsOf(t, decodeJSON(t, w))
	require.Len(t, objects, 1)
	assert.Equal(t, "Meeting notes", objects[0]["title"])
}

func TestNestedParamsCarryOnlyCoreFilters(t *testing.T) {
	var (
		seenParams store.Filters
		seenNested bool
		seenParent store.Object
	)
	f := newBlogFixture(t, withEntryDescriptor(func(d *Descriptor) {
		d.Handlers = map[HandlerKey]HandlerFunc{
			{Method: http.MethodGet, Shape: ShapeList}: func(ctx context.Context, r *http.Request, rctx *Context) (Result, error) {
				seenParams = rctx.Params
				seenNested = rctx.IsNested()
				seenParent = rctx.Parent().Object
				return Respond(response.JSON(map[string]string{})), nil
			},
		}
	}))

	w := f.do(http.MethodGet, "/api/v1/user/3/entries", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The parent's identifier must not leak into the delegated filters;
	// only the relation's core filters scope the child query.
	assert.Equal(t, store.Filters{"user_id": "3"}, seenParams)
	assert.True(t, seenNested)
	assert.Equal(t, "ada", seenParent["username"])
}

func TestNestedCreateInheritsParentLinkage(t *testing.T) {
	f := newBlogFixture(t)

	// The body claims another author; the URL wins.
	w := f.do(http.MethodPost, "/api/v1/user/3/entries",
		`{"id": "9", "user_id": "7", "title": "Hijack attempt"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/api/v1/entry/9", w.Header().Get("Location"))

	body := decodeJSON(t, w)
	assert.Equal(t, "3", body["user_id"])

	saved, err := f.entries.Get(context.Background(), store.Filters{"id": "9"})
	require.NoError(t, err)
	assert.Equal(t, "3", saved["user_id"])
	assert.Equal(t, "Hijack attempt", saved["title"])
}

func TestNestedSingleObject(t *testing.T) {
	f := newBlogFixture(t)

	t.Run("found", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/v1/entry/1/info", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.EqualValues(t, 42, decodeJSON(t, w)["views"])
	})

	t.Run("absent answers not found", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/v1/entry/2/info", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNestedAttributeRelation(t *testing.T) {
	people := store.NewMemory("id").Seed(store.Object{
		"id":      "p1",
		"name":    "ada",
		"profile": map[string]interface{}{"theme": "dark"},
	})

	profiles, err := New(Descriptor{Name: "profile", Store: store.NewMemory("id")})
	require.NoError(t, err)
	person, err := New(Descriptor{
		Name:  "person",
		Store: people,
		Relations: []Relation{
			{Name: "profile", To: profiles, Attribute: "profile"},
			{Name: "avatar", To: profiles, Attribute: "avatar"},
		},
	})
	require.NoError(t, err)

	registry := NewRegistry("/api/v1")
	require.NoError(t, registry.Register(person))
	require.NoError(t, registry.Register(profiles))

	t.Run("attribute child is served", func(t *testing.T) {
		w := serve(registry, http.MethodGet, "/api/v1/person/p1/profile")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "dark", decodeJSON(t, w)["theme"])
	})

	t.Run("missing attribute answers not found", func(t *testing.T) {
		w := serve(registry, http.MethodGet, "/api/v1/person/p1/avatar")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNestedParentNotFound(t *testing.T) {
	f := newBlogFixture(t)

	w := f.do(http.MethodGet, "/api/v1/user/99/entries", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeJSON(t, w)["code"])
}

func TestNestedParentAmbiguous(t *testing.T) {
	authors := store.NewMemory("id").Seed(
		store.Object{"id": "a1", "handle": "dupe"},
		store.Object{"id": "a2", "handle": "dupe"},
	)
	posts := store.NewMemory("id")

	post, err := New(Descriptor{Name: "post", Store: posts})
	require.NoError(t, err)
	author, err := New(Descriptor{
		Name:                "author",
		Store:               authors,
		IdentifierAttribute: "handle",
		Relations: []Relation{
			{Name: "posts", To: post, Derive: store.ForeignKey(posts, "author_id", "id")},
		},
	})
	require.NoError(t, err)

	registry := NewRegistry("/api/v1")
	require.NoError(t, registry.Register(author))
	require.NoError(t, registry.Register(post))

	w := serve(registry, http.MethodGet, "/api/v1/author/dupe/posts")
	require.Equal(t, http.StatusMultipleChoices, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.Equal(t, "More than one parent resource is found at this URI.", body["message"])
	assert.Equal(t, "multiple_choices", body["code"])
}

func TestNestedParentInvalidLookup(t *testing.T) {
	buyers := store.NewMemory("id").Seed(store.Object{"id": 3, "name": "ada"})
	orders := store.NewMemory("id")

	order, err := New(Descriptor{Name: "order", Store: orders})
	require.NoError(t, err)
	buyer, err := New(Descriptor{
		Name:  "buyer",
		Store: buyers,
		Relations: []Relation{
			{Name: "orders", To: order, Derive: store.ForeignKey(orders, "buyer_id", "id")},
		},
	})
	require.NoError(t, err)

	registry := NewRegistry("/api/v1")
	require.NoError(t, registry.Register(buyer))
	require.NoError(t, registry.Register(order))

	w := serve(registry, http.MethodGet, "/api/v1/buyer/abc/orders")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "Invalid resource lookup data provided (mismatched type).",
		decodeJSON(t, w)["message"])
}

func TestNestedParentAuthenticates(t *testing.T) {
	f := newBlogFixture(t, withUserDescriptor(func(d *Descriptor) {
		d.Authenticator = staticAuthenticator{err: errAuthRefused}
	}))

	w := f.do(http.MethodGet, "/api/v1/user/3/entries", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNestedParentAuthorizationHidesParent(t *testing.T) {
	f := newBlogFixture(t, withUserDescriptor(func(d *Descriptor) {
		d.Authorization = hiddenParent{}
	}))

	// Nested access reports the parent as absent rather than forbidden.
	w := f.do(http.MethodGet, "/api/v1/user/3/entries", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Top-level access is unaffected; the parent gate only guards
	// nested traversal.
	direct := f.do(http.MethodGet, "/api/v1/user/3", "")
	assert.Equal(t, http.StatusOK, direct.Code)
}

type hiddenParent struct {
	AllowAll
}

func (hiddenParent) AuthorizeParent(r *http.Request, parent store.Object) bool {
	return false
}

func TestNestedRelationLimitHook(t *testing.T) {
	f := newBlogFixture(t, withUserDescriptor(func(d *Descriptor) {
		d.Authorization = hookedAuthz{
			Hooks: NewHooks().OnLimit("entries",
				func(r *http.Request, parent store.Object, objects []store.Object) []store.Object {
					out := make([]store.Object, 0, len(objects))
					for _, obj := range objects {
						if obj["title"] == "First post" {
							out = append(out, obj)
						}
					}
					return out
				}),
		}
	}))

	w := f.do(http.MethodGet, "/api/v1/user/3/entries", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	objects := objectsOf(t, decodeJSON(t, w))
	require.Len(t, objects, 1)
	assert.Equal(t, "First post", objects[0]["title"])
}

func TestNestedRelationAuthorizeHook(t *testing.T) {
	t.Run("deny stops the delegated request", func(t *testing.T) {
		var seenParent store.Object
		f := newBlogFixture(t, withUserDescriptor(func(d *Descriptor) {
			d.Authorization = hookedAuthz{
				Hooks: NewHooks().OnAuthorize("entries",
					func(r *http.Request, parent store.Object, child store.Object) Decision {
						seenParent = parent
						return Deny()
					}),
			}
		}))

		w := f.do(http.MethodGet, "/api/v1/user/3/entries", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "ada", seenParent["username"])
	})

	t.Run("single relation hook sees the child", func(t *testing.T) {
		var seenChild store.Object
		f := newBlogFixture(t, withEntryDescriptor(func(d *Descriptor) {
			d.Authorization = hookedAuthz{
				Hooks: NewHooks().OnAuthorize("info",
					func(r *http.Request, parent store.Object, child store.Object) Decision {
						seenChild = child
						return Allow()
					}),
			}
		}))

		w := f.do(http.MethodGet, "/api/v1/entry/1/info", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NotNil(t, seenChild)
		assert.EqualValues(t, 42, seenChild["views"])
	})

	t.Run("unhooked relation proceeds", func(t *testing.T) {
		f := newBlogFixture(t, withUserDescriptor(func(d *Descriptor) {
			d.Authorization = hookedAuthz{Hooks: NewHooks()}
		}))

		w := f.do(http.MethodGet, "/api/v1/user/3/entries", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// hookedAuthz is an AllowAll authorization carrying per-relation hooks.
type hookedAuthz struct {
	AllowAll
	*Hooks
}

func TestNestedVerbGate(t *testing.T) {
	f := newBlogFixture(t, withEntryDescriptor(func(d *Descriptor) {
		d.Allowed = map[Shape][]string{
			ShapeNested: {http.MethodGet},
		}
	}))

	w := f.do(http.MethodPost, "/api/v1/user/3/entries", `{"title": "nope"}`)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET", w.Header().Get("Allow"))

	// The same verb stays available on the top-level collection.
	direct := f.do(http.MethodPost, "/api/v1/entry", `{"id": "8", "user_id": "7", "title": "ok"}`)
	assert.Equal(t, http.StatusCreated, direct.Code, direct.Body.String())
}

func TestNestedAccessorUnsupportedType(t *testing.T) {
	gadgets := store.NewMemory("id").Seed(store.Object{"id": "g1"})

	widget, err := New(Descriptor{Name: "widget", Store: store.NewMemory("id")})
	require.NoError(t, err)
	gadget, err := New(Descriptor{
		Name:  "gadget",
		Store: gadgets,
		Relations: []Relation{
			{Name: "weird", To: widget, Derive: func(ctx context.Context, parent store.Object) (interface{}, error) {
				return 42, nil
			}},
		},
	})
	require.NoError(t, err)

	registry := NewRegistry("/api/v1")
	require.NoError(t, registry.Register(gadget))
	require.NoError(t, registry.Register(widget))

	w := serve(registry, http.MethodGet, "/api/v1/gadget/g1/weird")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeJSON(t, w)["message"])
}

// Package demo wires the example blog API: users expose their entries
// as a nested collection, entries expose per-entry stats and a comment
// thread. The wiring exercises parent gating, per-relation hooks, and a
// custom detail action.
package demo

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nestful/nestful/pkg/auth"
	"github.com/nestful/nestful/pkg/cache"
	"github.com/nestful/nestful/pkg/resource"
	"github.com/nestful/nestful/pkg/response"
	"github.com/nestful/nestful/pkg/store"
	"github.com/nestful/nestful/pkg/throttle"
)

// Config selects the collaborators shared by the demo resources. Zero
// values mean seeded in-memory stores, anonymous access, no cache, and
// no throttling.
type Config struct {
	Prefix        string
	Stores        *Stores
	Cache         cache.Cache
	Throttle      throttle.Throttler
	Authenticator auth.Authenticator
	Log           *zap.Logger
}

// Build assembles the demo registry.
func Build(cfg Config) (*resource.Registry, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "/api/v1"
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	stores := cfg.Stores
	if stores == nil {
		seeded := MemoryStores()
		stores = &seeded
	}

	common := func(d resource.Descriptor) resource.Descriptor {
		d.Cache = cfg.Cache
		d.Throttle = cfg.Throttle
		d.Authenticator = cfg.Authenticator
		d.Log = cfg.Log
		return d
	}

	info, err := resource.New(common(resource.Descriptor{
		Name:  "info",
		Store: stores.Infos,
	}))
	if err != nil {
		return nil, err
	}

	comment, err := resource.New(common(resource.Descriptor{
		Name:  "comment",
		Store: stores.Comments,
	}))
	if err != nil {
		return nil, err
	}

	entry, err := resource.New(common(resource.Descriptor{
		Name:  "entry",
		Store: stores.Entries,
		Relations: []resource.Relation{
			{Name: "info", To: info, Derive: store.Reference(stores.Infos, "entry_id", "id")},
			{Name: "comments", To: comment, Derive: store.ForeignKey(stores.Comments, "entry_id", "id")},
		},
		Actions: []resource.DetailAction{
			{Path: "publish", Methods: []string{http.MethodPost}, Handler: publishAction(stores.Entries)},
		},
	}))
	if err != nil {
		return nil, err
	}

	user, err := resource.New(common(resource.Descriptor{
		Name:          "user",
		Store:         stores.Users,
		Authorization: newUserAuthorization(),
		Relations: []resource.Relation{
			{Name: "entries", To: entry, Derive: store.ForeignKey(stores.Entries, "user_id", "id")},
		},
	}))
	if err != nil {
		return nil, err
	}

	registry := resource.NewRegistry(cfg.Prefix, resource.WithLogger(cfg.Log))
	for _, rsc := range []*resource.Resource{user, entry, info, comment} {
		if err := registry.Register(rsc); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// userAuthorization applies the demo's nested access rules: suspended
// accounts are invisible to nested traversal, drafts are visible only
// to their author, and only the author may write through the nested
// entries collection.
type userAuthorization struct {
	resource.AllowAll
	*resource.Hooks
}

func newUserAuthorization() userAuthorization {
	hooks := resource.NewHooks().
		OnLimit("entries", limitDraftsToAuthor).
		OnAuthorize("entries", restrictWritesToAuthor)
	return userAuthorization{Hooks: hooks}
}

// AuthorizeParent reports suspended users as absent.
func (userAuthorization) AuthorizeParent(r *http.Request, parent store.Object) bool {
	return !truthy(parent["suspended"])
}

func limitDraftsToAuthor(r *http.Request, parent store.Object, objects []store.Object) []store.Object {
	if isAuthor(r, parent) {
		return objects
	}
	visible := make([]store.Object, 0, len(objects))
	for _, obj := range objects {
		if !truthy(obj["draft"]) {
			visible = append(visible, obj)
		}
	}
	return visible
}

func restrictWritesToAuthor(r *http.Request, parent store.Object, child store.Object) resource.Decision {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return resource.Allow()
	}
	if isAuthor(r, parent) {
		return resource.Allow()
	}
	return resource.Deny()
}

func isAuthor(r *http.Request, parent store.Object) bool {
	identity := auth.GetIdentity(r.Context())
	return identity != nil && identity.Subject == fmt.Sprint(parent["id"])
}

// publishAction clears an entry's draft flag.
func publishAction(entries store.Store) resource.HandlerFunc {
	return func(ctx context.Context, r *http.Request, rctx *resource.Context) (resource.Result, error) {
		obj, err := entries.Get(ctx, rctx.Params)
		if err != nil {
			return resource.Result{}, err
		}
		obj["draft"] = false
		saved, err := entries.Save(ctx, obj)
		if err != nil {
			return resource.Result{}, err
		}
		return resource.Respond(response.JSON(saved)), nil
	}
}

// truthy normalizes the boolean representations the different store
// backends produce.
func truthy(v interface{}) bool {
	switch value := v.(type) {
	case bool:
		return value
	case int64:
		return value != 0
	case float64:
		return value != 0
	case string:
		return value == "true" || value == "1" || value == "t"
	default:
		return false
	}
}

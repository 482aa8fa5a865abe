package resource

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nestful/nestful/pkg/cache"
	"github.com/nestful/nestful/pkg/store"
)

// Resolution outcomes cached in the envelope. Negative outcomes are
// cached explicitly so a repeated probe of a bogus URI is served from
// cache with the same failure.
const (
	outcomeFound     = "found"
	outcomeNotFound  = "not_found"
	outcomeAmbiguous = "ambiguous"
)

// resolutionEnvelope is the cached form of a single-object resolution.
type resolutionEnvelope struct {
	Outcome string       `json:"outcome"`
	Object  store.Object `json:"object,omitempty"`
}

// cachedResolve runs resolveFn through the resource's cache. A hit is
// returned without re-running resolution or its authorization; the
// original resolution already enforced both, and entries expire on the
// cache's terms. Found, not-found, and ambiguous outcomes are cached;
// invalid lookups and infrastructure failures are not. Cache outages
// degrade to plain resolution.
func (rsc *Resource) cachedResolve(ctx context.Context, filters store.Filters, resolveFn func() (store.Object, error)) (store.Object, error) {
	if rsc.cache == nil {
		return resolveFn()
	}

	filters = scrubReserved(filters)
	key := rsc.keys.LookupKey(rsc.name, "detail", filters)

	data, err := rsc.cache.Get(ctx, key)
	if err == nil {
		var envelope resolutionEnvelope
		if decodeErr := json.Unmarshal(data, &envelope); decodeErr == nil {
			return rsc.envelopeOutcome(envelope, filters)
		}
		rsc.log.Warn("discarding undecodable cached resolution",
			zap.String("key", key))
	} else if !cache.IsCacheMiss(err) {
		rsc.log.Warn("resolution cache get failed",
			zap.String("key", key), zap.Error(err))
	}

	obj, resolveErr := resolveFn()

	envelope, cacheable := envelopeFor(obj, resolveErr)
	if cacheable {
		if data, marshalErr := json.Marshal(envelope); marshalErr == nil {
			if setErr := rsc.cache.Set(ctx, key, data, 0); setErr != nil {
				rsc.log.Warn("resolution cache set failed",
					zap.String("key", key), zap.Error(setErr))
			}
		}
	}

	return obj, resolveErr
}

func (rsc *Resource) envelopeOutcome(envelope resolutionEnvelope, filters store.Filters) (store.Object, error) {
	switch envelope.Outcome {
	case outcomeFound:
		return envelope.Object, nil
	case outcomeNotFound:
		return nil, notFoundf(rsc.name, filters)
	case outcomeAmbiguous:
		return nil, multipleFoundf(rsc.name, filters)
	default:
		return nil, notFoundf(rsc.name, filters)
	}
}

func envelopeFor(obj store.Object, err error) (resolutionEnvelope, bool) {
	switch {
	case err == nil:
		return resolutionEnvelope{Outcome: outcomeFound, Object: obj}, true
	case store.IsNotFound(err):
		return resolutionEnvelope{Outcome: outcomeNotFound}, true
	case store.IsMultipleObjects(err):
		return resolutionEnvelope{Outcome: outcomeAmbiguous}, true
	default:
		return resolutionEnvelope{}, false
	}
}

// parentGet resolves a parent object for nested dispatch: unscoped
// uniqueness plus the parent authorization gate, through the cache. A
// parent the caller may not act on is reported as not-found, exactly
// like a lookup miss.
func (rsc *Resource) parentGet(ctx context.Context, r *http.Request, filters store.Filters) (store.Object, error) {
	return rsc.cachedResolve(ctx, filters, func() (store.Object, error) {
		obj, err := rsc.resolveAny(ctx, filters)
		if err != nil {
			return nil, err
		}
		if pa, ok := rsc.authz.(ParentAuthorization); ok {
			if !pa.AuthorizeParent(r, obj) {
				return nil, notFoundf(rsc.name, filters)
			}
		}
		return obj, nil
	})
}

// cachedGet resolves a single object for detail requests through the
// cache, with the request's authorization scoping applied on a miss.
func (rsc *Resource) cachedGet(ctx context.Context, r *http.Request, rctx *Context, filters store.Filters) (store.Object, error) {
	return rsc.cachedResolve(ctx, filters, func() (store.Object, error) {
		return rsc.resolve(ctx, r, rctx, filters)
	})
}

// invalidate drops the cached resolution for the given filters after a
// write. Best effort; a failure only means the entry lives until its
// TTL.
func (rsc *Resource) invalidate(ctx context.Context, filters store.Filters) {
	if rsc.cache == nil {
		return
	}
	key := rsc.keys.LookupKey(rsc.name, "detail", scrubReserved(filters))
	if err := rsc.cache.Delete(ctx, key); err != nil && !cache.IsCacheMiss(err) {
		rsc.log.Debug("resolution cache delete failed",
			zap.String("key", key), zap.Error(err))
	}
}

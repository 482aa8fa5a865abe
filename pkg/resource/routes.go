package resource

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nestful/nestful/pkg/store"
)

// Route is one mounted endpoint. Methods is the verb set the dispatch
// machine will accept; the underlying router matches every verb so the
// machine can answer 405 with an Allow header itself.
type Route struct {
	Name    string
	Methods []string
	Pattern string
	Shape   Shape

	handler http.HandlerFunc
}

// buildRoutes emits the resource's routes in precedence order: list,
// schema, set, relations, actions, detail. Literal segments come before
// the identifier capture so a pattern that could swallow them never
// gets the chance.
func (rsc *Resource) buildRoutes() []Route {
	attr := rsc.identifierAttribute
	idSegment := fmt.Sprintf("{%s:(?:%s)}", attr, rsc.identifierPattern)

	routes := []Route{
		{
			Name:    rsc.name + ".list",
			Methods: rsc.allowed[ShapeList],
			Pattern: "/" + rsc.name,
			Shape:   ShapeList,
			handler: rsc.wrap(func(w http.ResponseWriter, r *http.Request) error {
				return rsc.Dispatch(ShapeList, w, r, NewContext())
			}),
		},
		{
			Name:    rsc.name + ".schema",
			Methods: []string{http.MethodGet},
			Pattern: "/" + rsc.name + "/schema",
			Shape:   ShapeSchema,
			handler: rsc.wrap(func(w http.ResponseWriter, r *http.Request) error {
				return rsc.Dispatch(ShapeSchema, w, r, NewContext())
			}),
		},
		{
			Name:    rsc.name + ".set",
			Methods: []string{http.MethodGet},
			Pattern: fmt.Sprintf("/%s/set/{%s_list:(?:(?:%s);?)+}", rsc.name, attr, rsc.identifierPattern),
			Shape:   ShapeSet,
			handler: rsc.wrap(func(w http.ResponseWriter, r *http.Request) error {
				rctx := NewContext()
				rctx.Params[attr+"_list"] = chi.URLParam(r, attr+"_list")
				return rsc.Dispatch(ShapeSet, w, r, rctx)
			}),
		},
	}

	for _, rel := range rsc.relations {
		relation := rel.Name
		routes = append(routes, Route{
			Name:    rsc.name + ".nested." + relation,
			Methods: rsc.allowed[ShapeNested],
			Pattern: fmt.Sprintf("/%s/%s/%s", rsc.name, idSegment, relation),
			Shape:   ShapeNested,
			handler: rsc.wrap(func(w http.ResponseWriter, r *http.Request) error {
				return rsc.dispatchNested(relation, w, r)
			}),
		})
	}

	for i := range rsc.actions {
		action := &rsc.actions[i]
		routes = append(routes, Route{
			Name:    rsc.name + ".action." + action.Path,
			Methods: action.Methods,
			Pattern: fmt.Sprintf("/%s/%s/%s", rsc.name, idSegment, action.Path),
			Shape:   ShapeAction,
			handler: rsc.wrap(func(w http.ResponseWriter, r *http.Request) error {
				rctx := NewContext()
				rctx.Params[attr] = chi.URLParam(r, attr)
				return rsc.dispatchAction(action, w, r, rctx)
			}),
		})
	}

	routes = append(routes, Route{
		Name:    rsc.name + ".detail",
		Methods: rsc.allowed[ShapeDetail],
		Pattern: fmt.Sprintf("/%s/%s", rsc.name, idSegment),
		Shape:   ShapeDetail,
		handler: rsc.wrap(func(w http.ResponseWriter, r *http.Request) error {
			rctx := NewContext()
			rctx.Params[attr] = chi.URLParam(r, attr)
			return rsc.Dispatch(ShapeDetail, w, r, rctx)
		}),
	})

	return routes
}

// detailFilters builds the detail lookup filters from a captured
// identifier.
func (rsc *Resource) detailFilters(identifier string) store.Filters {
	return store.Filters{rsc.identifierAttribute: identifier}
}

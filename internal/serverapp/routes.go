package serverapp

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

type RouteDoc struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

// ListRoutes walks the router and returns every method/pattern pair, sorted
// by pattern.
func ListRoutes(r chi.Routes) ([]RouteDoc, error) {
	var out []RouteDoc
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = strings.Replace(route, "/*/", "/", -1)
		out = append(out, RouteDoc{Method: method, Pattern: route})
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out, err
}

func routesHandler(r chi.Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		routes, err := ListRoutes(r)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "could not list routes"})
			return
		}
		writeJSON(w, http.StatusOK, routes)
	}
}

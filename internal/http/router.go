package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// APIPrefix is where the JSON API is mounted.
const APIPrefix = "/api/v1"

// Registrar attaches a handler's routes to a subrouter.
type Registrar interface {
	Register(r *mux.Router)
}

// NewRouter mounts health at the root and every API handler under APIPrefix.
func NewRouter(logger *zap.Logger, health *HealthHandler, api ...Registrar) *mux.Router {
	r := mux.NewRouter()
	r.Use(recoverer(logger))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, FailKind("NotFound", "route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	})

	if health != nil {
		health.Register(r)
	}
	sub := r.PathPrefix(APIPrefix).Subrouter()
	for _, h := range api {
		h.Register(sub)
	}
	return r
}

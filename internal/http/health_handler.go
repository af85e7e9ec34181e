package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthHandler reports database and optional Redis reachability.
type HealthHandler struct {
	db    Pinger
	redis func(ctx context.Context) error
}

func NewHealthHandler(db Pinger, redisPing func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{db: db, redis: redisPing}
}

func (h *HealthHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	services := make(map[string]string)

	check := func(name string, ping func(context.Context) error) {
		if ping == nil {
			services[name] = "not configured"
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			status = "unhealthy"
			services[name] = "unhealthy: " + err.Error()
			return
		}
		services[name] = "healthy"
	}
	if h.db != nil {
		check("database", h.db.PingContext)
	} else {
		check("database", nil)
	}
	check("redis", h.redis)

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthCheckResponse{Status: status, Timestamp: time.Now().UTC(), Services: services})
}

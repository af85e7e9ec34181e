package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"obra-data/internal/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventFeed reads back published change events.
type EventFeed interface {
	Recent(ctx context.Context, after string, count int64) ([]store.StoredEvent, error)
}

type EventHandler struct {
	feed   EventFeed
	logger *zap.Logger
}

// NewEventHandler accepts a nil feed when events are disabled.
func NewEventHandler(feed EventFeed, logger *zap.Logger) *EventHandler {
	return &EventHandler{feed: feed, logger: logger}
}

func (h *EventHandler) Register(r *mux.Router) {
	r.HandleFunc("/events", h.Recent).Methods(http.MethodGet)
}

// Recent lists events newer than the "after" stream id.
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("events disabled"))
		return
	}
	q := r.URL.Query()
	limit := parseInt(q.Get("limit"), defaultEventLimit)
	if limit <= 0 || limit > maxEventLimit {
		writeError(w, badRequest("limit must be between 1 and %d", maxEventLimit))
		return
	}
	events, err := h.feed.Recent(r.Context(), q.Get("after"), int64(limit))
	if err != nil {
		h.logger.Error("failed to read events", zap.Error(err))
		writeError(w, err)
		return
	}
	if events == nil {
		events = []store.StoredEvent{}
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

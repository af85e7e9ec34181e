package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"obra-data/internal/domain"
	"obra-data/internal/service"
)

type LocationHandler struct {
	svc    service.LocationService
	logger *zap.Logger
}

func NewLocationHandler(svc service.LocationService, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{svc: svc, logger: logger}
}

func (h *LocationHandler) Register(r *mux.Router) {
	r.HandleFunc("/locations", h.CreateLocation).Methods(http.MethodPost)
	r.HandleFunc("/locations", h.ListLocations).Methods(http.MethodGet)
	r.HandleFunc("/locations/{id}", h.GetLocation).Methods(http.MethodGet)
	r.HandleFunc("/locations/{id}", h.DeleteLocation).Methods(http.MethodDelete)
}

// createLocationBody carries the variant payload raw; kind decides its shape.
type createLocationBody struct {
	Kind        string          `json:"kind" validate:"required"`
	DisplayName string          `json:"display_name" validate:"required,max=350"`
	SiteID      int64           `json:"site_id" validate:"required,gt=0"`
	Attachment  json.RawMessage `json:"attachment"`
}

func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var body createLocationBody
	if err := readBodyJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	kind, err := domain.ParseLocationKind(body.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	att, err := domain.DecodeAttachment(kind, body.Attachment)
	if err != nil {
		writeError(w, err)
		return
	}

	loc, err := h.svc.CreateLocation(r.Context(), service.CreateLocationRequest{
		Kind:        kind,
		DisplayName: body.DisplayName,
		SiteID:      body.SiteID,
		Attachment:  att,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(loc))
}

func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	loc, err := h.svc.GetLocation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(loc))
}

// ListLocations serves GET /locations?site_id=&kind=.
func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	siteID, err := requiredQueryID(r, "site_id")
	if err != nil {
		writeError(w, err)
		return
	}
	kind, err := domain.ParseLocationKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	seq, err := h.svc.ListLocationsByKind(r.Context(), siteID, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	out := []*domain.Location{}
	for loc, err := range seq {
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, loc)
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

func (h *LocationHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.DeleteLocation(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

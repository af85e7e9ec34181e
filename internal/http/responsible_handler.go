package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"obra-data/internal/service"
)

type ResponsibleHandler struct {
	svc    service.ResponsibleService
	logger *zap.Logger
}

func NewResponsibleHandler(svc service.ResponsibleService, logger *zap.Logger) *ResponsibleHandler {
	return &ResponsibleHandler{svc: svc, logger: logger}
}

func (h *ResponsibleHandler) Register(r *mux.Router) {
	r.HandleFunc("/responsibles", h.CreateResponsible).Methods(http.MethodPost)
	r.HandleFunc("/responsibles", h.ListResponsibles).Methods(http.MethodGet)
	r.HandleFunc("/responsibles/{id}", h.GetResponsible).Methods(http.MethodGet)
}

type createResponsibleBody struct {
	Name          string           `json:"name" validate:"required"`
	Registration  *decimal.Decimal `json:"registration"`
	Role          *string          `json:"role" validate:"omitempty,max=255"`
	AdmissionDate string           `json:"admission_date" validate:"omitempty,datetime=2006-01-02"`
	Status        *string          `json:"status" validate:"omitempty,max=50"`
	SalaryTier    *decimal.Decimal `json:"salary_tier"`
	SiteID        *int64           `json:"site_id" validate:"omitempty,gt=0"`
}

func (h *ResponsibleHandler) CreateResponsible(w http.ResponseWriter, r *http.Request) {
	var body createResponsibleBody
	if err := readBodyJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	admission, err := parseDate("admission_date", body.AdmissionDate)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := h.svc.CreateResponsible(r.Context(), service.CreateResponsibleRequest{
		Name:          body.Name,
		Registration:  body.Registration,
		Role:          body.Role,
		AdmissionDate: admission,
		Status:        body.Status,
		SalaryTier:    body.SalaryTier,
		SiteID:        body.SiteID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(responsibleToJSON(out)))
}

func (h *ResponsibleHandler) GetResponsible(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.GetResponsible(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(responsibleToJSON(out)))
}

func (h *ResponsibleHandler) ListResponsibles(w http.ResponseWriter, r *http.Request) {
	siteID, err := queryID(r, "site_id")
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.svc.ListResponsibles(r.Context(), service.ListResponsiblesRequest{SiteID: siteID})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, responsibleToJSON(it))
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

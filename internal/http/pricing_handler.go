package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"obra-data/internal/service"
)

// PricingHandler serves task types and prices.
type PricingHandler struct {
	svc    service.PricingService
	logger *zap.Logger
}

func NewPricingHandler(svc service.PricingService, logger *zap.Logger) *PricingHandler {
	return &PricingHandler{svc: svc, logger: logger}
}

func (h *PricingHandler) Register(r *mux.Router) {
	r.HandleFunc("/task-types", h.CreateTaskType).Methods(http.MethodPost)
	r.HandleFunc("/task-types", h.ListTaskTypes).Methods(http.MethodGet)
	r.HandleFunc("/task-types/{id}", h.GetTaskType).Methods(http.MethodGet)

	r.HandleFunc("/prices", h.SetPrice).Methods(http.MethodPost)
	r.HandleFunc("/prices", h.ListPrices).Methods(http.MethodGet)
	r.HandleFunc("/prices/at", h.PriceAt).Methods(http.MethodGet)
}

type createTaskTypeBody struct {
	Name string  `json:"name" validate:"required,max=255"`
	Role *string `json:"role" validate:"omitempty,max=255"`
}

func (h *PricingHandler) CreateTaskType(w http.ResponseWriter, r *http.Request) {
	var body createTaskTypeBody
	if err := readBodyJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.CreateTaskType(r.Context(), service.CreateTaskTypeRequest{Name: body.Name, Role: body.Role})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(taskTypeToJSON(out)))
}

func (h *PricingHandler) GetTaskType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.GetTaskType(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(taskTypeToJSON(out)))
}

func (h *PricingHandler) ListTaskTypes(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListTaskTypes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, taskTypeToJSON(it))
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

type setPriceBody struct {
	TaskTypeID    int64            `json:"task_type_id" validate:"required,gt=0"`
	LocationID    int64            `json:"location_id" validate:"required,gt=0"`
	Unit          string           `json:"unit" validate:"max=50"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	EffectiveDate string           `json:"effective_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *PricingHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var body setPriceBody
	if err := readBodyJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	eff, err := parseDate("effective_date", body.EffectiveDate)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.SetPrice(r.Context(), service.SetPriceRequest{
		TaskTypeID:    body.TaskTypeID,
		LocationID:    body.LocationID,
		Unit:          body.Unit,
		Amount:        *body.Amount,
		EffectiveDate: eff,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	superseded := make([]any, 0, len(res.Superseded))
	for _, p := range res.Superseded {
		superseded = append(superseded, priceViewToJSON(p))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"price":      priceViewToJSON(res.Price),
		"superseded": superseded,
	}))
}

// PriceAt serves GET /prices/at?task_type_id=&location_id=&unit=&date=.
func (h *PricingHandler) PriceAt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	taskTypeID, err := requiredQueryID(r, "task_type_id")
	if err != nil {
		writeError(w, err)
		return
	}
	locationID, err := requiredQueryID(r, "location_id")
	if err != nil {
		writeError(w, err)
		return
	}
	on, err := parseDate("date", q.Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.svc.PriceAt(r.Context(), service.PriceAtRequest{
		TaskTypeID: taskTypeID,
		LocationID: locationID,
		Unit:       q.Get("unit"),
		On:         on,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(priceViewToJSON(*p)))
}

func (h *PricingHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	taskTypeID, err := requiredQueryID(r, "task_type_id")
	if err != nil {
		writeError(w, err)
		return
	}
	locationID, err := requiredQueryID(r, "location_id")
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.svc.ListPrices(r.Context(), taskTypeID, locationID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, priceViewToJSON(it))
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"obra-data/internal/service"
)

// TaskHandler serves tasks and their assignments.
type TaskHandler struct {
	svc    service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(svc service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

func (h *TaskHandler) Register(r *mux.Router) {
	r.HandleFunc("/tasks", h.CreateTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks", h.ListTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", h.GetTask).Methods(http.MethodGet)

	r.HandleFunc("/tasks/{id}/assignments", h.AllocationStatus).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/assignments", h.AssignResponsible).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/assignments", h.ReplaceAssignments).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{id}/assignments/{responsibleId}", h.RemoveResponsible).Methods(http.MethodDelete)
}

type createTaskBody struct {
	Name       string `json:"name" validate:"required"`
	LocationID *int64 `json:"location_id" validate:"omitempty,gt=0"`
	TaskTypeID *int64 `json:"task_type_id" validate:"omitempty,gt=0"`
	PriceID    *int64 `json:"price_id" validate:"omitempty,gt=0"`
	StartDate  string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var body createTaskBody
	if err := readBodyJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	start, err := parseDate("start_date", body.StartDate)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseDate("end_date", body.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := h.svc.CreateTask(r.Context(), service.CreateTaskRequest{
		Name:       body.Name,
		LocationID: body.LocationID,
		TaskTypeID: body.TaskTypeID,
		PriceID:    body.PriceID,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(taskToJSON(out)))
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(taskDetailToJSON(d)))
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	locationID, err := queryID(r, "location_id")
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.svc.ListTasks(r.Context(), service.ListTasksRequest{LocationID: locationID})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, taskToJSON(it))
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

type assignmentBody struct {
	ResponsibleID int64            `json:"responsible_id" validate:"required,gt=0"`
	Percentage    *decimal.Decimal `json:"percentage"`
	IsPrimary     bool             `json:"is_primary"`
}

// percentage defaults to a full share when omitted.
func (b assignmentBody) percentage() decimal.Decimal {
	if b.Percentage == nil {
		return decimal.NewFromInt(100)
	}
	return *b.Percentage
}

type replaceAssignmentsBody struct {
	Assignments []assignmentBody `json:"assignments" validate:"dive"`
}

func (h *TaskHandler) AssignResponsible(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body assignmentBody
	if err := readBodyJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.AssignResponsible(r.Context(), service.AssignResponsibleRequest{
		TaskID:        taskID,
		ResponsibleID: body.ResponsibleID,
		Percentage:    body.percentage(),
		IsPrimary:     body.IsPrimary,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(allocationToJSON(res)))
}

func (h *TaskHandler) ReplaceAssignments(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body replaceAssignmentsBody
	if err := readBodyJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	in := make([]service.AssignmentInput, 0, len(body.Assignments))
	for _, a := range body.Assignments {
		in = append(in, service.AssignmentInput{
			ResponsibleID: a.ResponsibleID,
			Percentage:    a.percentage(),
			IsPrimary:     a.IsPrimary,
		})
	}
	res, err := h.svc.ReplaceAssignments(r.Context(), service.ReplaceAssignmentsRequest{TaskID: taskID, Assignments: in})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(allocationToJSON(res)))
}

func (h *TaskHandler) RemoveResponsible(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	responsibleID, err := pathID(r, "responsibleId")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.RemoveResponsible(r.Context(), taskID, responsibleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(allocationToJSON(res)))
}

func (h *TaskHandler) AllocationStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.AllocationStatus(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(allocationToJSON(res)))
}

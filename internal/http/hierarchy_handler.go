package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"obra-data/internal/domain"
	"obra-data/internal/service"
)

// HierarchyHandler serves sites, modules, blocks, floors and apartments.
type HierarchyHandler struct {
	svc    service.HierarchyService
	logger *zap.Logger
}

func NewHierarchyHandler(svc service.HierarchyService, logger *zap.Logger) *HierarchyHandler {
	return &HierarchyHandler{svc: svc, logger: logger}
}

type createNodeBody struct {
	Name     string `json:"name" validate:"required"`
	SiteID   int64  `json:"site_id" validate:"gte=0"`
	ModuleID int64  `json:"module_id" validate:"gte=0"`
	BlockID  int64  `json:"block_id" validate:"gte=0"`
	FloorID  int64  `json:"floor_id" validate:"gte=0"`
}

type renameNodeBody struct {
	Name string `json:"name" validate:"required"`
}

// levelRoutes wires the five CRUD routes of one hierarchy level.
type levelRoutes[T any] struct {
	path        string
	parentParam string // query param of List; empty for sites
	parent      func(createNodeBody) int64
	create      func(context.Context, service.CreateNodeRequest) (T, error)
	get         func(context.Context, int64) (T, error)
	list        func(context.Context, int64) ([]T, error)
	rename      func(context.Context, service.RenameNodeRequest) (T, error)
	del         func(context.Context, int64) error
	toJSON      func(T) map[string]any
}

func registerLevel[T any](r *mux.Router, lr levelRoutes[T]) {
	r.HandleFunc(lr.path, func(w http.ResponseWriter, req *http.Request) {
		var body createNodeBody
		if err := readBodyJSON(req, &body); err != nil {
			writeError(w, err)
			return
		}
		var parentID int64
		if lr.parent != nil {
			parentID = lr.parent(body)
		}
		out, err := lr.create(req.Context(), service.CreateNodeRequest{ParentID: parentID, Name: body.Name})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(lr.toJSON(out)))
	}).Methods(http.MethodPost)

	r.HandleFunc(lr.path, func(w http.ResponseWriter, req *http.Request) {
		var parentID int64
		if lr.parentParam != "" {
			id, err := requiredQueryID(req, lr.parentParam)
			if err != nil {
				writeError(w, err)
				return
			}
			parentID = id
		}
		items, err := lr.list(req.Context(), parentID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			out = append(out, lr.toJSON(it))
		}
		writeJSON(w, http.StatusOK, Ok(out))
	}).Methods(http.MethodGet)

	r.HandleFunc(lr.path+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := pathID(req, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		out, err := lr.get(req.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(lr.toJSON(out)))
	}).Methods(http.MethodGet)

	r.HandleFunc(lr.path+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := pathID(req, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		var body renameNodeBody
		if err := readBodyJSON(req, &body); err != nil {
			writeError(w, err)
			return
		}
		out, err := lr.rename(req.Context(), service.RenameNodeRequest{ID: id, Name: body.Name})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(lr.toJSON(out)))
	}).Methods(http.MethodPut)

	r.HandleFunc(lr.path+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := pathID(req, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := lr.del(req.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
	}).Methods(http.MethodDelete)
}

func (h *HierarchyHandler) Register(r *mux.Router) {
	registerLevel(r, levelRoutes[*domain.Site]{
		path:   "/sites",
		create: h.svc.CreateSite,
		get:    h.svc.GetSite,
		list: func(ctx context.Context, _ int64) ([]*domain.Site, error) {
			return h.svc.ListSites(ctx)
		},
		rename: h.svc.RenameSite,
		del:    h.svc.DeleteSite,
		toJSON: siteToJSON,
	})
	registerLevel(r, levelRoutes[*domain.Module]{
		path:        "/modules",
		parentParam: "site_id",
		parent:      func(b createNodeBody) int64 { return b.SiteID },
		create:      h.svc.CreateModule,
		get:         h.svc.GetModule,
		list:        h.svc.ListModules,
		rename:      h.svc.RenameModule,
		del:         h.svc.DeleteModule,
		toJSON:      moduleToJSON,
	})
	registerLevel(r, levelRoutes[*domain.Block]{
		path:        "/blocks",
		parentParam: "module_id",
		parent:      func(b createNodeBody) int64 { return b.ModuleID },
		create:      h.svc.CreateBlock,
		get:         h.svc.GetBlock,
		list:        h.svc.ListBlocks,
		rename:      h.svc.RenameBlock,
		del:         h.svc.DeleteBlock,
		toJSON:      blockToJSON,
	})
	registerLevel(r, levelRoutes[*domain.Floor]{
		path:        "/floors",
		parentParam: "block_id",
		parent:      func(b createNodeBody) int64 { return b.BlockID },
		create:      h.svc.CreateFloor,
		get:         h.svc.GetFloor,
		list:        h.svc.ListFloors,
		rename:      h.svc.RenameFloor,
		del:         h.svc.DeleteFloor,
		toJSON:      floorToJSON,
	})
	registerLevel(r, levelRoutes[*domain.Apartment]{
		path:        "/apartments",
		parentParam: "floor_id",
		parent:      func(b createNodeBody) int64 { return b.FloorID },
		create:      h.svc.CreateApartment,
		get:         h.svc.GetApartment,
		list:        h.svc.ListApartments,
		rename:      h.svc.RenameApartment,
		del:         h.svc.DeleteApartment,
		toJSON:      apartmentToJSON,
	})

	r.HandleFunc("/apartments/{id}/path", h.ResolveApartmentPath).Methods(http.MethodGet)
}

func (h *HierarchyHandler) ResolveApartmentPath(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.svc.ResolveApartmentPath(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(apartmentPathToJSON(p)))
}

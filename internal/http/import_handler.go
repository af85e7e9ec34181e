package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"obra-data/internal/service"
)

const maxUploadBytes = 10 << 20

// ImportHandler moves a site's hierarchy in and out of spreadsheets.
type ImportHandler struct {
	svc    service.ImportService
	logger *zap.Logger
}

func NewImportHandler(svc service.ImportService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, logger: logger}
}

func (h *ImportHandler) Register(r *mux.Router) {
	r.HandleFunc("/sites/{id}/import", h.ImportHierarchy).Methods(http.MethodPost)
	r.HandleFunc("/sites/{id}/export", h.ExportHierarchy).Methods(http.MethodGet)
	r.HandleFunc("/import/template", h.Template).Methods(http.MethodGet)
}

// ImportHierarchy reads the "file" part of a multipart upload.
func (h *ImportHandler) ImportHierarchy(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.logger.Warn("failed to parse upload", zap.Int64("site_id", siteID), zap.Error(err))
		writeError(w, badRequest("failed to parse form"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, badRequest("file not found in request"))
		return
	}
	defer file.Close()

	report, err := h.svc.ImportHierarchy(r.Context(), siteID, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

func (h *ImportHandler) ExportHierarchy(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := h.svc.ExportHierarchy(r.Context(), siteID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeXLSX(w, fmt.Sprintf("site-%d-hierarchy.xlsx", siteID), data)
}

func (h *ImportHandler) Template(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.HierarchyTemplate()
	if err != nil {
		h.logger.Error("failed to build hierarchy template", zap.Error(err))
		writeError(w, err)
		return
	}
	writeXLSX(w, "hierarchy-template.xlsx", data)
}

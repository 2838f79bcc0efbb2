package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/HarshS99/lostandfound/internal/model"
	"github.com/HarshS99/lostandfound/internal/pipeline"
)

// maxUploadBytes limits report image uploads to 5 MB.
const maxUploadBytes = 5 << 20

// ReportsHandler accepts new lost-or-found reports and runs them through the
// matching pipeline.
type ReportsHandler struct {
	Pipeline *pipeline.Coordinator
}

// Create handles POST /api/reports. The body is a multipart form with
// fields type, title, description, contact, and an image file.
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	itemType := strings.ToLower(strings.TrimSpace(r.FormValue("type")))
	if !model.ValidType(itemType) {
		jsonError(w, http.StatusBadRequest, "type must be 'lost' or 'found'")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		jsonError(w, http.StatusBadRequest, "title required")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	result, err := h.Pipeline.Run(r.Context(), pipeline.Report{
		Type:        itemType,
		Title:       title,
		Description: strings.TrimSpace(r.FormValue("description")),
		Contact:     strings.TrimSpace(r.FormValue("contact")),
		Image:       imageData,
	})
	if err != nil {
		// The pipeline either stored the report or it didn't; there is no
		// partial state to explain, so the error description is the result.
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	jsonResponse(w, http.StatusCreated, result)
}

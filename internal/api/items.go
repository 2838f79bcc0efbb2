package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/HarshS99/lostandfound/internal/model"
	"github.com/HarshS99/lostandfound/internal/store"
)

// defaultListLimit caps how many recent items a listing returns by default.
const defaultListLimit = 20

// ItemsHandler handles staff browsing of reported items.
type ItemsHandler struct {
	DB *sql.DB
}

// List handles GET /api/items. Returns the most recent items first,
// optionally filtered by type.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	itemType := r.URL.Query().Get("type")
	if itemType != "" && !model.ValidType(itemType) {
		jsonError(w, http.StatusBadRequest, "invalid item type")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	items, err := store.FetchAllItems(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	// The store hands back insertion order; recency means walking it from
	// the end.
	recent := make([]model.Item, 0, limit)
	for i := len(items) - 1; i >= 0 && len(recent) < limit; i-- {
		if itemType != "" && items[i].Type != itemType {
			continue
		}
		recent = append(recent, items[i])
	}

	jsonResponse(w, http.StatusOK, recent)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

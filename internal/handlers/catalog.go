package handlers

import (
	"net/http"

	"notehub/internal/catalog"
	"notehub/internal/drivelink"
)

// CatalogHandler serves the term levels and batches notes are classified under.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.catalog)
}

// NormalizeLink previews how a pasted share link will be stored.
func NormalizeLink(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	link := drivelink.Normalize(raw)
	writeJSON(r.Context(), w, http.StatusOK, struct {
		drivelink.Link
		Resolved bool `json:"resolved"`
	}{link, link.Resolved()})
}

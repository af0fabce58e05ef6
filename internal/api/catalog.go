package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/storefront"
)

// CatalogHandler serves and publishes the storefront catalog.
type CatalogHandler struct {
	Inventory *store.Inventory
	Publisher storefront.Publisher
	Layout    storefront.Layout
}

// Catalog handles GET /api/catalog. The body is the catalog exactly as
// persisted.
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	data, err := h.Inventory.CatalogJSON()
	if err != nil {
		storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Publish handles POST /api/publish.
func (h *CatalogHandler) Publish(w http.ResponseWriter, r *http.Request) {
	err := storefront.PublishCatalog(r.Context(), h.Publisher, h.Inventory, h.Layout)
	if errors.Is(err, storefront.ErrNotConfigured) {
		jsonError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		slog.Error("publishing catalog", "error", err)
		jsonError(w, http.StatusBadGateway, "publishing failed")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Published successfully!"})
}

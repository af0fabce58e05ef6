package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/fulfillment"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/ident"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/imaging"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/storefront"
)

// ItemsHandler handles inventory endpoints.
type ItemsHandler struct {
	Inventory   *store.Inventory
	IDs         ident.Generator
	Fulfillment *fulfillment.Coordinator
	Publisher   storefront.Publisher
	Layout      storefront.Layout
}

type shipRequest struct {
	Destination    string `json:"destination"`
	SubscriptionID string `json:"subscription_id"`
}

type reinstateRequest struct {
	Reason string `json:"reason"`
}

// List handles GET /api/items?category=&q=.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.URL.Query().Get("category"))
	term := r.URL.Query().Get("q")

	var items []model.Item
	switch {
	case category == "" && term == "":
		items = h.Inventory.All()
	case category == "":
		for _, c := range model.Categories {
			items = append(items, h.Inventory.Search(c, term)...)
		}
	case !category.Valid():
		jsonError(w, http.StatusBadRequest, "unknown category")
		return
	default:
		items = h.Inventory.Search(category, term)
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.Inventory.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Create handles POST /api/items. Items without an id get a generated one.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var item model.Item
	if err := decodeJSON(r, &item); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !item.Category.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown category")
		return
	}

	if item.ID == "" {
		id, err := h.IDs.Generate(string(item.Category))
		if err != nil {
			storeError(w, err)
			return
		}
		item.ID = id
	}

	if err := h.Inventory.Add(item); err != nil {
		storeError(w, err)
		return
	}

	created, _ := h.Inventory.Get(item.ID)
	slog.Info("item created", "user", GetClaims(r.Context()).Username, "id", created.ID, "category", created.Category)
	jsonResponse(w, http.StatusCreated, created)
}

// Update handles PUT /api/items/{id}. Omitted category, status and feeding
// log keep their current values.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cur, ok := h.Inventory.Get(id)
	if !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var item model.Item
	var present struct {
		Status *string `json:"status"`
	}
	if json.Unmarshal(raw, &item) != nil || json.Unmarshal(raw, &present) != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if present.Status == nil {
		item.Status = cur.Status
	}
	if item.Category == "" {
		item.Category = cur.Category
	}
	if item.FeedingLog == nil {
		item.FeedingLog = cur.FeedingLog
	}

	if err := h.Inventory.Update(id, item); err != nil {
		storeError(w, err)
		return
	}

	updated, _ := h.Inventory.Get(id)
	slog.Info("item updated", "user", GetClaims(r.Context()).Username, "id", id, "status", updated.Status)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Inventory.Delete(id); err != nil {
		storeError(w, err)
		return
	}
	slog.Info("item deleted", "user", GetClaims(r.Context()).Username, "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Sell handles POST /api/items/{id}/sell for counter sales that do not ship.
func (h *ItemsHandler) Sell(w http.ResponseWriter, r *http.Request) {
	item, err := h.Inventory.MarkSold(r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	slog.Info("item sold", "user", GetClaims(r.Context()).Username, "id", item.ID)
	jsonResponse(w, http.StatusOK, item)
}

// Ship handles POST /api/items/{id}/ship. A denied shipment answers 422
// with the safety result.
func (h *ItemsHandler) Ship(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.Fulfillment.Ship(r.Context(), fulfillment.Request{
		ItemID:         r.PathValue("id"),
		Destination:    req.Destination,
		SubscriptionID: req.SubscriptionID,
	})
	if errors.Is(err, fulfillment.ErrShipmentDenied) {
		jsonResponse(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  out.Safety.Reason,
			"safety": out.Safety,
		})
		return
	}
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// Reinstate handles POST /api/items/{id}/reinstate.
func (h *ItemsHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	var req reinstateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Inventory.Reinstate(r.PathValue("id"), req.Reason)
	if err != nil {
		storeError(w, err)
		return
	}
	slog.Info("item reinstated via api", "user", GetClaims(r.Context()).Username, "id", item.ID)
	jsonResponse(w, http.StatusOK, item)
}

// AddFeeding handles POST /api/items/{id}/feedings.
func (h *ItemsHandler) AddFeeding(w http.ResponseWriter, r *http.Request) {
	var entry model.FeedingEntry
	if err := decodeJSON(r, &entry); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Inventory.AppendFeeding(r.PathValue("id"), entry)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// UploadImage handles PUT /api/items/{id}/image. The photo is stored under
// the assets directory and, when publishing is configured, pushed right away.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, ok := h.Inventory.Get(id)
	if !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	asset, _, err := imaging.SaveItemImage(h.Layout.AssetsDir, item.ID, file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item.Image = asset
	if err := h.Inventory.Update(id, item); err != nil {
		storeError(w, err)
		return
	}

	published := false
	if h.Publisher != nil && h.Publisher.Configured() {
		if err := storefront.PublishItemImage(r.Context(), h.Publisher, h.Inventory, h.Layout, id); err != nil {
			slog.Error("publishing item image", "id", id, "error", err)
		} else {
			published = true
		}
	}

	jsonResponse(w, http.StatusOK, map[string]any{"image": asset, "published": published})
}

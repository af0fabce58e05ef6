package api

import (
	"net/http"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
)

// SubscriptionsHandler handles recurring shipment endpoints.
type SubscriptionsHandler struct {
	Subscriptions *store.Subscriptions
	Now           func() time.Time
}

type createSubscriptionRequest struct {
	UserID         string `json:"user_id"`
	Item           string `json:"item"`
	FrequencyWeeks int    `json:"frequency_weeks"`
}

type setSubscriptionStatusRequest struct {
	Status model.SubscriptionStatus `json:"status"`
}

func (h *SubscriptionsHandler) List(w http.ResponseWriter, r *http.Request) {
	subs := h.Subscriptions.List()
	if subs == nil {
		subs = []model.Subscription{}
	}
	jsonResponse(w, http.StatusOK, subs)
}

func (h *SubscriptionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.Subscriptions.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "subscription not found")
		return
	}
	jsonResponse(w, http.StatusOK, sub)
}

// Due handles GET /api/subscriptions/due?as_of=YYYY-MM-DD; as_of defaults
// to today.
func (h *SubscriptionsHandler) Due(w http.ResponseWriter, r *http.Request) {
	asOf := h.Now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse(model.DateLayout, v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = t
	}

	due := h.Subscriptions.Due(asOf)
	if due == nil {
		due = []model.Subscription{}
	}
	jsonResponse(w, http.StatusOK, due)
}

func (h *SubscriptionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.Subscriptions.Create(req.UserID, req.Item, req.FrequencyWeeks)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, sub)
}

func (h *SubscriptionsHandler) Advance(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Subscriptions.Advance(r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sub)
}

func (h *SubscriptionsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setSubscriptionStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.Subscriptions.SetStatus(r.PathValue("id"), req.Status)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sub)
}

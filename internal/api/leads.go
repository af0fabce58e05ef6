package api

import (
	"log/slog"
	"net/http"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
)

// LeadsHandler handles storefront contact requests.
type LeadsHandler struct {
	Leads *store.Leads
}

type createLeadRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Create handles POST /api/leads. It is public.
func (h *LeadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req createLeadRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lead, err := h.Leads.Append(req.Name, req.Email, req.Message)
	if err != nil {
		storeError(w, err)
		return
	}
	slog.Info("lead captured", "email", lead.Email)
	jsonResponse(w, http.StatusCreated, lead)
}

// List handles GET /api/leads.
func (h *LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	leads := h.Leads.List()
	if leads == nil {
		leads = []model.Lead{}
	}
	jsonResponse(w, http.StatusOK, leads)
}

package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/shipping"
)

// ShippingHandler exposes the shipping safety gate.
type ShippingHandler struct {
	Weather shipping.Provider
}

// Check handles GET /api/shipping/check?zip=.
func (h *ShippingHandler) Check(w http.ResponseWriter, r *http.Request) {
	zip := strings.TrimSpace(r.URL.Query().Get("zip"))
	if zip == "" {
		jsonError(w, http.StatusBadRequest, "zip required")
		return
	}

	res, err := shipping.Check(r.Context(), h.Weather, zip)
	if err != nil {
		slog.Error("shipping check failed", "zip", zip, "error", err)
		jsonError(w, http.StatusBadGateway, "temperature lookup failed")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

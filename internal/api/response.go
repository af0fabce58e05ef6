package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/fulfillment"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// storeError maps core errors to HTTP statuses. Unknown errors are logged
// and reported as 500 without detail.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateIdentity), errors.Is(err, store.ErrInvalidTransition):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidArgument):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fulfillment.ErrShipmentDenied):
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

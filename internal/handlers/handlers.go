package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"splitledger/internal/services"
	"splitledger/internal/store"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps validation failures to 400 and missing rows to
// 404. Anything else is logged and answered with 500 and message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	default:
		slog.Error(message, "error", err, "request_id", chimiddleware.GetReqID(r.Context()))
		respondError(w, http.StatusInternalServerError, message)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

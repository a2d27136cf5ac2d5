package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) SettleDebt(w http.ResponseWriter, r *http.Request) {
	debtID := chi.URLParam(r, "id")
	if _, err := h.expenses.GetDebt(r.Context(), debtID); err != nil {
		respondServiceError(w, r, err, "unable to load debt")
		return
	}
	debt, err := h.expenses.SettleDebt(r.Context(), debtID)
	if err != nil {
		respondServiceError(w, r, err, "unable to settle debt")
		return
	}
	respondJSON(w, http.StatusOK, debt)
}

package handlers

import (
	"net/http"
	"strings"

	"splitledger/internal/models"
	"splitledger/internal/money"
)

type categoryTotal struct {
	Category models.Category `json:"category"`
	Total    money.Money     `json:"total"`
}

// CategoryReport lists every category in a fixed order, including empty ones.
func (h *Handler) CategoryReport(w http.ResponseWriter, r *http.Request) {
	var filter models.ExpenseFilter
	if groupID := strings.TrimSpace(r.URL.Query().Get("group_id")); groupID != "" {
		filter.GroupID = &groupID
	}
	var userID *string
	if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
		if _, err := h.directory.GetUser(r.Context(), raw); err != nil {
			respondServiceError(w, r, err, "unable to load user")
			return
		}
		userID = &raw
	}
	totals, err := h.expenses.CategoryTotals(r.Context(), filter, userID)
	if err != nil {
		respondServiceError(w, r, err, "unable to build report")
		return
	}
	report := make([]categoryTotal, 0, len(models.Categories))
	for _, category := range models.Categories {
		report = append(report, categoryTotal{Category: category, Total: totals[category]})
	}
	respondJSON(w, http.StatusOK, report)
}

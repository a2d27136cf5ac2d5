package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"splitledger/internal/models"
	"splitledger/internal/services"

	"github.com/go-chi/chi/v5"
)

type shareRequest struct {
	UserID string  `json:"user_id"`
	Value  numeric `json:"value"`
}

type splitRequest struct {
	Policy string         `json:"policy"`
	Users  []string       `json:"users"`
	Shares []shareRequest `json:"shares"`
}

type expenseRequest struct {
	Name           string        `json:"name"`
	Amount         numeric       `json:"amount"`
	Category       string        `json:"category"`
	SpentAt        *time.Time    `json:"spent_at"`
	GroupID        *string       `json:"group_id"`
	PaidBy         *string       `json:"paid_by"`
	IsGroupExpense bool          `json:"is_group_expense"`
	Split          *splitRequest `json:"split"`
}

// input converts the request body, reporting the offending field on failure.
func (req expenseRequest) input() (services.ExpenseInput, string, error) {
	amount, err := parseAmount(string(req.Amount))
	if err != nil {
		return services.ExpenseInput{}, "amount", err
	}
	in := services.ExpenseInput{
		Name:           req.Name,
		Amount:         amount,
		Category:       models.ParseCategory(req.Category),
		GroupID:        blankToNil(req.GroupID),
		PaidBy:         blankToNil(req.PaidBy),
		IsGroupExpense: req.IsGroupExpense,
	}
	if req.SpentAt != nil {
		in.SpentAt = req.SpentAt.UTC()
	}
	if req.Split != nil {
		in.Split = &services.SplitInput{
			Policy: models.SplitPolicy(strings.ToLower(strings.TrimSpace(req.Split.Policy))),
			Users:  req.Split.Users,
		}
		for _, sr := range req.Split.Shares {
			share, err := parseShare(sr.UserID, string(sr.Value))
			if err != nil {
				return services.ExpenseInput{}, "split.shares", err
			}
			in.Split.Shares = append(in.Split.Shares, share)
		}
	}
	return in, "", nil
}

func blankToNil(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func respondFieldError(w http.ResponseWriter, field string, err error) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": field})
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, field, err := req.input()
	if err != nil {
		respondFieldError(w, field, err)
		return
	}
	expense, err := h.expenses.CreateExpense(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err, "unable to create expense")
		return
	}
	respondJSON(w, http.StatusCreated, expense)
}

func (h *Handler) EditExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, field, err := req.input()
	if err != nil {
		respondFieldError(w, field, err)
		return
	}
	expense, err := h.expenses.EditExpense(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err, "unable to update expense")
		return
	}
	respondJSON(w, http.StatusOK, expense)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	detail, err := h.expenses.GetExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "unable to load expense")
		return
	}
	respondJSON(w, http.StatusOK, withParticipants(detail))
}

// withParticipants keeps an unsplit expense's participants as [] rather than null.
func withParticipants(detail services.ExpenseDetail) services.ExpenseDetail {
	if detail.Participants == nil {
		detail.Participants = []models.Participant{}
	}
	return detail
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseExpenseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	expenses, err := h.expenses.ListExpenses(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err, "unable to list expenses")
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	respondJSON(w, http.StatusOK, expenses)
}

// DeleteExpense and the other mutations below treat a missing id as a no-op in
// the service, so the lookup here is what turns it into a 404.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	expenseID := chi.URLParam(r, "id")
	if _, err := h.expenses.GetExpense(r.Context(), expenseID); err != nil {
		respondServiceError(w, r, err, "unable to load expense")
		return
	}
	if err := h.expenses.DeleteExpense(r.Context(), expenseID); err != nil {
		respondServiceError(w, r, err, "unable to delete expense")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearSplit(w http.ResponseWriter, r *http.Request) {
	expenseID := chi.URLParam(r, "id")
	if _, err := h.expenses.GetExpense(r.Context(), expenseID); err != nil {
		respondServiceError(w, r, err, "unable to load expense")
		return
	}
	if err := h.expenses.ClearSplit(r.Context(), expenseID); err != nil {
		respondServiceError(w, r, err, "unable to clear split")
		return
	}
	detail, err := h.expenses.GetExpense(r.Context(), expenseID)
	if err != nil {
		respondServiceError(w, r, err, "unable to load expense")
		return
	}
	respondJSON(w, http.StatusOK, withParticipants(detail))
}

var errPersonalAndGroup = errors.New("personal and group_id are exclusive")

func parseExpenseFilter(r *http.Request) (models.ExpenseFilter, error) {
	query := r.URL.Query()
	var filter models.ExpenseFilter
	if groupID := strings.TrimSpace(query.Get("group_id")); groupID != "" {
		filter.GroupID = &groupID
	}
	personal, err := parseBoolParam(query.Get("personal"))
	if err != nil {
		return filter, errors.New("invalid personal")
	}
	if personal && filter.GroupID != nil {
		return filter, errPersonalAndGroup
	}
	filter.PersonalOnly = personal
	if raw := query.Get("category"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Categories = append(filter.Categories, models.ParseCategory(part))
			}
		}
	}
	filter.Search = strings.TrimSpace(query.Get("q"))
	if raw := query.Get("group_expense"); raw != "" {
		flag, err := parseBoolParam(raw)
		if err != nil {
			return filter, errors.New("invalid group_expense")
		}
		filter.IsGroupExpense = &flag
	}
	return filter, nil
}

package handlers

import (
	"net/http"

	"splitledger/internal/money"

	"github.com/go-chi/chi/v5"
)

type createUserRequest struct {
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

type balanceResponse struct {
	UserID  string      `json:"user_id"`
	GroupID *string     `json:"group_id,omitempty"`
	Balance money.Money `json:"balance"`
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.directory.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		respondServiceError(w, r, err, "unable to create user")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.directory.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UserBalance answers the net position of a user, across all groups unless
// group_id is given.
func (h *Handler) UserBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := h.directory.GetUser(r.Context(), userID); err != nil {
		respondServiceError(w, r, err, "unable to load user")
		return
	}
	var groupID *string
	if raw := r.URL.Query().Get("group_id"); raw != "" {
		groupID = &raw
	}
	balance, err := h.expenses.NetBalance(r.Context(), userID, groupID)
	if err != nil {
		respondServiceError(w, r, err, "unable to load balance")
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{UserID: userID, GroupID: groupID, Balance: balance})
}

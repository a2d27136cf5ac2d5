package handlers

import (
	"net/http"

	"splitledger/internal/ledger"
	"splitledger/internal/models"
	"splitledger/internal/money"

	"github.com/go-chi/chi/v5"
)

type createGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

type groupResponse struct {
	models.Group
	Total money.Money `json:"total"`
}

type balancesResponse struct {
	GroupID  string           `json:"group_id"`
	Balances []ledger.Balance `json:"balances"`
}

type owedResponse struct {
	GroupID string      `json:"group_id"`
	From    string      `json:"from"`
	To      string      `json:"to"`
	Amount  money.Money `json:"amount"`
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	group, err := h.directory.CreateGroup(r.Context(), req.Name, req.MemberIDs)
	if err != nil {
		respondServiceError(w, r, err, "unable to create group")
		return
	}
	respondJSON(w, http.StatusCreated, groupResponse{Group: group})
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.directory.ListGroups(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "unable to list groups")
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	respondJSON(w, http.StatusOK, groups)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	group, err := h.directory.GetGroup(r.Context(), groupID)
	if err != nil {
		respondServiceError(w, r, err, "unable to load group")
		return
	}
	total, err := h.directory.GroupTotal(r.Context(), groupID)
	if err != nil {
		respondServiceError(w, r, err, "unable to load group total")
		return
	}
	respondJSON(w, http.StatusOK, groupResponse{Group: group, Total: total})
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	group, err := h.directory.AddMember(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		respondServiceError(w, r, err, "unable to add member")
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	group, err := h.directory.RemoveMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err, "unable to remove member")
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	includeSettled, err := parseBoolParam(r.URL.Query().Get("include_settled"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid include_settled")
		return
	}
	debts, err := h.expenses.ListDebts(r.Context(), chi.URLParam(r, "id"), includeSettled)
	if err != nil {
		respondServiceError(w, r, err, "unable to list debts")
		return
	}
	if debts == nil {
		debts = []models.Debt{}
	}
	respondJSON(w, http.StatusOK, debts)
}

func (h *Handler) GroupBalances(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	balances, err := h.expenses.GroupBalances(r.Context(), groupID)
	if err != nil {
		respondServiceError(w, r, err, "unable to load balances")
		return
	}
	if balances == nil {
		balances = []ledger.Balance{}
	}
	respondJSON(w, http.StatusOK, balancesResponse{GroupID: groupID, Balances: balances})
}

func (h *Handler) OwedBetween(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		respondError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	if _, err := h.directory.GetGroup(r.Context(), groupID); err != nil {
		respondServiceError(w, r, err, "unable to load group")
		return
	}
	amount, err := h.expenses.OwedBetween(r.Context(), from, to, groupID)
	if err != nil {
		respondServiceError(w, r, err, "unable to load debt")
		return
	}
	respondJSON(w, http.StatusOK, owedResponse{GroupID: groupID, From: from, To: to, Amount: amount})
}

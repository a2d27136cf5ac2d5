package handlers

import (
	"net/http"

	"splitledger/internal/websocket"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) WSGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	if _, err := h.directory.GetGroup(r.Context(), groupID); err != nil {
		respondServiceError(w, r, err, "unable to load group")
		return
	}
	websocket.ServeWS(w, r, h.hub, groupID)
}

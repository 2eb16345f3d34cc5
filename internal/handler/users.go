package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

func (h *Handler) GetUserShiftHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	history, err := h.service.UserHistory(r.Context(), userID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		UserID      string                      `json:"userId"`
		Shifts      []*domain.ShiftHistoryEntry `json:"shifts"`
		TotalShifts int                         `json:"totalShifts"`
	}{
		UserID:      userID,
		Shifts:      history,
		TotalShifts: len(history),
	})
}

package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShiftType      string `json:"shiftType" validate:"required,max=100"`
		RequiredPeople int32  `json:"requiredPeople" validate:"gte=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.service.CreateAndAnnounce(r.Context(), req.ShiftType, req.RequiredPeople)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, struct {
		Success  bool          `json:"success"`
		Message  string        `json:"message"`
		Shift    *domain.Shift `json:"shift"`
		Warnings []string      `json:"warnings,omitempty"`
	}{
		Success:  true,
		Message:  "班次创建成功",
		Shift:    result.Shift,
		Warnings: result.Warnings,
	})
}

func (h *Handler) GetAllShifts(w http.ResponseWriter, r *http.Request) {
	filter := domain.ShiftFilter{
		Status:           domain.ShiftStatus(r.URL.Query().Get("status")),
		WithApplications: r.URL.Query().Get("withApplications") == "true",
	}

	shifts, err := h.service.ListShifts(r.Context(), filter)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, shifts)
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shiftID := r.Context().Value(ShiftIDCtxKey).(int64)

	shift, err := h.service.GetShift(r.Context(), shiftID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		Success bool          `json:"success"`
		Shift   *domain.Shift `json:"shift"`
	}{
		Success: true,
		Shift:   shift,
	})
}

func (h *Handler) GetShiftApplications(w http.ResponseWriter, r *http.Request) {
	shiftID := r.Context().Value(ShiftIDCtxKey).(int64)

	applications, err := h.service.ListApplications(r.Context(), shiftID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		Success      bool                  `json:"success"`
		Applications []*domain.Application `json:"applications"`
	}{
		Success:      true,
		Applications: applications,
	})
}

func (h *Handler) GetShiftAssignments(w http.ResponseWriter, r *http.Request) {
	shiftID := r.Context().Value(ShiftIDCtxKey).(int64)

	assignments, err := h.service.ListAssignments(r.Context(), shiftID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		Success     bool                 `json:"success"`
		Assignments []*domain.Assignment `json:"assignments"`
	}{
		Success:     true,
		Assignments: assignments,
	})
}

func (h *Handler) ApplyForShift(w http.ResponseWriter, r *http.Request) {
	shiftID := r.Context().Value(ShiftIDCtxKey).(int64)

	var req struct {
		UserID string `json:"userId" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.service.SubmitApplication(r.Context(), shiftID, req.UserID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		Success     bool                `json:"success"`
		Message     string              `json:"message"`
		Application *domain.Application `json:"application"`
		Warnings    []string            `json:"warnings,omitempty"`
	}{
		Success:     true,
		Message:     "报名成功",
		Application: result.Application,
		Warnings:    result.Warnings,
	})
}

func (h *Handler) RandomSelect(w http.ResponseWriter, r *http.Request) {
	shiftID := r.Context().Value(ShiftIDCtxKey).(int64)

	result, err := h.service.ResolveShift(r.Context(), shiftID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	selected := make([]domain.SelectedUser, 0, len(result.Selected))
	for _, a := range result.Selected {
		selected = append(selected, domain.SelectedUser{
			UserID:      a.UserID,
			DisplayName: a.DisplayName,
		})
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		Success  bool                  `json:"success"`
		Message  string                `json:"message"`
		Selected []domain.SelectedUser `json:"selected"`
		Warnings []string              `json:"warnings,omitempty"`
	}{
		Success:  true,
		Message:  "抽签完成",
		Selected: selected,
		Warnings: result.Warnings,
	})
}

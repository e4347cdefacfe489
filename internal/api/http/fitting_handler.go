package http

import (
	"net/http"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/service"
)

type FittingHandler struct {
	fittingSvc service.FittingService
}

func NewFittingHandler(fittingSvc service.FittingService) *FittingHandler {
	return &FittingHandler{fittingSvc: fittingSvc}
}

type bookFittingRequest struct {
	SlotID     int32   `json:"slot_id"`
	ProductIDs []int32 `json:"product_ids"`
	Note       string  `json:"note"`
}

func (h *FittingHandler) BookFitting(w http.ResponseWriter, r *http.Request) {
	var req bookFittingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fitting, err := h.fittingSvc.Book(r.Context(), caller(r).UserID, req.SlotID, req.ProductIDs, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fitting)
}

func (h *FittingHandler) ListFittings(w http.ResponseWriter, r *http.Request) {
	claims := caller(r)
	status := domain.FittingStatus(r.URL.Query().Get("status"))
	fittings, err := h.fittingSvc.ListFittings(r.Context(), claims.UserID, actingRole(r, claims), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if fittings == nil {
		fittings = []domain.FittingSchedule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fittings": fittings})
}

func (h *FittingHandler) GetFitting(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fitting, err := h.fittingSvc.GetFitting(r.Context(), id, caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fitting)
}

type fittingStatusRequest struct {
	Status domain.FittingStatus `json:"status"`
}

func (h *FittingHandler) TransitionFitting(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req fittingStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fitting, err := h.fittingSvc.Transition(r.Context(), id, caller(r).UserID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fitting)
}

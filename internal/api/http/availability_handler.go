package http

import (
	"net/http"
	"time"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/service"
	"onrent-backend/internal/timeutil"
)

// defaultListDays is the open-slot range when the caller gives no end date.
const defaultListDays = 7

type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

func (h *AvailabilityHandler) GetWeeklyTemplate(w http.ResponseWriter, r *http.Request) {
	week, err := h.availabilitySvc.GetWeeklyTemplate(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": week})
}

type weeklyTemplateRequest struct {
	Entries []domain.WeeklyAvailability `json:"entries"`
}

func (h *AvailabilityHandler) SetWeeklyTemplate(w http.ResponseWriter, r *http.Request) {
	var req weeklyTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	week, err := h.availabilitySvc.SetWeeklyTemplate(r.Context(), caller(r).UserID, req.Entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": week})
}

func (h *AvailabilityHandler) GetOwnerSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.availabilitySvc.GetSettings(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type autoConfirmRequest struct {
	IsAutoConfirm *bool `json:"is_auto_confirm"`
}

func (h *AvailabilityHandler) SetAutoConfirm(w http.ResponseWriter, r *http.Request) {
	var req autoConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IsAutoConfirm == nil {
		writeError(w, r, domain.NewValidationError("is_auto_confirm", "is required"))
		return
	}
	settings, err := h.availabilitySvc.SetAutoConfirm(r.Context(), caller(r).UserID, *req.IsAutoConfirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type scheduleBlockRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

func (h *AvailabilityHandler) CreateScheduleBlock(w http.ResponseWriter, r *http.Request) {
	var req scheduleBlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	window, err := parseWindow("start_time", req.StartTime, "end_time", req.EndTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	block, err := h.availabilitySvc.CreateScheduleBlock(r.Context(), caller(r).UserID, window, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

func (h *AvailabilityHandler) ListScheduleBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.availabilitySvc.ListScheduleBlocks(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if blocks == nil {
		blocks = []domain.ScheduleBlock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (h *AvailabilityHandler) DeleteScheduleBlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.availabilitySvc.DeleteScheduleBlock(r.Context(), caller(r).UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateSlotsRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *AvailabilityHandler) GenerateSlots(w http.ResponseWriter, r *http.Request) {
	var req generateSlotsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	window, err := parseWindow("start_date", req.StartDate, "end_date", req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.availabilitySvc.GenerateSlots(r.Context(), caller(r).UserID, window.Start, window.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"created_count": created})
}

type createSlotRequest struct {
	DateTime string `json:"date_time"`
}

func (h *AvailabilityHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var req createSlotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	at, err := parseTime("date_time", req.DateTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slot, err := h.availabilitySvc.CreateSlot(r.Context(), caller(r).UserID, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// ListOpenSlots defaults to the next week starting today (WIB).
func (h *AvailabilityHandler) ListOpenSlots(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathID(r, "ownerId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	start := timeutil.StartOfDay(time.Now())
	if v := q.Get("start_date"); v != "" {
		if start, err = parseTime("start_date", v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	end := start.AddDate(0, 0, defaultListDays-1)
	if v := q.Get("end_date"); v != "" {
		if end, err = parseTime("end_date", v); err != nil {
			writeError(w, r, err)
			return
		}
	}

	slots, err := h.availabilitySvc.ListOpenSlots(r.Context(), ownerID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

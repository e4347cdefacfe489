package http

import (
	"net/http"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/service"
)

type RentalHandler struct {
	rentalSvc service.RentalService
}

func NewRentalHandler(rentalSvc service.RentalService) *RentalHandler {
	return &RentalHandler{rentalSvc: rentalSvc}
}

type reserveRentalRequest struct {
	OwnerID    int32   `json:"owner_id,omitempty"`
	VariantIDs []int32 `json:"variant_ids"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
}

type reserveRentalResponse struct {
	RentalCode string               `json:"rental_code"`
	Status     domain.BillingStatus `json:"status"`
	Rental     *domain.Rental       `json:"rental"`
}

func (h *RentalHandler) ReserveRental(w http.ResponseWriter, r *http.Request) {
	var req reserveRentalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	window, err := parseWindow("start_date", req.StartDate, "end_date", req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rental, err := h.rentalSvc.Reserve(r.Context(), service.ReserveRequest{
		CustomerID: caller(r).UserID,
		OwnerID:    req.OwnerID,
		VariantIDs: req.VariantIDs,
		StartDate:  window.Start,
		EndDate:    window.End,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reserveRentalResponse{RentalCode: rental.Code, Status: rental.Status, Rental: rental})
}

func (h *RentalHandler) ListRentals(w http.ResponseWriter, r *http.Request) {
	claims := caller(r)
	status := domain.BillingStatus(r.URL.Query().Get("status"))
	rentals, err := h.rentalSvc.ListRentals(r.Context(), claims.UserID, actingRole(r, claims), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rentals == nil {
		rentals = []domain.Rental{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rentals": rentals})
}

func (h *RentalHandler) GetRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.rentalSvc.GetRental(r.Context(), id, caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *RentalHandler) MarkReturned(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.rentalSvc.MarkReturned(r.Context(), id, caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *RentalHandler) ConfirmReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rental, err := h.rentalSvc.ConfirmReturn(r.Context(), id, caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

type billingStatusRequest struct {
	Status domain.BillingStatus `json:"status"`
}

func (h *RentalHandler) UpdateBillingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req billingStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rental, err := h.rentalSvc.UpdateBillingStatus(r.Context(), id, caller(r).UserID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

type rescheduleRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *RentalHandler) RescheduleRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rescheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	window, err := parseWindow("start_date", req.StartDate, "end_date", req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rental, err := h.rentalSvc.RescheduleRental(r.Context(), id, caller(r).UserID, window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

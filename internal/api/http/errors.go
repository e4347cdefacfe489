package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
)

// retryAfterSeconds is sent with 503 responses for transactions that timed out.
const retryAfterSeconds = "2"

type errorResponse struct {
	Error      string  `json:"error"`
	Code       string  `json:"code"`
	Field      string  `json:"field,omitempty"`
	VariantID  int32   `json:"variant_id,omitempty"`
	RentalCode string  `json:"rental_code,omitempty"`
	SlotID     int32   `json:"slot_id,omitempty"`
	OwnerIDs   []int32 `json:"owner_ids,omitempty"`
	From       string  `json:"from,omitempty"`
	To         string  `json:"to,omitempty"`
}

// errorStatus maps the domain error taxonomy onto HTTP status codes.
func errorStatus(err error) (int, errorResponse) {
	var (
		validation   *domain.ValidationError
		notFound     *domain.NotFoundError
		conflict     *domain.ConflictError
		notAvailable *domain.NotAvailableError
		crossOwner   *domain.CrossOwnerError
		transition   *domain.StateTransitionError
		timeout      *domain.TimeoutError
		authz        *domain.AuthorizationError
	)
	resp := errorResponse{Error: err.Error()}
	switch {
	case errors.As(err, &validation):
		resp.Code, resp.Field = "VALIDATION_FAILED", validation.Field
		return http.StatusBadRequest, resp
	case errors.As(err, &authz):
		resp.Code = "FORBIDDEN"
		return http.StatusForbidden, resp
	case errors.As(err, &notFound):
		resp.Code = "NOT_FOUND"
		return http.StatusNotFound, resp
	case errors.As(err, &conflict):
		resp.Code, resp.VariantID, resp.RentalCode, resp.SlotID = "CONFLICT", conflict.VariantID, conflict.RentalCode, conflict.SlotID
		return http.StatusConflict, resp
	case errors.As(err, &notAvailable):
		resp.Code, resp.VariantID = "NOT_AVAILABLE", notAvailable.VariantID
		return http.StatusConflict, resp
	case errors.As(err, &crossOwner):
		resp.Code, resp.OwnerIDs = "CROSS_OWNER", crossOwner.OwnerIDs
		return http.StatusConflict, resp
	case errors.As(err, &transition):
		resp.Code, resp.From, resp.To = "INVALID_TRANSITION", transition.From, transition.To
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &timeout):
		resp.Code = "TIMEOUT"
		return http.StatusServiceUnavailable, resp
	}
	return http.StatusInternalServerError, errorResponse{Error: "Internal server error", Code: "INTERNAL"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/security"
	"onrent-backend/internal/timeutil"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func pathID(r *http.Request, name string) (int32, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return int32(id), nil
}

// parseTime accepts a WIB calendar date (YYYY-MM-DD) or an RFC 3339 instant.
func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, domain.NewValidationError(field, "is required")
	}
	if t, err := timeutil.ParseDate(value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

func parseWindow(startField, start, endField, end string) (domain.TimeWindow, error) {
	from, err := parseTime(startField, start)
	if err != nil {
		return domain.TimeWindow{}, err
	}
	to, err := parseTime(endField, end)
	if err != nil {
		return domain.TimeWindow{}, err
	}
	return domain.NewTimeWindow(from, to), nil
}

func queryInt32(r *http.Request, name string) int32 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}

// caller returns the authenticated user. The auth middleware guarantees
// claims on every non-public route.
func caller(r *http.Request) *security.UserClaims {
	return security.ClaimsFromContext(r.Context())
}

// actingRole lets an owner read their own customer-side data with ?role=CUSTOMER.
func actingRole(r *http.Request, claims *security.UserClaims) domain.Role {
	if domain.Role(r.URL.Query().Get("role")) == domain.RoleCustomer {
		return domain.RoleCustomer
	}
	return claims.Role
}

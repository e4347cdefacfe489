package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository/memory"
	"onrent-backend/internal/security"
	"onrent-backend/internal/service"
	"onrent-backend/internal/timeutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testAPI struct {
	handler  http.Handler
	store    *memory.Store
	tokens   security.TokenManager
	owner    domain.User
	customer domain.User
	other    domain.User
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore(time.Second)
	tokens := security.NewTokenManager(testSecret, time.Hour)
	api := &testAPI{
		store:    store,
		tokens:   tokens,
		owner:    store.AddUser(domain.User{ID: 9, Email: "owner@example.com", Role: domain.RoleOwner}),
		customer: store.AddUser(domain.User{ID: 20, Email: "cust@example.com", Role: domain.RoleCustomer}),
		other:    store.AddUser(domain.User{ID: 21, Email: "other@example.com", Role: domain.RoleCustomer}),
	}
	api.handler = NewRouter(Services{
		Rentals:       service.NewRentalService(store, nil),
		Availability:  service.NewAvailabilityService(store, nil, 14),
		Fittings:      service.NewFittingService(store, nil, nil),
		Notifications: service.NewNotificationService(store.Repos().Notifications),
	}, tokens, nil)
	return api
}

func (a *testAPI) token(t *testing.T, u domain.User) string {
	t.Helper()
	tok, err := a.tokens.GenerateAccessToken(u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path string, as *domain.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(t, *as))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = api.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Auth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/rentals", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rentals", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	bad := httptest.NewRecorder()
	api.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/owner/slots/generate", &api.customer, map[string]string{"start_date": "2026-06-01", "end_date": "2026-06-01"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode[errorResponse](t, rec).Code)
}

func TestRouter_ReserveRental(t *testing.T) {
	api := newTestAPI(t)
	v := api.store.AddVariant(domain.Variant{ProductID: 1, OwnerID: api.owner.ID, SKU: "GOWN", IsAvailable: true})

	rec := api.do(t, http.MethodPost, "/api/v1/rentals", &api.customer, map[string]any{
		"variant_ids": []int32{v.ID}, "start_date": "2026-06-01", "end_date": "2026-06-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[reserveRentalResponse](t, rec)
	assert.Equal(t, domain.BillingStatusUnpaid, created.Status)
	assert.Equal(t, created.Rental.Code, created.RentalCode)

	rec = api.do(t, http.MethodPost, "/api/v1/rentals", &api.other, map[string]any{
		"variant_ids": []int32{v.ID}, "start_date": "2026-06-03", "end_date": "2026-06-07",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[errorResponse](t, rec)
	assert.Equal(t, "CONFLICT", conflict.Code)
	assert.Equal(t, created.RentalCode, conflict.RentalCode)

	rec = api.do(t, http.MethodPost, "/api/v1/rentals", &api.other, map[string]any{
		"variant_ids": []int32{v.ID}, "start_date": "June 3", "end_date": "2026-06-07",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/rentals", &api.other, map[string]any{"unexpected": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RentalLifecycle(t *testing.T) {
	api := newTestAPI(t)
	v := api.store.AddVariant(domain.Variant{ProductID: 1, OwnerID: api.owner.ID, SKU: "TUX", IsAvailable: true})

	rec := api.do(t, http.MethodPost, "/api/v1/rentals", &api.customer, map[string]any{
		"variant_ids": []int32{v.ID}, "start_date": "2026-06-01", "end_date": "2026-06-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rentalID := decode[reserveRentalResponse](t, rec).Rental.ID
	base := fmt.Sprintf("/api/v1/rentals/%d", rentalID)

	rec = api.do(t, http.MethodPost, base+"/confirm-return", &api.owner, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "ONGOING cannot complete")

	rec = api.do(t, http.MethodPost, base+"/return", &api.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.TrackingStatusReturned, decode[domain.TrackingEntry](t, rec).Status)

	rec = api.do(t, http.MethodPost, base+"/confirm-return", &api.owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.BillingStatusDone, decode[domain.Rental](t, rec).Status)

	rec = api.do(t, http.MethodPost, base+"/return", &api.customer, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodGet, base, &api.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, base, &api.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[domain.RentalDetail](t, rec)
	assert.Len(t, detail.Tracking, 3)
	assert.NotNil(t, detail.Return)

	rec = api.do(t, http.MethodGet, "/api/v1/rentals?status=DONE", &api.owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.Rental](t, rec)["rentals"], 1)

	rec = api.do(t, http.MethodGet, "/api/v1/rentals/999", &api.owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_FittingFlow(t *testing.T) {
	api := newTestAPI(t)
	at := time.Now().Add(72 * time.Hour).Truncate(time.Hour)

	rec := api.do(t, http.MethodPost, "/api/v1/owner/slots", &api.owner, map[string]string{"date_time": at.Format(time.RFC3339)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	slot := decode[domain.FittingSlot](t, rec)
	api.store.AddProduct(1, api.owner.ID)

	rec = api.do(t, http.MethodPost, "/api/v1/fittings", &api.customer, map[string]any{"slot_id": slot.ID, "product_ids": []int32{404}})
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	day := timeutil.StartOfDay(at).Format(timeutil.DateLayout)
	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/owners/%d/slots?start_date=%s&end_date=%s", api.owner.ID, day, day), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.FittingSlot](t, rec)["slots"], 1)

	rec = api.do(t, http.MethodPost, "/api/v1/fittings", &api.customer, map[string]any{"slot_id": slot.ID, "product_ids": []int32{1}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fitting := decode[domain.FittingSchedule](t, rec)
	assert.Equal(t, domain.FittingStatusPending, fitting.Status)

	rec = api.do(t, http.MethodPost, "/api/v1/fittings", &api.other, map[string]any{"slot_id": slot.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	status := fmt.Sprintf("/api/v1/fittings/%d/status", fitting.ID)
	rec = api.do(t, http.MethodPatch, status, &api.customer, map[string]string{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPatch, status, &api.customer, map[string]string{"status": "CANCELED"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.FittingStatusCanceled, decode[domain.FittingSchedule](t, rec).Status)

	rec = api.do(t, http.MethodPatch, status, &api.owner, map[string]string{"status": "COMPLETED"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/fittings", &api.other, map[string]any{"slot_id": slot.ID})
	assert.Equal(t, http.StatusCreated, rec.Code, "canceled fitting frees the slot")
}

func TestRouter_OwnerAvailability(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPut, "/api/v1/owner/availability/weekly", &api.owner, map[string]any{
		"entries": []map[string]any{{"weekday": 1, "enabled": true, "start_hour": 9, "end_hour": 12}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	week := decode[map[string][]domain.WeeklyAvailability](t, rec)["entries"]
	require.Len(t, week, 7)
	assert.True(t, week[1].Enabled)

	rec = api.do(t, http.MethodPost, "/api/v1/owner/slots/generate", &api.owner, map[string]string{"start_date": "2026-06-01", "end_date": "2026-06-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decode[map[string]int64](t, rec)["created_count"])

	rec = api.do(t, http.MethodPut, "/api/v1/owner/settings/auto-confirm", &api.owner, map[string]bool{"is_auto_confirm": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.OwnerSettings](t, rec).IsAutoConfirm)

	rec = api.do(t, http.MethodPut, "/api/v1/owner/settings/auto-confirm", &api.owner, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/owner/blocks", &api.owner, map[string]string{
		"start_time": "2026-06-01T10:00:00+07:00", "end_time": "2026-06-01T11:00:00+07:00", "reason": "lunch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	block := decode[domain.ScheduleBlock](t, rec)

	rec = api.do(t, http.MethodGet, "/api/v1/owner/blocks", &api.owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.ScheduleBlock](t, rec)["blocks"], 1)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/owner/blocks/%d", block.ID), &api.owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/owner/blocks/%d", block.ID), &api.owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Notifications(t *testing.T) {
	api := newTestAPI(t)
	n := &domain.Notification{UserID: api.customer.ID, Event: domain.EventRentalCreated, Title: "hi"}
	require.NoError(t, api.store.Repos().Notifications.Create(context.Background(), n))

	rec := api.do(t, http.MethodGet, "/api/v1/notifications?page=1&page_size=5", &api.customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Notifications []domain.Notification `json:"notifications"`
		Total         int32                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int32(1), body.Total)

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", n.ID), &api.other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", n.ID), &api.customer, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{domain.NewValidationError("x", "bad"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{&domain.AuthorizationError{ActorID: 1, Action: "x"}, http.StatusForbidden, "FORBIDDEN"},
		{&domain.NotFoundError{Entity: "rental", ID: 1}, http.StatusNotFound, "NOT_FOUND"},
		{&domain.ConflictError{VariantID: 1, RentalCode: "RNT-1"}, http.StatusConflict, "CONFLICT"},
		{&domain.NotAvailableError{VariantID: 1}, http.StatusConflict, "NOT_AVAILABLE"},
		{&domain.CrossOwnerError{OwnerIDs: []int32{1, 2}}, http.StatusConflict, "CROSS_OWNER"},
		{&domain.StateTransitionError{Machine: "tracking", From: "COMPLETED", To: "RETURNED"}, http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
		{fmt.Errorf("wrapped: %w", &domain.TimeoutError{Op: "reserve_rental", Err: errors.New("lock")}), http.StatusServiceUnavailable, "TIMEOUT"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, resp := errorStatus(tt.err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestWriteError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rentals", nil)
	writeError(rec, req, &domain.TimeoutError{Op: "reserve_rental", Err: errors.New("deadline")})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, retryAfterSeconds, rec.Header().Get("Retry-After"))
}

func TestPanicRecovery(t *testing.T) {
	h := PanicRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", decode[errorResponse](t, rec).Code)
}

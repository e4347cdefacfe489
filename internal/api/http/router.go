package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onrent-backend/internal/security"
	"onrent-backend/internal/service"
)

type Services struct {
	Rentals       service.RentalService
	Availability  service.AvailabilityService
	Fittings      service.FittingService
	Notifications service.NotificationService
}

// NewRouter builds the booking API. Route names key the security levels in
// config.EndpointSecurityConfig.
func NewRouter(svc Services, tokens security.TokenManager, corsOrigins []string) http.Handler {
	rentals := NewRentalHandler(svc.Rentals)
	availability := NewAvailabilityHandler(svc.Availability)
	fittings := NewFittingHandler(svc.Fittings)
	notes := NewNotificationHandler(svc.Notifications)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(Metrics, NewAuthMiddleware(tokens).Authenticate)

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet).Name("Health")

	// Rentals
	api.HandleFunc("/rentals", rentals.ReserveRental).Methods(http.MethodPost).Name("ReserveRental")
	api.HandleFunc("/rentals", rentals.ListRentals).Methods(http.MethodGet).Name("ListRentals")
	api.HandleFunc("/rentals/{id:[0-9]+}", rentals.GetRental).Methods(http.MethodGet).Name("GetRental")
	api.HandleFunc("/rentals/{id:[0-9]+}/return", rentals.MarkReturned).Methods(http.MethodPost).Name("MarkReturned")
	api.HandleFunc("/rentals/{id:[0-9]+}/confirm-return", rentals.ConfirmReturn).Methods(http.MethodPost).Name("ConfirmReturn")
	api.HandleFunc("/rentals/{id:[0-9]+}/billing", rentals.UpdateBillingStatus).Methods(http.MethodPatch).Name("UpdateBillingStatus")
	api.HandleFunc("/rentals/{id:[0-9]+}/schedule", rentals.RescheduleRental).Methods(http.MethodPatch).Name("RescheduleRental")

	// Owner availability
	api.HandleFunc("/owner/availability/weekly", availability.GetWeeklyTemplate).Methods(http.MethodGet).Name("GetWeeklyTemplate")
	api.HandleFunc("/owner/availability/weekly", availability.SetWeeklyTemplate).Methods(http.MethodPut).Name("SetWeeklyTemplate")
	api.HandleFunc("/owner/settings", availability.GetOwnerSettings).Methods(http.MethodGet).Name("GetOwnerSettings")
	api.HandleFunc("/owner/settings/auto-confirm", availability.SetAutoConfirm).Methods(http.MethodPut).Name("SetAutoConfirm")
	api.HandleFunc("/owner/blocks", availability.CreateScheduleBlock).Methods(http.MethodPost).Name("CreateScheduleBlock")
	api.HandleFunc("/owner/blocks", availability.ListScheduleBlocks).Methods(http.MethodGet).Name("ListScheduleBlocks")
	api.HandleFunc("/owner/blocks/{id:[0-9]+}", availability.DeleteScheduleBlock).Methods(http.MethodDelete).Name("DeleteScheduleBlock")
	api.HandleFunc("/owner/slots/generate", availability.GenerateSlots).Methods(http.MethodPost).Name("GenerateSlots")
	api.HandleFunc("/owner/slots", availability.CreateSlot).Methods(http.MethodPost).Name("CreateSlot")
	api.HandleFunc("/owners/{ownerId:[0-9]+}/slots", availability.ListOpenSlots).Methods(http.MethodGet).Name("ListOpenSlots")

	// Fittings
	api.HandleFunc("/fittings", fittings.BookFitting).Methods(http.MethodPost).Name("BookFitting")
	api.HandleFunc("/fittings", fittings.ListFittings).Methods(http.MethodGet).Name("ListFittings")
	api.HandleFunc("/fittings/{id:[0-9]+}", fittings.GetFitting).Methods(http.MethodGet).Name("GetFitting")
	api.HandleFunc("/fittings/{id:[0-9]+}/status", fittings.TransitionFitting).Methods(http.MethodPatch).Name("TransitionFitting")

	// Notifications
	api.HandleFunc("/notifications", notes.GetNotifications).Methods(http.MethodGet).Name("GetNotifications")
	api.HandleFunc("/notifications/{id:[0-9]+}/read", notes.MarkNotificationRead).Methods(http.MethodPost).Name("MarkNotificationRead")

	return alice.New(PanicRecovery, RequestLogger, CORS(corsOrigins)).Then(r)
}

package domain

import "time"

type NotificationEvent string

const (
	EventRentalCreated        NotificationEvent = "RENTAL_CREATED"
	EventRentalReturnDue      NotificationEvent = "RENTAL_RETURN_DUE"
	EventRentalReturned       NotificationEvent = "RENTAL_RETURNED"
	EventRentalCompleted      NotificationEvent = "RENTAL_COMPLETED"
	EventRentalBillingUpdated NotificationEvent = "RENTAL_BILLING_UPDATED"
	EventRentalRescheduled    NotificationEvent = "RENTAL_RESCHEDULED"
	EventFittingBooked        NotificationEvent = "FITTING_BOOKED"
	EventFittingStatusChanged NotificationEvent = "FITTING_STATUS_CHANGED"
)

// Notification is an in-app message and the payload handed to every channel.
type Notification struct {
	ID         int32             `json:"id"`
	UserID     int32             `json:"user_id"`
	Event      NotificationEvent `json:"event"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	IsRead     bool              `json:"is_read"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Entity string
	ID     int32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ConflictError reports a double booking. For rentals VariantID and
// RentalCode name the clashing reservation; for fittings SlotID is set.
type ConflictError struct {
	VariantID  int32
	RentalCode string
	SlotID     int32
}

func (e *ConflictError) Error() string {
	if e.SlotID != 0 {
		return fmt.Sprintf("fitting slot %d is already booked", e.SlotID)
	}
	return fmt.Sprintf("variant %d is already reserved by rental %s", e.VariantID, e.RentalCode)
}

// NotAvailableError reports a variant flagged unavailable or rented.
type NotAvailableError struct {
	VariantID int32
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("variant %d is not available", e.VariantID)
}

// CrossOwnerError reports a reservation spanning several owners.
type CrossOwnerError struct {
	OwnerIDs []int32
}

func (e *CrossOwnerError) Error() string {
	ids := make([]string, len(e.OwnerIDs))
	for i, id := range e.OwnerIDs {
		ids[i] = fmt.Sprint(id)
	}
	return "variants belong to different owners: " + strings.Join(ids, ", ")
}

// StateTransitionError reports a status change missing from a transition table.
type StateTransitionError struct {
	Machine string
	From    string
	To      string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition from %s to %s", e.Machine, e.From, e.To)
}

// TimeoutError reports a transaction that exceeded its bound or lost a lock
// race. It is the only error callers are advised to retry.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// AuthorizationError reports an actor acting on an entity it does not own.
type AuthorizationError struct {
	ActorID int32
	Action  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %d is not allowed to %s", e.ActorID, e.Action)
}

// IsRetryable reports whether err is worth retrying by the caller.
func IsRetryable(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

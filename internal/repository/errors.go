// Package repository holds the data-access layer.  Sentinel and typed
// errors defined here let handlers and services distinguish failure
// scenarios without inspecting SQL errors directly.
package repository

import (
	"errors"
	"fmt"
)

// ErrEventNotFound is returned when the requested event does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound is returned when no ticket matches the given id or
// access token.  Handlers translate it into an HTTP 404 response.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrUserNotFound is returned when a user cannot be resolved, typically
// while processing a subscription webhook whose metadata points nowhere.
var ErrUserNotFound = errors.New("user not found")

// UnlimitedSeats is the available-seats value reported for events without a
// seat cap.
const UnlimitedSeats = -1

// CapacityError signals that a reservation was rejected because the event
// lacks the requested seats.  Available carries the remaining seat count so
// the client can adjust the request.  It is a business-rule rejection, not
// a server fault.
type CapacityError struct {
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough seats available: %d left", e.Available)
}

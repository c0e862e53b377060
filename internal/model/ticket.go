package model

import "time"

// TicketStatus enumerates the ticket lifecycle states.  Tickets are never
// hard-deleted; cancellation is a status write so the audit history stays
// intact.
type TicketStatus string

const (
	// TicketPending is the state a ticket is created in.  Pending seats
	// count against capacity: they are reserved, not merely requested.
	TicketPending TicketStatus = "PENDING"
	// TicketConfirmed is reached when the gateway reports a successful
	// one-time payment for the ticket's checkout session.
	TicketConfirmed TicketStatus = "CONFIRMED"
	// TicketCancelled releases the ticket's seats.  Terminal.
	TicketCancelled TicketStatus = "CANCELLED"
	// TicketAttended is set at check-in time by an administrator.  Terminal.
	TicketAttended TicketStatus = "ATTENDED"
)

// ValidTicketStatus reports whether s is one of the four known states.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketPending, TicketConfirmed, TicketCancelled, TicketAttended:
		return true
	}
	return false
}

// CountsAgainstCapacity reports whether a ticket in state s occupies seats.
// Cancelled tickets release their seats; attended tickets already used them.
func (s TicketStatus) CountsAgainstCapacity() bool {
	return s == TicketPending || s == TicketConfirmed
}

// CanTransition reports whether a ticket may move from one status to
// another.  Transitions are monotonic: nothing leaves CANCELLED or
// ATTENDED, and a confirmed ticket can never fall back to PENDING.  A
// same-state write is not a transition and returns false; callers treat it
// as a no-op rather than an error where idempotency requires it.
func CanTransition(from, to TicketStatus) bool {
	switch from {
	case TicketPending:
		return to == TicketConfirmed || to == TicketCancelled
	case TicketConfirmed:
		return to == TicketCancelled || to == TicketAttended
	default:
		// CANCELLED and ATTENDED are terminal.
		return false
	}
}

// MaxSeatsPerTicket is the business-rule upper bound on seats per
// reservation.
const MaxSeatsPerTicket = 4

// Ticket records a holder's claim on one or more seats for an event.
//
// The AccessToken is a high-entropy capability string generated once at
// creation.  It is the only credential needed to read the ticket (anonymous
// purchasers retrieve their ticket via an emailed link) but grants no write
// access.
type Ticket struct {
	ID               uint64       // tickets.id
	AccessToken      string       // tickets.access_token (unique, never sequential)
	EventID          uint64       // tickets.event_id
	UserID           *uint64      // tickets.user_id (nil for anonymous holders)
	HolderName       string       // tickets.holder_name
	HolderEmail      string       // tickets.holder_email
	HolderPhone      string       // tickets.holder_phone
	Notes            string       // tickets.notes
	NumberOfSeats    uint8        // tickets.number_of_seats, in [1, MaxSeatsPerTicket]
	Status           TicketStatus // tickets.status
	PaymentID        *string      // tickets.payment_id (set by the webhook processor)
	PaymentStatus    *string      // tickets.payment_status
	GatewaySessionID *string      // tickets.gateway_session_id
	CreatedAt        time.Time    // tickets.created_at
	UpdatedAt        time.Time    // tickets.updated_at
}

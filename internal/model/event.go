package model

import "time"

// Event is an admission-selling event (a lecture, a presentation, a live
// session).  Content fields such as the description live in the content
// subsystem; the reservation engine only needs identity, capacity and
// pricing.
//
// Fields:
//  ID         – primary key identifier.
//  Title      – display title, echoed in ticket responses and emails.
//  EventDate  – when the event takes place; reservations for past events
//               are rejected.
//  MaxSeats   – seat capacity; nil means unlimited.
//  IsClosed   – administrative override that forces availability to zero
//               regardless of capacity math.
//  PriceCents – admission price in minor currency units; nil means the
//               event is free and the payment gateway is never involved.
//  Currency   – ISO 4217 code for PriceCents.
type Event struct {
	ID         uint64     // events.id
	Title      string     // events.title
	EventDate  time.Time  // events.event_date
	MaxSeats   *uint32    // events.max_seats (nullable)
	IsClosed   bool       // events.is_closed
	PriceCents *uint32    // events.price_cents (nullable)
	Currency   string     // events.currency
	CreatedAt  time.Time  // events.created_at
	UpdatedAt  time.Time  // events.updated_at
}

// IsFree reports whether admission costs nothing.  Free events skip the
// payment flow entirely; their tickets stay PENDING until promoted.
func (e *Event) IsFree() bool {
	return e.PriceCents == nil || *e.PriceCents == 0
}

// Unlimited reports whether the event has no seat cap.
func (e *Event) Unlimited() bool {
	return e.MaxSeats == nil
}

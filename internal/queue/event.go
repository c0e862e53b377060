// Package queue defines message payloads exchanged over the message broker.
package queue

// Notification kinds carried on the ticket.notifications queue.
const (
	// KindTicketReserved is published when a reservation is created.
	KindTicketReserved = "ticket.reserved"
	// KindPaymentConfirmed is published when the webhook processor
	// confirms a ticket's payment.
	KindPaymentConfirmed = "payment.confirmed"
)

// TicketNotification is published for the email dispatcher.  It carries
// enough information to render a confirmation message without querying the
// primary database.  Delivery is fire-and-forget: losing one produces a
// missing email, never a wrong ticket state.
type TicketNotification struct {
	Kind          string `json:"kind"`
	TicketID      uint64 `json:"ticket_id"`
	AccessToken   string `json:"access_token"`
	HolderName    string `json:"holder_name"`
	HolderEmail   string `json:"holder_email"`
	EventID       uint64 `json:"event_id"`
	EventTitle    string `json:"event_title"`
	EventDate     string `json:"event_date"`
	NumberOfSeats uint8  `json:"number_of_seats"`
	Status        string `json:"status"`
	OccurredAt    string `json:"occurred_at"`
}

// Package payment wraps the external payment gateway: opening checkout
// sessions, verifying webhook signatures and decoding webhook payloads into
// a closed set of event types.  No business state lives here.
package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Gateway event type strings as they appear on the wire.
const (
	typeCheckoutCompleted    = "checkout.session.completed"
	typeSubscriptionCreated  = "customer.subscription.created"
	typeSubscriptionUpdated  = "customer.subscription.updated"
	typeSubscriptionDeleted  = "customer.subscription.deleted"
	typeInvoicePaymentFailed = "invoice.payment_failed"
)

// Event is the closed union of webhook notifications the processor knows
// how to handle.  Each variant carries only the fields relevant to its
// case, so the processor dispatches with an exhaustive type switch instead
// of string-keyed branching.
type Event interface {
	// EventID returns the gateway's own id for this delivery, the key of
	// the idempotency ledger.
	EventID() string
	// EventType returns the wire-level type string, kept for logging and
	// the ledger.
	EventType() string

	isEvent()
}

type header struct {
	id, typ string
}

func (h header) EventID() string   { return h.id }
func (h header) EventType() string { return h.typ }
func (header) isEvent()            {}

// CheckoutCompleted reports a finished checkout session.  For one-time
// payments (Recurring == false) it confirms the ticket named in the
// session metadata; for recurring checkouts the subsequent subscription
// event is authoritative and this one is a no-op.
type CheckoutCompleted struct {
	header
	SessionID  string
	PaymentID  string
	CustomerID string
	Recurring  bool
	TicketID   uint64 // 0 when the metadata carries no ticket
	UserID     uint64 // 0 when the metadata carries no user
}

// SubscriptionUpdated covers both subscription-created and
// subscription-updated notifications; the processor upserts either way.
type SubscriptionUpdated struct {
	header
	SubscriptionID    string
	CustomerID        string
	Status            string // the gateway's vocabulary, mapped by the processor
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	UserID            uint64 // 0 when the metadata carries no user
}

// SubscriptionDeleted reports that the gateway ended a subscription.
type SubscriptionDeleted struct {
	header
	SubscriptionID string
}

// InvoicePaymentFailed reports a failed recurring charge.  SubscriptionID
// may be empty for invoices unrelated to a subscription.
type InvoicePaymentFailed struct {
	header
	SubscriptionID string
}

// Unknown is any event type this service does not handle.  The webhook
// endpoint acknowledges it without mutation so harmless gateway chatter
// never turns into retries.
type Unknown struct {
	header
}

type wireEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		SessionID          string            `json:"session_id"`
		Mode               string            `json:"mode"`
		PaymentID          string            `json:"payment_id"`
		SubscriptionID     string            `json:"subscription_id"`
		CustomerID         string            `json:"customer_id"`
		Status             string            `json:"status"`
		CurrentPeriodStart int64             `json:"current_period_start"`
		CurrentPeriodEnd   int64             `json:"current_period_end"`
		CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
		Metadata           map[string]string `json:"metadata"`
	} `json:"data"`
}

func metaID(meta map[string]string, key string) uint64 {
	v, ok := meta[key]
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// ParseEvent decodes a verified webhook payload into one of the Event
// variants.  Unrecognized type strings yield Unknown rather than an error;
// only malformed JSON or a missing event id fails.
func ParseEvent(payload []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	if w.ID == "" {
		return nil, fmt.Errorf("webhook payload missing event id")
	}
	h := header{id: w.ID, typ: w.Type}

	switch w.Type {
	case typeCheckoutCompleted:
		return &CheckoutCompleted{
			header:     h,
			SessionID:  w.Data.SessionID,
			PaymentID:  w.Data.PaymentID,
			CustomerID: w.Data.CustomerID,
			Recurring:  w.Data.Mode == "subscription",
			TicketID:   metaID(w.Data.Metadata, "ticket_id"),
			UserID:     metaID(w.Data.Metadata, "user_id"),
		}, nil
	case typeSubscriptionCreated, typeSubscriptionUpdated:
		return &SubscriptionUpdated{
			header:            h,
			SubscriptionID:    w.Data.SubscriptionID,
			CustomerID:        w.Data.CustomerID,
			Status:            w.Data.Status,
			PeriodStart:       unixPtr(w.Data.CurrentPeriodStart),
			PeriodEnd:         unixPtr(w.Data.CurrentPeriodEnd),
			CancelAtPeriodEnd: w.Data.CancelAtPeriodEnd,
			UserID:            metaID(w.Data.Metadata, "user_id"),
		}, nil
	case typeSubscriptionDeleted:
		return &SubscriptionDeleted{header: h, SubscriptionID: w.Data.SubscriptionID}, nil
	case typeInvoicePaymentFailed:
		return &InvoicePaymentFailed{header: h, SubscriptionID: w.Data.SubscriptionID}, nil
	default:
		return &Unknown{header: h}, nil
	}
}

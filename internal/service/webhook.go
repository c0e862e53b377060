package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lectorium/ticketing/internal/model"
	"github.com/lectorium/ticketing/internal/payment"
	"github.com/lectorium/ticketing/internal/queue"
	"github.com/lectorium/ticketing/internal/repository"
)

// WebhookService applies verified gateway events to the ticket ledger and
// the subscription table.  Every handler is idempotent: deliveries are
// recorded in the webhook_events ledger inside the same transaction as the
// mutation they guard, status writes overwrite rather than increment, and
// no seat arithmetic happens here, seats were counted at reservation
// time.
type WebhookService struct {
	db       *sql.DB
	tickets  *repository.TicketRepo
	events   *repository.EventRepo
	subs     *repository.SubscriptionRepo
	users    *repository.UserRepo
	ledger   *repository.WebhookEventRepo
	notifier Notifier

	now func() time.Time
}

// WebhookConfig carries the collaborators of a WebhookService.
type WebhookConfig struct {
	DB       *sql.DB
	Tickets  *repository.TicketRepo
	Events   *repository.EventRepo
	Subs     *repository.SubscriptionRepo
	Users    *repository.UserRepo
	Ledger   *repository.WebhookEventRepo
	Notifier Notifier
	Now      func() time.Time // nil selects time.Now
}

// NewWebhookService wires a WebhookService.
func NewWebhookService(cfg WebhookConfig) *WebhookService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &WebhookService{
		db:       cfg.DB,
		tickets:  cfg.Tickets,
		events:   cfg.Events,
		subs:     cfg.Subs,
		users:    cfg.Users,
		ledger:   cfg.Ledger,
		notifier: cfg.Notifier,
		now:      now,
	}
}

// Process applies one verified gateway event.  A non-nil return makes the
// webhook endpoint answer 5xx so the gateway redelivers; redelivery is
// safe because the ledger insert rolls back together with the failed
// mutation.
func (s *WebhookService) Process(ctx context.Context, ev payment.Event) error {
	// Unknown-but-harmless events are acknowledged without touching the
	// database at all.
	if _, ok := ev.(*payment.Unknown); ok {
		log.Printf("webhook: ignoring event %s of unhandled type %q", ev.EventID(), ev.EventType())
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin webhook tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	first, err := s.ledger.RecordTx(ctx, tx, ev.EventID(), ev.EventType())
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	if !first {
		// Duplicate delivery; the first application already happened.
		log.Printf("webhook: duplicate delivery of event %s, ignoring", ev.EventID())
		committed = true
		return tx.Commit()
	}

	var confirmed *model.Ticket
	switch e := ev.(type) {
	case *payment.CheckoutCompleted:
		confirmed, err = s.applyCheckoutCompleted(ctx, tx, e)
	case *payment.SubscriptionUpdated:
		err = s.applySubscriptionUpdated(ctx, tx, e)
	case *payment.SubscriptionDeleted:
		err = s.subs.SetStatusByGatewayIDTx(ctx, tx, e.SubscriptionID, model.SubscriptionCanceled)
	case *payment.InvoicePaymentFailed:
		err = s.applyInvoicePaymentFailed(ctx, tx, e)
	default:
		// The union is closed; a new variant without a case here is a
		// programming error, not gateway input.
		err = fmt.Errorf("unhandled event variant %T", ev)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit webhook tx: %w", err)
	}
	committed = true

	if confirmed != nil {
		s.notifyConfirmed(ctx, confirmed)
	}
	return nil
}

// applyCheckoutCompleted confirms the ticket referenced by the session
// metadata.  Returns the ticket when this delivery performed the
// PENDING→CONFIRMED transition, nil for every no-op path.
func (s *WebhookService) applyCheckoutCompleted(ctx context.Context, tx *sql.Tx, e *payment.CheckoutCompleted) (*model.Ticket, error) {
	if e.Recurring {
		// The subscription-created/updated event is authoritative.
		return nil, nil
	}
	if e.TicketID == 0 {
		log.Printf("webhook: checkout event %s carries no ticket metadata, ignoring", e.EventID())
		return nil, nil
	}

	t, err := s.tickets.GetByIDForUpdateTx(ctx, tx, e.TicketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			// Redelivery cannot conjure the ticket; acknowledge.
			log.Printf("webhook: checkout event %s references unknown ticket %d", e.EventID(), e.TicketID)
			return nil, nil
		}
		return nil, err
	}
	if !model.CanTransition(t.Status, model.TicketConfirmed) {
		// Already confirmed, or cancelled/attended in the meantime.  The
		// transition guard keeps stale deliveries from moving the ticket
		// backward.
		log.Printf("webhook: ticket %d is %s, not confirming on event %s", t.ID, t.Status, e.EventID())
		return nil, nil
	}

	if err := s.tickets.ConfirmPaymentTx(ctx, tx, t.ID, e.PaymentID, "succeeded", e.SessionID); err != nil {
		return nil, fmt.Errorf("confirm ticket %d: %w", t.ID, err)
	}
	t.Status = model.TicketConfirmed
	t.PaymentID = &e.PaymentID
	t.GatewaySessionID = &e.SessionID
	return t, nil
}

func (s *WebhookService) applySubscriptionUpdated(ctx context.Context, tx *sql.Tx, e *payment.SubscriptionUpdated) error {
	user, err := s.resolveUser(ctx, e.UserID, e.CustomerID)
	if err != nil {
		return fmt.Errorf("resolve user for subscription %s: %w", e.SubscriptionID, err)
	}
	sub := &model.Subscription{
		UserID:                user.ID,
		GatewaySubscriptionID: e.SubscriptionID,
		GatewayCustomerID:     e.CustomerID,
		Status:                model.MapGatewayStatus(e.Status),
		CurrentPeriodStart:    e.PeriodStart,
		CurrentPeriodEnd:      e.PeriodEnd,
		CancelAtPeriodEnd:     e.CancelAtPeriodEnd,
	}
	return s.subs.UpsertTx(ctx, tx, sub)
}

func (s *WebhookService) applyInvoicePaymentFailed(ctx context.Context, tx *sql.Tx, e *payment.InvoicePaymentFailed) error {
	if e.SubscriptionID == "" {
		// An invoice unrelated to a subscription; nothing to mark.
		return nil
	}
	return s.subs.SetStatusByGatewayIDTx(ctx, tx, e.SubscriptionID, model.SubscriptionPastDue)
}

// resolveUser finds the account a subscription event belongs to: by the
// metadata user id when present, falling back to the gateway customer id.
func (s *WebhookService) resolveUser(ctx context.Context, userID uint64, customerID string) (*model.User, error) {
	if userID != 0 {
		u, err := s.users.GetByID(ctx, userID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
	}
	if customerID == "" {
		return nil, repository.ErrUserNotFound
	}
	return s.users.GetByGatewayCustomerID(ctx, customerID)
}

// notifyConfirmed dispatches the payment-confirmation email event in the
// background.  Log-and-continue on failure; a duplicated or lost email is
// acceptable, a wrong ticket state is not.
func (s *WebhookService) notifyConfirmed(ctx context.Context, t *model.Ticket) {
	if s.notifier == nil {
		return
	}
	ev, err := s.events.GetByID(ctx, t.EventID)
	if err != nil {
		log.Printf("webhook: load event %d for notification failed: %v", t.EventID, err)
		return
	}
	n := queue.TicketNotification{
		Kind:          queue.KindPaymentConfirmed,
		TicketID:      t.ID,
		AccessToken:   t.AccessToken,
		HolderName:    t.HolderName,
		HolderEmail:   t.HolderEmail,
		EventID:       ev.ID,
		EventTitle:    ev.Title,
		EventDate:     ev.EventDate.UTC().Format(time.RFC3339),
		NumberOfSeats: t.NumberOfSeats,
		Status:        string(t.Status),
		OccurredAt:    s.now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Publish(ctx, n); err != nil {
			log.Printf("webhook: confirmation notification failed for ticket %d: %v", n.TicketID, err)
		}
	}()
}

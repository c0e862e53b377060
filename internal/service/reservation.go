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
	"github.com/lectorium/ticketing/internal/utils"
	"github.com/lectorium/ticketing/internal/validate"
)

// ErrEventPast rejects reservations for events whose date has already
// passed.  Handlers surface it as a 400.
var ErrEventPast = errors.New("event date has passed")

// ErrFreeEvent rejects checkout attempts against tickets for free events;
// there is nothing to pay for.
var ErrFreeEvent = errors.New("event is free")

// ErrNotPayable rejects checkout attempts against tickets that are not
// PENDING; a confirmed or cancelled ticket has no open balance.
var ErrNotPayable = errors.New("ticket is not awaiting payment")

// Gateway is the slice of the payment client the reservation manager
// needs.  Tests substitute a fake; free events never touch it.
type Gateway interface {
	CreateSession(ctx context.Context, p payment.SessionParams) (*payment.Session, error)
	CreateCustomer(ctx context.Context, email string, userID uint64) (string, error)
}

// ReservationService validates reservation requests, reserves seats
// atomically against event capacity and opens payment sessions for paid
// events.
type ReservationService struct {
	db       *sql.DB
	events   *repository.EventRepo
	tickets  *repository.TicketRepo
	users    *repository.UserRepo
	gateway  Gateway
	notifier Notifier
	phone    validate.PhonePolicy

	successURL string
	cancelURL  string

	now func() time.Time
}

// ReservationConfig carries the collaborators and settings of a
// ReservationService.
type ReservationConfig struct {
	DB         *sql.DB
	Events     *repository.EventRepo
	Tickets    *repository.TicketRepo
	Users      *repository.UserRepo
	Gateway    Gateway
	Notifier   Notifier
	Phone      *validate.PhonePolicy // nil selects the default policy
	SuccessURL string
	CancelURL  string
	Now        func() time.Time // nil selects time.Now
}

// NewReservationService wires a ReservationService.
func NewReservationService(cfg ReservationConfig) *ReservationService {
	phone := validate.DefaultPhonePolicy
	if cfg.Phone != nil {
		phone = *cfg.Phone
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		db:         cfg.DB,
		events:     cfg.Events,
		tickets:    cfg.Tickets,
		users:      cfg.Users,
		gateway:    cfg.Gateway,
		notifier:   cfg.Notifier,
		phone:      phone,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		now:        now,
	}
}

// ReserveInput is a validated-on-entry reservation request.
type ReserveInput struct {
	EventID       uint64
	HolderName    string
	HolderEmail   string
	HolderPhone   string
	NumberOfSeats int
	Notes         string
	UserID        *uint64 // set for authenticated callers
}

// Reservation is the result of a successful Reserve call.  Session is nil
// for free events and for paid events whose session could not be opened
// (in which case Err carries the gateway failure and the ticket stays
// PENDING and retryable).
type Reservation struct {
	Ticket  *model.Ticket
	Event   *model.Event
	Session *payment.Session
}

// AvailableSeats computes the seats still sellable for an event outside
// any reservation.  Returns repository.UnlimitedSeats for uncapped events
// and repository.ErrEventNotFound for unknown ids.  Display use only; the
// authoritative check runs inside the reservation transaction.
func (s *ReservationService) AvailableSeats(ctx context.Context, eventID uint64) (int, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	reserved, err := s.events.ReservedSeats(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return availableSeats(ev, reserved), nil
}

// availableSeats applies the capacity math: a closed event sells nothing,
// an uncapped event sells without bound, otherwise capacity minus the
// seats on PENDING and CONFIRMED tickets.
func availableSeats(ev *model.Event, reserved int) int {
	if ev.IsClosed {
		return 0
	}
	if ev.Unlimited() {
		return repository.UnlimitedSeats
	}
	avail := int(*ev.MaxSeats) - reserved
	if avail < 0 {
		// Capacity was lowered after sales; report zero, not negative.
		avail = 0
	}
	return avail
}

// Reserve validates the request, atomically reserves the seats and, for
// paid events, opens a checkout session.
//
// The critical section (read the reserved-seat sum, compare against
// capacity, insert the PENDING ticket) runs in one transaction under a
// row lock on the event, so no concurrent caller can observe stale
// availability that would permit oversell.  The gateway call happens after
// commit: a gateway failure leaves a PENDING ticket whose seats are
// counted and against which a fresh session can be opened.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (*Reservation, error) {
	if err := s.phone.Holder(validate.Holder{
		Name:  in.HolderName,
		Email: in.HolderEmail,
		Phone: in.HolderPhone,
		Seats: in.NumberOfSeats,
	}); err != nil {
		return nil, err
	}

	token, err := utils.NewTicketAccessToken()
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reservation tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ev, err := s.events.GetByIDForUpdateTx(ctx, tx, in.EventID)
	if err != nil {
		return nil, err
	}
	if !ev.EventDate.After(s.now().UTC()) {
		return nil, ErrEventPast
	}

	reserved, err := s.events.ReservedSeatsTx(ctx, tx, ev.ID)
	if err != nil {
		return nil, err
	}
	avail := availableSeats(ev, reserved)
	if avail != repository.UnlimitedSeats && in.NumberOfSeats > avail {
		return nil, &repository.CapacityError{Available: avail}
	}

	ticket := &model.Ticket{
		AccessToken:   token,
		EventID:       ev.ID,
		UserID:        in.UserID,
		HolderName:    in.HolderName,
		HolderEmail:   in.HolderEmail,
		HolderPhone:   in.HolderPhone,
		Notes:         in.Notes,
		NumberOfSeats: uint8(in.NumberOfSeats),
	}
	if err := s.tickets.CreateTx(ctx, tx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reservation: %w", err)
	}
	committed = true

	res := &Reservation{Ticket: ticket, Event: ev}

	s.notifyAsync(ticket, ev, queue.KindTicketReserved)

	if ev.IsFree() {
		return res, nil
	}

	session, err := s.openSession(ctx, ticket, ev)
	if err != nil {
		// The seats stay reserved; the holder can retry the checkout.
		return res, err
	}
	res.Session = session
	return res, nil
}

// OpenCheckout opens a fresh checkout session for an existing PENDING
// ticket, identified by its access token.  This is the retry path after a
// gateway failure during Reserve, or after the holder abandoned the
// original session.  Opening a second session for the same ticket is
// harmless: confirmation is keyed by ticket id and guarded by the status
// transition, so only one session's completion ever confirms.
func (s *ReservationService) OpenCheckout(ctx context.Context, accessToken string) (*Reservation, error) {
	ticket, err := s.tickets.GetByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if ticket.Status != model.TicketPending {
		return nil, ErrNotPayable
	}
	ev, err := s.events.GetByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if ev.IsFree() {
		return nil, ErrFreeEvent
	}

	session, err := s.openSession(ctx, ticket, ev)
	if err != nil {
		return nil, err
	}
	return &Reservation{Ticket: ticket, Event: ev, Session: session}, nil
}

// openSession ensures a gateway customer for authenticated holders, opens
// the checkout session scoped to price × seats and persists the session id
// on the ticket.
func (s *ReservationService) openSession(ctx context.Context, t *model.Ticket, ev *model.Event) (*payment.Session, error) {
	var customerID string
	var userID uint64
	if t.UserID != nil {
		userID = *t.UserID
		id, err := s.ensureCustomer(ctx, userID)
		if err != nil {
			return nil, err
		}
		customerID = id
	}

	session, err := s.gateway.CreateSession(ctx, payment.SessionParams{
		TicketID:    t.ID,
		UserID:      userID,
		Description: fmt.Sprintf("%s × %d", ev.Title, t.NumberOfSeats),
		AmountCents: uint64(*ev.PriceCents) * uint64(t.NumberOfSeats),
		Currency:    ev.Currency,
		CustomerID:  customerID,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.tickets.SetGatewaySession(ctx, t.ID, session.ID); err != nil {
		return nil, fmt.Errorf("persist gateway session: %w", err)
	}
	t.GatewaySessionID = &session.ID
	return session, nil
}

// ensureCustomer returns the user's gateway customer id, creating one on
// first use.
func (s *ReservationService) ensureCustomer(ctx context.Context, userID uint64) (string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.GatewayCustomerID != nil {
		return *u.GatewayCustomerID, nil
	}
	id, err := s.gateway.CreateCustomer(ctx, u.Email, u.ID)
	if err != nil {
		return "", err
	}
	if err := s.users.SetGatewayCustomerID(ctx, u.ID, id); err != nil {
		return "", fmt.Errorf("persist gateway customer: %w", err)
	}
	return id, nil
}

// notifyAsync publishes a notification in the background.  Failures are
// logged only; notification delivery is not part of any invariant.
func (s *ReservationService) notifyAsync(t *model.Ticket, ev *model.Event, kind string) {
	if s.notifier == nil {
		return
	}
	n := queue.TicketNotification{
		Kind:          kind,
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
			log.Printf("reservation: notification publish failed for ticket %d: %v", t.ID, err)
		}
	}()
}

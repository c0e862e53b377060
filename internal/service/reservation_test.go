package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectorium/ticketing/internal/model"
	"github.com/lectorium/ticketing/internal/payment"
	"github.com/lectorium/ticketing/internal/queue"
	"github.com/lectorium/ticketing/internal/repository"
	"github.com/lectorium/ticketing/internal/validate"
)

// fakeGateway records calls; CreateSession fails when failSession is set.
type fakeGateway struct {
	sessions    []payment.SessionParams
	customers   int
	failSession bool
}

func (g *fakeGateway) CreateSession(_ context.Context, p payment.SessionParams) (*payment.Session, error) {
	g.sessions = append(g.sessions, p)
	if g.failSession {
		return nil, payment.ErrGateway
	}
	return &payment.Session{ID: "cs_test", RedirectURL: "https://gateway.example/cs_test"}, nil
}

func (g *fakeGateway) CreateCustomer(context.Context, string, uint64) (string, error) {
	g.customers++
	return "cus_test", nil
}

var eventCols = []string{"id", "title", "event_date", "max_seats", "is_closed", "price_cents", "currency", "created_at", "updated_at"}

func eventRow(maxSeats any, closed bool, priceCents any, date time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(eventCols).
		AddRow(1, "Evening Lecture", date, maxSeats, closed, priceCents, "EUR", now, now)
}

func newReservationService(t *testing.T, gw Gateway) (*ReservationService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewReservationService(ReservationConfig{
		DB:         db,
		Events:     repository.NewEventRepo(db),
		Tickets:    repository.NewTicketRepo(db),
		Users:      repository.NewUserRepo(db),
		Gateway:    gw,
		SuccessURL: "https://example.org/tickets/success",
		CancelURL:  "https://example.org/tickets/cancel",
		Now:        func() time.Time { return time.Unix(1700000000, 0) },
	})
	return svc, mock
}

func validInput() ReserveInput {
	return ReserveInput{
		EventID:       1,
		HolderName:    "Ana Petrova",
		HolderEmail:   "ana@example.com",
		HolderPhone:   "+359881234567",
		NumberOfSeats: 1,
	}
}

func futureDate() time.Time { return time.Unix(1700000000, 0).Add(72 * time.Hour) }

func expectReservedSum(mock sqlmock.Sqlmock, sum int) {
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(number_of_seats\), 0\)`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(sum))
}

func expectTicketInsert(mock sqlmock.Sqlmock, ticketID int64) {
	mock.ExpectExec("INSERT INTO tickets").
		WillReturnResult(sqlmock.NewResult(ticketID, 1))
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT created_at, updated_at FROM tickets").
		WithArgs(uint64(ticketID)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
}

func TestReserve_SeatCapValidation(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newReservationService(t, gw)

	in := validInput()
	in.NumberOfSeats = 5
	_, err := svc.Reserve(context.Background(), in)

	var fe *validate.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "number_of_seats", fe.Field)
	assert.Empty(t, gw.sessions)
	assert.NoError(t, mock.ExpectationsWereMet(), "validation failures must not touch the database")
}

func TestReserve_CapacityExhausted(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectBegin()
	mock.ExpectQuery("FROM events WHERE id = \\? FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(2, false, nil, futureDate()))
	expectReservedSum(mock, 2)
	mock.ExpectRollback()

	_, err := svc.Reserve(context.Background(), validInput())

	var ce *repository.CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_CapacityReportsRemainingSeats(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, nil, futureDate()))
	expectReservedSum(mock, 8)
	mock.ExpectRollback()

	in := validInput()
	in.NumberOfSeats = 3
	_, err := svc.Reserve(context.Background(), in)

	var ce *repository.CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Available)
}

func TestReserve_ClosedEventSellsNothing(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(100, true, nil, futureDate()))
	expectReservedSum(mock, 0)
	mock.ExpectRollback()

	_, err := svc.Reserve(context.Background(), validInput())

	var ce *repository.CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.Available, "closed events report zero availability regardless of capacity")
}

func TestReserve_PastEventRejected(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, nil, time.Unix(1700000000, 0).Add(-time.Hour)))
	mock.ExpectRollback()

	_, err := svc.Reserve(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrEventPast)
}

func TestReserve_UnknownEvent(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows(eventCols))
	mock.ExpectRollback()

	in := validInput()
	in.EventID = 99
	_, err := svc.Reserve(context.Background(), in)
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestReserve_FreeEventNeverCallsGateway(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newReservationService(t, gw)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, nil, futureDate()))
	expectReservedSum(mock, 0)
	expectTicketInsert(mock, 7)
	mock.ExpectCommit()

	res, err := svc.Reserve(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, model.TicketPending, res.Ticket.Status)
	assert.Len(t, res.Ticket.AccessToken, 64)
	assert.Nil(t, res.Session)
	assert.Empty(t, gw.sessions, "free events must never open a payment session")
	assert.Zero(t, gw.customers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_LastSeatBoundary(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(1, false, nil, futureDate()))
	expectReservedSum(mock, 0)
	expectTicketInsert(mock, 8)
	mock.ExpectCommit()

	res, err := svc.Reserve(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, uint8(1), res.Ticket.NumberOfSeats)

	// A second attempt now sees the seat taken.
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(1, false, nil, futureDate()))
	expectReservedSum(mock, 1)
	mock.ExpectRollback()

	_, err = svc.Reserve(context.Background(), validInput())
	var ce *repository.CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.Available)
}

func TestReserve_PaidEventOpensSession(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newReservationService(t, gw)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, 2500, futureDate()))
	expectReservedSum(mock, 0)
	expectTicketInsert(mock, 9)
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE tickets SET gateway_session_id").
		WithArgs("cs_test", uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	in := validInput()
	in.NumberOfSeats = 3
	res, err := svc.Reserve(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, res.Session)
	assert.Equal(t, "cs_test", res.Session.ID)
	require.Len(t, gw.sessions, 1)
	assert.Equal(t, uint64(7500), gw.sessions[0].AmountCents, "amount is price × seats")
	assert.Equal(t, "EUR", gw.sessions[0].Currency)
	assert.Equal(t, uint64(9), gw.sessions[0].TicketID)
	assert.Zero(t, gw.customers, "anonymous holders get no gateway customer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_GatewayFailureKeepsTicketPending(t *testing.T) {
	gw := &fakeGateway{failSession: true}
	svc, mock := newReservationService(t, gw)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, 2500, futureDate()))
	expectReservedSum(mock, 0)
	expectTicketInsert(mock, 10)
	mock.ExpectCommit()

	res, err := svc.Reserve(context.Background(), validInput())
	assert.ErrorIs(t, err, payment.ErrGateway)

	// The reservation itself survived: the seat is counted and a fresh
	// session can be opened against the same ticket.
	require.NotNil(t, res)
	assert.Equal(t, model.TicketPending, res.Ticket.Status)
	assert.Nil(t, res.Session)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_AuthenticatedHolderGetsCustomer(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newReservationService(t, gw)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, 1000, futureDate()))
	expectReservedSum(mock, 0)
	expectTicketInsert(mock, 11)
	mock.ExpectCommit()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM users WHERE id = \\?").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "gateway_customer_id", "created_at", "updated_at"}).
			AddRow(5, "ana@example.com", nil, now, now))
	mock.ExpectExec("UPDATE users SET gateway_customer_id").
		WithArgs("cus_test", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tickets SET gateway_session_id").
		WithArgs("cs_test", uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	in := validInput()
	uid := uint64(5)
	in.UserID = &uid
	res, err := svc.Reserve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.customers, "first paid checkout creates the gateway customer")
	require.Len(t, gw.sessions, 1)
	assert.Equal(t, "cus_test", gw.sessions[0].CustomerID)
	assert.NotNil(t, res.Session)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectTicketByToken(mock sqlmock.Sqlmock, token string, row *sqlmock.Rows) {
	mock.ExpectQuery("FROM tickets WHERE access_token = \\?").
		WithArgs(token).
		WillReturnRows(row)
}

func TestOpenCheckout_PendingTicketGetsSession(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newReservationService(t, gw)

	expectTicketByToken(mock, "deadbeef", ticketRow(7, "PENDING"))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, 2500, futureDate()))
	mock.ExpectExec("UPDATE tickets SET gateway_session_id").
		WithArgs("cs_test", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.OpenCheckout(context.Background(), "deadbeef")
	require.NoError(t, err)

	require.NotNil(t, res.Session)
	assert.Equal(t, "cs_test", res.Session.ID)
	require.Len(t, gw.sessions, 1)
	assert.Equal(t, uint64(5000), gw.sessions[0].AmountCents, "amount covers all seats on the ticket")
	assert.Equal(t, uint64(7), gw.sessions[0].TicketID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenCheckout_ConfirmedTicketNotPayable(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newReservationService(t, gw)

	expectTicketByToken(mock, "deadbeef", ticketRow(7, "CONFIRMED"))

	_, err := svc.OpenCheckout(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrNotPayable)
	assert.Empty(t, gw.sessions, "a settled ticket must never reach the gateway")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenCheckout_CancelledTicketNotPayable(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	expectTicketByToken(mock, "deadbeef", ticketRow(7, "CANCELLED"))

	_, err := svc.OpenCheckout(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrNotPayable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenCheckout_FreeEvent(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newReservationService(t, gw)

	expectTicketByToken(mock, "deadbeef", ticketRow(7, "PENDING"))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, nil, futureDate()))

	_, err := svc.OpenCheckout(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrFreeEvent)
	assert.Empty(t, gw.sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenCheckout_UnknownToken(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	expectTicketByToken(mock, "bogus", sqlmock.NewRows(ticketCols))

	_, err := svc.OpenCheckout(context.Background(), "bogus")
	assert.ErrorIs(t, err, repository.ErrTicketNotFound)
}

func TestOpenCheckout_GatewayFailure(t *testing.T) {
	gw := &fakeGateway{failSession: true}
	svc, mock := newReservationService(t, gw)

	expectTicketByToken(mock, "deadbeef", ticketRow(7, "PENDING"))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, 2500, futureDate()))

	_, err := svc.OpenCheckout(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, payment.ErrGateway)
	// No session id write happened; the ticket stays retryable.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailableSeats(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, nil, futureDate()))
	expectReservedSum(mock, 4)

	got, err := svc.AvailableSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 6, got)
}

func TestAvailableSeats_Unlimited(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(nil, false, nil, futureDate()))
	expectReservedSum(mock, 500)

	got, err := svc.AvailableSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, repository.UnlimitedSeats, got)
}

func TestAvailableSeats_ClosedEvent(t *testing.T) {
	svc, mock := newReservationService(t, &fakeGateway{})

	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, true, nil, futureDate()))
	expectReservedSum(mock, 0)

	got, err := svc.AvailableSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got, "is_closed forces availability to zero")
}

// End-to-end capacity walk at the seat-math level: reserve both seats,
// confirm, observe zero availability, cancel, observe capacity restored.
// The transitions themselves are covered by the webhook and model tests.
func TestAvailabilityMath_CancelRestoresCapacity(t *testing.T) {
	two := uint32(2)
	ev := &model.Event{ID: 1, MaxSeats: &two}

	assert.Equal(t, 2, availableSeats(ev, 0))
	// T1 reserves both seats (PENDING counts against capacity).
	assert.Equal(t, 0, availableSeats(ev, 2))
	// Webhook confirms T1 (CONFIRMED still counts; nothing changes).
	assert.Equal(t, 0, availableSeats(ev, 2))
	// Administrator cancels T1 (CANCELLED seats no longer count).
	assert.Equal(t, 2, availableSeats(ev, 0))
}

type captureNotifier struct {
	ch chan queue.TicketNotification
}

func (c *captureNotifier) Publish(_ context.Context, n queue.TicketNotification) error {
	c.ch <- n
	return nil
}

func TestReserve_PublishesReservationNotification(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	notifier := &captureNotifier{ch: make(chan queue.TicketNotification, 1)}
	svc := NewReservationService(ReservationConfig{
		DB:       db,
		Events:   repository.NewEventRepo(db),
		Tickets:  repository.NewTicketRepo(db),
		Users:    repository.NewUserRepo(db),
		Gateway:  &fakeGateway{},
		Notifier: notifier,
		Now:      func() time.Time { return time.Unix(1700000000, 0) },
	})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(eventRow(10, false, nil, futureDate()))
	expectReservedSum(mock, 0)
	expectTicketInsert(mock, 12)
	mock.ExpectCommit()

	_, err = svc.Reserve(context.Background(), validInput())
	require.NoError(t, err)

	select {
	case n := <-notifier.ch:
		assert.Equal(t, queue.KindTicketReserved, n.Kind)
		assert.Equal(t, uint64(12), n.TicketID)
		assert.Equal(t, "ana@example.com", n.HolderEmail)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reservation notification")
	}
}

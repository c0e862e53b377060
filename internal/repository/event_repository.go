package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lectorium/ticketing/internal/model"
)

// EventRepo provides read access to events.  The reservation engine never
// creates or edits events; that belongs to the content-management side.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span several repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, title, event_date, max_seats, is_closed, price_cents, currency, created_at, updated_at`

func scanEvent(row *sql.Row) (*model.Event, error) {
	var ev model.Event
	var maxSeats, priceCents sql.NullInt64
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.EventDate, &maxSeats, &ev.IsClosed,
		&priceCents, &ev.Currency, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if maxSeats.Valid {
		v := uint32(maxSeats.Int64)
		ev.MaxSeats = &v
	}
	if priceCents.Valid {
		v := uint32(priceCents.Int64)
		ev.PriceCents = &v
	}
	return &ev, nil
}

// GetByID loads a single event.  Returns ErrEventNotFound when it does not
// exist.
func (r *EventRepo) GetByID(ctx context.Context, eventID uint64) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return scanEvent(r.db.QueryRowContext(ctx, q, eventID))
}

// GetByIDForUpdateTx loads an event inside the given transaction while
// taking a row-level lock on it.  Every reservation for the event acquires
// this lock before reading the reserved-seat aggregate, which makes the
// read-check-insert sequence atomic with respect to concurrent
// reservations on the same event.
func (r *EventRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, eventID uint64) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ? FOR UPDATE`
	return scanEvent(tx.QueryRowContext(ctx, q, eventID))
}

// ReservedSeats sums the seats held by non-terminal tickets of an event.
// PENDING and CONFIRMED tickets occupy seats; CANCELLED and ATTENDED do
// not.
func (r *EventRepo) ReservedSeats(ctx context.Context, eventID uint64) (int, error) {
	return reservedSeats(ctx, r.db, eventID)
}

// ReservedSeatsTx is ReservedSeats scoped to a transaction.  Call it after
// GetByIDForUpdateTx so the aggregate is read under the event row lock.
func (r *EventRepo) ReservedSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64) (int, error) {
	return reservedSeats(ctx, tx, eventID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func reservedSeats(ctx context.Context, q queryRower, eventID uint64) (int, error) {
	const query = `SELECT COALESCE(SUM(number_of_seats), 0)
	               FROM tickets
	               WHERE event_id = ? AND status IN ('PENDING', 'CONFIRMED')`
	var sum int
	if err := q.QueryRowContext(ctx, query, eventID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

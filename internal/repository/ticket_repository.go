package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lectorium/ticketing/internal/model"
)

// TicketRepo provides CRUD operations for tickets.  Status changes go
// through UpdateStatusTx so every write shares the monotonic-transition
// guard applied by the services.  Tickets are never deleted.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, access_token, event_id, user_id, holder_name, holder_email, holder_phone,
       COALESCE(notes, ''), number_of_seats, status, payment_id, payment_status, gateway_session_id,
       created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*model.Ticket, error) {
	var t model.Ticket
	var userID sql.NullInt64
	var paymentID, paymentStatus, sessionID sql.NullString
	err := row.Scan(
		&t.ID, &t.AccessToken, &t.EventID, &userID, &t.HolderName, &t.HolderEmail, &t.HolderPhone,
		&t.Notes, &t.NumberOfSeats, &t.Status, &paymentID, &paymentStatus, &sessionID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		t.UserID = &v
	}
	if paymentID.Valid {
		t.PaymentID = &paymentID.String
	}
	if paymentStatus.Valid {
		t.PaymentStatus = &paymentStatus.String
	}
	if sessionID.Valid {
		t.GatewaySessionID = &sessionID.String
	}
	return &t, nil
}

// CreateTx inserts a new PENDING ticket within the given transaction and
// populates the generated id and timestamps on the provided record.  The
// caller must commit or roll back; the insert must share the transaction in
// which the capacity check ran.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	const q = `INSERT INTO tickets
	           (access_token, event_id, user_id, holder_name, holder_email, holder_phone, notes, number_of_seats, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var userID any
	if t.UserID != nil {
		userID = *t.UserID
	}
	res, err := tx.ExecContext(ctx, q,
		t.AccessToken, t.EventID, userID, t.HolderName, t.HolderEmail, t.HolderPhone,
		t.Notes, t.NumberOfSeats, string(model.TicketPending),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.Status = model.TicketPending
	// Query back to populate DB-side timestamps.
	const sel = `SELECT created_at, updated_at FROM tickets WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, t.ID).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// GetByID loads a ticket by primary key.
func (r *TicketRepo) GetByID(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	return scanTicket(r.db.QueryRowContext(ctx, q, ticketID))
}

// GetByIDForUpdateTx loads a ticket under a row lock.  The webhook
// processor uses it so concurrent deliveries for the same ticket serialize
// on the row before checking the current status.
func (r *TicketRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, ticketID uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? FOR UPDATE`
	return scanTicket(tx.QueryRowContext(ctx, q, ticketID))
}

// GetByAccessToken loads a ticket by its capability token.  Unknown tokens
// yield ErrTicketNotFound; the caller cannot distinguish a wrong token from
// a missing ticket, which is intentional.
func (r *TicketRepo) GetByAccessToken(ctx context.Context, token string) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE access_token = ?`
	return scanTicket(r.db.QueryRowContext(ctx, q, token))
}

// UpdateStatusTx writes a new status for the ticket.  The caller is
// responsible for having validated the transition with
// model.CanTransition; this method only persists.
func (r *TicketRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, ticketID uint64, status model.TicketStatus) error {
	const q = `UPDATE tickets SET status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, string(status), ticketID)
	return err
}

// ConfirmPaymentTx marks a ticket CONFIRMED and records the gateway's
// payment identifiers in the same statement.  Overwrites rather than
// increments so a replayed delivery leaves the row unchanged.
func (r *TicketRepo) ConfirmPaymentTx(ctx context.Context, tx *sql.Tx, ticketID uint64, paymentID, paymentStatus, sessionID string) error {
	const q = `UPDATE tickets
	           SET status = 'CONFIRMED', payment_id = ?, payment_status = ?, gateway_session_id = ?
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, paymentID, paymentStatus, sessionID, ticketID)
	return err
}

// SetGatewaySession stores the checkout session id opened for the ticket.
// Runs outside any transaction: the seat reservation has already committed
// and a failed session can be retried against the same ticket.
func (r *TicketRepo) SetGatewaySession(ctx context.Context, ticketID uint64, sessionID string) error {
	const q = `UPDATE tickets SET gateway_session_id = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, sessionID, ticketID)
	return err
}

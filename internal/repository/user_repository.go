package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lectorium/ticketing/internal/model"
)

// UserRepo exposes the slice of user data the reservation engine needs:
// resolving webhook metadata to an account and attaching gateway customer
// references.  Account management lives in the content/auth subsystem.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, gateway_customer_id, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var customerID sql.NullString
	err := row.Scan(&u.ID, &u.Email, &customerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		u.GatewayCustomerID = &customerID.String
	}
	return &u, nil
}

// GetByID loads a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, userID uint64) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, q, userID))
}

// GetByGatewayCustomerID resolves a user from the gateway's customer
// reference.  Subscription webhooks fall back to this lookup when their
// metadata carries no user id.
func (r *UserRepo) GetByGatewayCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE gateway_customer_id = ?`
	return scanUser(r.db.QueryRowContext(ctx, q, customerID))
}

// SetGatewayCustomerID stores the gateway customer reference created for a
// user on their first paid checkout.
func (r *UserRepo) SetGatewayCustomerID(ctx context.Context, userID uint64, customerID string) error {
	const q = `UPDATE users SET gateway_customer_id = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, customerID, userID)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lectorium/ticketing/internal/model"
)

// SubscriptionRepo persists gateway-driven subscription state.  All writes
// are keyed by the gateway's own subscription id and overwrite the full
// status snapshot, so applying the same webhook payload twice converges on
// the same row.
type SubscriptionRepo struct {
	db *sql.DB
}

// NewSubscriptionRepo returns a SubscriptionRepo bound to the given
// database.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

const mysqlDatetime = "2006-01-02 15:04:05"

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(mysqlDatetime)
}

// UpsertTx inserts or replaces the subscription snapshot identified by
// GatewaySubscriptionID.  Used by the webhook processor for
// created/updated notifications.
func (r *SubscriptionRepo) UpsertTx(ctx context.Context, tx *sql.Tx, s *model.Subscription) error {
	const q = `INSERT INTO subscriptions
	           (user_id, gateway_subscription_id, gateway_customer_id, status,
	            current_period_start, current_period_end, cancel_at_period_end)
	           VALUES (?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             user_id = VALUES(user_id),
	             gateway_customer_id = VALUES(gateway_customer_id),
	             status = VALUES(status),
	             current_period_start = VALUES(current_period_start),
	             current_period_end = VALUES(current_period_end),
	             cancel_at_period_end = VALUES(cancel_at_period_end)`
	_, err := tx.ExecContext(ctx, q,
		s.UserID, s.GatewaySubscriptionID, s.GatewayCustomerID, string(s.Status),
		nullTime(s.CurrentPeriodStart), nullTime(s.CurrentPeriodEnd), s.CancelAtPeriodEnd,
	)
	return err
}

// SetStatusByGatewayIDTx overwrites the status of the subscription with the
// given gateway id.  A missing row is not an error: a deletion or failed
// invoice delivered for a subscription that was never recorded has nothing
// to mutate and redelivery must stay a no-op.
func (r *SubscriptionRepo) SetStatusByGatewayIDTx(ctx context.Context, tx *sql.Tx, gatewaySubID string, status model.SubscriptionStatus) error {
	const q = `UPDATE subscriptions SET status = ? WHERE gateway_subscription_id = ?`
	_, err := tx.ExecContext(ctx, q, string(status), gatewaySubID)
	return err
}

// GetByGatewayID loads a subscription by the gateway's subscription id.
func (r *SubscriptionRepo) GetByGatewayID(ctx context.Context, gatewaySubID string) (*model.Subscription, error) {
	const q = `SELECT id, user_id, gateway_subscription_id, gateway_customer_id, status,
	                  current_period_start, current_period_end, cancel_at_period_end,
	                  created_at, updated_at
	           FROM subscriptions WHERE gateway_subscription_id = ?`
	var s model.Subscription
	var start, end sql.NullTime
	err := r.db.QueryRowContext(ctx, q, gatewaySubID).Scan(
		&s.ID, &s.UserID, &s.GatewaySubscriptionID, &s.GatewayCustomerID, &s.Status,
		&start, &end, &s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time
		s.CurrentPeriodStart = &t
	}
	if end.Valid {
		t := end.Time
		s.CurrentPeriodEnd = &t
	}
	return &s, nil
}

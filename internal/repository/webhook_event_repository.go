package repository

import (
	"context"
	"database/sql"
)

// WebhookEventRepo is the idempotency ledger for gateway deliveries.  Each
// delivery is recorded under the gateway's own event id; the unique key on
// that column turns duplicate deliveries into no-op inserts.
type WebhookEventRepo struct {
	db *sql.DB
}

// NewWebhookEventRepo returns a WebhookEventRepo bound to the given
// database.
func NewWebhookEventRepo(db *sql.DB) *WebhookEventRepo { return &WebhookEventRepo{db: db} }

// RecordTx inserts the delivery into the ledger inside the given
// transaction.  It returns true when this is the first time the event id
// has been seen and false when the delivery is a duplicate.  The insert
// shares the transaction with the state mutation it guards, so a rolled
// back mutation also forgets the event id and the gateway's retry is
// applied cleanly.
func (r *WebhookEventRepo) RecordTx(ctx context.Context, tx *sql.Tx, gatewayEventID, eventType string) (bool, error) {
	const q = `INSERT IGNORE INTO webhook_events (gateway_event_id, event_type) VALUES (?, ?)`
	res, err := tx.ExecContext(ctx, q, gatewayEventID, eventType)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

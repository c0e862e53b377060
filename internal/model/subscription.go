package model

import "time"

// SubscriptionStatus enumerates the local subscription states.  The set is
// deliberately smaller than the gateway's own vocabulary; anything the
// mapping below does not recognize collapses to EXPIRED so an unknown
// gateway state is never silently treated as active.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionExpired  SubscriptionStatus = "EXPIRED"
)

// MapGatewayStatus translates a gateway subscription status string into the
// local status.  Unmapped values fall through to EXPIRED by design.
func MapGatewayStatus(gatewayStatus string) SubscriptionStatus {
	switch gatewayStatus {
	case "active", "trialing":
		return SubscriptionActive
	case "past_due":
		return SubscriptionPastDue
	case "canceled":
		return SubscriptionCanceled
	default:
		return SubscriptionExpired
	}
}

// Subscription mirrors a recurring-payment agreement held at the gateway.
// Rows are mutated only by the webhook processor; the sole user action is
// starting a checkout.
type Subscription struct {
	ID                    uint64             // subscriptions.id
	UserID                uint64             // subscriptions.user_id
	GatewaySubscriptionID string             // subscriptions.gateway_subscription_id (unique)
	GatewayCustomerID     string             // subscriptions.gateway_customer_id
	Status                SubscriptionStatus // subscriptions.status
	CurrentPeriodStart    *time.Time         // subscriptions.current_period_start
	CurrentPeriodEnd      *time.Time         // subscriptions.current_period_end
	CancelAtPeriodEnd     bool               // subscriptions.cancel_at_period_end
	CreatedAt             time.Time          // subscriptions.created_at
	UpdatedAt             time.Time          // subscriptions.updated_at
}

package model

import "time"

// User is the thin slice of the site's user account the reservation engine
// needs: an identity to attach authenticated tickets to and the gateway
// customer reference used when opening checkout sessions and resolving
// subscription webhooks.  Account management itself lives elsewhere.
type User struct {
	ID                uint64    // users.id
	Email             string    // users.email
	GatewayCustomerID *string   // users.gateway_customer_id (nil until first checkout)
	CreatedAt         time.Time // users.created_at
	UpdatedAt         time.Time // users.updated_at
}

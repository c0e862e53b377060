// Package router maps the HTTP surface onto handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/lectorium/ticketing/internal/config"
	"github.com/lectorium/ticketing/internal/handler"
	"github.com/lectorium/ticketing/internal/middleware"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Tickets      *handler.TicketHandler
	Checkout     *handler.CheckoutHandler
	Webhook      *handler.WebhookHandler
	Availability *handler.AvailabilityHandler
	AdminAuth    *handler.AdminAuthHandler
}

// Register wires all routes.
//
// Public surface: reserving a ticket, retrying its checkout, reading a
// ticket by its access token and reading event availability.  The two POST
// endpoints that create load on the seat pool and the gateway sit behind
// the Redis token bucket.
//
// The webhook endpoint is public too; its authentication is the payload
// signature, not a JWT.
//
// Back-office surface: admin login, and ticket status updates behind
// JWTAuth plus the ADMIN role.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rl config.RateLimitConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limited := middleware.NewTokenBucket(rl, rdb)
	// Optional identity on the reservation endpoints: a valid bearer token
	// ties the ticket to an account, its absence means an anonymous holder.
	identified := middleware.OptionalJWT(cfg.JWTSecret)

	v1 := e.Group("/v1")
	v1.POST("/tickets", h.Tickets.Reserve, limited, identified)
	v1.GET("/tickets/:token", h.Tickets.Get)
	v1.POST("/checkout-sessions", h.Checkout.Create, limited, identified)
	v1.GET("/events/:id/availability", h.Availability.Get)
	v1.POST("/payments/webhook", h.Webhook.Receive)
	v1.POST("/admin/login", h.AdminAuth.Login)

	admin := e.Group("/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RequireRole("ADMIN"),
	)
	admin.PATCH("/tickets/:token", h.Tickets.UpdateStatus)
}

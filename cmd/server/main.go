package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/lectorium/ticketing/internal/config"
	"github.com/lectorium/ticketing/internal/database"
	"github.com/lectorium/ticketing/internal/handler"
	"github.com/lectorium/ticketing/internal/payment"
	"github.com/lectorium/ticketing/internal/queue"
	"github.com/lectorium/ticketing/internal/repository"
	"github.com/lectorium/ticketing/internal/router"
	"github.com/lectorium/ticketing/internal/service"
)

func main() {
	// .env is a development convenience; in production the variables come
	// from the environment and the file is absent.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting disabled")
	}

	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	users := repository.NewUserRepo(db)
	subs := repository.NewSubscriptionRepo(db)
	ledger := repository.NewWebhookEventRepo(db)

	gateway := payment.NewClient(payment.ClientConfig{
		BaseURL:       cfg.GatewayBaseURL,
		APIKey:        cfg.GatewayAPIKey,
		HMACKey:       cfg.GatewayHMACKey,
		WebhookSecret: cfg.GatewayWebhookSecret,
	})
	notifier := service.NewAMQPNotifier(queue.BrokerURL())

	reservations := service.NewReservationService(service.ReservationConfig{
		DB:         db,
		Events:     events,
		Tickets:    tickets,
		Users:      users,
		Gateway:    gateway,
		Notifier:   notifier,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	})
	webhooks := service.NewWebhookService(service.WebhookConfig{
		DB:       db,
		Tickets:  tickets,
		Events:   events,
		Subs:     subs,
		Users:    users,
		Ledger:   ledger,
		Notifier: notifier,
	})

	availCache := handler.NewAvailabilityCache(cfg.AvailabilityCacheTTL)

	h := router.Handlers{
		Tickets:      handler.NewTicketHandler(reservations, tickets, events, availCache),
		Checkout:     handler.NewCheckoutHandler(reservations, events, availCache),
		Webhook:      handler.NewWebhookHandler(cfg.GatewayWebhookSecret, webhooks),
		Availability: &handler.AvailabilityHandler{Reservations: reservations, Cache: availCache},
		AdminAuth: &handler.AdminAuthHandler{
			Email:        cfg.AdminEmail,
			PasswordHash: cfg.AdminPasswordHash,
			JWTSecret:    cfg.JWTSecret,
			TokenTTLMin:  cfg.AccessTTLMin,
		},
	}

	// Notification consumer runs in-process; it reconnects on broker
	// failure and never takes the API down with it.
	go queue.StartNotificationConsumer()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, h, cfg, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lectorium/ticketing/internal/cache"
	"github.com/lectorium/ticketing/internal/payment"
	"github.com/lectorium/ticketing/internal/repository"
	"github.com/lectorium/ticketing/internal/service"
	"github.com/lectorium/ticketing/internal/validate"
)

// CheckoutHandler serves POST /v1/checkout-sessions, the payment-first
// entry point: reserve seats on a paid event and answer with the gateway
// redirect in one call.  With an access_token in the body it instead
// reopens a session for an existing PENDING ticket, the retry path after
// an abandoned or failed checkout.
type CheckoutHandler struct {
	Reservations *service.ReservationService
	Events       *repository.EventRepo
	Availability *cache.TTL[availabilityView]
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(res *service.ReservationService, events *repository.EventRepo, avail *cache.TTL[availabilityView]) *CheckoutHandler {
	if res == nil || events == nil {
		panic("nil dependency passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Reservations: res, Events: events, Availability: avail}
}

// Create handles POST /v1/checkout-sessions.
func (h *CheckoutHandler) Create(c echo.Context) error {
	var body struct {
		AccessToken   string `json:"access_token"`
		EventID       uint64 `json:"event_id"`
		HolderName    string `json:"holder_name"`
		HolderEmail   string `json:"holder_email"`
		HolderPhone   string `json:"holder_phone"`
		NumberOfSeats int    `json:"number_of_seats"`
		Notes         string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.AccessToken != "" {
		return h.retry(c, body.AccessToken)
	}
	if body.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id is required"})
	}

	ctx := c.Request().Context()

	// Checkout sessions exist only for paid events; catch free ones before
	// reserving so no ticket is created on a request that cannot proceed.
	ev, err := h.Events.GetByID(ctx, body.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		c.Logger().Errorf("checkout: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if ev.IsFree() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event is free, use POST /v1/tickets"})
	}

	res, err := h.Reservations.Reserve(ctx, service.ReserveInput{
		EventID:       body.EventID,
		HolderName:    body.HolderName,
		HolderEmail:   body.HolderEmail,
		HolderPhone:   body.HolderPhone,
		NumberOfSeats: body.NumberOfSeats,
		Notes:         body.Notes,
		UserID:        currentUserID(c),
	})
	if err != nil {
		var fieldErr *validate.FieldError
		var capErr *repository.CapacityError
		switch {
		case errors.As(err, &fieldErr):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": fieldErr.Message, "field": fieldErr.Field})
		case errors.As(err, &capErr):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":           "capacity_exhausted",
				"available_seats": capErr.Available,
			})
		case errors.Is(err, service.ErrEventPast):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "event date has passed"})
		case errors.Is(err, payment.ErrGateway):
			h.invalidateAvailability(body.EventID)
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error":  "payment gateway unavailable",
				"ticket": viewTicket(res.Ticket),
			})
		default:
			c.Logger().Errorf("checkout: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	h.invalidateAvailability(body.EventID)

	return c.JSON(http.StatusCreated, echo.Map{
		"ticket":       viewTicket(res.Ticket),
		"redirect_url": res.Session.RedirectURL,
		"session_id":   res.Session.ID,
	})
}

// retry reopens a checkout session for an existing PENDING ticket.
func (h *CheckoutHandler) retry(c echo.Context, accessToken string) error {
	res, err := h.Reservations.OpenCheckout(c.Request().Context(), accessToken)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTicketNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		case errors.Is(err, service.ErrNotPayable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is not awaiting payment"})
		case errors.Is(err, service.ErrFreeEvent):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "event is free, nothing to pay"})
		case errors.Is(err, payment.ErrGateway):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
		default:
			c.Logger().Errorf("checkout retry: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"ticket":       viewTicket(res.Ticket),
		"redirect_url": res.Session.RedirectURL,
		"session_id":   res.Session.ID,
	})
}

func (h *CheckoutHandler) invalidateAvailability(eventID uint64) {
	invalidateAvailability(h.Availability, eventID)
}

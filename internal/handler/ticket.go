package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lectorium/ticketing/internal/cache"
	"github.com/lectorium/ticketing/internal/model"
	"github.com/lectorium/ticketing/internal/payment"
	"github.com/lectorium/ticketing/internal/repository"
	"github.com/lectorium/ticketing/internal/service"
	"github.com/lectorium/ticketing/internal/validate"
)

// TicketHandler serves the public reservation endpoints and the
// back-office status update.  Reservation logic lives in the service; the
// handler binds, dispatches and maps errors onto status codes.
type TicketHandler struct {
	Reservations *service.ReservationService
	Tickets      *repository.TicketRepo
	Events       *repository.EventRepo
	Availability *cache.TTL[availabilityView]
}

// NewTicketHandler constructs a TicketHandler.  All dependencies must be
// non-nil except the availability cache.
func NewTicketHandler(res *service.ReservationService, tickets *repository.TicketRepo, events *repository.EventRepo, avail *cache.TTL[availabilityView]) *TicketHandler {
	if res == nil || tickets == nil || events == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	return &TicketHandler{Reservations: res, Tickets: tickets, Events: events, Availability: avail}
}

type ticketView struct {
	ID            uint64  `json:"id"`
	AccessToken   string  `json:"access_token"`
	EventID       uint64  `json:"event_id"`
	HolderName    string  `json:"holder_name"`
	HolderEmail   string  `json:"holder_email"`
	NumberOfSeats uint8   `json:"number_of_seats"`
	Status        string  `json:"status"`
	PaymentStatus *string `json:"payment_status,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type checkoutView struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type eventView struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	EventDate string `json:"event_date"`
}

func viewEvent(ev *model.Event) eventView {
	return eventView{
		ID:        ev.ID,
		Title:     ev.Title,
		EventDate: ev.EventDate.UTC().Format(time.RFC3339),
	}
}

func viewTicket(t *model.Ticket) ticketView {
	return ticketView{
		ID:            t.ID,
		AccessToken:   t.AccessToken,
		EventID:       t.EventID,
		HolderName:    t.HolderName,
		HolderEmail:   t.HolderEmail,
		NumberOfSeats: t.NumberOfSeats,
		Status:        string(t.Status),
		PaymentStatus: t.PaymentStatus,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Reserve handles POST /v1/tickets.  On success it returns 201 with the
// ticket and, for paid events, the checkout session to redirect the holder
// to.  A sold-out event yields 409 along with the seats still available so
// the client can offer a smaller reservation.
func (h *TicketHandler) Reserve(c echo.Context) error {
	var body struct {
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
	if body.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id is required"})
	}

	res, err := h.Reservations.Reserve(c.Request().Context(), service.ReserveInput{
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
		case errors.Is(err, repository.ErrEventNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		case errors.Is(err, service.ErrEventPast):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "event date has passed"})
		case errors.Is(err, payment.ErrGateway):
			// The seats are reserved; hand back the ticket so the holder
			// can retry the checkout via POST /v1/checkout-sessions.
			h.invalidateAvailability(body.EventID)
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error":  "payment gateway unavailable",
				"ticket": viewTicket(res.Ticket),
			})
		default:
			c.Logger().Errorf("reserve: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	h.invalidateAvailability(body.EventID)

	resp := echo.Map{"ticket": viewTicket(res.Ticket), "event": viewEvent(res.Event)}
	if res.Session != nil {
		resp["checkout"] = checkoutView{SessionID: res.Session.ID, RedirectURL: res.Session.RedirectURL}
	}
	return c.JSON(http.StatusCreated, resp)
}

// Get handles GET /v1/tickets/:token.  The access token is the only
// credential; an unknown token is indistinguishable from a missing ticket.
func (h *TicketHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.Tickets.GetByAccessToken(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		c.Logger().Errorf("get ticket: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	ev, err := h.Events.GetByID(ctx, t.EventID)
	if err != nil {
		c.Logger().Errorf("get ticket: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": viewTicket(t), "event": viewEvent(ev)})
}

// UpdateStatus handles PATCH /v1/tickets/:token for back-office staff.
// The body carries the target status; transitions that would move a ticket
// backward (confirming a cancelled ticket, cancelling an attended one) are
// rejected with 409.
func (h *TicketHandler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	target := model.TicketStatus(body.Status)
	if !model.ValidTicketStatus(target) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status " + strconv.Quote(body.Status)})
	}

	ctx := c.Request().Context()
	t, err := h.Tickets.GetByAccessToken(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		c.Logger().Errorf("update status: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	tx, err := h.Events.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Re-read under lock; a webhook may have confirmed in the meantime.
	t, err = h.Tickets.GetByIDForUpdateTx(ctx, tx, t.ID)
	if err != nil {
		c.Logger().Errorf("update status: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !model.CanTransition(t.Status, target) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":          "invalid transition",
			"current_status": string(t.Status),
		})
	}
	if err := h.Tickets.UpdateStatusTx(ctx, tx, t.ID, target); err != nil {
		c.Logger().Errorf("update status: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := tx.Commit(); err != nil {
		c.Logger().Errorf("update status: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed = true
	t.Status = target

	// Cancelling releases seats; drop the cached availability.
	h.invalidateAvailability(t.EventID)

	return c.JSON(http.StatusOK, echo.Map{"ticket": viewTicket(t)})
}

func (h *TicketHandler) invalidateAvailability(eventID uint64) {
	invalidateAvailability(h.Availability, eventID)
}

// currentUserID extracts the optional authenticated user id stored by the
// JWT middleware.  Reservation endpoints are public, so a missing or
// malformed claim is simply an anonymous holder.
func currentUserID(c echo.Context) *uint64 {
	v, ok := c.Get("user_id").(string)
	if !ok || v == "" {
		return nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return nil
	}
	return &id
}

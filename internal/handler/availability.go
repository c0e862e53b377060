package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lectorium/ticketing/internal/cache"
	"github.com/lectorium/ticketing/internal/repository"
	"github.com/lectorium/ticketing/internal/service"
)

// availabilityView is the cached response body of the availability
// endpoint.  AvailableSeats is nil for uncapped events.
type availabilityView struct {
	EventID        uint64 `json:"event_id"`
	AvailableSeats *int   `json:"available_seats"`
	Unlimited      bool   `json:"unlimited"`
}

// AvailabilityHandler serves the public seat-availability read.  Counts
// are cached for a few seconds; the value is advisory, the reservation
// transaction is the authority.  Writes through TicketHandler invalidate
// the entry so a sale shows up immediately.
type AvailabilityHandler struct {
	Reservations *service.ReservationService
	Cache        *cache.TTL[availabilityView]
}

// NewAvailabilityCache builds the TTL cache shared between this handler
// and the write paths that invalidate it.
func NewAvailabilityCache(ttl time.Duration) *cache.TTL[availabilityView] {
	return cache.New[availabilityView](ttl, nil)
}

// invalidateAvailability drops the cached count for an event after a write
// that changes its reserved-seat sum.  Nil-safe.
func invalidateAvailability(c *cache.TTL[availabilityView], eventID uint64) {
	if c != nil {
		c.Invalidate(strconv.FormatUint(eventID, 10))
	}
}

// Get handles GET /v1/events/:id/availability.
func (h *AvailabilityHandler) Get(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	key := strconv.FormatUint(eventID, 10)

	if h.Cache != nil {
		if view, ok := h.Cache.Get(key); ok {
			return c.JSON(http.StatusOK, view)
		}
	}

	avail, err := h.Reservations.AvailableSeats(c.Request().Context(), eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		c.Logger().Errorf("availability: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	view := availabilityView{EventID: eventID}
	if avail == repository.UnlimitedSeats {
		view.Unlimited = true
	} else {
		view.AvailableSeats = &avail
	}
	if h.Cache != nil {
		h.Cache.Set(key, view)
	}
	return c.JSON(http.StatusOK, view)
}

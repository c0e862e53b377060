package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lectorium/ticketing/internal/payment"
	"github.com/lectorium/ticketing/internal/service"
)

// maxWebhookBody caps webhook payloads at 1 MiB; real gateway events are a
// few kilobytes.
const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway notifications.  The signature check runs
// on the raw body before any JSON parsing; an unverifiable request never
// reaches the processor.
type WebhookHandler struct {
	Secret  string
	Service *service.WebhookService
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(secret string, svc *service.WebhookService) *WebhookHandler {
	if secret == "" || svc == nil {
		panic("incomplete configuration passed to NewWebhookHandler")
	}
	return &WebhookHandler{Secret: secret, Service: svc}
}

// Receive handles POST /v1/payments/webhook.  Status codes are the retry
// protocol: 400 tells the gateway the request itself is broken (bad
// signature, unparseable payload) and will never succeed; 500 asks for
// redelivery; 200 acknowledges, including events deliberately ignored.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	sig := c.Request().Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(body, sig, h.Secret); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
	}

	if err := h.Service.Process(c.Request().Context(), ev); err != nil {
		c.Logger().Errorf("webhook %s: %v", ev.EventID(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

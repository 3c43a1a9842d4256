package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gracepoint/registration-gateway/internal/middleware"
)

// orderIDFromQuery reads the provider's order reference from the return
// URL. Providers are not uniform about the parameter name; token is
// preferred, order_id accepted.
func orderIDFromQuery(c echo.Context) string {
	if v := c.QueryParam("token"); v != "" {
		return v
	}
	return c.QueryParam("order_id")
}

// ReturnSuccess handles GET /v1/registrations/:id/return, the provider's
// success URL. It runs the capture flow (at most once per (instance, order)
// across all concurrent callers) and renders the receipt. ?format=html
// returns the printable document; ?format=text a plain-text rendering;
// the default is JSON.
func (h *RegistrationHandler) ReturnSuccess(c echo.Context) error {
	ident, ok := middleware.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	instanceID := c.Param("id")
	orderID := orderIDFromQuery(c)

	api := h.API.ForUser(ident.Bearer)
	rec, err := h.orchestratorFor(api).HandleReturn(c.Request().Context(), instanceID, orderID)
	if err != nil {
		return h.renderError(c, err)
	}

	switch c.QueryParam("format") {
	case "html":
		return c.HTML(http.StatusOK, rec.RenderHTML())
	case "text":
		return c.String(http.StatusOK, rec.RenderText())
	default:
		return c.JSON(http.StatusOK, echo.Map{"receipt": rec})
	}
}

// ReturnCancel handles GET /v1/registrations/:id/cancel, the provider's
// cancel URL. No capture is attempted and nothing is reserved; the page
// shows the provider token as an order reference.
func (h *RegistrationHandler) ReturnCancel(c echo.Context) error {
	ident, ok := middleware.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	instanceID := c.Param("id")
	orderID := orderIDFromQuery(c)

	api := h.API.ForUser(ident.Bearer)
	info := h.orchestratorFor(api).HandleCancel(c.Request().Context(), instanceID, orderID)
	return c.JSON(http.StatusOK, info)
}

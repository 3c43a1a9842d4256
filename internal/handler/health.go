package handler // declare the package name; contains HTTP handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health responds to GET /healthz with a tiny JSON document. Load balancers
// and uptime monitors use it to verify the gateway is serving traffic.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

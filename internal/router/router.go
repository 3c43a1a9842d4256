package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing

	"github.com/gracepoint/registration-gateway/internal/handler"
	"github.com/gracepoint/registration-gateway/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterRegistration registers the registration-core endpoints. All of
// them require a valid access token (or the E2E bypass): submissions act on
// behalf of the signed-in household, and the provider return URLs must know
// whose pending order they are finalising.
func RegisterRegistration(e *echo.Echo, h *handler.RegistrationHandler, jwtSecret string, bypass bool, bypassUser string) {
	g := e.Group("/v1/registrations")
	g.Use(middleware.JWTAuth(jwtSecret, bypass, bypassUser))

	// Household roster for the selection UI.
	g.GET("/household", h.Household)
	// Roster projected onto one instance: per-person eligibility reasons.
	g.GET("/:id/roster", h.Roster)
	// Inline discount-code validation.
	g.POST("/:id/discount", h.ValidateDiscount)
	// Submit a registration delta; may answer with a provider redirect.
	g.POST("/:id/submit", h.Submit)
	// Provider return URLs. Success runs the idempotent capture; cancel
	// only renders the order reference.
	g.GET("/:id/return", h.ReturnSuccess)
	g.GET("/:id/cancel", h.ReturnCancel)
}

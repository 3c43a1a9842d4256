package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gracepoint/registration-gateway/internal/delta"
	"github.com/gracepoint/registration-gateway/internal/eligibility"
	"github.com/gracepoint/registration-gateway/internal/household"
	"github.com/gracepoint/registration-gateway/internal/middleware"
	"github.com/gracepoint/registration-gateway/internal/model"
	"github.com/gracepoint/registration-gateway/internal/orchestrator"
	"github.com/gracepoint/registration-gateway/internal/platform"
	"github.com/gracepoint/registration-gateway/internal/store"
	"github.com/gracepoint/registration-gateway/internal/utils"
)

// RegistrationHandler exposes the registration core over HTTP: household
// loading, discount validation, submission, and the provider return URLs.
// All methods assume JWTAuth has already run; the acting user's bearer is
// forwarded to the backend API on every call.
type RegistrationHandler struct {
	API       *platform.Client // base client; derive per-user with ForUser
	Bus       *store.Bus       // shared session bus
	Pub       orchestrator.Publisher
	MediaBase string
	Localize  utils.Localizer
}

// NewRegistrationHandler constructs a handler. API and Bus must be non-nil.
func NewRegistrationHandler(api *platform.Client, bus *store.Bus, pub orchestrator.Publisher, mediaBase string, localize utils.Localizer) *RegistrationHandler {
	if api == nil || bus == nil {
		panic("nil dependency passed to NewRegistrationHandler")
	}
	if localize == nil {
		localize = func(s string) string { return s }
	}
	return &RegistrationHandler{API: api, Bus: bus, Pub: pub, MediaBase: mediaBase, Localize: localize}
}

// orchestratorFor builds a per-request orchestrator bound to the acting
// user's API client.
func (h *RegistrationHandler) orchestratorFor(api *platform.Client) *orchestrator.Orchestrator {
	o := orchestrator.New(api, h.Bus).
		WithLocalizer(h.Localize).
		WithMediaURL(func(id string) string { return utils.MediaURL(h.MediaBase, id) })
	if h.Pub != nil {
		o = o.WithPublisher(h.Pub)
	}
	return o
}

// Household handles GET /v1/registrations/household. It returns the acting
// user's profile-derived self record and family roster.
func (h *RegistrationHandler) Household(c echo.Context) error {
	ident, ok := middleware.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loader := household.NewLoader(h.API.ForUser(ident.Bearer))
	hh, err := loader.Load(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": h.Localize("Could not load your household.")})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"self":   hh.Self,
		"family": hh.Family,
		"member": hh.Member,
	})
}

// Roster handles GET /v1/registrations/:id/roster. It projects the
// household onto one event instance: per person, whether they are already
// registered, every reason blocking an addition, and the age-at-event label
// the selection UI renders under the name. Registered persons always come
// back eligible so they stay selectable for removal.
func (h *RegistrationHandler) Roster(c echo.Context) error {
	ident, ok := middleware.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	instanceID := c.Param("id")
	if instanceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid instance id"})
	}

	ctx := c.Request().Context()
	api := h.API.ForUser(ident.Bearer)
	inst, err := api.GetInstance(ctx, instanceID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": h.Localize("Could not load the event.")})
	}
	hh, err := household.NewLoader(api).Load(ctx)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": h.Localize("Could not load your household.")})
	}

	before := inst.EventRegistrations.ToState()
	now := time.Now()
	persons := make([]echo.Map, 0, len(hh.Family)+1)
	for _, p := range hh.Persons() {
		registered := before.Registered(p.ID)
		reasons := eligibility.Reasons(inst.Event, p, now, registered)
		localized := make([]string, 0, len(reasons))
		for _, r := range reasons {
			localized = append(localized, h.Localize(r))
		}
		persons = append(persons, echo.Map{
			"id":         p.ID,
			"name":       p.FullName(),
			"registered": registered,
			"eligible":   len(localized) == 0,
			"reasons":    localized,
			"age_label":  h.Localize(eligibility.AgeLabel(p, inst.Event.StartsAt)),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event":   inst.Event,
		"phase":   eligibility.RegistrationPhase(inst.Event, now),
		"member":  hh.Member,
		"persons": persons,
	})
}

// ValidateDiscount handles POST /v1/registrations/:id/discount. The body
// carries {"code": "..."}; a rejected code returns 400 with the backend's
// message so the UI can show it inline and clear the field.
func (h *RegistrationHandler) ValidateDiscount(c echo.Context) error {
	ident, ok := middleware.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil || body.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}
	code, err := h.API.ForUser(ident.Bearer).ValidateDiscountCode(c.Request().Context(), body.Code)
	if err != nil {
		var remote *platform.RemoteError
		if errors.As(err, &remote) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": h.Localize(remote.Msg)})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": h.Localize("Could not validate the code.")})
	}
	return c.JSON(http.StatusOK, echo.Map{"discount": code})
}

// SubmitRequest is the body of POST /v1/registrations/:id/submit.
type SubmitRequest struct {
	SelfSelected   bool     `json:"self_selected"`
	FamilySelected []string `json:"family_selected"`
	Method         string   `json:"method"`
	DiscountCode   string   `json:"discount_code,omitempty"`
}

// Submit handles POST /v1/registrations/:id/submit. The handler fetches
// the event instance and the household, re-validates any discount code and
// hands the assembled input to the orchestrator. The response is either the
// applied change or a redirect to the provider's approve URL.
func (h *RegistrationHandler) Submit(c echo.Context) error {
	ident, ok := middleware.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	instanceID := c.Param("id")
	if instanceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid instance id"})
	}
	var body SubmitRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	api := h.API.ForUser(ident.Bearer)

	inst, err := api.GetInstance(ctx, instanceID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": h.Localize("Could not load the event.")})
	}
	loader := household.NewLoader(api)
	hh, err := loader.Load(ctx)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": h.Localize("Could not load your household.")})
	}

	sel := delta.Selection{
		Self:   body.SelfSelected,
		Family: make(map[string]bool, len(body.FamilySelected)),
		Method: model.PaymentType(body.Method),
	}
	for _, id := range body.FamilySelected {
		sel.Family[id] = true
	}
	if body.DiscountCode != "" {
		code, err := api.ValidateDiscountCode(ctx, body.DiscountCode)
		if err != nil {
			var remote *platform.RemoteError
			if errors.As(err, &remote) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": h.Localize(remote.Msg)})
			}
			return c.JSON(http.StatusBadGateway, echo.Map{"error": h.Localize("Could not validate the code.")})
		}
		sel.Discount = &code
	}

	result, err := h.orchestratorFor(api).Submit(ctx, orchestrator.SubmitInput{
		Event:     inst.Event,
		Before:    inst.EventRegistrations.ToState(),
		Household: hh,
		Selection: sel,
	})
	if err != nil {
		return h.renderError(c, err)
	}

	if result.Outcome == orchestrator.OutcomeRedirect {
		return c.JSON(http.StatusOK, echo.Map{
			"status":      "redirect",
			"order_id":    result.OrderID,
			"approve_url": result.ApproveURL,
			"pay_now":     result.Totals.PayNow,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":         "done",
		"msg":            result.Message,
		"seats_filled":   result.SeatsFilled,
		"refund_now":     result.Totals.RefundNow,
		"pay_at_door":    result.Totals.PayAtDoor,
		"credit_at_door": result.Totals.CreditAtDoor,
		"net_online_now": result.Totals.NetOnlineNow(),
		"net_at_door":    result.Totals.NetAtDoorLater(),
	})
}

// renderError maps the orchestrator's error taxonomy to HTTP responses.
func (h *RegistrationHandler) renderError(c echo.Context, err error) error {
	var input *orchestrator.InputError
	if errors.As(err, &input) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": input.Msg})
	}
	var stale *orchestrator.StaleStateError
	if errors.As(err, &stale) {
		return c.JSON(http.StatusGone, echo.Map{"error": stale.Msg})
	}
	var capture *orchestrator.PaymentCaptureError
	if errors.As(err, &capture) {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": capture.Msg, "retryable": true})
	}
	var remote *platform.RemoteError
	if errors.As(err, &remote) {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": h.Localize(remote.Msg)})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": h.Localize("Something went wrong. Try again.")})
}

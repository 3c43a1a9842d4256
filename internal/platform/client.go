// Package platform is the HTTP adapter layer for the church-management
// backend API. The gateway owns no durable state of its own; every profile,
// event instance and registration snapshot comes through these calls, and
// every change is submitted back through them.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gracepoint/registration-gateway/internal/model"
)

// RemoteError is returned when the backend answers with success=false or an
// unexpected status. Msg carries the backend's message when one was given.
type RemoteError struct {
	Op     string
	Status int
	Msg    string
}

func (e *RemoteError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
}

// Client calls the backend API on behalf of one acting user. Construct a
// base client once and derive per-request clients with ForUser so the
// user's bearer token travels with every call.
type Client struct {
	baseURL string
	http    *http.Client
	bearer  string
}

// NewClient builds the base client. The HTTP client carries a timeout so a
// wedged backend cannot hold a capture forever.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ForUser derives a client that authenticates as the holder of the given
// bearer token. The base client is not mutated.
func (c *Client) ForUser(bearer string) *Client {
	cp := *c
	cp.bearer = bearer
	return &cp
}

// do issues one JSON request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: marshal body: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Op: method + " " + path, Status: resp.StatusCode, Msg: extractMsg(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

func extractMsg(raw []byte) string {
	var envelope struct {
		Msg   string `json:"msg"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	if envelope.Msg != "" {
		return envelope.Msg
	}
	return envelope.Error
}

// ValidateDiscountCode checks a code against the backend and returns the
// validated discount. A rejected code comes back as a RemoteError carrying
// the backend's message so the UI can show it inline.
func (c *Client) ValidateDiscountCode(ctx context.Context, code string) (model.DiscountCode, error) {
	const op = "validate-discount-code"
	body := map[string]string{"code": code}
	var resp struct {
		Success   bool    `json:"success"`
		ID        string  `json:"id"`
		IsPercent bool    `json:"is_percent"`
		Discount  float64 `json:"discount"`
		UsesLeft  *int    `json:"uses_left"`
		Msg       string  `json:"msg"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/events-registrations/validate-discount-code", body, &resp); err != nil {
		return model.DiscountCode{}, err
	}
	if !resp.Success {
		return model.DiscountCode{}, &RemoteError{Op: op, Msg: orDefault(resp.Msg, "Invalid discount code.")}
	}
	return model.DiscountCode{
		ID:        resp.ID,
		IsPercent: resp.IsPercent,
		Discount:  resp.Discount,
		UsesLeft:  resp.UsesLeft,
	}, nil
}

// ChangeResponse is the backend's answer to a registration change. OrderID
// and ApproveURL are only present when a provider order was created.
type ChangeResponse struct {
	Success             bool                  `json:"success"`
	Msg                 string                `json:"msg"`
	SeatsFilled         int                   `json:"seats_filled"`
	RegistrationDetails *RegistrationSnapshot `json:"registration_details,omitempty"`
	OrderID             string                `json:"order_id,omitempty"`
	ApproveURL          string                `json:"approve_url,omitempty"`
}

// ChangeRegistration submits a registration delta.
func (c *Client) ChangeRegistration(ctx context.Context, change model.RegistrationChange) (ChangeResponse, error) {
	var resp ChangeResponse
	if err := c.do(ctx, http.MethodPut, "/v1/events-registrations/change-registration", change, &resp); err != nil {
		return resp, err
	}
	if !resp.Success {
		return resp, &RemoteError{Op: "change-registration", Msg: orDefault(resp.Msg, "Registration change failed.")}
	}
	return resp, nil
}

// CaptureResponse is the backend's answer to a paid-registration capture.
type CaptureResponse struct {
	Success             bool                        `json:"success"`
	Msg                 string                      `json:"msg"`
	RegistrationDetails *RegistrationSnapshot       `json:"registration_details,omitempty"`
	SeatsFilled         *int                        `json:"seats_filled,omitempty"`
	DetailsMap          map[string]model.PersonName `json:"details_map,omitempty"`
}

// CapturePaidReg finalises a provider-approved order. The final details are
// the pending intent persisted before the redirect.
func (c *Client) CapturePaidReg(ctx context.Context, orderID, instanceID string, final model.RegistrationDetails) (CaptureResponse, error) {
	body := struct {
		OrderID         string                    `json:"order_id"`
		EventInstanceID string                    `json:"event_instance_id"`
		FinalDetails    model.RegistrationDetails `json:"final_details"`
	}{OrderID: orderID, EventInstanceID: instanceID, FinalDetails: final}

	var resp CaptureResponse
	if err := c.do(ctx, http.MethodPut, "/v1/events-registrations/capture-paid-reg", body, &resp); err != nil {
		return resp, err
	}
	if !resp.Success {
		return resp, &RemoteError{Op: "capture-paid-reg", Msg: orDefault(resp.Msg, "Payment capture failed.")}
	}
	return resp, nil
}

// InstanceResponse bundles the event snapshot with the acting user's
// registration state on it. SeatsFilled is a pointer so an explicit zero
// (everyone unregistered) is distinguishable from the field being absent.
type InstanceResponse struct {
	Event              model.Event          `json:"event"`
	EventRegistrations RegistrationSnapshot `json:"event_registrations"`
	SeatsFilled        *int                 `json:"seats_filled,omitempty"`
}

// GetInstance fetches one event instance with its registration snapshot.
// A top-level seat count, when present, overrides the embedded one.
func (c *Client) GetInstance(ctx context.Context, instanceID string) (InstanceResponse, error) {
	var resp InstanceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/events/instance/"+instanceID, nil, &resp); err != nil {
		return resp, err
	}
	if resp.SeatsFilled != nil {
		resp.Event.SeatsFilled = *resp.SeatsFilled
	}
	return resp, nil
}

// GetProfile fetches the acting user's profile.
func (c *Client) GetProfile(ctx context.Context) (model.Profile, error) {
	var resp struct {
		Success bool          `json:"success"`
		Profile model.Profile `json:"profile"`
		Msg     string        `json:"msg"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/users/get-profile", nil, &resp); err != nil {
		return model.Profile{}, err
	}
	if !resp.Success {
		return model.Profile{}, &RemoteError{Op: "get-profile", Msg: orDefault(resp.Msg, "Could not load profile.")}
	}
	return resp.Profile, nil
}

// GetFamilyMembers fetches the acting user's family roster.
func (c *Client) GetFamilyMembers(ctx context.Context) ([]model.Person, error) {
	var resp struct {
		Success bool           `json:"success"`
		Members []model.Person `json:"family_members"`
		Msg     string         `json:"msg"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/users/all-family-members", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &RemoteError{Op: "all-family-members", Msg: orDefault(resp.Msg, "Could not load family members.")}
	}
	return resp.Members, nil
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

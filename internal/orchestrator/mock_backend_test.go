package orchestrator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gracepoint/registration-gateway/internal/model"
	"github.com/gracepoint/registration-gateway/internal/platform"
)

// mockBackend simulates the church-management API for orchestrator tests.
// It tracks call counts so tests can assert exactly which endpoints were
// hit, and flips its instance snapshot once a capture goes through.
type mockBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	event    model.Event
	before   platform.RegistrationSnapshot
	after    *platform.RegistrationSnapshot
	captured bool

	orderID    string
	approveURL string

	failCapture bool
	detailsMap  map[string]model.PersonName

	changeCalls   atomic.Int32
	captureCalls  atomic.Int32
	instanceCalls atomic.Int32

	lastChange model.RegistrationChange
}

func newMockBackend(t *testing.T, event model.Event, before platform.RegistrationSnapshot) *mockBackend {
	t.Helper()
	m := &mockBackend{event: event, before: before}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events-registrations/change-registration", m.handleChange)
	mux.HandleFunc("/v1/events-registrations/capture-paid-reg", m.handleCapture)
	mux.HandleFunc("/v1/events/instance/", m.handleInstance)

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)
	return m
}

func (m *mockBackend) client() *platform.Client {
	return platform.NewClient(m.Server.URL)
}

func (m *mockBackend) handleChange(w http.ResponseWriter, r *http.Request) {
	m.changeCalls.Add(1)
	var change model.RegistrationChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.lastChange = change
	orderID, approveURL := m.orderID, m.approveURL
	seats := m.event.SeatsFilled
	m.mu.Unlock()

	resp := map[string]interface{}{
		"success":      true,
		"msg":          "registration updated",
		"seats_filled": seats,
	}
	if change.PaymentType == model.PaymentPayPal && len(change.FamilyRegistering)+selfAdds(change) > 0 && orderID != "" {
		resp["order_id"] = orderID
		resp["approve_url"] = approveURL
	}
	writeJSON(w, resp)
}

func selfAdds(change model.RegistrationChange) int {
	if change.SelfRegistered != nil && *change.SelfRegistered {
		return 1
	}
	return 0
}

func (m *mockBackend) handleCapture(w http.ResponseWriter, r *http.Request) {
	m.captureCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCapture {
		writeJSON(w, map[string]interface{}{"success": false, "msg": "capture declined"})
		return
	}
	m.captured = true
	resp := map[string]interface{}{"success": true, "msg": "captured"}
	if m.after != nil {
		resp["registration_details"] = m.after
	}
	if len(m.detailsMap) > 0 {
		resp["details_map"] = m.detailsMap
	}
	writeJSON(w, resp)
}

func (m *mockBackend) handleInstance(w http.ResponseWriter, r *http.Request) {
	m.instanceCalls.Add(1)
	m.mu.Lock()
	snapshot := m.before
	if m.captured && m.after != nil {
		snapshot = *m.after
	}
	seats := m.event.SeatsFilled
	resp := platform.InstanceResponse{
		Event:              m.event,
		EventRegistrations: snapshot,
		SeatsFilled:        &seats,
	}
	m.mu.Unlock()
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Package orchestrator drives registration submissions and the
// post-approval capture flow as explicit state machines. Every transition
// is logged so the money-moving path stays auditable; suspension only
// happens at HTTP calls and at the bounded lock/names polls in the store.
package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/gracepoint/registration-gateway/internal/platform"
	"github.com/gracepoint/registration-gateway/internal/queue"
	"github.com/gracepoint/registration-gateway/internal/store"
)

// Publisher pushes captured-registration events to the broker. Publishing
// is best effort; the orchestrator logs and drops failures.
type Publisher interface {
	PublishRegistrationCaptured(ctx context.Context, ev queue.RegistrationCapturedEvent) error
}

// Orchestrator coordinates one acting user's registration changes. It is
// cheap to construct per request: the api client carries the user's
// credentials, the bus carries the cross-request session state.
type Orchestrator struct {
	api      *platform.Client
	bus      *store.Bus
	pub      Publisher
	now      func() time.Time
	localize func(string) string
	mediaURL func(string) string
}

// New builds an orchestrator around a per-user API client and the shared
// session bus.
func New(api *platform.Client, bus *store.Bus) *Orchestrator {
	return &Orchestrator{
		api:      api,
		bus:      bus,
		now:      time.Now,
		localize: func(s string) string { return s },
		mediaURL: func(string) string { return "" },
	}
}

// WithPublisher attaches a broker publisher for captured events.
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	o.pub = p
	return o
}

// WithClock swaps the clock, for tests exercising phases and staleness.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// WithLocalizer installs the localize(text) collaborator used on
// user-visible strings. The default is the identity function.
func (o *Orchestrator) WithLocalizer(localize func(string) string) *Orchestrator {
	if localize != nil {
		o.localize = localize
	}
	return o
}

// WithMediaURL installs the media URL builder used for receipt banners.
func (o *Orchestrator) WithMediaURL(build func(imageID string) string) *Orchestrator {
	if build != nil {
		o.mediaURL = build
	}
	return o
}

// transition logs one state-machine step for a named flow.
func (o *Orchestrator) transition(flow, from, to string) {
	log.Printf("orchestrator: %s: %s -> %s", flow, from, to)
}

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gracepoint/registration-gateway/internal/model"
	"github.com/gracepoint/registration-gateway/internal/platform"
	"github.com/gracepoint/registration-gateway/internal/queue"
	"github.com/gracepoint/registration-gateway/internal/store"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.RegistrationCapturedEvent
}

func (p *fakePublisher) PublishRegistrationCaptured(_ context.Context, ev queue.RegistrationCapturedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) published() []queue.RegistrationCapturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.RegistrationCapturedEvent{}, p.events...)
}

func selfAddIntent(unit float64) model.RegistrationDetails {
	v := true
	return model.RegistrationDetails{
		Change: model.RegistrationChange{
			InstanceID:          "inst-1",
			SelfRegistered:      &v,
			FamilyRegistering:   []string{},
			FamilyUnregistering: []string{},
			PaymentType:         model.PaymentPayPal,
		},
		EffectiveUnit: unit,
		CreatedAt:     time.Now().UTC(),
	}
}

func capturedSelfSnapshot(price float64) *platform.RegistrationSnapshot {
	return &platform.RegistrationSnapshot{
		SelfRegistered: true,
		Payments: map[string]model.PaymentLine{
			model.SelfID: {
				LineID:          "L-1",
				PaymentType:     model.PaymentPayPal,
				Price:           price,
				PaymentComplete: true,
				TransactionID:   "TX-123",
			},
		},
	}
}

func TestHandleReturnCapturesAndBuildsReceipt(t *testing.T) {
	m := newMockBackend(t, openEvent(25), platform.RegistrationSnapshot{})
	m.after = capturedSelfSnapshot(25)
	bus := testBus()
	pub := &fakePublisher{}
	o := New(m.client(), bus).WithPublisher(pub)

	ctx := context.Background()
	if err := bus.SavePending(ctx, "inst-1", "ORD-25", selfAddIntent(25)); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	rec, err := o.HandleReturn(ctx, "inst-1", "ORD-25")
	if err != nil {
		t.Fatalf("HandleReturn: %v", err)
	}
	if got := m.captureCalls.Load(); got != 1 {
		t.Fatalf("capture calls = %d, want 1", got)
	}
	if rec.OrderID != "ORD-25" || rec.EventTitle != "Fall Retreat" {
		t.Errorf("receipt header = %q %q", rec.OrderID, rec.EventTitle)
	}
	if len(rec.Charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(rec.Charges))
	}
	line := rec.Charges[0]
	if line.Label != "You (Self)" {
		t.Errorf("label = %q, want %q", line.Label, "You (Self)")
	}
	if line.Amount != 25 || line.TransactionID != "TX-123" || line.LineID != "L-1" || !line.Complete {
		t.Errorf("charge line = %+v", line)
	}
	if rec.TotalCharged != 25 || rec.TotalRefunded != 0 || rec.NetTotal() != 25 {
		t.Errorf("totals = %.2f / %.2f", rec.TotalCharged, rec.TotalRefunded)
	}

	if _, ok, _ := bus.LoadPending(ctx, "inst-1", "ORD-25"); ok {
		t.Error("pending intent should be consumed after capture")
	}
	state, err := bus.CaptureLockState(ctx, "inst-1", "ORD-25")
	if err != nil || state != store.CaptureDone {
		t.Errorf("lock state = %v err = %v, want done", state, err)
	}

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published events = %d, want 1", len(events))
	}
	if events[0].OrderID != "ORD-25" || events[0].TotalCharged != 25 {
		t.Errorf("published event = %+v", events[0])
	}
}

func TestHandleReturnResolvesNamesFromDetailsMap(t *testing.T) {
	m := newMockBackend(t, openEvent(25), platform.RegistrationSnapshot{})
	m.after = capturedSelfSnapshot(25)
	m.detailsMap = map[string]model.PersonName{
		model.SelfID: {FirstName: "Dana", LastName: "Whitfield"},
	}
	bus := testBus()
	o := New(m.client(), bus)

	ctx := context.Background()
	if err := bus.SavePending(ctx, "inst-1", "ORD-25", selfAddIntent(25)); err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	rec, err := o.HandleReturn(ctx, "inst-1", "ORD-25")
	if err != nil {
		t.Fatalf("HandleReturn: %v", err)
	}
	if len(rec.Charges) != 1 || rec.Charges[0].Label != "Dana Whitfield" {
		t.Fatalf("charges = %+v, want one line labelled Dana Whitfield", rec.Charges)
	}

	names, ok, err := bus.LoadDetailsMap(ctx, "inst-1", "ORD-25")
	if err != nil || !ok {
		t.Fatalf("details map not shared: ok=%v err=%v", ok, err)
	}
	if names[model.SelfID].FullName() != "Dana Whitfield" {
		t.Errorf("shared names = %+v", names)
	}
}

// TestHandleReturnConcurrentTabs models the duplicated return URL: several
// tabs land on it at once, exactly one may capture, and every tab must still
// render the same receipt.
func TestHandleReturnConcurrentTabs(t *testing.T) {
	m := newMockBackend(t, openEvent(25), platform.RegistrationSnapshot{})
	m.after = capturedSelfSnapshot(25)
	m.detailsMap = map[string]model.PersonName{
		model.SelfID: {FirstName: "Dana", LastName: "Whitfield"},
	}
	bus := testBus()
	o := New(m.client(), bus)

	ctx := context.Background()
	if err := bus.SavePending(ctx, "inst-1", "ORD-25", selfAddIntent(25)); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	const tabs = 4
	var wg sync.WaitGroup
	results := make([]struct {
		total float64
		err   error
	}, tabs)
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := o.HandleReturn(ctx, "inst-1", "ORD-25")
			results[i].total = rec.TotalCharged
			results[i].err = err
		}(i)
	}
	wg.Wait()

	if got := m.captureCalls.Load(); got != 1 {
		t.Fatalf("capture calls = %d, want exactly 1 across all tabs", got)
	}
	for i, r := range results {
		if r.err != nil {
			t.Fatalf("tab %d: %v", i, r.err)
		}
		if r.total != 25 {
			t.Errorf("tab %d: total charged = %.2f, want 25.00", i, r.total)
		}
	}
}

func TestHandleReturnCaptureFailureReleasesLock(t *testing.T) {
	m := newMockBackend(t, openEvent(25), platform.RegistrationSnapshot{})
	m.after = capturedSelfSnapshot(25)
	m.mu.Lock()
	m.failCapture = true
	m.mu.Unlock()
	bus := testBus()
	o := New(m.client(), bus)

	ctx := context.Background()
	if err := bus.SavePending(ctx, "inst-1", "ORD-25", selfAddIntent(25)); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	_, err := o.HandleReturn(ctx, "inst-1", "ORD-25")
	var capErr *PaymentCaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want PaymentCaptureError", err)
	}
	if capErr.Msg != MsgCaptureFailed {
		t.Errorf("msg = %q, want %q", capErr.Msg, MsgCaptureFailed)
	}

	state, err := bus.CaptureLockState(ctx, "inst-1", "ORD-25")
	if err != nil || state != store.CaptureFree {
		t.Fatalf("lock state = %v err = %v, want free after a failed capture", state, err)
	}
	if _, ok, _ := bus.LoadPending(ctx, "inst-1", "ORD-25"); !ok {
		t.Fatal("pending intent must survive a failed capture")
	}

	m.mu.Lock()
	m.failCapture = false
	m.mu.Unlock()
	rec, err := o.HandleReturn(ctx, "inst-1", "ORD-25")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if rec.TotalCharged != 25 {
		t.Errorf("retry total = %.2f, want 25.00", rec.TotalCharged)
	}
	if got := m.captureCalls.Load(); got != 2 {
		t.Errorf("capture calls = %d, want 2 (one failed, one retried)", got)
	}
}

func TestHandleReturnStaleState(t *testing.T) {
	m := newMockBackend(t, openEvent(25), platform.RegistrationSnapshot{})
	o := New(m.client(), testBus())

	_, err := o.HandleReturn(context.Background(), "inst-1", "ORD-GONE")
	var staleErr *StaleStateError
	if !errors.As(err, &staleErr) {
		t.Fatalf("err = %v, want StaleStateError", err)
	}
	if staleErr.Msg != MsgDetailsMissing {
		t.Errorf("msg = %q, want %q", staleErr.Msg, MsgDetailsMissing)
	}
	if got := m.captureCalls.Load(); got != 0 {
		t.Errorf("capture calls = %d, want 0", got)
	}
	if got := m.instanceCalls.Load(); got != 0 {
		t.Errorf("instance calls = %d, want 0: nothing to fetch for a dead order", got)
	}
}

func TestHandleReturnAlreadyCaptured(t *testing.T) {
	m := newMockBackend(t, openEvent(25), platform.RegistrationSnapshot{})
	m.after = capturedSelfSnapshot(25)
	m.mu.Lock()
	m.captured = true
	m.mu.Unlock()
	bus := testBus()
	o := New(m.client(), bus)

	ctx := context.Background()
	// The owner tab already finished: pending consumed, lock done, names shared.
	if err := bus.SaveDetailsMap(ctx, "inst-1", "ORD-25", map[string]model.PersonName{
		model.SelfID: {FirstName: "Dana", LastName: "Whitfield"},
	}); err != nil {
		t.Fatalf("SaveDetailsMap: %v", err)
	}
	if err := bus.MarkCaptured(ctx, "inst-1", "ORD-25"); err != nil {
		t.Fatalf("MarkCaptured: %v", err)
	}

	rec, err := o.HandleReturn(ctx, "inst-1", "ORD-25")
	if err != nil {
		t.Fatalf("HandleReturn: %v", err)
	}
	if got := m.captureCalls.Load(); got != 0 {
		t.Fatalf("capture calls = %d, want 0 on the already-captured path", got)
	}
	if len(rec.Charges) != 1 || rec.Charges[0].Label != "Dana Whitfield" || rec.TotalCharged != 25 {
		t.Errorf("receipt = %+v", rec)
	}
}

func TestHandleReturnMissingIDs(t *testing.T) {
	m := newMockBackend(t, openEvent(25), platform.RegistrationSnapshot{})
	o := New(m.client(), testBus())

	for _, tc := range []struct{ instance, order string }{
		{"", "ORD-1"},
		{"inst-1", ""},
	} {
		_, err := o.HandleReturn(context.Background(), tc.instance, tc.order)
		var inputErr *InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("HandleReturn(%q, %q) err = %v, want InputError", tc.instance, tc.order, err)
		}
	}
}

func TestHandleCancel(t *testing.T) {
	m := newMockBackend(t, openEvent(25), platform.RegistrationSnapshot{})
	bus := testBus()
	o := New(m.client(), bus)

	ctx := context.Background()
	if err := bus.SavePending(ctx, "inst-1", "ORD-25", selfAddIntent(25)); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	info := o.HandleCancel(ctx, "inst-1", "ORD-25")
	if info.OrderReference != "ORD-25" {
		t.Errorf("order reference = %q", info.OrderReference)
	}
	if info.Message != "Your payment was not completed and no spots were reserved." {
		t.Errorf("message = %q", info.Message)
	}
	// Cancel leaves the session untouched: the approval can still complete.
	if _, ok, _ := bus.LoadPending(ctx, "inst-1", "ORD-25"); !ok {
		t.Error("pending intent must survive a cancel")
	}
	if state, _ := bus.CaptureLockState(ctx, "inst-1", "ORD-25"); state != store.CaptureFree {
		t.Errorf("lock state = %v, want free", state)
	}
}

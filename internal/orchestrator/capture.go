package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/gracepoint/registration-gateway/internal/model"
	"github.com/gracepoint/registration-gateway/internal/queue"
	"github.com/gracepoint/registration-gateway/internal/receipt"
	"github.com/gracepoint/registration-gateway/internal/store"
)

// HandleReturn finalises a provider-approved order. It is the entry point
// for the success return URL and runs the second state machine:
// returning -> capturing -> (success | failure).
//
// Exactly one concurrent caller per (instance, order) pair issues the
// capture; everyone else waits on the lock and then reads the shared names.
// The BEFORE snapshot is fetched before capture so refunds can be computed
// against the state the money actually left from.
func (o *Orchestrator) HandleReturn(ctx context.Context, instanceID, orderID string) (receipt.Receipt, error) {
	o.transition("return", "returning", "capturing")
	if instanceID == "" {
		return receipt.Receipt{}, &InputError{Msg: o.localize("Missing instance id.")}
	}
	if orderID == "" {
		return receipt.Receipt{}, &InputError{Msg: o.localize("Missing order id.")}
	}

	pending, havePending, err := o.bus.LoadPending(ctx, instanceID, orderID)
	if err != nil {
		o.transition("return", "capturing", "failure")
		return receipt.Receipt{}, fmt.Errorf("load pending intent: %w", err)
	}
	alreadyDone := false
	if !havePending {
		state, err := o.bus.CaptureLockState(ctx, instanceID, orderID)
		if err != nil {
			o.transition("return", "capturing", "failure")
			return receipt.Receipt{}, fmt.Errorf("read capture lock: %w", err)
		}
		if state != store.CaptureDone {
			o.transition("return", "capturing", "failure")
			return receipt.Receipt{}, &StaleStateError{Msg: o.localize(MsgDetailsMissing)}
		}
		// The capture happened in another tab and consumed the intent; the
		// receipt can still be hydrated from the cached names.
		alreadyDone = true
	}

	beforeResp, err := o.api.GetInstance(ctx, instanceID)
	if err != nil {
		o.transition("return", "capturing", "failure")
		return receipt.Receipt{}, fmt.Errorf("fetch before snapshot: %w", err)
	}
	event := beforeResp.Event
	before := beforeResp.EventRegistrations.ToState()

	var (
		after     model.RegistrationState
		haveAfter bool
		names     map[string]model.PersonName
		owner     bool
	)

	if !alreadyDone {
		token, acquired, done, err := o.bus.AcquireCapture(ctx, instanceID, orderID)
		if err != nil {
			o.transition("return", "capturing", "failure")
			return receipt.Receipt{}, fmt.Errorf("acquire capture lock: %w", err)
		}
		switch {
		case acquired:
			owner = true
			resp, err := o.api.CapturePaidReg(ctx, orderID, instanceID, pending)
			if err != nil {
				// Release so a retry (this tab or another) can own the lock.
				if relErr := o.bus.ReleaseCapture(ctx, instanceID, orderID, token); relErr != nil {
					log.Printf("return: release capture lock failed: %v", relErr)
				}
				o.transition("return", "capturing", "failure")
				return receipt.Receipt{}, &PaymentCaptureError{Msg: o.localize(MsgCaptureFailed), Err: err}
			}
			if len(resp.DetailsMap) > 0 {
				names = resp.DetailsMap
				// Waiters read names only after seeing the done state, so the
				// map must land first.
				if err := o.bus.SaveDetailsMap(ctx, instanceID, orderID, names); err != nil {
					log.Printf("return: save details map failed: %v", err)
				}
			}
			if err := o.bus.MarkCaptured(ctx, instanceID, orderID); err != nil {
				log.Printf("return: mark captured failed: %v", err)
			}
			if err := o.bus.DeletePending(ctx, instanceID, orderID); err != nil {
				log.Printf("return: delete pending intent failed: %v", err)
			}
			if resp.RegistrationDetails != nil {
				after = resp.RegistrationDetails.ToState()
				haveAfter = true
			}
		case done:
			alreadyDone = true
		default:
			finished, err := o.bus.AwaitCaptured(ctx, instanceID, orderID)
			if err != nil {
				o.transition("return", "capturing", "failure")
				return receipt.Receipt{}, fmt.Errorf("wait for capture: %w", err)
			}
			if !finished {
				o.transition("return", "capturing", "failure")
				return receipt.Receipt{}, &PaymentCaptureError{Msg: o.localize(MsgCaptureFailed)}
			}
		}
	}

	if names == nil {
		if got, ok, err := o.bus.AwaitDetailsMap(ctx, instanceID, orderID); err == nil && ok {
			names = got
		} else if err != nil {
			log.Printf("return: load details map failed: %v", err)
		}
	}
	if !havePending && len(names) == 0 {
		o.transition("return", "capturing", "failure")
		return receipt.Receipt{}, &StaleStateError{Msg: o.localize(MsgDetailsMissing)}
	}

	if !haveAfter {
		if afterResp, err := o.api.GetInstance(ctx, instanceID); err == nil {
			after = afterResp.EventRegistrations.ToState()
			haveAfter = true
		} else {
			log.Printf("return: refetch after snapshot failed: %v", err)
		}
	}
	if !haveAfter {
		// Degraded path: reconstruct the AFTER state from the intent.
		after = applyIntent(before, pending)
	}

	added, removed := diffStates(before, after, pending, havePending, names)
	charges := o.buildCharges(added, after, pending, havePending)
	refunds := buildRefunds(removed, before)

	banner := ""
	if event.BannerImageID != "" {
		banner = o.mediaURL(event.BannerImageID)
	}
	rec := receipt.Assemble(orderID, event, banner, charges, refunds, names)

	if owner {
		o.publishCaptured(ctx, orderID, instanceID, event, rec)
	}
	o.transition("return", "capturing", "success")
	return rec, nil
}

// CancelInfo is what the cancel return URL renders: no capture happened, no
// spots are held, and the provider token doubles as the order reference.
type CancelInfo struct {
	OrderReference string `json:"order_reference"`
	Message        string `json:"message"`
}

// HandleCancel is the entry point for the provider's cancel URL. It never
// touches the lock or the pending intent: an abandoned approval may still
// be completed later from the success URL.
func (o *Orchestrator) HandleCancel(_ context.Context, instanceID, orderID string) CancelInfo {
	o.transition("cancel", "returning", "cancelled")
	log.Printf("orchestrator: cancel: instance=%s order=%s", instanceID, orderID)
	return CancelInfo{
		OrderReference: orderID,
		Message:        o.localize("Your payment was not completed and no spots were reserved."),
	}
}

// diffStates computes the added and removed person ids driving the receipt
// lines. The snapshot difference is patched with the pending intent: a
// waiter whose BEFORE snapshot was taken after the owner captured would
// otherwise see an empty delta. Without an intent (already-captured path)
// the cached names stand in for the added set.
func diffStates(before, after model.RegistrationState, pending model.RegistrationDetails, havePending bool, names map[string]model.PersonName) (added, removed []string) {
	seenAdd := map[string]bool{}
	seenRem := map[string]bool{}
	add := func(id string) {
		if !seenAdd[id] {
			seenAdd[id] = true
			added = append(added, id)
		}
	}
	rem := func(id string) {
		if !seenRem[id] {
			seenRem[id] = true
			removed = append(removed, id)
		}
	}

	if after.SelfRegistered && !before.SelfRegistered {
		add(model.SelfID)
	}
	if !after.SelfRegistered && before.SelfRegistered {
		rem(model.SelfID)
	}
	for id := range after.FamilyRegistered {
		if after.FamilyRegistered[id] && !before.FamilyRegistered[id] {
			add(id)
		}
	}
	for id := range before.FamilyRegistered {
		if before.FamilyRegistered[id] && !after.FamilyRegistered[id] {
			rem(id)
		}
	}

	if havePending {
		if pending.Change.SelfRegistered != nil {
			if *pending.Change.SelfRegistered && after.Registered(model.SelfID) {
				add(model.SelfID)
			}
			if !*pending.Change.SelfRegistered && !after.Registered(model.SelfID) && before.Registered(model.SelfID) {
				rem(model.SelfID)
			}
		}
		for _, id := range pending.Change.FamilyRegistering {
			if after.Registered(id) {
				add(id)
			}
		}
		for _, id := range pending.Change.FamilyUnregistering {
			if !after.Registered(id) && before.Registered(id) {
				rem(id)
			}
		}
		return added, removed
	}

	for id := range names {
		if after.Registered(id) {
			add(id)
		}
	}
	return added, removed
}

// buildCharges derives one charge line per added person, preferring the
// AFTER payment line and falling back to the pending effective unit.
func (o *Orchestrator) buildCharges(added []string, after model.RegistrationState, pending model.RegistrationDetails, havePending bool) []receipt.Line {
	var lines []receipt.Line
	for _, id := range added {
		l := receipt.Line{PersonID: id, Method: model.PaymentPayPal, Complete: true}
		if line := after.PaymentFor(id); line != nil {
			l.Amount = line.Price
			l.Method = line.PaymentType
			l.TransactionID = line.TransactionID
			l.LineID = line.LineID
			l.Complete = line.PaymentComplete
		} else if havePending {
			l.Amount = pending.EffectiveUnit
		}
		lines = append(lines, l)
	}
	return lines
}

// buildRefunds derives one refund line per removed person whose prior
// charge was a completed PayPal payment with refundable value left.
func buildRefunds(removed []string, before model.RegistrationState) []receipt.Line {
	var lines []receipt.Line
	for _, id := range removed {
		line := before.PaymentFor(id)
		if line == nil || line.PaymentType != model.PaymentPayPal || !line.PaymentComplete {
			continue
		}
		amount := line.RemainingRefundable()
		if amount <= 0 {
			continue
		}
		lines = append(lines, receipt.Line{
			PersonID:      id,
			Amount:        amount,
			Method:        model.PaymentPayPal,
			TransactionID: line.TransactionID,
			LineID:        line.LineID,
			Complete:      true,
		})
	}
	return lines
}

// applyIntent replays the pending change on top of the BEFORE state.
func applyIntent(before model.RegistrationState, pending model.RegistrationDetails) model.RegistrationState {
	after := model.RegistrationState{
		SelfRegistered:   before.SelfRegistered,
		FamilyRegistered: make(map[string]bool, len(before.FamilyRegistered)),
		FamilyPayments:   before.FamilyPayments,
		SelfPayment:      before.SelfPayment,
	}
	for id, on := range before.FamilyRegistered {
		after.FamilyRegistered[id] = on
	}
	if pending.Change.SelfRegistered != nil {
		after.SelfRegistered = *pending.Change.SelfRegistered
	}
	for _, id := range pending.Change.FamilyRegistering {
		after.FamilyRegistered[id] = true
	}
	for _, id := range pending.Change.FamilyUnregistering {
		after.FamilyRegistered[id] = false
	}
	return after
}

// publishCaptured pushes the captured event to the broker, best effort.
func (o *Orchestrator) publishCaptured(ctx context.Context, orderID, instanceID string, event model.Event, rec receipt.Receipt) {
	if o.pub == nil {
		return
	}
	persons := make([]string, 0, len(rec.Charges))
	for _, l := range rec.Charges {
		persons = append(persons, l.Label)
	}
	ev := queue.RegistrationCapturedEvent{
		OrderID:       orderID,
		InstanceID:    instanceID,
		EventTitle:    event.Title,
		EventStartsAt: event.StartsAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Persons:       persons,
		TotalCharged:  rec.TotalCharged,
		TotalRefunded: rec.TotalRefunded,
		CapturedAt:    o.now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if err := o.pub.PublishRegistrationCaptured(ctx, ev); err != nil {
		log.Printf("return: publish captured event failed: %v", err)
	}
}

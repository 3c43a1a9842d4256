package orchestrator

import (
	"context"
	"fmt"

	"github.com/gracepoint/registration-gateway/internal/delta"
	"github.com/gracepoint/registration-gateway/internal/eligibility"
	"github.com/gracepoint/registration-gateway/internal/household"
	"github.com/gracepoint/registration-gateway/internal/model"
	"github.com/gracepoint/registration-gateway/internal/pricing"
)

// SubmitOutcome tells the caller how a submission ended.
type SubmitOutcome string

const (
	// OutcomeDone means the change was applied; no provider involvement.
	OutcomeDone SubmitOutcome = "done"
	// OutcomeRedirect means a provider order was created and the user must
	// be sent to ApproveURL. The pending intent is already persisted.
	OutcomeRedirect SubmitOutcome = "redirect"
)

// SubmitInput is everything a submission needs: the event snapshot, the
// server-observed BEFORE state, the loaded household and the UI selection.
type SubmitInput struct {
	Event     model.Event
	Before    model.RegistrationState
	Household household.Household
	Selection delta.Selection
}

// SubmitResult reports the applied change or the redirect to perform.
type SubmitResult struct {
	Outcome     SubmitOutcome
	Message     string
	SeatsFilled int
	OrderID     string
	ApproveURL  string
	Totals      delta.Totals
}

// Submit runs the submission state machine:
// idle -> submitting -> (done | redirect | error).
//
// Routing, in order: empty deltas are rejected; additions require at least
// one eligible registrant; a zero total (free event or fully-discounted)
// goes through as payment_type=free; paid PayPal additions create a
// provider order, persist the pending intent and redirect; remove-only and
// door changes post directly.
func (o *Orchestrator) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	o.transition("submit", "idle", "submitting")

	ch := delta.Derive(in.Before, in.Selection)
	if ch.Empty() {
		o.transition("submit", "submitting", "error")
		return SubmitResult{}, &InputError{Msg: o.localize(MsgNoChanges)}
	}

	adds := ch.Adds()
	if adds > 0 && !o.anyEligible(ch, in) {
		o.transition("submit", "submitting", "error")
		return SubmitResult{}, &InputError{Msg: o.localize(MsgNoEligible)}
	}

	unit := pricing.UnitPrice(in.Event, in.Household.Member)
	var code *model.DiscountCode
	if adds > 0 {
		code = in.Selection.Discount
	}
	eff := pricing.EffectiveUnit(unit, code, adds)

	payType, err := o.resolvePaymentType(in, adds, eff)
	if err != nil {
		o.transition("submit", "submitting", "error")
		return SubmitResult{}, err
	}

	discountID := ""
	if code != nil && payType != model.PaymentFree {
		discountID = code.ID
	}
	rc := ch.ToRegistrationChange(in.Event.ID, payType, discountID)

	wantOrder := payType == model.PaymentPayPal && adds > 0 && eff > 0
	resp, err := o.api.ChangeRegistration(ctx, rc)
	if err != nil {
		o.transition("submit", "submitting", "error")
		if wantOrder {
			return SubmitResult{}, fmt.Errorf("%s: %w", o.localize(MsgPaymentStart), err)
		}
		return SubmitResult{}, err
	}

	totals := delta.ComputeTotals(in.Before, ch, payType, eff)

	if wantOrder {
		if resp.OrderID == "" || resp.ApproveURL == "" {
			o.transition("submit", "submitting", "error")
			return SubmitResult{}, fmt.Errorf("%s: backend returned no order", o.localize(MsgPaymentStart))
		}
		pending := model.RegistrationDetails{
			Change:        rc,
			EffectiveUnit: eff,
			CreatedAt:     o.now().UTC(),
		}
		// The intent must be readable by the return handler before any
		// redirect happens; a failed write aborts the flow here.
		if err := o.bus.SavePending(ctx, in.Event.ID, resp.OrderID, pending); err != nil {
			o.transition("submit", "submitting", "error")
			return SubmitResult{}, fmt.Errorf("%s: %w", o.localize(MsgPaymentStart), err)
		}
		o.transition("submit", "submitting", "redirect")
		return SubmitResult{
			Outcome:     OutcomeRedirect,
			SeatsFilled: resp.SeatsFilled,
			OrderID:     resp.OrderID,
			ApproveURL:  resp.ApproveURL,
			Totals:      totals,
		}, nil
	}

	o.transition("submit", "submitting", "done")
	return SubmitResult{
		Outcome:     OutcomeDone,
		Message:     resp.Msg,
		SeatsFilled: resp.SeatsFilled,
		Totals:      totals,
	}, nil
}

// anyEligible reports whether at least one person being added can register.
func (o *Orchestrator) anyEligible(ch delta.Change, in SubmitInput) bool {
	now := o.now()
	for _, id := range ch.AddedIDs() {
		p, ok := in.Household.Find(id)
		if !ok {
			continue
		}
		if eligibility.HardIneligible(in.Event, p, now, in.Before.Registered(id)) == "" {
			return true
		}
	}
	return false
}

// resolvePaymentType picks the payment_type for the change. Zero-cost
// additions always go through as free regardless of the chosen method.
// Remove-only changes keep the chosen method so the backend can reverse the
// matching lines (paypal refunds, door credits).
func (o *Orchestrator) resolvePaymentType(in SubmitInput, adds int, eff float64) (model.PaymentType, error) {
	if adds == 0 {
		switch in.Selection.Method {
		case model.PaymentPayPal, model.PaymentDoor:
			return in.Selection.Method, nil
		default:
			return model.PaymentFree, nil
		}
	}
	if eff <= 0 {
		return model.PaymentFree, nil
	}
	switch in.Selection.Method {
	case model.PaymentPayPal:
		if !in.Event.AllowsOption(model.PayOptionPayPal) {
			return "", &InputError{Msg: o.localize("PayPal is not accepted for this event.")}
		}
		return model.PaymentPayPal, nil
	case model.PaymentDoor:
		if !in.Event.AllowsOption(model.PayOptionDoor) {
			return "", &InputError{Msg: o.localize("Pay at the door is not accepted for this event.")}
		}
		return model.PaymentDoor, nil
	default:
		return "", &InputError{Msg: o.localize("Select a payment method.")}
	}
}

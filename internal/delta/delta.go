// Package delta tracks the difference between the server-observed
// registration of a household and the selection made in the UI, and turns
// that difference into the money that moves now versus at the door.
package delta

import (
	"sort"

	"github.com/gracepoint/registration-gateway/internal/model"
)

// Selection is the UI state for one event instance: who is ticked, how the
// user wants to pay, and any validated discount code.
type Selection struct {
	Self     bool
	Family   map[string]bool
	Method   model.PaymentType
	Discount *model.DiscountCode
}

// Change is the derived delta between the BEFORE snapshot and a Selection.
// A person never appears on both sides.
type Change struct {
	AddSelf      bool
	RemoveSelf   bool
	AddFamily    []string
	RemoveFamily []string
}

// Derive computes the delta of a selection against the server state. Family
// ids are union-ed from both sides so deselecting someone the server knows
// about is seen even when the UI never rendered them. Output slices are
// sorted for deterministic submissions.
func Derive(before model.RegistrationState, sel Selection) Change {
	var c Change
	c.AddSelf = sel.Self && !before.SelfRegistered
	c.RemoveSelf = !sel.Self && before.SelfRegistered

	ids := map[string]struct{}{}
	for id := range sel.Family {
		ids[id] = struct{}{}
	}
	for id := range before.FamilyRegistered {
		ids[id] = struct{}{}
	}
	for id := range ids {
		selected := sel.Family[id]
		registered := before.FamilyRegistered[id]
		switch {
		case selected && !registered:
			c.AddFamily = append(c.AddFamily, id)
		case !selected && registered:
			c.RemoveFamily = append(c.RemoveFamily, id)
		}
	}
	sort.Strings(c.AddFamily)
	sort.Strings(c.RemoveFamily)
	return c
}

// Empty reports whether the delta is a no-op.
func (c Change) Empty() bool {
	return !c.AddSelf && !c.RemoveSelf && len(c.AddFamily) == 0 && len(c.RemoveFamily) == 0
}

// Adds counts the persons being added, self included.
func (c Change) Adds() int {
	n := len(c.AddFamily)
	if c.AddSelf {
		n++
	}
	return n
}

// AddedIDs returns every person id being added, SelfID included.
func (c Change) AddedIDs() []string {
	ids := make([]string, 0, c.Adds())
	if c.AddSelf {
		ids = append(ids, model.SelfID)
	}
	return append(ids, c.AddFamily...)
}

// RemovedIDs returns every person id being removed, SelfID included.
func (c Change) RemovedIDs() []string {
	ids := make([]string, 0, len(c.RemoveFamily)+1)
	if c.RemoveSelf {
		ids = append(ids, model.SelfID)
	}
	return append(ids, c.RemoveFamily...)
}

// ToRegistrationChange builds the wire-level change for the backend.
// SelfRegistered stays nil when the acting user's registration is untouched.
func (c Change) ToRegistrationChange(instanceID string, payType model.PaymentType, discountID string) model.RegistrationChange {
	rc := model.RegistrationChange{
		InstanceID:          instanceID,
		FamilyRegistering:   append([]string{}, c.AddFamily...),
		FamilyUnregistering: append([]string{}, c.RemoveFamily...),
		PaymentType:         payType,
		DiscountCodeID:      discountID,
	}
	if c.AddSelf {
		v := true
		rc.SelfRegistered = &v
	} else if c.RemoveSelf {
		v := false
		rc.SelfRegistered = &v
	}
	return rc
}

// Totals aggregates the money a delta moves, split by when and where it
// settles.
//
// Fields:
//  PayNow       – charged online with this submission (paypal adds).
//  RefundNow    – refunded online with this submission (completed paypal
//                 lines of removed persons).
//  PayAtDoor    – owed at the door for door-paid adds.
//  CreditAtDoor – no longer owed at the door for removed door lines.
type Totals struct {
	PayNow       float64
	RefundNow    float64
	PayAtDoor    float64
	CreditAtDoor float64
}

// NetOnlineNow is the online movement for this submission.
func (t Totals) NetOnlineNow() float64 { return t.PayNow - t.RefundNow }

// NetAtDoorLater is what the door balance changes by.
func (t Totals) NetAtDoorLater() float64 { return t.PayAtDoor - t.CreditAtDoor }

// ComputeTotals derives the money aggregates for a change given the chosen
// method and the effective unit price of newly-added persons. Refunds only
// move for completed paypal lines; door lines turn into door credit; free
// lines move nothing.
func ComputeTotals(before model.RegistrationState, c Change, method model.PaymentType, effectiveUnit float64) Totals {
	var t Totals
	if adds := c.Adds(); adds > 0 && effectiveUnit > 0 {
		due := float64(adds) * effectiveUnit
		if method == model.PaymentPayPal {
			t.PayNow = due
		} else if method == model.PaymentDoor {
			t.PayAtDoor = due
		}
	}
	for _, id := range c.RemovedIDs() {
		line := before.PaymentFor(id)
		if line == nil {
			continue
		}
		switch {
		case line.PaymentType == model.PaymentPayPal && line.PaymentComplete:
			t.RefundNow += line.RemainingRefundable()
		case line.PaymentType == model.PaymentDoor:
			t.CreditAtDoor += line.Price
		}
	}
	return t
}

// Package pricing holds the member-aware price and discount math. Amounts
// are truncated, never rounded: the backend records two-decimal truncation
// and both sides must agree to the cent.
package pricing

import (
	"math"

	"github.com/gracepoint/registration-gateway/internal/model"
)

// Trunc2 truncates an amount to two decimals: floor(x*100)/100. Negative
// inputs clamp to zero since no price or refund may go below it.
func Trunc2(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Floor(x*100) / 100
}

// UnitPrice is the base per-person price for the event: the member price
// when the household is a member and one is set, otherwise the list price.
func UnitPrice(e model.Event, isMember bool) float64 {
	p := e.Price
	if isMember && e.MemberPrice != nil {
		p = *e.MemberPrice
	}
	if p < 0 {
		return 0
	}
	return p
}

// EffectiveUnit applies a discount code across count newly-added persons and
// returns the blended per-person price. A bounded code only discounts up to
// its remaining uses; the rest pay the unit price. The result is always in
// [0, unit] and truncated to two decimals.
func EffectiveUnit(unit float64, code *model.DiscountCode, count int) float64 {
	if unit < 0 {
		unit = 0
	}
	if code == nil || count < 1 {
		return Trunc2(unit)
	}
	uses := count
	if code.UsesLeft != nil {
		uses = *code.UsesLeft
		if uses > count {
			uses = count
		}
		if uses < 0 {
			uses = 0
		}
	}
	// A negative discount value can never raise the price above unit.
	discount := code.Discount
	if discount < 0 {
		discount = 0
	}
	var discounted float64
	if code.IsPercent {
		discounted = Trunc2(unit * (1 - discount/100))
	} else {
		off := discount
		if off > unit {
			off = unit
		}
		discounted = Trunc2(unit - off)
	}
	blended := (discounted*float64(uses) + unit*float64(count-uses)) / float64(count)
	return Trunc2(blended)
}

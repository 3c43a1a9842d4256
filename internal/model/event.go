package model

import "time"

// PaymentOption enumerates how an event accepts payment.
type PaymentOption string

const (
	PayOptionPayPal PaymentOption = "paypal"
	PayOptionDoor   PaymentOption = "door"
)

// GenderRule restricts who may register for an event.
type GenderRule string

const (
	GenderRuleAll    GenderRule = "all"
	GenderRuleMale   GenderRule = "male"
	GenderRuleFemale GenderRule = "female"
)

// Event is an immutable snapshot of one event instance as seen by the
// client: a concrete occurrence with its own seats and registration window.
//
// Fields:
//  ID                      – instance identifier.
//  Title                   – event title for receipts and notifications.
//  Location                – venue text.
//  StartsAt                – date and time of the occurrence.
//  MaxSpots                – capacity; zero or negative means unlimited.
//  SeatsFilled             – seats taken at snapshot time.
//  Price                   – base price, never negative.
//  MemberPrice             – optional member price overriding Price.
//  PaymentOptions          – allowed payment options (paypal, door).
//  RefundPolicy            – free-form refund policy text.
//  MinAge, MaxAge          – optional age bounds, inclusive.
//  GenderRule              – all, male or female.
//  MembersOnly             – restricts registration to members.
//  RegistrationOpens       – optional opening time of the window.
//  RegistrationDeadline    – optional closing time of the window.
//  AutomaticRefundDeadline – last moment automatic refunds apply.
//  RegistrationAllowed     – master switch; false closes registration.
//  BannerImageID           – media id for the receipt banner.
type Event struct {
	ID                      string          `json:"id"`
	Title                   string          `json:"title"`
	Location                string          `json:"location,omitempty"`
	StartsAt                time.Time       `json:"starts_at"`
	MaxSpots                int             `json:"max_spots"`
	SeatsFilled             int             `json:"seats_filled"`
	Price                   float64         `json:"price"`
	MemberPrice             *float64        `json:"member_price,omitempty"`
	PaymentOptions          []PaymentOption `json:"payment_options"`
	RefundPolicy            string          `json:"refund_policy,omitempty"`
	MinAge                  *int            `json:"min_age,omitempty"`
	MaxAge                  *int            `json:"max_age,omitempty"`
	GenderRule              GenderRule      `json:"gender_requirement,omitempty"`
	MembersOnly             bool            `json:"members_only"`
	RegistrationOpens       *time.Time      `json:"registration_opens,omitempty"`
	RegistrationDeadline    *time.Time      `json:"registration_deadline,omitempty"`
	AutomaticRefundDeadline *time.Time      `json:"automatic_refund_deadline,omitempty"`
	RegistrationAllowed     bool            `json:"registration_allowed"`
	BannerImageID           string          `json:"banner_image_id,omitempty"`
}

// AllowsOption reports whether the event accepts the given payment option.
func (e Event) AllowsOption(opt PaymentOption) bool {
	for _, o := range e.PaymentOptions {
		if o == opt {
			return true
		}
	}
	return false
}

// Free reports whether the event carries no price at all.
func (e Event) Free() bool {
	if e.Price > 0 {
		return false
	}
	return e.MemberPrice == nil || *e.MemberPrice <= 0
}

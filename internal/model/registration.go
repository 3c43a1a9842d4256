package model

import "time"

// PaymentType records how a registration line was (or will be) paid.
type PaymentType string

const (
	PaymentFree   PaymentType = "free"
	PaymentDoor   PaymentType = "door"
	PaymentPayPal PaymentType = "paypal"
)

// PaymentLine is the payment record attached to one registered person.
//
// Fields:
//  PersonID         – SelfID or a family member id.
//  LineID           – backend payment line reference.
//  PaymentType      – free, door or paypal.
//  Price            – the price recorded at registration time.
//  PaymentComplete  – true once the charge was captured.
//  TransactionID    – provider transaction reference, when any.
//  RefundableAmount – optional refund ceiling; nil means Price.
//  AmountRefunded   – total already refunded against this line.
type PaymentLine struct {
	PersonID         string      `json:"person_id"`
	LineID           string      `json:"line_id,omitempty"`
	PaymentType      PaymentType `json:"payment_type"`
	Price            float64     `json:"price"`
	PaymentComplete  bool        `json:"payment_complete"`
	TransactionID    string      `json:"transaction_id,omitempty"`
	RefundableAmount *float64    `json:"refundable_amount,omitempty"`
	AmountRefunded   float64     `json:"amount_refunded"`
}

// RemainingRefundable returns how much of this line can still be refunded:
// max(0, (refundable_amount ?? price) - amount_refunded).
func (l PaymentLine) RemainingRefundable() float64 {
	ceiling := l.Price
	if l.RefundableAmount != nil {
		ceiling = *l.RefundableAmount
	}
	if ceiling < 0 {
		ceiling = 0
	}
	rem := ceiling - l.AmountRefunded
	if rem < 0 {
		return 0
	}
	return rem
}

// RegistrationState is the server-observed registration of a household on
// one event instance. It is the BEFORE snapshot every delta is computed
// against.
type RegistrationState struct {
	SelfRegistered   bool                   `json:"self_registered"`
	FamilyRegistered map[string]bool        `json:"family_registered"`
	SelfPayment      *PaymentLine           `json:"self_payment,omitempty"`
	FamilyPayments   map[string]PaymentLine `json:"family_payments,omitempty"`
}

// Registered reports whether the given person id is currently registered.
func (s RegistrationState) Registered(id string) bool {
	if id == SelfID {
		return s.SelfRegistered
	}
	return s.FamilyRegistered[id]
}

// PaymentFor returns the payment line recorded for a person, or nil.
func (s RegistrationState) PaymentFor(id string) *PaymentLine {
	if id == SelfID {
		return s.SelfPayment
	}
	if l, ok := s.FamilyPayments[id]; ok {
		line := l
		return &line
	}
	return nil
}

// RegisteredIDs returns all currently registered person ids, SelfID included.
func (s RegistrationState) RegisteredIDs() []string {
	ids := make([]string, 0, len(s.FamilyRegistered)+1)
	if s.SelfRegistered {
		ids = append(ids, SelfID)
	}
	for id, on := range s.FamilyRegistered {
		if on {
			ids = append(ids, id)
		}
	}
	return ids
}

// RegistrationChange is the delta submitted to the backend. SelfRegistered
// is tri-state: nil leaves the acting user's registration unchanged.
type RegistrationChange struct {
	InstanceID          string      `json:"event_instance_id"`
	SelfRegistered      *bool       `json:"self_registered,omitempty"`
	FamilyRegistering   []string    `json:"family_members_registering"`
	FamilyUnregistering []string    `json:"family_members_unregistering"`
	PaymentType         PaymentType `json:"payment_type"`
	DiscountCodeID      string      `json:"discount_code_id,omitempty"`
}

// Order is the provider order created server-side for paid additions.
type Order struct {
	OrderID    string `json:"order_id"`
	ApproveURL string `json:"approve_url"`
}

// RegistrationDetails is the pending intent persisted before redirecting to
// the payment provider. The return handler consumes it exactly once to
// finalise the capture even if the originating tab is gone.
type RegistrationDetails struct {
	Change        RegistrationChange `json:"change"`
	EffectiveUnit float64            `json:"effective_unit"`
	CreatedAt     time.Time          `json:"created_at"`
}

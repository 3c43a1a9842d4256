package platform

import "github.com/gracepoint/registration-gateway/internal/model"

// RegistrationSnapshot is the wire form of a household's registration on one
// event instance. Family membership comes as a list of ids; payment lines
// are keyed by person id with SelfID for the acting user.
type RegistrationSnapshot struct {
	SelfRegistered   bool                         `json:"self_registered"`
	FamilyRegistered []string                     `json:"family_registered"`
	Payments         map[string]model.PaymentLine `json:"payments,omitempty"`
}

// ToState converts the wire snapshot into the model form used by the delta
// and eligibility code.
func (s RegistrationSnapshot) ToState() model.RegistrationState {
	st := model.RegistrationState{
		SelfRegistered:   s.SelfRegistered,
		FamilyRegistered: make(map[string]bool, len(s.FamilyRegistered)),
		FamilyPayments:   make(map[string]model.PaymentLine),
	}
	for _, id := range s.FamilyRegistered {
		st.FamilyRegistered[id] = true
	}
	for id, line := range s.Payments {
		line.PersonID = id
		if id == model.SelfID {
			l := line
			st.SelfPayment = &l
			continue
		}
		st.FamilyPayments[id] = line
	}
	return st
}

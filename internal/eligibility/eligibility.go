// Package eligibility implements the pure rules that decide whether a
// person may register for an event instance. All functions are
// side-effect-free and evaluate only the (event, person, clock) triple, so
// they can be exercised exhaustively in tests without any wiring.
package eligibility

import (
	"fmt"
	"time"

	"github.com/gracepoint/registration-gateway/internal/model"
)

// Phase describes where an event sits in its registration window.
type Phase string

const (
	PhaseClosed         Phase = "closed"
	PhaseNotOpenYet     Phase = "not_open_yet"
	PhaseDeadlinePassed Phase = "deadline_passed"
	PhaseOpen           Phase = "open"
)

// AgeOn returns the person's age in whole years on the event date. The
// second return is false when the date of birth is not on file.
func AgeOn(p model.Person, eventDate time.Time) (int, bool) {
	if p.DateOfBirth == nil {
		return 0, false
	}
	dob := *p.DateOfBirth
	years := eventDate.Year() - dob.Year()
	// Subtract one year if the birthday has not yet occurred by the event date.
	if eventDate.Month() < dob.Month() ||
		(eventDate.Month() == dob.Month() && eventDate.Day() < dob.Day()) {
		years--
	}
	return years, true
}

// GenderOK reports whether the person satisfies the event's gender rule.
// Unknown gender only passes events open to all.
func GenderOK(e model.Event, p model.Person) bool {
	switch e.GenderRule {
	case model.GenderRuleMale:
		return p.Gender == model.GenderMale
	case model.GenderRuleFemale:
		return p.Gender == model.GenderFemale
	default:
		return true
	}
}

// AgeOK checks an age against optional inclusive bounds. When the age is
// unknown it passes only if neither bound is set.
func AgeOK(min, max *int, age int, known bool) bool {
	if !known {
		return min == nil && max == nil
	}
	if min != nil && age < *min {
		return false
	}
	if max != nil && age > *max {
		return false
	}
	return true
}

// MembersOnlyOK reports whether the person passes the members-only gate.
func MembersOnlyOK(e model.Event, p model.Person) bool {
	return !e.MembersOnly || p.Member
}

// PersonReasons returns the ordered human-readable reasons the person is
// ineligible for the event. An empty slice means the person is eligible.
func PersonReasons(e model.Event, p model.Person) []string {
	var reasons []string
	if !MembersOnlyOK(e, p) {
		reasons = append(reasons, "This event is for Members Only")
	}
	if !GenderOK(e, p) {
		if e.GenderRule == model.GenderRuleMale {
			reasons = append(reasons, "This event is for Men Only")
		} else {
			reasons = append(reasons, "This event is for Women Only")
		}
	}
	age, known := AgeOn(p, e.StartsAt)
	if !AgeOK(e.MinAge, e.MaxAge, age, known) {
		reasons = append(reasons, ageReason(e.MinAge, e.MaxAge))
	}
	return reasons
}

// ageReason renders the age restriction text. At least one bound is set
// whenever this is called.
func ageReason(min, max *int) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("This event is for Ages %d–%d", *min, *max)
	case min != nil:
		return fmt.Sprintf("This event is for Ages %d+", *min)
	default:
		return fmt.Sprintf("This event is for Ages ≤ %d", *max)
	}
}

// AgeLabel renders the "Age at time of Event" prefix shown before any
// per-person reasons. Unknown ages render as an em-dash placeholder.
func AgeLabel(p model.Person, eventDate time.Time) string {
	if age, known := AgeOn(p, eventDate); known {
		return fmt.Sprintf("Age at time of Event: %d", age)
	}
	return "Age at time of Event: —"
}

// RegistrationPhase classifies the registration window at the given time.
func RegistrationPhase(e model.Event, now time.Time) Phase {
	if !e.RegistrationAllowed {
		return PhaseClosed
	}
	if e.RegistrationOpens != nil && now.Before(*e.RegistrationOpens) {
		return PhaseNotOpenYet
	}
	if e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline) {
		return PhaseDeadlinePassed
	}
	return PhaseOpen
}

// IsFull reports whether the event has a capacity and has reached it.
func IsFull(e model.Event) bool {
	return e.MaxSpots > 0 && e.SeatsFilled >= e.MaxSpots
}

// Reasons returns every reason blocking the person from being ADDED to the
// event, window and capacity gates first, then the person-level ones. An
// empty slice means the person may register. Already-registered persons are
// never blocked: they must remain selectable so they can be unregistered
// regardless of phase or capacity.
func Reasons(e model.Event, p model.Person, now time.Time, alreadyRegistered bool) []string {
	if alreadyRegistered {
		return nil
	}
	var reasons []string
	if RegistrationPhase(e, now) != PhaseOpen {
		reasons = append(reasons, "Registration not open")
	}
	if IsFull(e) {
		reasons = append(reasons, "Event full")
	}
	return append(reasons, PersonReasons(e, p)...)
}

// HardIneligible returns the first blocking reason, or "" when the person
// may register.
func HardIneligible(e model.Event, p model.Person, now time.Time, alreadyRegistered bool) string {
	if reasons := Reasons(e, p, now, alreadyRegistered); len(reasons) > 0 {
		return reasons[0]
	}
	return ""
}

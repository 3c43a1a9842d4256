package model

import "time"

// SelfID is the identifier used for the acting user in deltas and
// registration changes. Family members carry opaque server-issued ids.
const SelfID = "SELF"

// Gender is the recorded gender of a person. The backend stores single
// letters; an empty string means the gender is unknown.
type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderUnknown Gender = ""
)

// Person represents one member of the acting user's household: either the
// user themselves (ID == SelfID) or a family member.
//
// Fields:
//  ID          – SelfID for the acting user, otherwise an opaque id.
//  FirstName   – given name.
//  LastName    – family name.
//  DateOfBirth – nil when the birth date is not on file.
//  Gender      – M, F or unknown.
//  Member      – household membership flag derived from the profile.
type Person struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      Gender     `json:"gender,omitempty"`
	Member      bool       `json:"member"`
}

// FullName returns "First Last" with single-name fallbacks.
func (p Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// PersonName is the subset of person data shared through the details map
// after a capture so that every tab can label receipt lines.
type PersonName struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      Gender     `json:"gender,omitempty"`
}

// FullName returns "First Last" with single-name fallbacks.
func (n PersonName) FullName() string {
	switch {
	case n.FirstName == "":
		return n.LastName
	case n.LastName == "":
		return n.FirstName
	}
	return n.FirstName + " " + n.LastName
}

// Profile is the acting user's account record as returned by the backend.
type Profile struct {
	UserID      string     `json:"user_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      Gender     `json:"gender,omitempty"`
	Member      bool       `json:"is_member"`
}

// Self projects the profile onto a Person carrying the SelfID marker.
func (p Profile) Self() Person {
	return Person{
		ID:          SelfID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth,
		Gender:      p.Gender,
		Member:      p.Member,
	}
}

// Package household loads the acting user's profile and family roster. The
// roster feeds the eligibility rules and the delta model; nothing may be
// submitted until a load has succeeded.
package household

import (
	"context"
	"fmt"

	"github.com/gracepoint/registration-gateway/internal/model"
	"github.com/gracepoint/registration-gateway/internal/platform"
)

// Household is the loaded roster: the acting user projected as SELF plus
// every family member. Member is the household membership flag that drives
// member pricing.
type Household struct {
	Self   model.Person
	Family []model.Person
	Member bool
}

// Persons returns the full roster, self first.
func (h Household) Persons() []model.Person {
	out := make([]model.Person, 0, len(h.Family)+1)
	out = append(out, h.Self)
	return append(out, h.Family...)
}

// Find returns the person with the given id, if present.
func (h Household) Find(id string) (model.Person, bool) {
	if id == model.SelfID {
		return h.Self, true
	}
	for _, p := range h.Family {
		if p.ID == id {
			return p, true
		}
	}
	return model.Person{}, false
}

// Names projects the roster into the shape shared through the details map.
func (h Household) Names() map[string]model.PersonName {
	names := make(map[string]model.PersonName, len(h.Family)+1)
	for _, p := range h.Persons() {
		names[p.ID] = model.PersonName{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DateOfBirth: p.DateOfBirth,
			Gender:      p.Gender,
		}
	}
	return names
}

// Loader fetches households from the backend. One Load call issues both
// requests; cancelling the context cancels in-flight work so an unmounted
// consumer never observes a late result.
type Loader struct {
	api *platform.Client
}

// NewLoader binds a loader to the given per-user API client.
func NewLoader(api *platform.Client) *Loader {
	return &Loader{api: api}
}

// Load fetches the profile and family roster. The two calls are sequential:
// the profile decides the household membership flag copied onto every
// family member.
func (l *Loader) Load(ctx context.Context) (Household, error) {
	profile, err := l.api.GetProfile(ctx)
	if err != nil {
		return Household{}, fmt.Errorf("load household: %w", err)
	}
	family, err := l.api.GetFamilyMembers(ctx)
	if err != nil {
		return Household{}, fmt.Errorf("load household: %w", err)
	}
	h := Household{Self: profile.Self(), Member: profile.Member}
	for _, p := range family {
		p.Member = profile.Member
		h.Family = append(h.Family, p)
	}
	return h, nil
}

// Refresh re-fetches the household. Selection state lives with the caller,
// so a refresh can never disturb it.
func (l *Loader) Refresh(ctx context.Context) (Household, error) {
	return l.Load(ctx)
}

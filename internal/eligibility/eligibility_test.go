package eligibility

import (
	"testing"
	"time"

	"github.com/gracepoint/registration-gateway/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt(n int) *int              { return &n }

func TestAgeOn(t *testing.T) {
	eventDate := date(2026, time.June, 15)

	tests := []struct {
		name  string
		dob   *time.Time
		age   int
		known bool
	}{
		{"birthday already passed", ptrTime(date(2010, time.March, 1)), 16, true},
		{"birthday later this year", ptrTime(date(2010, time.December, 1)), 15, true},
		{"birthday on event day", ptrTime(date(2010, time.June, 15)), 16, true},
		{"birthday the day after", ptrTime(date(2010, time.June, 16)), 15, true},
		{"missing date of birth", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.Person{ID: "p1", DateOfBirth: tt.dob}
			age, known := AgeOn(p, eventDate)
			if known != tt.known {
				t.Fatalf("known = %v, want %v", known, tt.known)
			}
			if known && age != tt.age {
				t.Errorf("age = %d, want %d", age, tt.age)
			}
		})
	}
}

func TestAgeOK(t *testing.T) {
	tests := []struct {
		name     string
		min, max *int
		age      int
		known    bool
		want     bool
	}{
		{"no bounds unknown age", nil, nil, 0, false, true},
		{"min bound unknown age", ptrInt(10), nil, 0, false, false},
		{"max bound unknown age", nil, ptrInt(18), 0, false, false},
		{"inside range", ptrInt(10), ptrInt(18), 14, true, true},
		{"at lower bound", ptrInt(10), ptrInt(18), 10, true, true},
		{"at upper bound", ptrInt(10), ptrInt(18), 18, true, true},
		{"below range", ptrInt(10), ptrInt(18), 9, true, false},
		{"above range", ptrInt(10), ptrInt(18), 19, true, false},
		{"only min", ptrInt(21), nil, 20, true, false},
		{"only max", nil, ptrInt(12), 13, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AgeOK(tt.min, tt.max, tt.age, tt.known); got != tt.want {
				t.Errorf("AgeOK = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPersonReasons(t *testing.T) {
	starts := date(2026, time.July, 4)
	male := model.Person{ID: "m", Gender: model.GenderMale, DateOfBirth: ptrTime(date(2000, time.January, 1)), Member: false}

	tests := []struct {
		name  string
		event model.Event
		p     model.Person
		want  []string
	}{
		{
			name:  "eligible",
			event: model.Event{StartsAt: starts},
			p:     male,
			want:  nil,
		},
		{
			name:  "members only",
			event: model.Event{StartsAt: starts, MembersOnly: true},
			p:     male,
			want:  []string{"This event is for Members Only"},
		},
		{
			name:  "women only",
			event: model.Event{StartsAt: starts, GenderRule: model.GenderRuleFemale},
			p:     male,
			want:  []string{"This event is for Women Only"},
		},
		{
			name:  "men only against unknown gender",
			event: model.Event{StartsAt: starts, GenderRule: model.GenderRuleMale},
			p:     model.Person{ID: "u"},
			want:  []string{"This event is for Men Only"},
		},
		{
			name:  "age range",
			event: model.Event{StartsAt: starts, MinAge: ptrInt(10), MaxAge: ptrInt(18)},
			p:     male,
			want:  []string{"This event is for Ages 10–18"},
		},
		{
			name:  "min age only",
			event: model.Event{StartsAt: starts, MinAge: ptrInt(65)},
			p:     male,
			want:  []string{"This event is for Ages 65+"},
		},
		{
			name:  "max age only",
			event: model.Event{StartsAt: starts, MaxAge: ptrInt(12)},
			p:     male,
			want:  []string{"This event is for Ages ≤ 12"},
		},
		{
			name: "stacked reasons stay ordered",
			event: model.Event{
				StartsAt:    starts,
				MembersOnly: true,
				GenderRule:  model.GenderRuleFemale,
				MinAge:      ptrInt(30),
			},
			p: male,
			want: []string{
				"This event is for Members Only",
				"This event is for Women Only",
				"This event is for Ages 30+",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PersonReasons(tt.event, tt.p)
			if len(got) != len(tt.want) {
				t.Fatalf("reasons = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("reason[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRegistrationPhase(t *testing.T) {
	now := date(2026, time.May, 1)
	opens := date(2026, time.April, 1)
	deadline := date(2026, time.June, 1)

	tests := []struct {
		name  string
		event model.Event
		want  Phase
	}{
		{"not allowed", model.Event{RegistrationAllowed: false}, PhaseClosed},
		{"before opening", model.Event{RegistrationAllowed: true, RegistrationOpens: ptrTime(date(2026, time.May, 15))}, PhaseNotOpenYet},
		{"after deadline", model.Event{RegistrationAllowed: true, RegistrationDeadline: ptrTime(date(2026, time.April, 15))}, PhaseDeadlinePassed},
		{"open window", model.Event{RegistrationAllowed: true, RegistrationOpens: ptrTime(opens), RegistrationDeadline: ptrTime(deadline)}, PhaseOpen},
		{"open without bounds", model.Event{RegistrationAllowed: true}, PhaseOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RegistrationPhase(tt.event, now); got != tt.want {
				t.Errorf("phase = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsFull(t *testing.T) {
	if IsFull(model.Event{MaxSpots: 0, SeatsFilled: 500}) {
		t.Error("unlimited events never fill")
	}
	if IsFull(model.Event{MaxSpots: 10, SeatsFilled: 9}) {
		t.Error("9/10 is not full")
	}
	if !IsFull(model.Event{MaxSpots: 10, SeatsFilled: 10}) {
		t.Error("10/10 is full")
	}
}

func TestHardIneligible(t *testing.T) {
	now := date(2026, time.May, 1)
	open := model.Event{RegistrationAllowed: true, StartsAt: date(2026, time.June, 1)}
	p := model.Person{ID: "p"}

	if got := HardIneligible(open, p, now, false); got != "" {
		t.Errorf("open event blocked: %q", got)
	}

	closed := open
	closed.RegistrationAllowed = false
	if got := HardIneligible(closed, p, now, false); got != "Registration not open" {
		t.Errorf("closed reason = %q", got)
	}

	full := open
	full.MaxSpots = 1
	full.SeatsFilled = 1
	if got := HardIneligible(full, p, now, false); got != "Event full" {
		t.Errorf("full reason = %q", got)
	}

	// Registered persons stay selectable for unregister no matter what.
	worst := full
	worst.RegistrationAllowed = false
	worst.MembersOnly = true
	if got := HardIneligible(worst, p, now, true); got != "" {
		t.Errorf("registered person blocked: %q", got)
	}
}

func TestReasons(t *testing.T) {
	now := date(2026, time.May, 1)
	p := model.Person{ID: "p"}

	open := model.Event{RegistrationAllowed: true, StartsAt: date(2026, time.June, 1)}
	if got := Reasons(open, p, now, false); len(got) != 0 {
		t.Errorf("open event reasons = %v, want none", got)
	}

	// Gates stack: window first, then capacity, then the person-level ones.
	blocked := open
	blocked.RegistrationAllowed = false
	blocked.MaxSpots = 1
	blocked.SeatsFilled = 1
	blocked.MembersOnly = true
	want := []string{"Registration not open", "Event full", "This event is for Members Only"}
	got := Reasons(blocked, p, now, false)
	if len(got) != len(want) {
		t.Fatalf("reasons = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reasons[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := Reasons(blocked, p, now, true); got != nil {
		t.Errorf("registered person reasons = %v, want none", got)
	}
}

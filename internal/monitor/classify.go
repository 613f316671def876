package monitor

import (
	"time"

	"github.com/flor3z/faction-bot/internal/torn"
)

// TargetState is the monitor's reduced view of a roster member's state
type TargetState int

const (
	StatusNormal TargetState = iota
	StatusIncapacitated
	// StatusAway covers travel, jail and federal; such members cannot be hit
	StatusAway
)

// Class is the display classification of a target
type Class int

const (
	ClassHidden Class = iota
	ClassInWindow
	ClassAvailable
)

func (c Class) String() string {
	switch c {
	case ClassInWindow:
		return "in-window"
	case ClassAvailable:
		return "available"
	default:
		return "hidden"
	}
}

// Target is one opposing roster member as seen by the monitor
type Target struct {
	ID        int64
	Name      string
	Level     int
	Status    TargetState
	Until     time.Time // when the incapacitated state ends
	LifeRatio float64   // negative when unknown
}

// Policy controls which targets are shown
type Policy struct {
	// Horizon is how far ahead an incapacitated target is announced
	Horizon time.Duration
	// MaxLevel filters available targets; 0 disables the filter
	MaxLevel int
	// ShowAvailable includes targets that can be hit right now
	ShowAvailable bool
}

// DefaultPolicy returns the policy used when settings are unavailable
func DefaultPolicy() Policy {
	return Policy{
		Horizon:       5 * time.Minute,
		ShowAvailable: true,
	}
}

// Classify decides how a target is displayed at now. It is a pure function
// of the target's status, remaining time and level.
func Classify(t Target, now time.Time, p Policy) (Class, time.Duration) {
	switch t.Status {
	case StatusIncapacitated:
		remaining := t.Until.Sub(now)
		if remaining > 0 && remaining <= p.Horizon {
			return ClassInWindow, remaining
		}
		return ClassHidden, 0
	case StatusNormal:
		if !p.ShowAvailable {
			return ClassHidden, 0
		}
		if p.MaxLevel > 0 && t.Level > p.MaxLevel {
			return ClassHidden, 0
		}
		return ClassAvailable, 0
	default:
		return ClassHidden, 0
	}
}

// TargetFromMember converts an API roster member
func TargetFromMember(m torn.Member) Target {
	t := Target{
		ID:        m.ID,
		Name:      m.Name,
		Level:     m.Level,
		LifeRatio: m.Life.Ratio(),
	}

	switch m.Status.State {
	case torn.StateHospital:
		t.Status = StatusIncapacitated
		if m.Status.Until > 0 {
			t.Until = time.Unix(m.Status.Until, 0)
		}
	case torn.StateOkay:
		t.Status = StatusNormal
	default:
		t.Status = StatusAway
	}

	return t
}

package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/flor3z/faction-bot/internal/monitor"
	"github.com/flor3z/faction-bot/internal/payout"
)

// ErrUnknownKey is returned when setting a key that has no definition
var ErrUnknownKey = errors.New("settings: unknown key")

// Keys of the numeric configuration table
const (
	KeyWarHitPoints          = "war_hit_points"
	KeyUnderThresholdPoints  = "under_threshold_points"
	KeyOffTargetPoints       = "off_target_points"
	KeyAssistPoints          = "assist_points"
	KeyPayoutFraction        = "payout_fraction"
	KeyRespectThreshold      = "respect_threshold"
	KeyMonitorHorizonMinutes = "monitor_horizon_minutes"
	KeyMonitorMaxLevel       = "monitor_max_level"
	KeyMonitorShowAvailable  = "monitor_show_available"
)

// Setting is a numeric configuration value
type Setting struct {
	Key         string
	Value       float64
	Description string
	UpdatedAt   time.Time
}

// Defaults apply whenever the store has no value or cannot be reached
var Defaults = map[string]Setting{
	KeyWarHitPoints: {
		Key: KeyWarHitPoints, Value: 1,
		Description: "Points per ranked-war hit at or above the respect threshold",
	},
	KeyUnderThresholdPoints: {
		Key: KeyUnderThresholdPoints, Value: 0.5,
		Description: "Points per ranked-war hit below the respect threshold",
	},
	KeyOffTargetPoints: {
		Key: KeyOffTargetPoints, Value: 0,
		Description: "Points per successful hit outside the war",
	},
	KeyAssistPoints: {
		Key: KeyAssistPoints, Value: 0.25,
		Description: "Points per war assist",
	},
	KeyPayoutFraction: {
		Key: KeyPayoutFraction, Value: 0.7,
		Description: "Share of the cash pool paid out (0-1]",
	},
	KeyRespectThreshold: {
		Key: KeyRespectThreshold, Value: 4,
		Description: "Minimum respect for a hit to count as a full war hit",
	},
	KeyMonitorHorizonMinutes: {
		Key: KeyMonitorHorizonMinutes, Value: 5,
		Description: "Announce hospitalized targets this many minutes before release",
	},
	KeyMonitorMaxLevel: {
		Key: KeyMonitorMaxLevel, Value: 0,
		Description: "Hide available targets above this level (0 = no cap)",
	},
	KeyMonitorShowAvailable: {
		Key: KeyMonitorShowAvailable, Value: 1,
		Description: "Show targets that are out of hospital (1 = yes, 0 = no)",
	},
}

// Store reads and writes the configuration table
type Store interface {
	GetConfigValues(ctx context.Context) (map[string]float64, error)
	UpsertConfigValue(ctx context.Context, key string, value float64, description string) error
}

// Manager resolves settings against the store with fallback defaults
type Manager struct {
	store Store
}

// NewManager creates a settings manager
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// All returns every known setting with stored values applied. When the store
// fails the defaults are returned along with the error.
func (m *Manager) All(ctx context.Context) ([]Setting, error) {
	stored, err := m.store.GetConfigValues(ctx)
	if err != nil {
		slog.Warn("Failed to read settings, using defaults", "error", err)
		stored = nil
	}

	out := make([]Setting, 0, len(Defaults))
	for key, def := range Defaults {
		s := def
		if v, ok := stored[key]; ok {
			s.Value = v
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, err
}

// Get returns one value, falling back to its default
func (m *Manager) Get(ctx context.Context, key string) float64 {
	return m.values(ctx)[key]
}

func (m *Manager) values(ctx context.Context) map[string]float64 {
	values := make(map[string]float64, len(Defaults))
	for key, def := range Defaults {
		values[key] = def.Value
	}

	stored, err := m.store.GetConfigValues(ctx)
	if err != nil {
		slog.Warn("Failed to read settings, using defaults", "error", err)
		return values
	}
	for key, v := range stored {
		if _, ok := Defaults[key]; ok {
			values[key] = v
		}
	}
	return values
}

// Set validates and stores a value
func (m *Manager) Set(ctx context.Context, key string, value float64) error {
	def, ok := Defaults[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := validate(key, value); err != nil {
		return err
	}
	if err := m.store.UpsertConfigValue(ctx, key, value, def.Description); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	slog.Info("Setting updated", "key", key, "value", value)
	return nil
}

func validate(key string, value float64) error {
	switch key {
	case KeyPayoutFraction:
		if value <= 0 || value > 1 {
			return fmt.Errorf("%s must be in (0, 1]", key)
		}
	case KeyRespectThreshold, KeyMonitorHorizonMinutes, KeyMonitorMaxLevel:
		if value < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	case KeyMonitorShowAvailable:
		if value != 0 && value != 1 {
			return fmt.Errorf("%s must be 0 or 1", key)
		}
	}
	return nil
}

// Weights returns the payout weights
func (m *Manager) Weights(ctx context.Context) payout.Weights {
	v := m.values(ctx)
	return payout.Weights{
		WarHit:         v[KeyWarHitPoints],
		UnderThreshold: v[KeyUnderThresholdPoints],
		OffTarget:      v[KeyOffTargetPoints],
		Assist:         v[KeyAssistPoints],
	}
}

// PayoutFraction returns the share of the pool to pay out
func (m *Manager) PayoutFraction(ctx context.Context) float64 {
	return m.Get(ctx, KeyPayoutFraction)
}

// RespectThreshold returns the full-hit respect threshold
func (m *Manager) RespectThreshold(ctx context.Context) float64 {
	return m.Get(ctx, KeyRespectThreshold)
}

// MonitorPolicy returns the target monitor policy
func (m *Manager) MonitorPolicy(ctx context.Context) monitor.Policy {
	v := m.values(ctx)
	return monitor.Policy{
		Horizon:       time.Duration(v[KeyMonitorHorizonMinutes] * float64(time.Minute)),
		MaxLevel:      int(v[KeyMonitorMaxLevel]),
		ShowAvailable: v[KeyMonitorShowAvailable] != 0,
	}
}

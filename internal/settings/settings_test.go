package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flor3z/faction-bot/internal/payout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	values map[string]float64
	err    error
}

func (m *memStore) GetConfigValues(ctx context.Context) (map[string]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]float64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) UpsertConfigValue(ctx context.Context, key string, value float64, description string) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func TestWeightsUseStoredValues(t *testing.T) {
	store := &memStore{values: map[string]float64{KeyWarHitPoints: 2, "stray": 9}}
	m := NewManager(store)

	got := m.Weights(context.Background())
	assert.Equal(t, payout.Weights{WarHit: 2, UnderThreshold: 0.5, OffTarget: 0, Assist: 0.25}, got)
}

func TestFallbackWhenStoreFails(t *testing.T) {
	m := NewManager(&memStore{err: errors.New("connection refused")})

	assert.Equal(t, 0.7, m.PayoutFraction(context.Background()))
	assert.Equal(t, 5*time.Minute, m.MonitorPolicy(context.Background()).Horizon)

	all, err := m.All(context.Background())
	assert.Error(t, err)
	assert.Len(t, all, len(Defaults))
}

func TestSet(t *testing.T) {
	store := &memStore{values: map[string]float64{}}
	m := NewManager(store)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, KeyPayoutFraction, 0.9))
	assert.Equal(t, 0.9, m.PayoutFraction(ctx))

	assert.ErrorIs(t, m.Set(ctx, "nope", 1), ErrUnknownKey)
	assert.Error(t, m.Set(ctx, KeyPayoutFraction, 1.5))
	assert.Error(t, m.Set(ctx, KeyMonitorShowAvailable, 2))

	require.NoError(t, m.Set(ctx, KeyMonitorMaxLevel, 40))
	require.NoError(t, m.Set(ctx, KeyMonitorShowAvailable, 0))
	policy := m.MonitorPolicy(ctx)
	assert.Equal(t, 40, policy.MaxLevel)
	assert.False(t, policy.ShowAvailable)
}

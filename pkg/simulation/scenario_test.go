package simulation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const windyEvening = `
name: windy evening
duration: 10m
settings:
  seed: 42
  windInitialSpeed: 12
  fridge:
    powerW: 120
    setpointC: 2
    lowerC: 3
    upperC: 6
    coolingRate: 0.05
    warmingRate: 0.01
events:
  - {kind: switchOn, appliance: dishwasher, at: 30s}
  - {kind: setEco, appliance: dishwasher, at: 30s}
  - {kind: windChange, appliance: windTurbine, at: 1m, speed: 2}
`

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(windyEvening))
	require.NoError(t, err)
	assert.Equal(t, "windy evening", sc.Name)
	assert.Equal(t, types.ProfileDefault, sc.Profile)
	assert.Equal(t, 10*time.Minute, sc.Duration)
	require.Len(t, sc.Events, 3)
	assert.Equal(t, types.Event{Kind: types.EventWindChange, Appliance: types.ApplianceWindTurbine, At: time.Minute, Speed: 2}, sc.Events[2])

	s, err := sc.Apply(types.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, int64(42), s.Seed)
	assert.Equal(t, 12.0, s.WindInitialSpeed)
	assert.Equal(t, 120.0, s.Fridge.PowerW)
	assert.Equal(t, types.DefaultSettings().LampHighW, s.LampHighW)
}

func TestLoadScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  string
	}{
		{"unknown key", "duration: 1m\nspeed: 3\n", "field speed not found"},
		{"no duration", "name: x\n", "duration must be positive"},
		{"unknown kind", "duration: 1m\nevents:\n  - {kind: explode, appliance: lamp, at: 1s}\n", "unknown event kind"},
		{"unknown appliance", "duration: 1m\nevents:\n  - {kind: switchOn, appliance: toaster, at: 1s}\n", "unknown appliance"},
		{"kind the lamp cannot apply", "duration: 1m\nevents:\n  - {kind: doorOpen, appliance: lamp, at: 1s}\n", "lamp cannot apply doorOpen"},
		{"kind the battery cannot apply", "duration: 1m\nevents:\n  - {kind: setEco, appliance: battery, at: 1s}\n", "battery cannot apply setEco"},
		{"event after end", "duration: 1m\nevents:\n  - {kind: switchOn, appliance: lamp, at: 2m}\n", "outside the scenario"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(strings.NewReader(tt.yaml))
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestScenarioApplyUnknownSetting(t *testing.T) {
	sc := Scenario{Duration: time.Minute, Settings: map[string]any{"warpDrive": 1}}
	_, err := sc.Apply(types.DefaultSettings())
	assert.ErrorContains(t, err, "invalid settings overrides")
}

func TestScenarioRejectsStalledClock(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		err      string
	}{
		{"zero door delays", "  meanDelays: {doorOpen: 0, doorClose: 0}\n", "mean delay doorOpen"},
		{"sub-nanosecond tick", "  tickSeconds: 0.000000000001\n", "tick must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := LoadScenario(strings.NewReader("duration: 1m\nsettings:\n" + tt.settings))
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err = sc.Run(ctx, types.DefaultSettings(), Options{})
			require.Error(t, err)
			assert.NotErrorIs(t, err, context.DeadlineExceeded)
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestScenarioRun(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(windyEvening))
	require.NoError(t, err)

	sum, err := sc.Run(context.Background(), types.DefaultSettings(), Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), sum.Seed)
	assert.Equal(t, 600, sum.Ticks)
	assert.GreaterOrEqual(t, sum.Events, 3)

	for _, snap := range sum.Appliances {
		if snap.ID == types.ApplianceWindTurbine {
			// the injected calm stops the turbine unless the wind picked up again
			assert.GreaterOrEqual(t, snap.Readings[types.ReadingWindSpeed], 0.0)
		}
	}
}

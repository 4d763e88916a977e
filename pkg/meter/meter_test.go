package meter

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/raterudder/gridsim/pkg/appliance"
	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []float64
}

func (r *recorder) OnPowerChanged(_ types.ApplianceID, p float64) {
	r.calls = append(r.calls, p)
}

func TestMeterReplacesContribution(t *testing.T) {
	next := &recorder{}
	m := New(next)

	m.OnPowerChanged(types.ApplianceLamp, -60)
	m.OnPowerChanged(types.ApplianceWindTurbine, 500)
	assert.Equal(t, 500.0, m.Production())
	assert.Equal(t, 60.0, m.Consumption())
	assert.Equal(t, 440.0, m.AvailableEnergy())

	// same device again replaces instead of accumulating
	m.OnPowerChanged(types.ApplianceLamp, -20)
	assert.Equal(t, 480.0, m.AvailableEnergy())

	// a producer turning into a consumer moves between totals
	m.OnPowerChanged(types.ApplianceWindTurbine, 0)
	m.OnPowerChanged(types.ApplianceBattery, 200)
	m.OnPowerChanged(types.ApplianceBattery, -200)
	assert.Zero(t, m.Production())
	assert.Equal(t, 220.0, m.Consumption())
	assert.Equal(t, -220.0, m.AvailableEnergy())
	assert.Equal(t, -200.0, m.Contribution(types.ApplianceBattery))

	assert.Equal(t, []float64{-60, 500, -20, 0, 200, -200}, next.calls)

	r := m.Read()
	assert.Equal(t, -220.0, r.Available)
	assert.Len(t, r.Contributions, 4)
}

func TestMeterMatchesAppliances(t *testing.T) {
	s := types.DefaultSettings()
	m := New(nil)
	h := appliance.NewHousehold(s, 7, m)
	h.Start(0)

	r := rand.New(rand.NewPCG(5, 6))
	batteryModes := []types.Mode{types.ModeStandby, types.ModeConsuming, types.ModeProducing}
	for now := time.Duration(0); now < 6*time.Hour; now += s.Tick() {
		for _, a := range h.All() {
			a.Deliver(now)
			a.Advance(s.Tick())
		}
		if r.IntN(100) == 0 {
			all := h.All()
			all[r.IntN(len(all))].ToggleOverride()
		}
		if r.IntN(200) == 0 {
			require.NoError(t, h.MustGet(types.ApplianceBattery).SetMode(batteryModes[r.IntN(len(batteryModes))]))
		}

		var sum float64
		for _, a := range h.All() {
			sum += a.EffectivePower()
		}
		require.InDelta(t, sum, m.AvailableEnergy(), 1e-6, "at %s", now)
	}
}

package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raterudder/gridsim/pkg/appliance"
	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testHousehold struct {
	lamp, fridge, freezer, dishwasher, battery *appliance.Appliance
}

func (h testHousehold) devices() Devices {
	return Devices{
		Lamp:       h.lamp,
		Fridge:     h.fridge,
		Freezer:    h.freezer,
		Dishwasher: h.dishwasher,
		Battery:    h.battery,
	}
}

func newTestHousehold(s types.Settings) testHousehold {
	return testHousehold{
		lamp:       appliance.New(types.ApplianceLamp, appliance.NewLamp(s), nil, s.Tick(), nil),
		fridge:     appliance.New(types.ApplianceFridge, appliance.NewCompartment(s.Fridge, s), nil, s.Tick(), nil),
		freezer:    appliance.New(types.ApplianceFreezer, appliance.NewCompartment(s.Freezer, s), nil, s.Tick(), nil),
		dishwasher: appliance.New(types.ApplianceDishwasher, appliance.NewDishwasher(s), nil, s.Tick(), nil),
		battery:    appliance.New(types.ApplianceBattery, appliance.NewBattery(s), nil, s.Tick(), nil),
	}
}

func rules(d Decision) []int {
	var n []int
	for _, a := range d.Actions {
		n = append(n, a.Rule)
	}
	return n
}

func TestControlTickSurplus(t *testing.T) {
	ctx := context.Background()
	s := types.DefaultSettings()

	t.Run("unit surplus charges the battery", func(t *testing.T) {
		h := newTestHousehold(s)
		c := NewController(h.devices(), fixedMeter(s.BatteryUnit), s)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, BranchSurplus, d.Branch)
		assert.Equal(t, []int{7}, rules(d))
		assert.Equal(t, types.ModeConsuming, h.battery.GetMode())
		assert.Equal(t, s.BatteryUnit-s.BatteryUnit, d.Remaining)
		assert.Zero(t, d.Sold)
	})

	t.Run("unit surplus stops a discharging battery", func(t *testing.T) {
		h := newTestHousehold(s)
		require.NoError(t, h.battery.SetMode(types.ModeProducing))
		c := NewController(h.devices(), fixedMeter(s.BatteryUnit), s)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []int{5}, rules(d))
		assert.Equal(t, types.ModeStandby, h.battery.GetMode())
		assert.Zero(t, d.Remaining)
	})

	t.Run("full battery is not charged", func(t *testing.T) {
		full := s
		full.BatteryInitial = full.BatteryMaxCapacity
		h := newTestHousehold(full)
		c := NewController(h.devices(), fixedMeter(500), full)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Empty(t, d.Actions)
		assert.Equal(t, 500.0, d.Sold)
		assert.Equal(t, types.ModeStandby, h.battery.GetMode())
	})

	t.Run("restarts from the top after each firing", func(t *testing.T) {
		h := newTestHousehold(s)
		require.NoError(t, h.lamp.SetMode(types.ModeHigh))
		h.lamp.ToggleOverride()
		require.NoError(t, h.freezer.SetMode(types.ModeOn))
		h.freezer.ToggleOverride()
		c := NewController(h.devices(), fixedMeter(1000), s)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3, 7}, rules(d))
		assert.Equal(t, 1000.0-60-150-200, d.Sold)
		assert.Equal(t, 4, d.Passes)
		assert.False(t, h.lamp.IsOverride())
		assert.False(t, h.freezer.IsOverride())
		assert.Equal(t, []float64{60, 150, 200}, []float64{d.Actions[0].Amount, d.Actions[1].Amount, d.Actions[2].Amount})
	})

	t.Run("insufficient surplus leaves overrides alone", func(t *testing.T) {
		h := newTestHousehold(s)
		require.NoError(t, h.lamp.SetMode(types.ModeHigh))
		h.lamp.ToggleOverride()
		c := NewController(h.devices(), fixedMeter(50), s)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Empty(t, d.Actions)
		assert.Equal(t, 50.0, d.Sold)
		assert.True(t, h.lamp.IsOverride())
	})

	t.Run("idle overridden dishwasher resumes for free", func(t *testing.T) {
		h := newTestHousehold(s)
		h.dishwasher.ToggleOverride()
		c := NewController(h.devices(), fixedMeter(100), s)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, rules(d))
		assert.Zero(t, d.Actions[0].Amount)
		assert.Equal(t, 100.0, d.Sold)
		assert.False(t, h.dishwasher.IsOverride())
	})

	t.Run("eco upgraded to standard", func(t *testing.T) {
		h := newTestHousehold(s)
		require.NoError(t, h.dishwasher.SetMode(types.ModeEco))
		delta := s.DishwasherStandardW - s.DishwasherEcoW
		c := NewController(h.devices(), fixedMeter(delta), s)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []int{6}, rules(d))
		assert.Equal(t, types.ModeStandard, h.dishwasher.GetMode())
		assert.Zero(t, d.Remaining)
	})
}

func TestControlTickDeficit(t *testing.T) {
	ctx := context.Background()
	s := types.DefaultSettings()

	t.Run("lamp is the last resort", func(t *testing.T) {
		empty := s
		empty.BatteryInitial = 0
		h := newTestHousehold(empty)
		require.NoError(t, h.lamp.SetMode(types.ModeHigh))
		require.NoError(t, h.battery.SetMode(types.ModeProducing))
		c := NewController(h.devices(), fixedMeter(-empty.LampHighW), empty)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, BranchDeficit, d.Branch)
		assert.Equal(t, []int{7}, rules(d))
		assert.True(t, h.lamp.IsOverride())
		assert.Equal(t, types.ModeHigh, h.lamp.GetMode())
		assert.Zero(t, d.Remaining)
		assert.Zero(t, d.Shortfall)
	})

	t.Run("full cascade", func(t *testing.T) {
		h := newTestHousehold(s)
		require.NoError(t, h.battery.SetMode(types.ModeConsuming))
		require.NoError(t, h.dishwasher.SetMode(types.ModeStandard))
		require.NoError(t, h.fridge.SetMode(types.ModeOn))
		require.NoError(t, h.freezer.SetMode(types.ModeOn))
		require.NoError(t, h.lamp.SetMode(types.ModeHigh))
		c := NewController(h.devices(), fixedMeter(-5000), s)

		d, err := c.ControlTick(ctx, 3*time.Second)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, rules(d))

		credited := 200.0 + 200 + 800 + 1000 + 100 + 150 + 60
		assert.Equal(t, -5000+credited, d.Remaining)
		assert.Equal(t, 5000-credited, d.Shortfall)
		assert.Equal(t, types.ModeProducing, h.battery.GetMode())
		assert.Equal(t, types.ModeEco, h.dishwasher.GetMode())
		assert.True(t, h.dishwasher.IsOverride())
		assert.True(t, h.fridge.IsOverride())
		assert.True(t, h.freezer.IsOverride())
		assert.True(t, h.lamp.IsOverride())
		assert.Equal(t, 3*time.Second, d.At)
		assert.Contains(t, d.Explanation, "Shortfall")
	})

	t.Run("stops once covered", func(t *testing.T) {
		h := newTestHousehold(s)
		require.NoError(t, h.battery.SetMode(types.ModeConsuming))
		require.NoError(t, h.fridge.SetMode(types.ModeOn))
		c := NewController(h.devices(), fixedMeter(-150), s)

		d, err := c.ControlTick(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, rules(d))
		assert.Equal(t, 50.0, d.Remaining)
		assert.Zero(t, d.Shortfall)
		assert.False(t, h.fridge.IsOverride())
	})
}

func TestControlTickBalanced(t *testing.T) {
	s := types.DefaultSettings()
	h := newTestHousehold(s)
	c := NewController(h.devices(), fixedMeter(0), s)

	_, ok := c.Last()
	assert.False(t, ok)

	d, err := c.ControlTick(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, BranchBalanced, d.Branch)
	assert.Empty(t, d.Actions)

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, d, last)
}

func TestControlTickReadingError(t *testing.T) {
	s := types.DefaultSettings()
	h := newTestHousehold(s)
	lamp := &mockDevice{}
	lamp.On("IsOverride").Return(true)
	lamp.On("GetReading", types.ReadingPower).Return(0.0, errors.New("boom"))

	devices := h.devices()
	devices.Lamp = lamp
	c := NewController(devices, fixedMeter(100), s)

	_, err := c.ControlTick(context.Background(), 0)
	assert.ErrorContains(t, err, "surplus rule 2")
	lamp.AssertExpectations(t)
}

func TestControlTickFiringLimit(t *testing.T) {
	empty := types.DefaultSettings()
	empty.BatteryInitial = 0
	h := newTestHousehold(empty)
	require.NoError(t, h.battery.SetMode(types.ModeProducing))

	// a lamp that never takes the override
	lamp := &mockDevice{}
	lamp.On("IsOverride").Return(false)
	lamp.On("ToggleOverride").Return()
	lamp.On("GetReading", types.ReadingPower).Return(0.0, nil)
	lamp.On("SetMode", mock.Anything).Return(nil).Maybe()

	devices := h.devices()
	devices.Lamp = lamp
	c := NewController(devices, fixedMeter(-10), empty)

	d, err := c.ControlTick(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, d.Truncated)
	assert.Len(t, d.Actions, maxFirings)
	assert.Equal(t, 10.0, d.Shortfall)
}

func TestHouseholdDevices(t *testing.T) {
	h := appliance.NewHousehold(types.DefaultSettings(), 1, nil)
	d := HouseholdDevices(h)
	assert.Same(t, h.MustGet(types.ApplianceLamp), d.Lamp)
	assert.Same(t, h.MustGet(types.ApplianceBattery), d.Battery)
}

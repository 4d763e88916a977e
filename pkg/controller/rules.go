package controller

import (
	"github.com/raterudder/gridsim/pkg/types"
)

// surplusRules are applied while the balance is positive, highest rank first.
// Anything left once none of them fires is sold.
func (c *Controller) surplusRules() []rule {
	dv := c.devices
	return []rule{
		// Rule 1: resume an overridden dishwasher that draws nothing.
		{1, func(float64) (Action, bool, error) {
			if !dv.Dishwasher.IsOverride() {
				return Action{}, false, nil
			}
			p, err := modePower(dv.Dishwasher)
			if err != nil || p != 0 {
				return Action{}, false, err
			}
			return toggle(types.ApplianceDishwasher, dv.Dishwasher, 0)
		}},
		// Rule 2: resume the lamp if the surplus covers it.
		{2, func(balance float64) (Action, bool, error) {
			if !dv.Lamp.IsOverride() {
				return Action{}, false, nil
			}
			p, err := modePower(dv.Lamp)
			if err != nil || !(balance >= p) {
				return Action{}, false, err
			}
			return toggle(types.ApplianceLamp, dv.Lamp, p)
		}},
		// Rule 3: resume the freezer.
		{3, func(balance float64) (Action, bool, error) {
			return c.resumeCompartment(types.ApplianceFreezer, dv.Freezer, balance)
		}},
		// Rule 4: resume the fridge.
		{4, func(balance float64) (Action, bool, error) {
			return c.resumeCompartment(types.ApplianceFridge, dv.Fridge, balance)
		}},
		// Rule 5: stop discharging the battery.
		{5, func(balance float64) (Action, bool, error) {
			if dv.Battery.GetMode() != types.ModeProducing {
				return Action{}, false, nil
			}
			full, err := c.batteryFull()
			if err != nil || full || !(balance >= c.unit) {
				return Action{}, false, err
			}
			return setMode(types.ApplianceBattery, dv.Battery, types.ModeStandby, c.unit)
		}},
		// Rule 6: upgrade the dishwasher from eco to standard.
		{6, func(balance float64) (Action, bool, error) {
			if dv.Dishwasher.GetMode() != types.ModeEco {
				return Action{}, false, nil
			}
			delta := c.dishwasherDelta(dv.Dishwasher.GetMode())
			if !(balance >= delta) {
				return Action{}, false, nil
			}
			return setMode(types.ApplianceDishwasher, dv.Dishwasher, types.ModeStandard, delta)
		}},
		// Rule 7: charge the battery.
		{7, func(balance float64) (Action, bool, error) {
			if dv.Battery.GetMode() == types.ModeConsuming {
				return Action{}, false, nil
			}
			full, err := c.batteryFull()
			if err != nil || full || !(balance >= c.unit) {
				return Action{}, false, err
			}
			return setMode(types.ApplianceBattery, dv.Battery, types.ModeConsuming, c.unit)
		}},
	}
}

func (c *Controller) resumeCompartment(id types.ApplianceID, d Device, balance float64) (Action, bool, error) {
	if !d.IsOverride() || d.GetMode() != types.ModeOn {
		return Action{}, false, nil
	}
	p, err := modePower(d)
	if err != nil || !(balance >= p) {
		return Action{}, false, err
	}
	return toggle(id, d, p)
}

// dishwasherDelta is the extra power of the standard program over eco, or 0
// while the dishwasher is off.
func (c *Controller) dishwasherDelta(m types.Mode) float64 {
	if m == types.ModeOff {
		return 0
	}
	return c.standardW - c.ecoW
}

// deficitRules are applied while the balance is negative, highest rank first.
// Whatever is left once none of them fires is the shortfall of the tick.
func (c *Controller) deficitRules() []rule {
	dv := c.devices
	return []rule{
		// Rule 1: stop charging the battery.
		{1, func(float64) (Action, bool, error) {
			if dv.Battery.GetMode() != types.ModeConsuming {
				return Action{}, false, nil
			}
			return setMode(types.ApplianceBattery, dv.Battery, types.ModeStandby, c.unit)
		}},
		// Rule 2: discharge the battery.
		{2, func(float64) (Action, bool, error) {
			if dv.Battery.GetMode() == types.ModeProducing {
				return Action{}, false, nil
			}
			capacity, err := dv.Battery.GetReading(types.ReadingCapacity)
			if err != nil || !(capacity > 0) {
				return Action{}, false, err
			}
			return setMode(types.ApplianceBattery, dv.Battery, types.ModeProducing, c.unit)
		}},
		// Rule 3: downgrade the dishwasher from standard to eco.
		{3, func(float64) (Action, bool, error) {
			m := dv.Dishwasher.GetMode()
			if m == types.ModeOff || dv.Dishwasher.IsOverride() || m != types.ModeStandard {
				return Action{}, false, nil
			}
			return setMode(types.ApplianceDishwasher, dv.Dishwasher, types.ModeEco, c.dishwasherDelta(m))
		}},
		// Rule 4: pause the dishwasher.
		{4, func(float64) (Action, bool, error) {
			return c.pause(types.ApplianceDishwasher, dv.Dishwasher)
		}},
		// Rule 5: pause the fridge.
		{5, func(float64) (Action, bool, error) {
			return c.pause(types.ApplianceFridge, dv.Fridge)
		}},
		// Rule 6: pause the freezer.
		{6, func(float64) (Action, bool, error) {
			return c.pause(types.ApplianceFreezer, dv.Freezer)
		}},
		// Rule 7: force the lamp off.
		{7, func(float64) (Action, bool, error) {
			if dv.Lamp.IsOverride() {
				return Action{}, false, nil
			}
			p, err := modePower(dv.Lamp)
			if err != nil {
				return Action{}, false, err
			}
			return toggle(types.ApplianceLamp, dv.Lamp, p)
		}},
	}
}

// pause overrides a device that is on, crediting its current consumption.
func (c *Controller) pause(id types.ApplianceID, d Device) (Action, bool, error) {
	if d.GetMode() == types.ModeOff || d.IsOverride() {
		return Action{}, false, nil
	}
	p, err := modePower(d)
	if err != nil {
		return Action{}, false, err
	}
	return toggle(id, d, p)
}

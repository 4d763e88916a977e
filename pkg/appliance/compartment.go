package appliance

import (
	"fmt"

	"github.com/raterudder/gridsim/pkg/types"
)

// Compartment is one cooled compartment of the fridge. Its temperature
// drifts toward the setpoint while cooling and toward ambient otherwise; the
// mode only flips once a hysteresis threshold is crossed.
type Compartment struct {
	cfg      types.Compartment
	ambient  float64
	doorRate float64

	mode types.Mode
	door types.DoorState
	temp float64
}

// NewCompartment returns an idle compartment halfway between its thresholds.
func NewCompartment(cfg types.Compartment, s types.Settings) *Compartment {
	return &Compartment{
		cfg:      cfg,
		ambient:  s.AmbientC,
		doorRate: s.DoorOpenRate,
		mode:     types.ModeOff,
		door:     types.DoorClosed,
		temp:     (cfg.LowerC + cfg.UpperC) / 2,
	}
}

func (c *Compartment) Mode() types.Mode { return c.mode }

func (c *Compartment) SetMode(m types.Mode) error {
	switch m {
	case types.ModeOn, types.ModeOff:
		c.mode = m
		return nil
	}
	return fmt.Errorf("%w: compartment cannot be %s", types.ErrInvalidMode, m)
}

func (c *Compartment) Power() float64 {
	if c.mode == types.ModeOn {
		return -c.cfg.PowerW
	}
	return 0
}

// Temperature returns the compartment temperature.
func (c *Compartment) Temperature() float64 { return c.temp }

func (c *Compartment) Apply(ev types.Event) bool {
	switch ev.Kind {
	case types.EventSwitchOn:
		return c.setMode(types.ModeOn)
	case types.EventSwitchOff:
		return c.setMode(types.ModeOff)
	case types.EventDoorOpen:
		return c.setDoor(types.DoorOpen)
	case types.EventDoorClose:
		return c.setDoor(types.DoorClosed)
	}
	return false
}

func (c *Compartment) setMode(m types.Mode) bool {
	changed := c.mode != m
	c.mode = m
	return changed
}

func (c *Compartment) setDoor(d types.DoorState) bool {
	changed := c.door != d
	c.door = d
	return changed
}

// Advance drifts the temperature and then checks the thresholds. An open door
// multiplies the drift rate by the door rate in either direction.
func (c *Compartment) Advance(frac float64, override bool) bool {
	cooling := c.mode == types.ModeOn && !override
	rate := c.cfg.WarmingRate
	if cooling {
		rate = c.cfg.CoolingRate
	}
	rate *= frac
	if c.door == types.DoorOpen {
		rate *= c.doorRate
	}
	if cooling {
		c.temp = max(c.temp-rate, c.cfg.SetpointC)
	} else {
		c.temp = min(c.temp+rate, c.ambient)
	}

	switch {
	case c.mode == types.ModeOn && c.temp <= c.cfg.LowerC:
		c.mode = types.ModeOff
		return true
	case c.mode == types.ModeOff && c.temp >= c.cfg.UpperC:
		c.mode = types.ModeOn
		return true
	}
	return false
}

func (c *Compartment) Readings() map[string]float64 {
	return map[string]float64{types.ReadingTemperature: c.temp}
}

func (c *Compartment) States() map[string]string {
	return map[string]string{types.StateDoor: string(c.door)}
}

func (c *Compartment) SetState(name, value string) error {
	if name != types.StateDoor {
		return fmt.Errorf("%w: %s", types.ErrUnknownState, name)
	}
	switch types.DoorState(value) {
	case types.DoorOpen, types.DoorClosed:
		c.door = types.DoorState(value)
		return nil
	}
	return fmt.Errorf("%w: door=%q", types.ErrInvalidState, value)
}

func (c *Compartment) Priority() *PriorityTable { return compartmentPriority }

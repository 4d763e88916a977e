package appliance

import (
	"fmt"

	"github.com/raterudder/gridsim/pkg/types"
)

// Dishwasher runs either the eco or the standard program while on.
type Dishwasher struct {
	settings types.Settings
	mode     types.Mode
}

// NewDishwasher returns a dishwasher that is off.
func NewDishwasher(s types.Settings) *Dishwasher {
	return &Dishwasher{settings: s, mode: types.ModeOff}
}

func (d *Dishwasher) Mode() types.Mode { return d.mode }

func (d *Dishwasher) SetMode(m types.Mode) error {
	switch m {
	case types.ModeOff, types.ModeEco, types.ModeStandard:
		d.mode = m
		return nil
	}
	return fmt.Errorf("%w: dishwasher cannot be %s", types.ErrInvalidMode, m)
}

func (d *Dishwasher) Power() float64 {
	return -d.settings.DishwasherPower(d.mode)
}

func (d *Dishwasher) Apply(ev types.Event) bool {
	from := d.mode
	switch ev.Kind {
	case types.EventSwitchOn:
		if from == types.ModeOff {
			// standard until the program is chosen
			d.mode = types.ModeStandard
		}
	case types.EventSetStandard:
		if from != types.ModeOff {
			d.mode = types.ModeStandard
		}
	case types.EventSetEco:
		if from != types.ModeOff {
			d.mode = types.ModeEco
		}
	case types.EventSwitchOff:
		d.mode = types.ModeOff
	}
	return d.mode != from
}

func (d *Dishwasher) Advance(float64, bool) bool { return false }

func (d *Dishwasher) Readings() map[string]float64 { return map[string]float64{} }

func (d *Dishwasher) States() map[string]string { return map[string]string{} }

func (d *Dishwasher) SetState(name, _ string) error {
	return fmt.Errorf("%w: %s", types.ErrUnknownState, name)
}

func (d *Dishwasher) Priority() *PriorityTable { return dishwasherPriority }

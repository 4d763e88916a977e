package appliance

import (
	"fmt"

	"github.com/raterudder/gridsim/pkg/types"
)

// Lamp has four intensities. Usage events move it one level at a time:
// off → high → low → medium → high → off.
type Lamp struct {
	settings types.Settings
	mode     types.Mode
}

// NewLamp returns a lamp that is off.
func NewLamp(s types.Settings) *Lamp {
	return &Lamp{settings: s, mode: types.ModeOff}
}

func (l *Lamp) Mode() types.Mode { return l.mode }

func (l *Lamp) SetMode(m types.Mode) error {
	switch m {
	case types.ModeOff, types.ModeLow, types.ModeMedium, types.ModeHigh:
		l.mode = m
		return nil
	}
	return fmt.Errorf("%w: lamp cannot be %s", types.ErrInvalidMode, m)
}

func (l *Lamp) Power() float64 {
	return -l.settings.LampPower(l.mode)
}

func (l *Lamp) Apply(ev types.Event) bool {
	from, to := l.mode, l.mode
	switch ev.Kind {
	case types.EventSwitchOn:
		if from == types.ModeOff {
			to = types.ModeHigh
		}
	case types.EventSetLow:
		if from == types.ModeHigh {
			to = types.ModeLow
		}
	case types.EventSetMedium:
		if from == types.ModeLow {
			to = types.ModeMedium
		}
	case types.EventSetHigh:
		if from == types.ModeMedium {
			to = types.ModeHigh
		}
	case types.EventSwitchOff:
		to = types.ModeOff
	}
	l.mode = to
	return to != from
}

func (l *Lamp) Advance(float64, bool) bool { return false }

func (l *Lamp) Readings() map[string]float64 { return map[string]float64{} }

func (l *Lamp) States() map[string]string { return map[string]string{} }

func (l *Lamp) SetState(name, _ string) error {
	return fmt.Errorf("%w: %s", types.ErrUnknownState, name)
}

func (l *Lamp) Priority() *PriorityTable { return lampPriority }

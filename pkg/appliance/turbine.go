package appliance

import (
	"fmt"

	"github.com/raterudder/gridsim/pkg/types"
	"github.com/raterudder/gridsim/pkg/wind"
)

// WindTurbine produces power from the wind speed. Its mode is derived from the
// cut-in and cut-out speeds and cannot be set.
type WindTurbine struct {
	turbine wind.Turbine
	speed   float64
	mode    types.Mode
}

// NewWindTurbine returns a turbine already facing the given wind speed.
func NewWindTurbine(s types.Settings, speed float64) *WindTurbine {
	w := &WindTurbine{
		turbine: wind.NewTurbine(s),
		mode:    types.ModeOff,
	}
	w.Apply(types.Event{Kind: types.EventWindChange, Speed: speed})
	return w
}

func (w *WindTurbine) Mode() types.Mode { return w.mode }

func (w *WindTurbine) SetMode(m types.Mode) error {
	return fmt.Errorf("%w: wind turbine mode follows the wind", types.ErrInvalidMode)
}

func (w *WindTurbine) Power() float64 {
	if w.mode != types.ModeOn {
		return 0
	}
	return w.turbine.Power(w.speed)
}

func (w *WindTurbine) Apply(ev types.Event) bool {
	if ev.Kind != types.EventWindChange {
		return false
	}
	from, fromSpeed := w.mode, w.speed
	w.speed = ev.Speed
	w.mode = types.ModeOff
	if w.turbine.Running(w.speed) {
		w.mode = types.ModeOn
	}
	return w.mode != from || w.speed != fromSpeed
}

func (w *WindTurbine) Advance(float64, bool) bool { return false }

func (w *WindTurbine) Readings() map[string]float64 {
	return map[string]float64{types.ReadingWindSpeed: w.speed}
}

func (w *WindTurbine) States() map[string]string { return map[string]string{} }

func (w *WindTurbine) SetState(name, _ string) error {
	return fmt.Errorf("%w: %s", types.ErrUnknownState, name)
}

func (w *WindTurbine) Priority() *PriorityTable { return turbinePriority }

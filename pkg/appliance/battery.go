package appliance

import (
	"fmt"

	"github.com/raterudder/gridsim/pkg/types"
)

// Battery stores energy in [0, max]. It moves one unit per tick in or out
// while consuming or producing and drops to standby when a bound is reached.
type Battery struct {
	unit        float64
	maxCapacity float64

	mode     types.Mode
	capacity float64
}

// NewBattery returns a battery in standby holding the initial capacity.
func NewBattery(s types.Settings) *Battery {
	return &Battery{
		unit:        s.BatteryUnit,
		maxCapacity: s.BatteryMaxCapacity,
		mode:        types.ModeStandby,
		capacity:    min(max(s.BatteryInitial, 0), s.BatteryMaxCapacity),
	}
}

func (b *Battery) Mode() types.Mode { return b.mode }

func (b *Battery) SetMode(m types.Mode) error {
	switch m {
	case types.ModeStandby, types.ModeConsuming, types.ModeProducing:
		b.mode = m
		return nil
	}
	return fmt.Errorf("%w: battery cannot be %s", types.ErrInvalidMode, m)
}

func (b *Battery) Power() float64 {
	switch b.mode {
	case types.ModeConsuming:
		return -b.unit
	case types.ModeProducing:
		return b.unit
	}
	return 0
}

// Capacity returns the stored energy.
func (b *Battery) Capacity() float64 { return b.capacity }

// Full reports whether the battery is at max capacity.
func (b *Battery) Full() bool { return b.capacity >= b.maxCapacity }

func (b *Battery) Apply(ev types.Event) bool {
	from := b.mode
	switch ev.Kind {
	case types.EventSwitchOn:
		b.mode = types.ModeConsuming
	case types.EventSwitchOff:
		b.mode = types.ModeStandby
	}
	return b.mode != from
}

// Advance moves energy in or out of the battery. Reaching either bound clamps
// the capacity and switches to standby within the same tick. An overridden
// battery transfers nothing.
func (b *Battery) Advance(frac float64, override bool) bool {
	if override {
		return false
	}
	switch b.mode {
	case types.ModeConsuming:
		b.capacity += b.unit * frac
		if b.capacity >= b.maxCapacity {
			b.capacity = b.maxCapacity
			b.mode = types.ModeStandby
			return true
		}
	case types.ModeProducing:
		b.capacity -= b.unit * frac
		if b.capacity <= 0 {
			b.capacity = 0
			b.mode = types.ModeStandby
			return true
		}
	}
	return false
}

func (b *Battery) Readings() map[string]float64 {
	return map[string]float64{types.ReadingCapacity: b.capacity}
}

func (b *Battery) States() map[string]string { return map[string]string{} }

func (b *Battery) SetState(name, _ string) error {
	return fmt.Errorf("%w: %s", types.ErrUnknownState, name)
}

func (b *Battery) Priority() *PriorityTable { return batteryPriority }

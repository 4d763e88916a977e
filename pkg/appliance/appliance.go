// Package appliance holds the hybrid state machines of the household
// devices: a discrete mode plus continuous quantities advanced once per tick.
package appliance

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/raterudder/gridsim/pkg/types"
)

// PowerListener receives the effective power of an appliance whenever it
// changes. Production is positive and consumption negative.
type PowerListener interface {
	OnPowerChanged(id types.ApplianceID, power float64)
}

// EventSource produces the next lifecycle event of an appliance.
type EventSource interface {
	Next(now time.Duration) types.Event
}

// Model is the device-specific part of an appliance.
type Model interface {
	Mode() types.Mode
	SetMode(types.Mode) error
	// Power is the signed power in the current mode ignoring the override.
	Power() float64
	// Apply applies a lifecycle event and reports whether the state changed.
	Apply(ev types.Event) bool
	// Advance moves the continuous state forward by frac ticks and reports
	// whether the mode changed.
	Advance(frac float64, override bool) bool
	Readings() map[string]float64
	States() map[string]string
	SetState(name, value string) error
	Priority() *PriorityTable
}

// Appliance wraps a Model with the state every device shares: the override
// flag, the pending events and the last reported power. All methods are safe
// for concurrent use and apply atomically.
type Appliance struct {
	id   types.ApplianceID
	tick time.Duration

	mu        sync.Mutex
	model     Model
	override  bool
	source    EventSource
	scheduled *types.Event
	injected  []types.Event
	reported  float64
	listener  PowerListener
}

// New returns an appliance. source may be nil for devices without a usage
// script. listener may be nil.
func New(id types.ApplianceID, model Model, source EventSource, tick time.Duration, listener PowerListener) *Appliance {
	return &Appliance{
		id:       id,
		tick:     tick,
		model:    model,
		source:   source,
		listener: listener,
	}
}

// ID returns the appliance id.
func (a *Appliance) ID() types.ApplianceID {
	return a.id
}

// Start draws the first generator event and reports the initial power.
func (a *Appliance) Start(now time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source != nil {
		ev := a.source.Next(now)
		a.scheduled = &ev
	}
	a.report(true)
}

// GetMode returns the current mode.
func (a *Appliance) GetMode() types.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model.Mode()
}

// SetMode switches the appliance to m.
func (a *Appliance) SetMode(m types.Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.model.SetMode(m); err != nil {
		return fmt.Errorf("%s: %w", a.id, err)
	}
	a.report(false)
	return nil
}

// IsOverride reports whether the appliance is forced off.
func (a *Appliance) IsOverride() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.override
}

// ToggleOverride flips the override flag without touching the mode.
func (a *Appliance) ToggleOverride() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.override = !a.override
	a.report(false)
}

// Power returns the signed power of the current mode ignoring the override.
func (a *Appliance) Power() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model.Power()
}

// EffectivePower returns the signed power actually drawn or produced.
func (a *Appliance) EffectivePower() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.effectivePower()
}

func (a *Appliance) effectivePower() float64 {
	if a.override {
		return 0
	}
	return a.model.Power()
}

// GetReading returns a numeric reading by name.
func (a *Appliance) GetReading(name string) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch name {
	case types.ReadingPower:
		return a.model.Power(), nil
	case types.ReadingEffectivePower:
		return a.effectivePower(), nil
	}
	if v, ok := a.model.Readings()[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %s on %s", types.ErrUnknownReading, name, a.id)
}

// GetState returns a discrete state by name.
func (a *Appliance) GetState(name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch name {
	case types.StateMode:
		return string(a.model.Mode()), nil
	case types.StateOverride:
		return strconv.FormatBool(a.override), nil
	}
	if v, ok := a.model.States()[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s on %s", types.ErrUnknownState, name, a.id)
}

// SetState sets a discrete state by name.
func (a *Appliance) SetState(name, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch name {
	case types.StateMode:
		if err := a.model.SetMode(types.Mode(value)); err != nil {
			return fmt.Errorf("%s: %w", a.id, err)
		}
	case types.StateOverride:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: override=%q", types.ErrInvalidState, value)
		}
		a.override = b
	default:
		if _, ok := a.model.States()[name]; !ok {
			return fmt.Errorf("%w: %s on %s", types.ErrUnknownState, name, a.id)
		}
		if err := a.model.SetState(name, value); err != nil {
			return fmt.Errorf("%s: %w", a.id, err)
		}
	}
	a.report(false)
	return nil
}

// Apply applies a single event immediately and reports whether the state
// changed.
func (a *Appliance) Apply(ev types.Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := a.model.Apply(ev)
	a.report(false)
	return changed
}

// CheckEvent returns ErrInvalidState when the appliance never applies events
// of kind k.
func (a *Appliance) CheckEvent(k types.EventKind) error {
	return a.model.Priority().check(a.id, k)
}

// Schedule adds an event to the pending set. It is applied by Deliver once
// the simulated clock reaches ev.At.
func (a *Appliance) Schedule(ev types.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.injected = append(a.injected, ev)
}

// NextEventAt returns the time of the nearest pending event.
func (a *Appliance) NextEventAt() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var at time.Duration
	found := false
	if a.scheduled != nil {
		at, found = a.scheduled.At, true
	}
	for _, ev := range a.injected {
		if !found || ev.At < at {
			at, found = ev.At, true
		}
	}
	return at, found
}

// Deliver applies every pending event effective at or before now, ordered by
// time and then by the device priority table. Generator events are refilled
// from the time the previous one fired so delays do not drift with the tick.
// It returns the applied events.
func (a *Appliance) Deliver(now time.Duration) []types.Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	var applied []types.Event
	for {
		var due []types.Event
		var fromSource *types.Event
		if a.scheduled != nil && a.scheduled.At <= now {
			fromSource = a.scheduled
			due = append(due, *a.scheduled)
			a.scheduled = nil
		}
		kept := a.injected[:0]
		for _, ev := range a.injected {
			if ev.At <= now {
				due = append(due, ev)
			} else {
				kept = append(kept, ev)
			}
		}
		a.injected = kept
		if len(due) == 0 {
			break
		}

		a.model.Priority().sortEvents(due)
		for _, ev := range due {
			a.model.Apply(ev)
			applied = append(applied, ev)
		}
		if fromSource != nil && a.source != nil {
			next := a.source.Next(fromSource.At)
			a.scheduled = &next
		}
	}
	if len(applied) > 0 {
		a.report(false)
	}
	return applied
}

// Advance moves the continuous state forward by elapsed simulated time.
func (a *Appliance) Advance(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	frac := float64(elapsed) / float64(a.tick)
	a.model.Advance(frac, a.override)
	a.report(false)
}

// Snapshot returns a read-only copy of the appliance state.
func (a *Appliance) Snapshot() types.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.Snapshot{
		ID:             a.id,
		Mode:           a.model.Mode(),
		Override:       a.override,
		Power:          a.model.Power(),
		EffectivePower: a.effectivePower(),
		Readings:       a.model.Readings(),
		States:         a.model.States(),
	}
}

// report notifies the listener when the effective power differs from the
// last reported value. Callers must hold mu.
func (a *Appliance) report(force bool) {
	p := a.effectivePower()
	if !force && p == a.reported {
		return
	}
	a.reported = p
	if a.listener != nil {
		a.listener.OnPowerChanged(a.id, p)
	}
}

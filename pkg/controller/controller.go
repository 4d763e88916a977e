// Package controller runs the demand-response cascade that rebalances the
// household every control tick.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/raterudder/gridsim/pkg/appliance"
	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/types"
)

// maxFirings bounds the number of rule firings in one control tick.
const maxFirings = 64

// Device is the synchronous interface the controller drives. It is satisfied
// by *appliance.Appliance.
type Device interface {
	GetMode() types.Mode
	SetMode(types.Mode) error
	IsOverride() bool
	ToggleOverride()
	GetReading(name string) (float64, error)
}

// Devices are the appliances the cascade may act on. The wind turbine is not
// controllable.
type Devices struct {
	Lamp       Device
	Fridge     Device
	Freezer    Device
	Dishwasher Device
	Battery    Device
}

// HouseholdDevices returns the controllable appliances of h.
func HouseholdDevices(h *appliance.Household) Devices {
	return Devices{
		Lamp:       h.MustGet(types.ApplianceLamp),
		Fridge:     h.MustGet(types.ApplianceFridge),
		Freezer:    h.MustGet(types.ApplianceFreezer),
		Dishwasher: h.MustGet(types.ApplianceDishwasher),
		Battery:    h.MustGet(types.ApplianceBattery),
	}
}

// EnergyMeter reports the signed energy balance of the household.
type EnergyMeter interface {
	AvailableEnergy() float64
}

// Branch is the side of the cascade that ran.
type Branch string

const (
	BranchBalanced Branch = "balanced"
	BranchSurplus  Branch = "surplus"
	BranchDeficit  Branch = "deficit"
)

// Action is one rule firing.
type Action struct {
	Rule      int               `json:"rule"`
	Appliance types.ApplianceID `json:"appliance"`
	Change    string            `json:"change"`
	// Amount is the power taken from a surplus or credited to a deficit.
	Amount float64 `json:"amount"`
}

func (a Action) String() string {
	return fmt.Sprintf("rule %d: %s %s (%.1f W)", a.Rule, a.Appliance, a.Change, a.Amount)
}

// Decision represents the result of one control tick.
type Decision struct {
	At        time.Duration `json:"at"`
	Branch    Branch        `json:"branch"`
	Available float64       `json:"available"`
	Actions   []Action      `json:"actions"`
	Remaining float64       `json:"remaining"`
	// Sold is the surplus left when no rule applies anymore and Shortfall the
	// uncovered deficit.
	Sold      float64 `json:"sold"`
	Shortfall float64 `json:"shortfall"`
	// Passes counts every pass over the rule list including the final one
	// where nothing fired.
	Passes      int    `json:"passes"`
	Truncated   bool   `json:"truncated,omitempty"`
	Explanation string `json:"explanation"`
}

// Controller handles the decision-making logic for the household.
type Controller struct {
	devices     Devices
	meter       EnergyMeter
	unit        float64
	maxCapacity float64
	ecoW        float64
	standardW   float64

	mu   sync.Mutex
	last *Decision
}

// NewController creates a new Controller.
func NewController(devices Devices, meter EnergyMeter, s types.Settings) *Controller {
	return &Controller{
		devices:     devices,
		meter:       meter,
		unit:        s.BatteryUnit,
		maxCapacity: s.BatteryMaxCapacity,
		ecoW:        s.DishwasherEcoW,
		standardW:   s.DishwasherStandardW,
	}
}

// rule returns the action it took and whether it fired.
type rule struct {
	n     int
	apply func(balance float64) (Action, bool, error)
}

// ControlTick reads the available energy and runs the surplus or deficit
// cascade until the balance is restored or no rule applies. Rules are always
// evaluated in rank order against the current device state, restarting from
// the first rule after every firing.
func (c *Controller) ControlTick(ctx context.Context, now time.Duration) (Decision, error) {
	available := c.meter.AvailableEnergy()
	ctx = log.WithAttrs(ctx, log.SimTime(now))
	log.Ctx(ctx).DebugContext(ctx, "control tick started", slog.Float64("available", available))

	d := Decision{
		At:        now,
		Branch:    BranchBalanced,
		Available: available,
		Remaining: available,
	}

	var (
		rules []rule
		sign  float64
		open  func(float64) bool
	)
	switch {
	case available > 0:
		d.Branch = BranchSurplus
		rules = c.surplusRules()
		sign = -1
		open = func(b float64) bool { return b > 0 }
	case available < 0:
		d.Branch = BranchDeficit
		rules = c.deficitRules()
		sign = 1
		open = func(b float64) bool { return b < 0 }
	default:
		d.Explanation = "Balanced. No action."
		c.setLast(d)
		return d, nil
	}

	balance := available
	for open(balance) {
		if len(d.Actions) >= maxFirings {
			d.Truncated = true
			log.Ctx(ctx).WarnContext(ctx, "cascade firing limit reached",
				slog.String("branch", string(d.Branch)),
				slog.Float64("balance", balance),
			)
			break
		}
		d.Passes++
		fired := false
		for _, r := range rules {
			a, ok, err := r.apply(balance)
			if err != nil {
				return d, fmt.Errorf("%s rule %d: %w", d.Branch, r.n, err)
			}
			if !ok {
				continue
			}
			a.Rule = r.n
			balance += sign * a.Amount
			d.Actions = append(d.Actions, a)
			log.Ctx(ctx).DebugContext(ctx, "cascade rule fired",
				slog.String("branch", string(d.Branch)),
				slog.Int("rule", a.Rule),
				slog.String("appliance", string(a.Appliance)),
				slog.String("change", a.Change),
				slog.Float64("amount", a.Amount),
				slog.Float64("balance", balance),
			)
			fired = true
			break
		}
		if !fired {
			break
		}
	}

	d.Remaining = balance
	switch {
	case balance > 0 && d.Branch == BranchSurplus:
		d.Sold = balance
	case balance < 0 && d.Branch == BranchDeficit:
		d.Shortfall = -balance
		log.Ctx(ctx).InfoContext(ctx, "deficit not fully covered", slog.Float64("shortfall", d.Shortfall))
	}
	d.Explanation = explain(d)
	c.setLast(d)
	return d, nil
}

// Last returns the most recent decision.
func (c *Controller) Last() (Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Decision{}, false
	}
	return *c.last, true
}

func (c *Controller) setLast(d Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &d
}

func explain(d Decision) string {
	var b strings.Builder
	switch d.Branch {
	case BranchSurplus:
		fmt.Fprintf(&b, "Surplus %.1f W.", d.Available)
	case BranchDeficit:
		fmt.Fprintf(&b, "Deficit %.1f W.", -d.Available)
	}
	for _, a := range d.Actions {
		b.WriteString(" ")
		b.WriteString(a.String())
		b.WriteString(".")
	}
	switch {
	case d.Sold > 0:
		fmt.Fprintf(&b, " Sold %.1f W.", d.Sold)
	case d.Shortfall > 0:
		fmt.Fprintf(&b, " Shortfall %.1f W.", d.Shortfall)
	default:
		b.WriteString(" Balanced.")
	}
	if d.Truncated {
		b.WriteString(" Stopped at firing limit.")
	}
	return b.String()
}

// modePower returns the magnitude of the power of the device's current mode
// regardless of its override.
func modePower(d Device) (float64, error) {
	p, err := d.GetReading(types.ReadingPower)
	if err != nil {
		return 0, err
	}
	return math.Abs(p), nil
}

func (c *Controller) batteryFull() (bool, error) {
	capacity, err := c.devices.Battery.GetReading(types.ReadingCapacity)
	if err != nil {
		return false, err
	}
	return capacity >= c.maxCapacity, nil
}

func toggle(id types.ApplianceID, d Device, amount float64) (Action, bool, error) {
	d.ToggleOverride()
	change := "override on"
	if !d.IsOverride() {
		change = "override off"
	}
	return Action{Appliance: id, Change: change, Amount: amount}, true, nil
}

func setMode(id types.ApplianceID, d Device, m types.Mode, amount float64) (Action, bool, error) {
	if err := d.SetMode(m); err != nil {
		return Action{}, false, err
	}
	return Action{Appliance: id, Change: "mode " + string(m), Amount: amount}, true, nil
}

package appliance

import (
	"fmt"
	"time"

	"github.com/raterudder/gridsim/pkg/stochastic"
	"github.com/raterudder/gridsim/pkg/types"
	"github.com/raterudder/gridsim/pkg/wind"
)

// Household holds one appliance per id.
type Household struct {
	appliances map[types.ApplianceID]*Appliance
}

// NewHousehold builds every appliance of the household from the settings.
// Each usage generator and the wind process get their own seed derived from
// seed.
func NewHousehold(s types.Settings, seed uint64, listener PowerListener) *Household {
	tick := s.Tick()
	gen := func(id types.ApplianceID, script []stochastic.Step, n uint64) EventSource {
		for _, k := range stochastic.Kinds(script) {
			if err := CheckEvent(id, k); err != nil {
				panic("appliance: usage script: " + err.Error())
			}
		}
		return stochastic.NewGenerator(id, script, s.BetaAlpha, s.BetaBeta, deriveSeed(seed, n))
	}
	gust := wind.NewProcess(s, deriveSeed(seed, 5))

	h := &Household{appliances: make(map[types.ApplianceID]*Appliance, len(types.ApplianceIDs))}
	h.add(New(types.ApplianceLamp, NewLamp(s), gen(types.ApplianceLamp, stochastic.LampScript(s.MeanDelays), 1), tick, listener))
	h.add(New(types.ApplianceFridge, NewCompartment(s.Fridge, s), gen(types.ApplianceFridge, stochastic.DoorScript(s.MeanDelays), 2), tick, listener))
	h.add(New(types.ApplianceFreezer, NewCompartment(s.Freezer, s), gen(types.ApplianceFreezer, stochastic.DoorScript(s.MeanDelays), 3), tick, listener))
	h.add(New(types.ApplianceDishwasher, NewDishwasher(s), gen(types.ApplianceDishwasher, stochastic.DishwasherScript(s.MeanDelays), 4), tick, listener))
	h.add(New(types.ApplianceBattery, NewBattery(s), nil, tick, listener))
	h.add(New(types.ApplianceWindTurbine, NewWindTurbine(s, gust.Speed()), gust, tick, listener))
	return h
}

// seedStride spreads the per-appliance seeds apart.
const seedStride uint64 = 0x9e3779b97f4a7c15

func deriveSeed(seed, n uint64) uint64 {
	return seed + n*seedStride
}

func (h *Household) add(a *Appliance) {
	h.appliances[a.ID()] = a
}

// Get returns the appliance with the given id.
func (h *Household) Get(id types.ApplianceID) (*Appliance, error) {
	if a, ok := h.appliances[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrUnknownAppliance, id)
}

// MustGet is Get for ids known at compile time.
func (h *Household) MustGet(id types.ApplianceID) *Appliance {
	a, err := h.Get(id)
	if err != nil {
		panic(err)
	}
	return a
}

// All returns the appliances in types.ApplianceIDs order.
func (h *Household) All() []*Appliance {
	all := make([]*Appliance, 0, len(h.appliances))
	for _, id := range types.ApplianceIDs {
		if a, ok := h.appliances[id]; ok {
			all = append(all, a)
		}
	}
	return all
}

// Start primes every appliance at now.
func (h *Household) Start(now time.Duration) {
	for _, a := range h.All() {
		a.Start(now)
	}
}

// Snapshot returns the state of every appliance.
func (h *Household) Snapshot() []types.Snapshot {
	all := h.All()
	snaps := make([]types.Snapshot, 0, len(all))
	for _, a := range all {
		snaps = append(snaps, a.Snapshot())
	}
	return snaps
}

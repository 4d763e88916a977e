// Package stochastic produces the lifecycle events of the household
// appliances from fixed cyclic usage scripts with beta-distributed delays.
package stochastic

import (
	"math/rand/v2"
	"time"

	"github.com/raterudder/gridsim/pkg/types"
	"gonum.org/v1/gonum/stat/distuv"
)

// Step is one step of a usage script. When more than one kind is listed the
// generator picks one uniformly at random.
type Step struct {
	Kinds []types.EventKind
	// MeanDelay is the mean wait in seconds before this step fires.
	MeanDelay float64
}

// Generator walks a cyclic usage script for one appliance. It is not safe for
// concurrent use; the owning appliance serializes access.
type Generator struct {
	appliance types.ApplianceID
	script    []Step
	pos       int
	rng       *rand.Rand
	beta      distuv.Beta
}

// NewGenerator returns a generator for the given script. The random source is
// seeded once here and never reseeded.
func NewGenerator(id types.ApplianceID, script []Step, alpha, beta float64, seed uint64) *Generator {
	if len(script) == 0 {
		panic("stochastic: empty usage script for " + string(id))
	}
	src := rand.NewPCG(seed, seed^uint64(len(id))<<32)
	return &Generator{
		appliance: id,
		script:    script,
		rng:       rand.New(src),
		beta: distuv.Beta{
			Alpha: alpha,
			Beta:  beta,
			Src:   src,
		},
	}
}

// Next returns the next event of the script scheduled relative to now and
// moves the script forward by one step.
func (g *Generator) Next(now time.Duration) types.Event {
	step := g.script[g.pos]
	g.pos = (g.pos + 1) % len(g.script)

	kind := step.Kinds[0]
	if len(step.Kinds) > 1 {
		kind = step.Kinds[g.rng.IntN(len(step.Kinds))]
	}
	return types.Event{
		Kind:      kind,
		Appliance: g.appliance,
		At:        now + g.Delay(step.MeanDelay),
	}
}

// Delay draws 2 × mean × Beta(alpha, beta) seconds. The beta sample is in
// [0, 1] so the delay never exceeds twice the mean. It is at least 1ns so
// the next event always lies after the one it follows.
func (g *Generator) Delay(mean float64) time.Duration {
	d := 2 * mean * g.beta.Rand()
	return max(time.Duration(d*float64(time.Second)), time.Nanosecond)
}

// LampScript cycles the lamp through every intensity before switching it off.
func LampScript(d types.MeanDelays) []Step {
	return []Step{
		{Kinds: []types.EventKind{types.EventSwitchOn}, MeanDelay: d.LampSwitchOn},
		{Kinds: []types.EventKind{types.EventSetLow}, MeanDelay: d.LampIntensity},
		{Kinds: []types.EventKind{types.EventSetMedium}, MeanDelay: d.LampIntensity},
		{Kinds: []types.EventKind{types.EventSetHigh}, MeanDelay: d.LampIntensity},
		{Kinds: []types.EventKind{types.EventSwitchOff}, MeanDelay: d.LampSwitchOff},
	}
}

// DoorScript opens and closes a compartment door.
func DoorScript(d types.MeanDelays) []Step {
	return []Step{
		{Kinds: []types.EventKind{types.EventDoorOpen}, MeanDelay: d.DoorOpen},
		{Kinds: []types.EventKind{types.EventDoorClose}, MeanDelay: d.DoorClose},
	}
}

// DishwasherScript starts the dishwasher, picks a program with a fair coin and
// switches it off at the end of the cycle.
func DishwasherScript(d types.MeanDelays) []Step {
	return []Step{
		{Kinds: []types.EventKind{types.EventSwitchOn}, MeanDelay: d.DishwasherStart},
		{Kinds: []types.EventKind{types.EventSetStandard, types.EventSetEco}, MeanDelay: d.DishwasherProgram},
		{Kinds: []types.EventKind{types.EventSwitchOff}, MeanDelay: d.DishwasherCycle},
	}
}

// Kinds returns every event kind a script can produce.
func Kinds(script []Step) []types.EventKind {
	seen := make(map[types.EventKind]bool)
	var kinds []types.EventKind
	for _, s := range script {
		for _, k := range s.Kinds {
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
	}
	return kinds
}

// Package wind models the wind speed seen by the turbine as a bounded random
// walk sampled at a fixed interval.
package wind

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/raterudder/gridsim/pkg/types"
)

// equalTolerance is how close u2 must be to the threshold for the speed to be
// left unchanged.
const equalTolerance = 1e-6

// Process is a bounded random walk on [0, MaxSpeed]. Reversion toward the
// middle emerges from the step direction threshold rather than a reversion
// coefficient.
type Process struct {
	maxSpeed   float64
	sample     time.Duration
	slopeScale float64
	speed      float64
	rng        *rand.Rand
}

// NewProcess returns a wind process seeded once with seed.
func NewProcess(s types.Settings, seed uint64) *Process {
	return &Process{
		maxSpeed:   s.WindMaxSpeed,
		sample:     s.WindSample(),
		slopeScale: s.WindSlopeScale,
		speed:      min(max(s.WindInitialSpeed, 0), s.WindMaxSpeed),
		rng:        rand.New(rand.NewPCG(seed, ^seed)),
	}
}

// Speed returns the current wind speed.
func (p *Process) Speed() float64 {
	return p.speed
}

// Advance moves the walk one step and returns the new speed along with the
// delay until the following step.
func (p *Process) Advance() (float64, time.Duration) {
	return p.step(p.rng.Float64(), p.rng.Float64())
}

// Next draws the next step and returns it as a wind change event for the
// turbine, effective once the step's delay has elapsed.
func (p *Process) Next(now time.Duration) types.Event {
	speed, delay := p.Advance()
	return types.Event{
		Kind:      types.EventWindChange,
		Appliance: types.ApplianceWindTurbine,
		At:        now + delay,
		Speed:     speed,
	}
}

func (p *Process) step(u1, u2 float64) (float64, time.Duration) {
	dt := p.sample.Seconds()
	e := -math.Log(1 - u1)
	q := e / dt * p.slopeScale
	threshold := (p.maxSpeed - p.speed) / p.maxSpeed

	if math.Abs(u2-threshold) < equalTolerance || q == 0 {
		return p.speed, p.sample
	}

	delay := p.sample
	if u2 < threshold {
		p.speed += q
		if p.speed > p.maxSpeed {
			p.speed = p.maxSpeed
			delay = p.clampedDelay(e, q)
		}
	} else {
		p.speed -= q
		if p.speed < 0 {
			p.speed = 0
			delay = p.clampedDelay(e, q)
		}
	}
	return p.speed, delay
}

// clampedDelay shortens the wait after the walk hits a bound. It never
// exceeds the nominal sample interval and is never zero.
func (p *Process) clampedDelay(e, q float64) time.Duration {
	d := time.Duration(e / q * float64(time.Second))
	return min(max(d, time.Nanosecond), p.sample)
}

// Turbine converts wind speed into turbine output.
type Turbine struct {
	CutIn      float64
	CutOut     float64
	RadiusM    float64
	AirDensity float64
}

// NewTurbine returns a turbine using the configured coefficients.
func NewTurbine(s types.Settings) Turbine {
	return Turbine{
		CutIn:      s.TurbineCutIn,
		CutOut:     s.TurbineCutOut,
		RadiusM:    s.TurbineRadiusM,
		AirDensity: s.AirDensity,
	}
}

// Running reports whether speed lies within [CutIn, CutOut].
func (t Turbine) Running(speed float64) bool {
	return speed >= t.CutIn && speed <= t.CutOut
}

// Power returns 0.5 × ρ × R² × π × v³ while running and 0 otherwise.
func (t Turbine) Power(speed float64) float64 {
	if !t.Running(speed) {
		return 0
	}
	return 0.5 * t.AirDensity * t.RadiusM * t.RadiusM * math.Pi * speed * speed * speed
}

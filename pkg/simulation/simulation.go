// Package simulation drives the household on a simulated clock: it delivers
// due events, advances the continuous state every tick and runs the
// controller once per control period.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/raterudder/gridsim/pkg/appliance"
	"github.com/raterudder/gridsim/pkg/controller"
	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/meter"
	"github.com/raterudder/gridsim/pkg/metrics"
	"github.com/raterudder/gridsim/pkg/telemetry"
	"github.com/raterudder/gridsim/pkg/types"
)

// Options are the optional sinks of a simulator.
type Options struct {
	Metrics   *metrics.Metrics
	Telemetry *telemetry.Publisher
}

// Simulator owns one household and its simulated clock. All mutation happens
// under one mutex so readers always see a consistent instant.
type Simulator struct {
	runID    string
	seed     uint64
	settings types.Settings
	tick     time.Duration
	period   time.Duration

	mu          sync.Mutex
	now         time.Duration
	nextControl time.Duration
	household   *appliance.Household
	meter       *meter.Meter
	controller  *controller.Controller
	stats       stats

	// clock mirrors now for listeners called while mu is held
	clock atomic.Int64

	metrics *metrics.Metrics
	stream  *telemetry.Stream
}

type stats struct {
	ticks       int
	events      int
	decisions   int
	ruleFirings map[string]int
	sold        float64
	shortfall   float64
	minBattery  float64
	maxBattery  float64
}

// New builds a simulator from validated settings. A zero seed in the
// settings seeds the generators from the clock.
func New(s types.Settings, opts Options) (*Simulator, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	seed := uint64(s.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	sim := &Simulator{
		runID:    uuid.NewString(),
		seed:     seed,
		settings: s,
		tick:     s.Tick(),
		period:   s.ControlPeriod(),
		metrics:  opts.Metrics,
	}
	sim.nextControl = sim.period

	var sinks fanout
	if opts.Metrics != nil {
		sinks = append(sinks, opts.Metrics)
	}
	if opts.Telemetry.Enabled() {
		sim.stream = opts.Telemetry.ForRun(sim.runID, func() time.Duration {
			return time.Duration(sim.clock.Load())
		})
		sinks = append(sinks, sim.stream)
	}
	var next appliance.PowerListener
	if len(sinks) > 0 {
		next = sinks
	}

	sim.meter = meter.New(next)
	sim.household = appliance.NewHousehold(s, seed, sim.meter)
	sim.controller = controller.NewController(controller.HouseholdDevices(sim.household), sim.meter, s)
	sim.household.Start(0)

	capacity := sim.batteryCapacity()
	sim.stats = stats{
		ruleFirings: make(map[string]int),
		minBattery:  capacity,
		maxBattery:  capacity,
	}
	return sim, nil
}

type fanout []appliance.PowerListener

func (f fanout) OnPowerChanged(id types.ApplianceID, power float64) {
	for _, l := range f {
		l.OnPowerChanged(id, power)
	}
}

// RunID returns the unique id of this run.
func (s *Simulator) RunID() string {
	return s.runID
}

// Seed returns the seed the generators were derived from.
func (s *Simulator) Seed() uint64 {
	return s.seed
}

// Settings returns the settings the simulator was built with.
func (s *Simulator) Settings() types.Settings {
	return s.settings
}

// Now returns the current simulated offset.
func (s *Simulator) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Household returns the appliances. Callers may use the appliance interface
// directly; each call is atomic for its appliance.
func (s *Simulator) Household() *appliance.Household {
	return s.household
}

// Meter returns the energy aggregator.
func (s *Simulator) Meter() *meter.Meter {
	return s.meter
}

// Controller returns the demand-response controller.
func (s *Simulator) Controller() *controller.Controller {
	return s.controller
}

// Inject schedules an event for its appliance. Events in the past are
// delivered on the next step.
func (s *Simulator) Inject(ev types.Event) error {
	a, err := s.household.Get(ev.Appliance)
	if err != nil {
		return err
	}
	if err := a.CheckEvent(ev.Kind); err != nil {
		return err
	}
	if ev.Kind == types.EventWindChange && (ev.Speed < 0 || ev.Speed > s.settings.WindMaxSpeed) {
		return fmt.Errorf("%w: wind speed %.2f outside [0, %.2f]", types.ErrInvalidState, ev.Speed, s.settings.WindMaxSpeed)
	}
	a.Schedule(ev)
	return nil
}

// Step advances the simulation by one tick and runs the controller if a
// control period elapsed. It returns the decision, if any.
func (s *Simulator) Step(ctx context.Context) (*controller.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(ctx)
}

func (s *Simulator) step(ctx context.Context) (*controller.Decision, error) {
	s.now += s.tick
	s.clock.Store(int64(s.now))

	for _, a := range s.household.All() {
		applied := a.Deliver(s.now)
		s.stats.events += len(applied)
		for _, ev := range applied {
			log.Ctx(ctx).DebugContext(ctx, "event applied",
				log.SimTime(ev.At),
				slog.String("appliance", string(a.ID())),
				slog.String("kind", ev.Kind.String()),
			)
		}
		a.Advance(s.tick)
	}
	s.stats.ticks++

	capacity := s.batteryCapacity()
	s.stats.minBattery = math.Min(s.stats.minBattery, capacity)
	s.stats.maxBattery = math.Max(s.stats.maxBattery, capacity)
	if s.metrics != nil {
		s.metrics.ObserveTick(capacity, s.windSpeed())
	}

	if s.now < s.nextControl {
		return nil, nil
	}
	s.nextControl += s.period

	d, err := s.controller.ControlTick(ctx, s.now)
	if err != nil {
		return nil, fmt.Errorf("control tick at %s: %w", s.now, err)
	}
	s.stats.decisions++
	s.stats.sold += d.Sold
	s.stats.shortfall += d.Shortfall
	for _, a := range d.Actions {
		s.stats.ruleFirings[fmt.Sprintf("%s/%d", d.Branch, a.Rule)]++
	}
	if s.metrics != nil {
		s.metrics.ObserveDecision(d)
	}
	if s.stream != nil {
		s.stream.PublishDecision(d)
	}
	return &d, nil
}

func (s *Simulator) batteryCapacity() float64 {
	v, _ := s.household.MustGet(types.ApplianceBattery).GetReading(types.ReadingCapacity)
	return v
}

func (s *Simulator) windSpeed() float64 {
	v, _ := s.household.MustGet(types.ApplianceWindTurbine).GetReading(types.ReadingWindSpeed)
	return v
}

// RunUntil steps until the simulated clock reaches end or ctx is done.
func (s *Simulator) RunUntil(ctx context.Context, end time.Duration) (Summary, error) {
	ctx = log.WithAttrs(ctx, slog.String("runID", s.runID))
	log.Ctx(ctx).InfoContext(ctx, "simulation started",
		slog.Uint64("seed", s.seed),
		slog.Duration("end", end),
	)

	s.mu.Lock()
	for s.now < end {
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return s.Summary(), err
		}
		if _, err := s.step(ctx); err != nil {
			s.mu.Unlock()
			return s.Summary(), err
		}
	}
	s.mu.Unlock()

	sum := s.Summary()
	log.Ctx(ctx).InfoContext(ctx, "simulation finished",
		slog.Int("ticks", sum.Ticks),
		slog.Int("decisions", sum.Decisions),
		slog.Float64("sold", sum.Sold),
		slog.Float64("shortfall", sum.Shortfall),
	)
	return sum, nil
}

// Live advances one tick every tick/speed of wall time until ctx is done.
func (s *Simulator) Live(ctx context.Context, speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be positive: %v", speed)
	}
	interval := time.Duration(float64(s.tick) / speed)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	ctx = log.WithAttrs(ctx, slog.String("runID", s.runID))
	log.Ctx(ctx).InfoContext(ctx, "live simulation started",
		slog.Float64("speed", speed),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "live simulation stopped", log.SimTime(s.Now()))
			return nil
		case <-ticker.C:
			if _, err := s.Step(ctx); err != nil {
				return err
			}
		}
	}
}

package simulation

import (
	"time"

	"github.com/raterudder/gridsim/pkg/meter"
	"github.com/raterudder/gridsim/pkg/types"
)

// Summary describes a finished or interrupted run.
type Summary struct {
	RunID     string        `json:"runId"`
	Seed      uint64        `json:"seed"`
	Simulated time.Duration `json:"simulated"`
	Ticks     int           `json:"ticks"`
	Events    int           `json:"events"`
	Decisions int           `json:"decisions"`
	// RuleFirings counts firings by "branch/rule".
	RuleFirings map[string]int   `json:"ruleFirings"`
	Sold        float64          `json:"sold"`
	Shortfall   float64          `json:"shortfall"`
	MinBattery  float64          `json:"minBattery"`
	MaxBattery  float64          `json:"maxBattery"`
	Meter       meter.Reading    `json:"meter"`
	Appliances  []types.Snapshot `json:"appliances"`
}

// Summary returns the statistics gathered so far.
func (s *Simulator) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	firings := make(map[string]int, len(s.stats.ruleFirings))
	for k, v := range s.stats.ruleFirings {
		firings[k] = v
	}
	return Summary{
		RunID:       s.runID,
		Seed:        s.seed,
		Simulated:   s.now,
		Ticks:       s.stats.ticks,
		Events:      s.stats.events,
		Decisions:   s.stats.decisions,
		RuleFirings: firings,
		Sold:        s.stats.sold,
		Shortfall:   s.stats.shortfall,
		MinBattery:  s.stats.minBattery,
		MaxBattery:  s.stats.maxBattery,
		Meter:       s.meter.Read(),
		Appliances:  s.household.Snapshot(),
	}
}

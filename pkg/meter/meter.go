// Package meter aggregates the signed power of every appliance into the
// household's production, consumption and available energy.
package meter

import (
	"sync"

	"github.com/raterudder/gridsim/pkg/appliance"
	"github.com/raterudder/gridsim/pkg/types"
)

// Meter keeps the last reported contribution of each appliance. It keeps no
// history.
type Meter struct {
	mu            sync.Mutex
	contributions map[types.ApplianceID]float64
	production    float64
	consumption   float64
	next          appliance.PowerListener
}

// New returns an empty meter. next, if not nil, receives every notification
// after the meter has recorded it.
func New(next appliance.PowerListener) *Meter {
	return &Meter{
		contributions: make(map[types.ApplianceID]float64),
		next:          next,
	}
}

// OnPowerChanged replaces the contribution of id. Positive values count as
// production and negative values as consumption.
func (m *Meter) OnPowerChanged(id types.ApplianceID, power float64) {
	m.mu.Lock()
	prev := m.contributions[id]
	m.remove(prev)
	m.add(power)
	m.contributions[id] = power
	m.mu.Unlock()

	if m.next != nil {
		m.next.OnPowerChanged(id, power)
	}
}

func (m *Meter) remove(p float64) {
	if p > 0 {
		m.production -= p
	} else {
		m.consumption += p
	}
}

func (m *Meter) add(p float64) {
	if p > 0 {
		m.production += p
	} else {
		m.consumption -= p
	}
}

// Production returns the total power currently produced.
func (m *Meter) Production() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.production
}

// Consumption returns the total power currently consumed as a positive value.
func (m *Meter) Consumption() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumption
}

// AvailableEnergy returns production minus consumption. A positive value is a
// surplus and a negative value a deficit.
func (m *Meter) AvailableEnergy() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.production - m.consumption
}

// Contribution returns the last reported power of id.
func (m *Meter) Contribution(id types.ApplianceID) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contributions[id]
}

// Reading is a point-in-time view of the meter.
type Reading struct {
	Available     float64                       `json:"available"`
	Production    float64                       `json:"production"`
	Consumption   float64                       `json:"consumption"`
	Contributions map[types.ApplianceID]float64 `json:"contributions"`
}

// Read returns a consistent view of every total.
func (m *Meter) Read() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := make(map[types.ApplianceID]float64, len(m.contributions))
	for id, p := range m.contributions {
		c[id] = p
	}
	return Reading{
		Available:     m.production - m.consumption,
		Production:    m.production,
		Consumption:   m.consumption,
		Contributions: c,
	}
}

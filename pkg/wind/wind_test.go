package wind

import (
	"math"
	"testing"
	"time"

	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessStaysBounded(t *testing.T) {
	s := types.DefaultSettings()
	s.WindSlopeScale = 8
	s.WindInitialSpeed = s.WindMaxSpeed
	p := NewProcess(s, 1)

	for i := 0; i < 200000; i++ {
		v, d := p.Advance()
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, s.WindMaxSpeed)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, s.WindSample())
	}
}

func TestProcessStep(t *testing.T) {
	s := types.DefaultSettings()
	s.WindMaxSpeed = 20
	s.WindSampleSeconds = 10
	s.WindSlopeScale = 1

	t.Run("threshold equal leaves speed unchanged", func(t *testing.T) {
		s.WindInitialSpeed = 10
		p := NewProcess(s, 1)
		v, d := p.step(0.5, 0.5) // threshold = (20-10)/20 = 0.5
		assert.Equal(t, 10.0, v)
		assert.Equal(t, 10*time.Second, d)
	})

	t.Run("below threshold increases", func(t *testing.T) {
		s.WindInitialSpeed = 10
		p := NewProcess(s, 1)
		u1 := 1 - math.Exp(-5) // q = 5/10 = 0.5
		v, d := p.step(u1, 0.1)
		assert.InDelta(t, 10.5, v, 1e-9)
		assert.Equal(t, 10*time.Second, d)
	})

	t.Run("above threshold decreases", func(t *testing.T) {
		s.WindInitialSpeed = 10
		p := NewProcess(s, 1)
		u1 := 1 - math.Exp(-5)
		v, _ := p.step(u1, 0.9)
		assert.InDelta(t, 9.5, v, 1e-9)
	})

	t.Run("clamped at max with shorter delay", func(t *testing.T) {
		s.WindInitialSpeed = 19.9
		s.WindSlopeScale = 4
		p := NewProcess(s, 1)
		u1 := 1 - math.Exp(-5) // q = 5/10*4 = 2, -ln(1-u1)/q = 2.5s
		v, d := p.step(u1, 0)
		assert.Equal(t, 20.0, v)
		assert.InDelta(t, 2.5, d.Seconds(), 1e-6)
	})

	t.Run("clamped at zero", func(t *testing.T) {
		s.WindInitialSpeed = 0.1
		s.WindSlopeScale = 1
		p := NewProcess(s, 1)
		u1 := 1 - math.Exp(-5)
		v, d := p.step(u1, 0.9999)
		assert.Equal(t, 0.0, v)
		assert.LessOrEqual(t, d, 10*time.Second)
	})
}

func TestTurbinePower(t *testing.T) {
	tb := Turbine{CutIn: 3, CutOut: 20, RadiusM: 1.5, AirDensity: 1.225}

	assert.Zero(t, tb.Power(2.9))
	assert.Zero(t, tb.Power(20.1))
	assert.False(t, tb.Running(0))

	want := 0.5 * 1.225 * 1.5 * 1.5 * math.Pi * 1000
	assert.InDelta(t, want, tb.Power(10), 1e-9)
	assert.True(t, tb.Running(3))
	assert.True(t, tb.Running(20))
	assert.Greater(t, tb.Power(20), tb.Power(3))
}

func TestProcessNext(t *testing.T) {
	p := NewProcess(types.DefaultSettings(), 5)
	now := 30 * time.Second
	for i := 0; i < 100; i++ {
		ev := p.Next(now)
		assert.Equal(t, types.EventWindChange, ev.Kind)
		assert.Equal(t, types.ApplianceWindTurbine, ev.Appliance)
		assert.Greater(t, ev.At, now)
		assert.Equal(t, p.Speed(), ev.Speed)
		now = ev.At
	}
}

package appliance

import (
	"time"

	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/mock"
)

type mockListener struct {
	mock.Mock
}

func (m *mockListener) OnPowerChanged(id types.ApplianceID, power float64) {
	m.Called(id, power)
}

// fixedSource replays kinds at a fixed interval.
type fixedSource struct {
	id       types.ApplianceID
	kinds    []types.EventKind
	interval time.Duration
	pos      int
}

func (f *fixedSource) Next(now time.Duration) types.Event {
	k := f.kinds[f.pos%len(f.kinds)]
	f.pos++
	return types.Event{Kind: k, Appliance: f.id, At: now + f.interval}
}

package controller

import (
	"log/slog"

	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/mock"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

type mockDevice struct {
	mock.Mock
}

func (m *mockDevice) GetMode() types.Mode {
	return m.Called().Get(0).(types.Mode)
}

func (m *mockDevice) SetMode(mode types.Mode) error {
	return m.Called(mode).Error(0)
}

func (m *mockDevice) IsOverride() bool {
	return m.Called().Bool(0)
}

func (m *mockDevice) ToggleOverride() {
	m.Called()
}

func (m *mockDevice) GetReading(name string) (float64, error) {
	args := m.Called(name)
	return args.Get(0).(float64), args.Error(1)
}

type fixedMeter float64

func (f fixedMeter) AvailableEnergy() float64 {
	return float64(f)
}

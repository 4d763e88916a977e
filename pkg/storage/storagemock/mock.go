package storagemock

import (
	"context"

	"github.com/raterudder/gridsim/pkg/storage"
	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context, profile string) (types.Settings, int, error) {
	args := m.Called(ctx, profile)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, profile string, settings types.Settings, version int) error {
	args := m.Called(ctx, profile, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) ListProfiles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		if p, ok := args.Get(0).([]string); ok {
			return p, args.Error(1)
		}
		return nil, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	if len(args) > 0 {
		return args.Error(0)
	}
	return nil
}

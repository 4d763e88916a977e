package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/raterudder/gridsim/pkg/types"
)

type memoryProfile struct {
	settings types.Settings
	version  int
}

// MemoryProvider keeps profiles in process memory. It is used for local runs
// and batch simulations that do not need Firestore.
type MemoryProvider struct {
	mu       sync.Mutex
	profiles map[string]memoryProfile
}

// NewMemory returns an empty MemoryProvider.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{profiles: make(map[string]memoryProfile)}
}

func (m *MemoryProvider) GetSettings(_ context.Context, profile string) (types.Settings, int, error) {
	if profile == "" {
		return types.Settings{}, 0, ErrEmptyProfile
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[profile]
	return p.settings, p.version, nil
}

func (m *MemoryProvider) SetSettings(_ context.Context, profile string, settings types.Settings, version int) error {
	if profile == "" {
		return ErrEmptyProfile
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile] = memoryProfile{settings: settings, version: version}
	return nil
}

func (m *MemoryProvider) ListProfiles(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profiles := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		profiles = append(profiles, id)
	}
	sort.Strings(profiles)
	return profiles, nil
}

func (m *MemoryProvider) Close() error {
	return nil
}

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/raterudder/gridsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProvider(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	got, version, err := m.GetSettings(ctx, types.ProfileDefault)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.Equal(t, types.Settings{}, got)

	s := types.DefaultSettings()
	s.WindMaxSpeed = 30
	require.NoError(t, m.SetSettings(ctx, "gusty", s, types.CurrentSettingsVersion))
	require.NoError(t, m.SetSettings(ctx, "b", s, 1))

	got, version, err = m.GetSettings(ctx, "gusty")
	require.NoError(t, err)
	assert.Equal(t, types.CurrentSettingsVersion, version)
	assert.Equal(t, 30.0, got.WindMaxSpeed)

	profiles, err := m.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "gusty"}, profiles)

	_, _, err = m.GetSettings(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyProfile)
}

type failingDB struct {
	*MemoryProvider
}

func (failingDB) SetSettings(context.Context, string, types.Settings, int) error {
	return errors.New("read only")
}

func TestLoadSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("missing profile gets defaults without a write", func(t *testing.T) {
		db := failingDB{NewMemory()}
		s, err := LoadSettings(ctx, db, "new")
		require.NoError(t, err)
		assert.Equal(t, types.DefaultSettings(), s)
	})

	t.Run("old profile is migrated and saved", func(t *testing.T) {
		db := NewMemory()
		require.NoError(t, db.SetSettings(ctx, "old", types.Settings{LampHighW: 90}, 1))

		s, err := LoadSettings(ctx, db, "old")
		require.NoError(t, err)
		assert.Equal(t, 90.0, s.LampHighW)
		assert.Equal(t, 1.75, s.BetaBeta)

		_, version, err := db.GetSettings(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, types.CurrentSettingsVersion, version)
	})

	t.Run("save failure is returned", func(t *testing.T) {
		db := failingDB{NewMemory()}
		require.NoError(t, db.MemoryProvider.SetSettings(ctx, "old", types.Settings{}, 1))
		_, err := LoadSettings(ctx, db, "old")
		assert.ErrorContains(t, err, "failed to save migrated settings")
	})
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridsim/pkg/types"
)

var (
	ErrEmptyProfile = errors.New("profile cannot be empty")
)

// Database defines the interface for persisting settings profiles.
type Database interface {
	// GetSettings returns the settings stored for profile and their version.
	// A missing profile returns zero settings and version 0 so the caller can
	// migrate them to the defaults.
	GetSettings(ctx context.Context, profile string) (types.Settings, int, error)
	SetSettings(ctx context.Context, profile string, settings types.Settings, version int) error
	ListProfiles(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "memory", "Storage provider to use (available: firestore, memory)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// LoadSettings returns the settings of profile migrated to the current
// version. Migrated settings are written back so the migration only runs once.
func LoadSettings(ctx context.Context, db Database, profile string) (types.Settings, error) {
	s, version, err := db.GetSettings(ctx, profile)
	if err != nil {
		return types.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	s, changed, err := types.MigrateSettings(s, version)
	if err != nil {
		return types.Settings{}, fmt.Errorf("failed to migrate settings: %w", err)
	}
	if changed && version > 0 {
		if err := db.SetSettings(ctx, profile, s, types.CurrentSettingsVersion); err != nil {
			return types.Settings{}, fmt.Errorf("failed to save migrated settings: %w", err)
		}
	}
	return s, nil
}

// Command seed writes a set of example settings profiles, by default into the
// local Firestore emulator:
//
//	seed --storage-provider=firestore --firestore-project-id=gridsim-dev
package main

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/storage"
	"github.com/raterudder/gridsim/pkg/types"
)

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding settings profiles")

	profiles := exampleProfiles()
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		settings := profiles[name]
		if err := settings.Validate(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "invalid profile", slog.String("profile", name), slog.Any("error", err))
			os.Exit(1)
		}
		if err := s.SetSettings(ctx, name, settings, types.CurrentSettingsVersion); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed profile", slog.String("profile", name), slog.Any("error", err))
			os.Exit(1)
		}
		log.Ctx(ctx).InfoContext(ctx, "seeded profile", slog.String("profile", name))
	}

	stored, err := s.ListProfiles(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list profiles", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "seeded profiles successfully", slog.Any("profiles", stored))
}

// exampleProfiles returns households that push the controller into
// different regimes.
func exampleProfiles() map[string]types.Settings {
	def := types.DefaultSettings()

	// strong wind mostly runs in surplus
	windy := def
	windy.WindInitialSpeed = 14
	windy.WindSlopeScale = 2

	// weak wind leans on the battery and load shedding
	calm := def
	calm.WindMaxSpeed = 8
	calm.WindInitialSpeed = 1

	// busy household: everything is used twice as often
	busy := def
	busy.MeanDelays.LampSwitchOn /= 2
	busy.MeanDelays.DoorOpen /= 2
	busy.MeanDelays.DishwasherStart /= 2

	// a small battery reaches both bounds quickly
	smallBattery := def
	smallBattery.BatteryMaxCapacity = 2000
	smallBattery.BatteryInitial = 1000

	return map[string]types.Settings{
		types.ProfileDefault: def,
		"windy":              windy,
		"calm":               calm,
		"busy":               busy,
		"small-battery":      smallBattery,
	}
}

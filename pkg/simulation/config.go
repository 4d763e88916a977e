package simulation

import (
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridsim/pkg/types"
)

// Config selects what to simulate and how fast.
type Config struct {
	// Profile is the settings profile loaded from storage.
	Profile string
	// Seed overrides the profile's seed when non-zero.
	Seed int64
	// Speed is the number of simulated seconds per wall-clock second in live
	// mode.
	Speed float64
	// RunUntil switches to batch mode: simulate until this offset, print the
	// summary and exit.
	RunUntil time.Duration
	// Scenario is a scenario file run in batch mode.
	Scenario string
}

// Configured registers the simulation flags.
func Configured() *Config {
	cfg := &Config{}

	profile := lflag.String("settings-profile", types.ProfileDefault, "settings profile to simulate")
	var seed int64
	lflag.JSON(&seed, "sim-seed", seed, "seed for the stochastic generators (0 keeps the profile's seed)")
	speed := 1.0
	lflag.JSON(&speed, "sim-speed", speed, "simulated seconds per real second in live mode")
	runUntil := lflag.Duration("run-until", 0, "run a batch simulation until this simulated offset and exit")
	scenario := lflag.String("scenario", "", "path to a scenario YAML file to run in batch mode")

	lflag.Do(func() {
		cfg.Profile = *profile
		cfg.Seed = seed
		cfg.Speed = speed
		cfg.RunUntil = *runUntil
		cfg.Scenario = *scenario
		if cfg.Speed <= 0 {
			panic("sim-speed must be positive")
		}
		if cfg.RunUntil < 0 {
			panic("run-until cannot be negative")
		}
	})

	return cfg
}

// Batch reports whether the config asks for a batch run instead of a live
// server.
func (c *Config) Batch() bool {
	return c.RunUntil > 0 || c.Scenario != ""
}

// WithSeed applies the seed override to s.
func (c *Config) WithSeed(s types.Settings) types.Settings {
	if c.Seed != 0 {
		s.Seed = c.Seed
	}
	return s
}

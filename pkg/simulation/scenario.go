package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/raterudder/gridsim/pkg/appliance"
	"github.com/raterudder/gridsim/pkg/types"
	"gopkg.in/yaml.v3"
)

// Scenario is a batch run described in YAML:
//
//	name: windy evening
//	profile: default
//	duration: 6h
//	settings:
//	  seed: 42
//	  windInitialSpeed: 12
//	events:
//	  - {kind: switchOn, appliance: dishwasher, at: 30m}
//	  - {kind: windChange, appliance: windTurbine, at: 1h, speed: 2}
//
// Settings keys use the JSON names of types.Settings and override the
// profile's values.
type Scenario struct {
	Name     string         `yaml:"name"`
	Profile  string         `yaml:"profile"`
	Duration time.Duration  `yaml:"duration"`
	Settings map[string]any `yaml:"settings"`
	Events   []types.Event  `yaml:"events"`
}

// LoadScenario decodes a scenario. Unknown keys are rejected.
func LoadScenario(r io.Reader) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if sc.Duration <= 0 {
		return Scenario{}, fmt.Errorf("scenario duration must be positive")
	}
	for i, ev := range sc.Events {
		if err := appliance.CheckEvent(ev.Appliance, ev.Kind); err != nil {
			return Scenario{}, fmt.Errorf("event %d: %w", i, err)
		}
		if ev.At < 0 || ev.At > sc.Duration {
			return Scenario{}, fmt.Errorf("event %d: at %s outside the scenario", i, ev.At)
		}
	}
	if sc.Profile == "" {
		sc.Profile = types.ProfileDefault
	}
	return sc, nil
}

// LoadScenarioFile reads a scenario from path.
func LoadScenarioFile(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, err
	}
	defer f.Close()
	return LoadScenario(f)
}

// Apply returns base with the scenario overrides applied.
func (sc Scenario) Apply(base types.Settings) (types.Settings, error) {
	if len(sc.Settings) == 0 {
		return base, nil
	}
	b, err := json.Marshal(sc.Settings)
	if err != nil {
		return types.Settings{}, fmt.Errorf("failed to encode settings overrides: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	s := base
	if err := dec.Decode(&s); err != nil {
		return types.Settings{}, fmt.Errorf("invalid settings overrides: %w", err)
	}
	return s, nil
}

// Run builds a simulator for the scenario, injects its events and runs it to
// the end.
func (sc Scenario) Run(ctx context.Context, base types.Settings, opts Options) (Summary, error) {
	s, err := sc.Apply(base)
	if err != nil {
		return Summary{}, err
	}
	sim, err := New(s, opts)
	if err != nil {
		return Summary{}, err
	}
	for _, ev := range sc.Events {
		if err := sim.Inject(ev); err != nil {
			return Summary{}, err
		}
	}
	return sim.RunUntil(ctx, sc.Duration)
}

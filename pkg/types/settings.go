package types

import (
	"errors"
	"fmt"
	"time"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 2

// ProfileDefault is the settings profile used when none is requested.
const ProfileDefault = "default"

// Settings holds every tunable of the simulation. They are stored per profile
// and can be changed without redeploying.
type Settings struct {
	// Seed for the stochastic generators. 0 means seed from the clock.
	Seed int64 `json:"seed"`

	// Length of one continuous-advance tick and of the controller period.
	TickSeconds          float64 `json:"tickSeconds"`
	ControlPeriodSeconds float64 `json:"controlPeriodSeconds"`

	// Lamp power per mode (W)
	LampLowW    float64 `json:"lampLowW"`
	LampMediumW float64 `json:"lampMediumW"`
	LampHighW   float64 `json:"lampHighW"`

	// Fridge and freezer compartments
	AmbientC     float64     `json:"ambientC"`
	Fridge       Compartment `json:"fridge"`
	Freezer      Compartment `json:"freezer"`
	DoorOpenRate float64     `json:"doorOpenRate"`

	// Dishwasher power per program (W)
	DishwasherEcoW      float64 `json:"dishwasherEcoW"`
	DishwasherStandardW float64 `json:"dishwasherStandardW"`

	// Battery. BatteryUnit is moved in or out of the battery every tick
	// and is also its power draw/output while consuming/producing.
	BatteryUnit        float64 `json:"batteryUnit"`
	BatteryMaxCapacity float64 `json:"batteryMaxCapacity"`
	BatteryInitial     float64 `json:"batteryInitial"`

	// Wind process and turbine
	WindMaxSpeed      float64 `json:"windMaxSpeed"`
	WindInitialSpeed  float64 `json:"windInitialSpeed"`
	WindSampleSeconds float64 `json:"windSampleSeconds"`
	WindSlopeScale    float64 `json:"windSlopeScale"`
	TurbineCutIn      float64 `json:"turbineCutIn"`
	TurbineCutOut     float64 `json:"turbineCutOut"`
	TurbineRadiusM    float64 `json:"turbineRadiusM"`
	AirDensity        float64 `json:"airDensity"`

	// Mean delays (seconds) of the usage scripts
	MeanDelays MeanDelays `json:"meanDelays"`

	// Beta distribution shape used for every usage delay.
	BetaAlpha float64 `json:"betaAlpha"`
	BetaBeta  float64 `json:"betaBeta"`
}

// Compartment holds the thermal tunables of one fridge compartment.
type Compartment struct {
	PowerW    float64 `json:"powerW"`
	SetpointC float64 `json:"setpointC"`
	// the compartment switches off once it cools to LowerC and back on once it
	// warms to UpperC
	LowerC float64 `json:"lowerC"`
	UpperC float64 `json:"upperC"`
	// drift per tick toward the setpoint (cooling) and toward ambient (warming)
	CoolingRate float64 `json:"coolingRate"`
	WarmingRate float64 `json:"warmingRate"`
}

// MeanDelays are the mean delays in seconds between consecutive steps of each
// usage script.
type MeanDelays struct {
	LampSwitchOn      float64 `json:"lampSwitchOn"`
	LampIntensity     float64 `json:"lampIntensity"`
	LampSwitchOff     float64 `json:"lampSwitchOff"`
	DoorOpen          float64 `json:"doorOpen"`
	DoorClose         float64 `json:"doorClose"`
	DishwasherStart   float64 `json:"dishwasherStart"`
	DishwasherProgram float64 `json:"dishwasherProgram"`
	DishwasherCycle   float64 `json:"dishwasherCycle"`
}

type namedDelay struct {
	name string
	mean float64
}

func (d MeanDelays) named() []namedDelay {
	return []namedDelay{
		{"lampSwitchOn", d.LampSwitchOn},
		{"lampIntensity", d.LampIntensity},
		{"lampSwitchOff", d.LampSwitchOff},
		{"doorOpen", d.DoorOpen},
		{"doorClose", d.DoorClose},
		{"dishwasherStart", d.DishwasherStart},
		{"dishwasherProgram", d.DishwasherProgram},
		{"dishwasherCycle", d.DishwasherCycle},
	}
}

// Tick returns the continuous-advance tick as a duration.
func (s Settings) Tick() time.Duration {
	return seconds(s.TickSeconds)
}

// ControlPeriod returns the controller period as a duration.
func (s Settings) ControlPeriod() time.Duration {
	return seconds(s.ControlPeriodSeconds)
}

// WindSample returns the nominal wind sampling interval.
func (s Settings) WindSample() time.Duration {
	return seconds(s.WindSampleSeconds)
}

// minInterval is the shortest tick, control period, wind step or mean usage
// delay the settings accept. Shorter intervals round down to instants that
// never move the clock forward.
const minInterval = time.Millisecond

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// LampPower returns the power draw of the lamp in the given mode.
func (s Settings) LampPower(m Mode) float64 {
	switch m {
	case ModeLow:
		return s.LampLowW
	case ModeMedium:
		return s.LampMediumW
	case ModeHigh:
		return s.LampHighW
	default:
		return 0
	}
}

// DishwasherPower returns the power draw of the dishwasher in the given mode.
func (s Settings) DishwasherPower(m Mode) float64 {
	switch m {
	case ModeEco:
		return s.DishwasherEcoW
	case ModeStandard:
		return s.DishwasherStandardW
	default:
		return 0
	}
}

// DefaultSettings returns the settings used for a fresh profile.
func DefaultSettings() Settings {
	s, _, _ := MigrateSettings(Settings{}, 0)
	return s
}

// Validate checks that the tunables are consistent with each other.
func (s Settings) Validate() error {
	var errs []error
	if s.Tick() <= 0 {
		errs = append(errs, errors.New("tick must be positive"))
	} else if s.Tick() < minInterval {
		errs = append(errs, fmt.Errorf("tick must be at least %s", minInterval))
	}
	if s.ControlPeriod() < minInterval {
		errs = append(errs, fmt.Errorf("control period must be at least %s", minInterval))
	}
	if s.LampLowW < 0 || s.LampMediumW < s.LampLowW || s.LampHighW < s.LampMediumW {
		errs = append(errs, errors.New("lamp power must increase from low to high"))
	}
	for name, c := range map[string]Compartment{"fridge": s.Fridge, "freezer": s.Freezer} {
		if !(c.SetpointC < c.LowerC && c.LowerC < c.UpperC && c.UpperC < s.AmbientC) {
			errs = append(errs, fmt.Errorf("%s thresholds must satisfy setpoint < lower < upper < ambient", name))
		}
		if c.PowerW < 0 || c.CoolingRate <= 0 || c.WarmingRate <= 0 {
			errs = append(errs, fmt.Errorf("%s power and drift rates must be positive", name))
		}
	}
	if s.DoorOpenRate < 1 {
		errs = append(errs, errors.New("door open rate must be at least 1"))
	}
	if s.DishwasherEcoW < 0 || s.DishwasherStandardW < s.DishwasherEcoW {
		errs = append(errs, errors.New("dishwasher standard power must be at least eco power"))
	}
	if s.BatteryUnit <= 0 || s.BatteryMaxCapacity <= 0 {
		errs = append(errs, errors.New("battery unit and max capacity must be positive"))
	}
	if s.BatteryInitial < 0 || s.BatteryInitial > s.BatteryMaxCapacity {
		errs = append(errs, errors.New("battery initial capacity must be within [0, max]"))
	}
	if s.WindMaxSpeed <= 0 || s.WindSampleSeconds <= 0 || s.WindSlopeScale <= 0 {
		errs = append(errs, errors.New("wind max speed, sample interval and slope scale must be positive"))
	}
	if s.WindSample() < minInterval {
		errs = append(errs, fmt.Errorf("wind sample interval must be at least %s", minInterval))
	} else if s.WindSlopeScale > 0 && seconds(s.WindSampleSeconds/s.WindSlopeScale) < minInterval {
		// a walk clamped at a bound waits sample/slopeScale for its next step
		errs = append(errs, fmt.Errorf("wind sample interval divided by slope scale must be at least %s", minInterval))
	}
	if s.WindInitialSpeed < 0 || s.WindInitialSpeed > s.WindMaxSpeed {
		errs = append(errs, errors.New("initial wind speed must be within [0, max]"))
	}
	if s.TurbineCutIn < 0 || s.TurbineCutOut <= s.TurbineCutIn {
		errs = append(errs, errors.New("turbine cut-out must be above cut-in"))
	}
	for _, d := range s.MeanDelays.named() {
		if seconds(d.mean) < minInterval {
			errs = append(errs, fmt.Errorf("mean delay %s must be at least %s", d.name, minInterval))
		}
	}
	if s.BetaAlpha <= 0 || s.BetaBeta <= 0 {
		errs = append(errs, errors.New("beta shape parameters must be positive"))
	}
	return errors.Join(errs...)
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	def := func(f *float64, v float64) {
		if *f == 0 {
			*f = v
			migrated = true
		}
	}
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			def(&s.TickSeconds, 1)
			def(&s.ControlPeriodSeconds, 1)
			def(&s.LampLowW, 20)
			def(&s.LampMediumW, 40)
			def(&s.LampHighW, 60)
			def(&s.AmbientC, 20)
			if s.Fridge == (Compartment{}) {
				s.Fridge = Compartment{PowerW: 100, SetpointC: 2, LowerC: 3, UpperC: 6, CoolingRate: 0.05, WarmingRate: 0.01}
				migrated = true
			}
			if s.Freezer == (Compartment{}) {
				s.Freezer = Compartment{PowerW: 150, SetpointC: -22, LowerC: -20, UpperC: -16, CoolingRate: 0.05, WarmingRate: 0.01}
				migrated = true
			}
			def(&s.DoorOpenRate, 3)
			def(&s.DishwasherEcoW, 1000)
			def(&s.DishwasherStandardW, 1800)
			def(&s.BatteryUnit, 200)
			def(&s.BatteryMaxCapacity, 10000)
			def(&s.BatteryInitial, 5000)
			def(&s.WindMaxSpeed, 25)
			def(&s.WindInitialSpeed, 5)
			def(&s.WindSampleSeconds, 10)
			def(&s.WindSlopeScale, 1)
			def(&s.TurbineCutIn, 3)
			def(&s.TurbineCutOut, 20)
			def(&s.TurbineRadiusM, 1.5)
			def(&s.AirDensity, 1.225)
			def(&s.MeanDelays.LampSwitchOn, 1800)
			def(&s.MeanDelays.LampIntensity, 600)
			def(&s.MeanDelays.LampSwitchOff, 900)
			def(&s.MeanDelays.DoorOpen, 1200)
			def(&s.MeanDelays.DoorClose, 20)
			def(&s.MeanDelays.DishwasherStart, 14400)
			def(&s.MeanDelays.DishwasherProgram, 60)
		case 2:
			// version 2: beta shape and dishwasher cycle duration became tunable
			def(&s.BetaAlpha, 1.75)
			def(&s.BetaBeta, 1.75)
			def(&s.MeanDelays.DishwasherCycle, 5400)
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}

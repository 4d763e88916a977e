package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownAppliance = errors.New("unknown appliance")
	ErrUnknownReading   = errors.New("unknown reading")
	ErrUnknownState     = errors.New("unknown state")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidState     = errors.New("invalid state value")
)

// ApplianceID identifies one device of the household.
type ApplianceID string

const (
	ApplianceLamp        ApplianceID = "lamp"
	ApplianceFridge      ApplianceID = "fridge"
	ApplianceFreezer     ApplianceID = "freezer"
	ApplianceDishwasher  ApplianceID = "dishwasher"
	ApplianceBattery     ApplianceID = "battery"
	ApplianceWindTurbine ApplianceID = "windTurbine"
)

// ApplianceIDs lists every appliance in the order the household iterates them.
var ApplianceIDs = []ApplianceID{
	ApplianceLamp,
	ApplianceFridge,
	ApplianceFreezer,
	ApplianceDishwasher,
	ApplianceBattery,
	ApplianceWindTurbine,
}

// ParseApplianceID validates s as a known appliance id.
func ParseApplianceID(s string) (ApplianceID, error) {
	for _, id := range ApplianceIDs {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAppliance, s)
}

// Mode is the discrete operating mode of an appliance. Each appliance only
// accepts a subset of the modes.
type Mode string

const (
	ModeOff       Mode = "off"
	ModeOn        Mode = "on"
	ModeLow       Mode = "low"
	ModeMedium    Mode = "medium"
	ModeHigh      Mode = "high"
	ModeEco       Mode = "eco"
	ModeStandard  Mode = "standard"
	ModeStandby   Mode = "standby"
	ModeConsuming Mode = "consuming"
	ModeProducing Mode = "producing"
)

// DoorState is the state of a fridge or freezer door.
type DoorState string

const (
	DoorClosed DoorState = "closed"
	DoorOpen   DoorState = "open"
)

// Reading names accepted by GetReading.
const (
	ReadingPower          = "power"
	ReadingEffectivePower = "effectivePower"
	ReadingTemperature    = "temperature"
	ReadingCapacity       = "capacity"
	ReadingWindSpeed      = "windSpeed"
)

// State names accepted by GetState and SetState.
const (
	StateMode     = "mode"
	StateOverride = "override"
	StateDoor     = "door"
)

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	EventSwitchOn EventKind = iota
	EventSwitchOff
	EventSetLow
	EventSetMedium
	EventSetHigh
	EventSetEco
	EventSetStandard
	EventDoorOpen
	EventDoorClose
	EventWindChange

	// NumEventKinds must stay last.
	NumEventKinds
)

var eventKindNames = [NumEventKinds]string{
	EventSwitchOn:    "switchOn",
	EventSwitchOff:   "switchOff",
	EventSetLow:      "setLow",
	EventSetMedium:   "setMedium",
	EventSetHigh:     "setHigh",
	EventSetEco:      "setEco",
	EventSetStandard: "setStandard",
	EventDoorOpen:    "doorOpen",
	EventDoorClose:   "doorClose",
	EventWindChange:  "windChange",
}

func (k EventKind) String() string {
	if k < 0 || k >= NumEventKinds {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// ParseEventKind maps the string form back to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range eventKindNames {
		if name == s {
			return EventKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind: %s", s)
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is a lifecycle event for one appliance effective at a simulated
// offset from the start of the run. Speed is only set for EventWindChange.
type Event struct {
	Kind      EventKind     `json:"kind" yaml:"kind"`
	Appliance ApplianceID   `json:"appliance" yaml:"appliance"`
	At        time.Duration `json:"at" yaml:"at"`
	Speed     float64       `json:"speed,omitempty" yaml:"speed,omitempty"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s/%s@%s", e.Appliance, e.Kind, e.At)
}

// Snapshot is a read-only view of an appliance's state.
type Snapshot struct {
	ID             ApplianceID        `json:"id"`
	Mode           Mode               `json:"mode"`
	Override       bool               `json:"override"`
	Power          float64            `json:"power"`
	EffectivePower float64            `json:"effectivePower"`
	Readings       map[string]float64 `json:"readings,omitempty"`
	States         map[string]string  `json:"states,omitempty"`
}

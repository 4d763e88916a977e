package appliance

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/raterudder/gridsim/pkg/types"
)

// PriorityTable is the fixed per-device order in which events effective at
// the same simulated instant are applied. Kinds not listed in the table have
// no priority over anything.
type PriorityTable struct {
	// rank is 1-based; 0 means the kind is not in the table
	rank [types.NumEventKinds]int
}

// NewPriorityTable builds a table from kinds listed highest priority first.
func NewPriorityTable(order ...types.EventKind) *PriorityTable {
	t := &PriorityTable{}
	for i, k := range order {
		if t.rank[k] != 0 {
			panic("appliance: duplicate event kind in priority table: " + k.String())
		}
		t.rank[k] = i + 1
	}
	return t
}

// HasPriorityOver reports whether a must be applied before b when both are
// effective at the same instant.
func (t *PriorityTable) HasPriorityOver(a, b types.EventKind) bool {
	ra, rb := t.rank[a], t.rank[b]
	return ra != 0 && rb != 0 && ra < rb
}

// Covers reports whether k is listed in the table.
func (t *PriorityTable) Covers(k types.EventKind) bool {
	return t.rank[k] != 0
}

// Kinds returns the listed kinds, highest priority first.
func (t *PriorityTable) Kinds() []types.EventKind {
	kinds := make([]types.EventKind, 0, len(t.rank))
	for k, r := range t.rank {
		if r != 0 {
			kinds = append(kinds, types.EventKind(k))
		}
	}
	slices.SortFunc(kinds, func(a, b types.EventKind) int { return cmp.Compare(t.rank[a], t.rank[b]) })
	return kinds
}

// check returns ErrInvalidState when id never applies events of kind k.
func (t *PriorityTable) check(id types.ApplianceID, k types.EventKind) error {
	if t.Covers(k) {
		return nil
	}
	names := make([]string, 0, len(t.rank))
	for _, kind := range t.Kinds() {
		names = append(names, kind.String())
	}
	return fmt.Errorf("%w: %s cannot apply %s, only %s", types.ErrInvalidState, id, k, strings.Join(names, ", "))
}

// sortEvents orders events by time and then by priority. Kinds outside the
// table keep their arrival order after the listed ones.
func (t *PriorityTable) sortEvents(events []types.Event) {
	order := func(k types.EventKind) int {
		if r := t.rank[k]; r != 0 {
			return r
		}
		return int(types.NumEventKinds) + 1
	}
	slices.SortStableFunc(events, func(a, b types.Event) int {
		if c := cmp.Compare(a.At, b.At); c != 0 {
			return c
		}
		return cmp.Compare(order(a.Kind), order(b.Kind))
	})
}

var (
	lampPriority = NewPriorityTable(
		types.EventSwitchOn,
		types.EventSetHigh,
		types.EventSetMedium,
		types.EventSetLow,
		types.EventSwitchOff,
	)
	compartmentPriority = NewPriorityTable(
		types.EventSwitchOn,
		types.EventSwitchOff,
		types.EventDoorOpen,
		types.EventDoorClose,
	)
	dishwasherPriority = NewPriorityTable(
		types.EventSwitchOn,
		types.EventSetStandard,
		types.EventSetEco,
		types.EventSwitchOff,
	)
	batteryPriority = NewPriorityTable(
		types.EventSwitchOn,
		types.EventSwitchOff,
	)
	turbinePriority = NewPriorityTable(
		types.EventWindChange,
	)
)

// priorities holds the table of every appliance in the household.
var priorities = map[types.ApplianceID]*PriorityTable{
	types.ApplianceLamp:        lampPriority,
	types.ApplianceFridge:      compartmentPriority,
	types.ApplianceFreezer:     compartmentPriority,
	types.ApplianceDishwasher:  dishwasherPriority,
	types.ApplianceBattery:     batteryPriority,
	types.ApplianceWindTurbine: turbinePriority,
}

// CheckEvent returns ErrUnknownAppliance for ids outside the household and
// ErrInvalidState when the appliance never applies events of kind k.
func CheckEvent(id types.ApplianceID, k types.EventKind) error {
	if _, err := types.ParseApplianceID(string(id)); err != nil {
		return err
	}
	return priorities[id].check(id, k)
}

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/raterudder/gridsim/pkg/appliance"
	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/simulation"
	"github.com/raterudder/gridsim/pkg/types"
)

// liveSimulator writes an error and returns nil if no simulation is running.
func (s *Server) liveSimulator(w http.ResponseWriter) *simulation.Simulator {
	sim := s.simulator()
	if sim == nil {
		writeJSONError(w, "simulation not running", http.StatusServiceUnavailable)
	}
	return sim
}

// pathAppliance resolves the {id} path value against the live household.
func (s *Server) pathAppliance(w http.ResponseWriter, r *http.Request) (*simulation.Simulator, *appliance.Appliance, bool) {
	sim := s.liveSimulator(w)
	if sim == nil {
		return nil, nil, false
	}
	a, err := sim.Household().Get(types.ApplianceID(r.PathValue("id")))
	if err != nil {
		writeJSONError(w, err.Error(), errorStatus(err))
		return nil, nil, false
	}
	return sim, a, true
}

func (s *Server) handleListAppliances(w http.ResponseWriter, r *http.Request) {
	sim := s.liveSimulator(w)
	if sim == nil {
		return
	}
	writeJSON(w, struct {
		SimTime    time.Duration    `json:"simTime"`
		Appliances []types.Snapshot `json:"appliances"`
	}{SimTime: sim.Now(), Appliances: sim.Household().Snapshot()})
}

func (s *Server) handleGetAppliance(w http.ResponseWriter, r *http.Request) {
	_, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	writeJSON(w, a.Snapshot())
}

type modeReq struct {
	Mode types.Mode `json:"mode"`
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	_, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	writeJSON(w, modeReq{Mode: a.GetMode()})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	var req modeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.SetMode(req.Mode); err != nil {
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "mode set", slog.String("appliance", string(a.ID())), slog.String("mode", string(req.Mode)))
	writeJSON(w, a.Snapshot())
}

func (s *Server) handleToggleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	a.ToggleOverride()
	log.Ctx(ctx).InfoContext(ctx, "override toggled", slog.String("appliance", string(a.ID())), slog.Bool("override", a.IsOverride()))
	writeJSON(w, a.Snapshot())
}

func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	_, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	v, err := a.GetReading(name)
	if err != nil {
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}{Name: name, Value: v})
}

type stateRes struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	_, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	v, err := a.GetState(name)
	if err != nil {
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, stateRes{Name: name, Value: v})
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.SetState(name, req.Value); err != nil {
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}
	v, err := a.GetState(name)
	if err != nil {
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "state set", slog.String("appliance", string(a.ID())), slog.String("state", name), slog.String("value", v))
	writeJSON(w, stateRes{Name: name, Value: v})
}

// handleInjectEvent schedules a lifecycle event on the live household, after
// an optional simulated delay.
func (s *Server) handleInjectEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sim, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind  *types.EventKind `json:"kind"`
		In    string           `json:"in"`
		Speed float64          `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Kind == nil {
		writeJSONError(w, "kind is required", http.StatusBadRequest)
		return
	}
	var in time.Duration
	if req.In != "" {
		var err error
		in, err = time.ParseDuration(req.In)
		if err != nil || in < 0 {
			writeJSONError(w, "in must be a non-negative duration", http.StatusBadRequest)
			return
		}
	}
	ev := types.Event{
		Kind:      *req.Kind,
		Appliance: a.ID(),
		At:        sim.Now() + in,
		Speed:     req.Speed,
	}
	if err := sim.Inject(ev); err != nil {
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "event injected", slog.String("event", ev.String()))
	writeJSON(w, ev)
}

func (s *Server) handleMeter(w http.ResponseWriter, r *http.Request) {
	sim := s.liveSimulator(w)
	if sim == nil {
		return
	}
	writeJSON(w, sim.Meter().Read())
}

// handleMeterContribution returns the power the meter last recorded for one
// appliance.
func (s *Server) handleMeterContribution(w http.ResponseWriter, r *http.Request) {
	sim, a, ok := s.pathAppliance(w, r)
	if !ok {
		return
	}
	writeJSON(w, struct {
		Appliance    types.ApplianceID `json:"appliance"`
		Contribution float64           `json:"contribution"`
	}{Appliance: a.ID(), Contribution: sim.Meter().Contribution(a.ID())})
}

func (s *Server) handleLastDecision(w http.ResponseWriter, r *http.Request) {
	sim := s.liveSimulator(w)
	if sim == nil {
		return
	}
	d, ok := sim.Controller().Last()
	if !ok {
		writeJSONError(w, "no control tick yet", http.StatusNotFound)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleSimulationSummary(w http.ResponseWriter, r *http.Request) {
	sim := s.liveSimulator(w)
	if sim == nil {
		return
	}
	writeJSON(w, sim.Summary())
}

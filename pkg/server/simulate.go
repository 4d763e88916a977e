package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/simulation"
	"github.com/raterudder/gridsim/pkg/storage"
)

// maxSimulateDuration bounds the simulated time of one batch request.
const maxSimulateDuration = 7 * 24 * time.Hour

// handleSimulate runs a scenario (YAML or JSON) to completion against a
// stored profile and returns its summary. The optional seed query parameter
// overrides the profile's seed.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Limit body size to 1MB to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	sc, err := simulation.LoadScenario(r.Body)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if sc.Duration > maxSimulateDuration {
		writeJSONError(w, fmt.Sprintf("duration cannot exceed %s", maxSimulateDuration), http.StatusBadRequest)
		return
	}

	base, err := storage.LoadSettings(ctx, s.storage, sc.Profile)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.String("profile", sc.Profile), slog.Any("error", err))
		writeJSONError(w, "failed to get settings", errorStatus(err))
		return
	}
	if seed := r.URL.Query().Get("seed"); seed != "" {
		v, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			writeJSONError(w, "invalid seed", http.StatusBadRequest)
			return
		}
		base.Seed = v
	}

	sum, err := sc.Run(ctx, base, simulation.Options{})
	if err != nil {
		if ctx.Err() != nil {
			// client went away
			panic(http.ErrAbortHandler)
		}
		log.Ctx(ctx).WarnContext(ctx, "simulation failed", slog.String("scenario", sc.Name), slog.Any("error", err))
		code := errorStatus(err)
		if code == http.StatusInternalServerError {
			// invalid settings overrides or events
			code = http.StatusBadRequest
		}
		writeJSONError(w, err.Error(), code)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "simulation finished",
		slog.String("scenario", sc.Name),
		slog.String("runID", sum.RunID),
		slog.Int("decisions", sum.Decisions),
	)
	writeJSON(w, sum)
}

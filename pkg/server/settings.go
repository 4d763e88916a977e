package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/storage"
	"github.com/raterudder/gridsim/pkg/types"
)

// SettingsRes is the response type for GetSettings
type SettingsRes struct {
	types.Settings
	Profile string `json:"profile"`
	// Active is true when the live simulation runs this profile.
	Active bool `json:"active"`
}

func (s *Server) profileParam(r *http.Request) string {
	if p := r.URL.Query().Get("profile"); p != "" {
		return p
	}
	return s.config.Profile
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := s.profileParam(r)
	settings, err := storage.LoadSettings(ctx, s.storage, profile)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.String("profile", profile), slog.Any("error", err))
		writeJSONError(w, "failed to get settings", errorStatus(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, SettingsRes{
		Settings: settings,
		Profile:  profile,
		Active:   profile == s.config.Profile,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := s.profileParam(r)

	// Limit body size to 1MB to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	var newSettings types.Settings
	if err := json.NewDecoder(r.Body).Decode(&newSettings); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := newSettings.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.SetSettings(ctx, profile, newSettings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.String("profile", profile), slog.Any("error", err))
		writeJSONError(w, "failed to save settings", errorStatus(err))
		return
	}
	email, _ := ctx.Value(emailContextKey).(string)
	log.Ctx(ctx).InfoContext(ctx, "settings updated", slog.String("profile", profile), slog.String("by", email))

	active := profile == s.config.Profile
	if active && s.simulator() != nil {
		// restart the live household on the new settings
		if err := s.startSimulation(newSettings); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to restart simulation", slog.Any("error", err))
			writeJSONError(w, "failed to restart simulation", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, SettingsRes{
		Settings: newSettings,
		Profile:  profile,
		Active:   active,
	})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profiles, err := s.storage.ListProfiles(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list profiles", slog.Any("error", err))
		writeJSONError(w, "failed to list profiles", http.StatusInternalServerError)
		return
	}
	if profiles == nil {
		profiles = []string{}
	}
	writeJSON(w, struct {
		Profiles []string `json:"profiles"`
		Active   string   `json:"active"`
	}{Profiles: profiles, Active: s.config.Profile})
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridsim/pkg/common"
	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/metrics"
	"github.com/raterudder/gridsim/pkg/simulation"
	"github.com/raterudder/gridsim/pkg/storage"
	"github.com/raterudder/gridsim/pkg/telemetry"
	"github.com/raterudder/gridsim/pkg/types"
)

type contextKey string

const (
	emailContextKey contextKey = "email"
)

// tokenVerifier is a function that validates an OIDC ID Token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server exposes the live household over HTTP and runs batch simulations on
// demand. The live simulator is replaced whenever its profile's settings are
// updated.
type Server struct {
	storage   storage.Database
	telemetry *telemetry.Publisher
	metrics   *metrics.Metrics
	config    *simulation.Config

	listenAddr string
	httpServer *http.Server

	adminEmails   []string
	oidcVerifiers map[string]tokenVerifier
	bypassAuth    bool
	serverName    string

	mu        sync.Mutex
	sim       *simulation.Simulator
	cancelSim context.CancelFunc
	simCtx    context.Context
	simWG     sync.WaitGroup
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(db storage.Database, pub *telemetry.Publisher, cfg *simulation.Config) *Server {
	srv := &Server{
		storage:    db,
		telemetry:  pub,
		metrics:    metrics.New(),
		config:     cfg,
		serverName: common.ServerName(os.Getenv("K_REVISION")),
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to change the simulation")
	oidcAudience := lflag.String("oidc-audience", "", "audience to validate Google id tokens against")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if *adminEmails != "" {
			srv.adminEmails = strings.Split(*adminEmails, ",")
			for i, email := range srv.adminEmails {
				srv.adminEmails[i] = strings.TrimSpace(email)
			}
		}
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.oidcVerifiers = map[string]tokenVerifier{
				"google": provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify,
			}
		}
		if len(srv.oidcVerifiers) == 0 && len(srv.adminEmails) == 0 {
			srv.bypassAuth = true
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/appliances", s.handleListAppliances)
	apiMux.HandleFunc("GET /api/appliances/{id}", s.handleGetAppliance)
	apiMux.HandleFunc("GET /api/appliances/{id}/mode", s.handleGetMode)
	apiMux.HandleFunc("POST /api/appliances/{id}/mode", s.handleSetMode)
	apiMux.HandleFunc("POST /api/appliances/{id}/override", s.handleToggleOverride)
	apiMux.HandleFunc("GET /api/appliances/{id}/readings/{name}", s.handleGetReading)
	apiMux.HandleFunc("GET /api/appliances/{id}/states/{name}", s.handleGetState)
	apiMux.HandleFunc("POST /api/appliances/{id}/states/{name}", s.handleSetState)
	apiMux.HandleFunc("POST /api/appliances/{id}/events", s.handleInjectEvent)
	apiMux.HandleFunc("GET /api/meter", s.handleMeter)
	apiMux.HandleFunc("GET /api/meter/{id}", s.handleMeterContribution)
	apiMux.HandleFunc("GET /api/controller/last", s.handleLastDecision)
	apiMux.HandleFunc("GET /api/simulation", s.handleSimulationSummary)
	apiMux.HandleFunc("POST /api/simulate", s.handleSimulate)
	apiMux.HandleFunc("GET /api/settings", s.handleGetSettings)
	apiMux.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	apiMux.HandleFunc("GET /api/profiles", s.handleListProfiles)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// simulator returns the live simulator or nil before Run started one.
func (s *Server) simulator() *simulation.Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim
}

// startSimulation builds a simulator for settings and runs it live,
// replacing and stopping any previous one.
func (s *Server) startSimulation(settings types.Settings) error {
	sim, err := simulation.New(s.config.WithSeed(settings), simulation.Options{
		Metrics:   s.metrics,
		Telemetry: s.telemetry,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelSim != nil {
		s.cancelSim()
	}
	s.sim = sim
	if s.simCtx == nil {
		// Run has not started yet, the simulator stays idle
		s.cancelSim = nil
		return nil
	}
	ctx, cancel := context.WithCancel(s.simCtx)
	s.cancelSim = cancel
	log.Ctx(ctx).DebugContext(ctx, "replacing live simulation", slog.String("runID", sim.RunID()), slog.Uint64("seed", sim.Seed()))
	s.simWG.Add(1)
	go func() {
		defer s.simWG.Done()
		if err := sim.Live(ctx, s.config.Speed); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "live simulation failed", slog.Any("error", err))
		}
	}()
	return nil
}

// Run loads the configured profile, starts the live simulation and the HTTP
// server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	settings, err := storage.LoadSettings(ctx, s.storage, s.config.Profile)
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", s.config.Profile, err)
	}

	s.mu.Lock()
	s.simCtx = ctx
	s.mu.Unlock()
	if err := s.startSimulation(settings); err != nil {
		return fmt.Errorf("failed to start simulation: %w", err)
	}
	defer s.simWG.Wait()

	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		s.mu.Lock()
		if s.cancelSim != nil {
			s.cancelSim()
		}
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// errorStatus maps simulation errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrUnknownAppliance):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUnknownReading),
		errors.Is(err, types.ErrUnknownState),
		errors.Is(err, types.ErrInvalidMode),
		errors.Is(err, types.ErrInvalidState),
		errors.Is(err, storage.ErrEmptyProfile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raterudder/gridsim/pkg/common"
	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/server"
	"github.com/raterudder/gridsim/pkg/simulation"
	"github.com/raterudder/gridsim/pkg/storage"
	"github.com/raterudder/gridsim/pkg/telemetry"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	s := storage.Configured()
	pub := telemetry.Configured()
	cfg := simulation.Configured()

	// init server
	srv := server.Configured(s, pub, cfg)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	// batch mode prints the summary on stdout
	out := os.Stdout
	if cfg.Batch() {
		out = os.Stderr
	}
	log.SetOutput(out)
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()), slog.String("version", common.Version()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	pub.Start(ctx)
	defer func() {
		if err := pub.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close telemetry", "error", err)
		} else if n := pub.Dropped(); n > 0 {
			log.Ctx(ctx).WarnContext(ctx, "telemetry messages dropped", "dropped", n)
		}
	}()

	if cfg.Batch() {
		if err := runBatch(ctx, s, pub, cfg); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "simulation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}

// runBatch simulates the scenario file, or the profile until run-until, and
// prints the summary as JSON on stdout.
func runBatch(ctx context.Context, db storage.Database, pub *telemetry.Publisher, cfg *simulation.Config) error {
	sc := simulation.Scenario{
		Profile:  cfg.Profile,
		Duration: cfg.RunUntil,
	}
	if cfg.Scenario != "" {
		var err error
		sc, err = simulation.LoadScenarioFile(cfg.Scenario)
		if err != nil {
			return err
		}
		if cfg.RunUntil > 0 {
			sc.Duration = cfg.RunUntil
		}
	}

	base, err := storage.LoadSettings(ctx, db, sc.Profile)
	if err != nil {
		return err
	}
	sum, err := sc.Run(ctx, cfg.WithSeed(base), simulation.Options{Telemetry: pub})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

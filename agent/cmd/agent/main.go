package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/focusmonitor/focusmonitor/agent/internal/api"
	"github.com/focusmonitor/focusmonitor/agent/internal/compute"
	"github.com/focusmonitor/focusmonitor/agent/internal/config"
	"github.com/focusmonitor/focusmonitor/agent/internal/metrics"
	"github.com/focusmonitor/focusmonitor/agent/internal/monitor"
	"github.com/focusmonitor/focusmonitor/agent/internal/shipper"
	"github.com/focusmonitor/focusmonitor/agent/internal/source"
	"github.com/focusmonitor/focusmonitor/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file with secrets")
	flag.Parse()

	// Secrets referenced by *_env settings may live in a dotenv file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load env file", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(cfg.Log, os.Stdout)
	defer logCloser.Close()
	slog.SetDefault(logger)

	slog.Info("focusmonitor-agent starting",
		"config", *configPath,
		"source", cfg.Agent.Source.Type,
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"tick_interval", cfg.Agent.TickInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := source.New(cfg.Agent.Source)
	if err != nil {
		slog.Error("failed to build sample source", "err", err)
		os.Exit(1)
	}
	go func() {
		if err := src.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("sample source stopped", "err", err)
			cancel()
		}
	}()

	sessionID := cfg.Agent.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	opts := monitor.Options{
		SessionID:       sessionID,
		RequiredSamples: cfg.Agent.Calibration.RequiredSamples,
		Rates:           rates(cfg.Agent.Scoring),
	}
	if p := cfg.Agent.Calibration.Preset; p != nil {
		opts.Preset = &compute.Thresholds{
			EyeClosedness: p.EyeClosedness,
			GazeYaw:       p.GazeYaw,
			GazePitch:     p.GazePitch,
		}
	}

	// The recorder polls status only on scrape, after mon is assigned.
	var mon *monitor.Monitor
	recorder := metrics.NewRecorder(sessionID, func() monitor.Status { return mon.Status() })
	sinks := []monitor.Sink{recorder}

	if cfg.Agent.ServerEndpoint != "" {
		ship := shipper.New(cfg.Agent, sessionID)
		sinks = append(sinks, ship)
		go ship.Run(ctx)
	} else {
		slog.Warn("no server_endpoint configured, reports stay local")
	}

	mon = monitor.New(src, opts, sinks...)
	slog.Info("monitor ready", "session", sessionID, "mode", mon.Mode().String())

	go func() {
		err := config.Watch(ctx, *configPath, cfg.Agent.Scoring, func(updated *config.Config) {
			mon.SetRates(rates(updated.Agent.Scoring))
			slog.Info("scoring rates reloaded",
				"looking_away_rate", updated.Agent.Scoring.LookingAwayRate,
				"sleeping_rate", updated.Agent.Scoring.SleepingRate,
			)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Agent.HTTPAddr,
		Handler:           api.New(mon, recorder.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("agent http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("agent http server stopped", "err", err)
			cancel()
		}
	}()

	go mon.Run(ctx, cfg.Agent.TickInterval)

	<-ctx.Done()
	slog.Info("focusmonitor-agent shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}

func rates(s config.ScoringConfig) compute.Rates {
	return compute.Rates{LookingAway: s.LookingAwayRate, Sleeping: s.SleepingRate}
}

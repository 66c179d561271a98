package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/focusmonitor/focusmonitor/pkg/logging"
	"github.com/focusmonitor/focusmonitor/pkg/report"
	"github.com/focusmonitor/focusmonitor/server/internal/alerts"
	"github.com/focusmonitor/focusmonitor/server/internal/api"
	"github.com/focusmonitor/focusmonitor/server/internal/auth"
	"github.com/focusmonitor/focusmonitor/server/internal/config"
	"github.com/focusmonitor/focusmonitor/server/internal/receiver"
	"github.com/focusmonitor/focusmonitor/server/internal/store"
	"github.com/focusmonitor/focusmonitor/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file with secrets")
	uiDir := flag.String("ui-dir", "", "serve dashboard static files from this directory; empty disables")
	flag.Parse()

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

	slog.Info("focusmonitor-server starting",
		"config", *configPath,
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"session_ttl", cfg.Server.Session.TTL,
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(cfg.Server.Session.TTL, cfg.Server.Session.HistorySize)
	go st.Run(ctx)

	alertEngine := alerts.New(cfg.Server.Alerts)

	hub := ws.New(st, alertEngine, cfg.Server.BroadcastInterval)
	go hub.Run(ctx)

	keyAuth := auth.New(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())
	if cfg.Server.Auth.Mode == "apikey" && !keyAuth.Enabled() {
		slog.Warn("auth mode is apikey but no key is set; requests are not checked",
			"key_env", cfg.Server.Auth.KeyEnv)
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(keyAuth.UnaryInterceptor()))
	report.RegisterReportServiceServer(grpcSrv, receiver.New(st, alertEngine, receiver.WithNotifier(hub)))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC receiver listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(st, alertEngine))
	mux.Handle("/ws/stream", hub)
	if *uiDir != "" {
		mux.Handle("/", spaHandler(*uiDir))
		slog.Info("serving dashboard files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           keyAuth.Middleware(mux, "/api/v1/health"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("focusmonitor-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	grpcSrv.GracefulStop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// spaHandler serves files from dir and falls back to index.html for unknown
// paths so client-side routes resolve.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}

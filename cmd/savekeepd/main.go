package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/daemon"
	"github.com/yndnr/savekeep-go/internal/infra/buildinfo"
	"github.com/yndnr/savekeep-go/internal/infra/confloader"
	"github.com/yndnr/savekeep-go/internal/infra/shutdown"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
	"github.com/yndnr/savekeep-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", os.Getenv("SAVEKEEP_CONFIG"), "Path to configuration file")
		restore     = flag.String("restore", "", `Save to restore on start ("none" to start fresh)`)
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String("savekeepd"))
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting savekeepd",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"settings", config.Sanitize(cfg))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(slogger))

	ctx := logger.WithSessionID(logger.WithLogger(shutdownHandler.Context(), log), ulid.Make().String())
	d, err := daemon.New(ctx, cfg, daemon.WithRestore(*restore))
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	// Hooks run in reverse: the session closes last.
	shutdownHandler.OnShutdown("session", d.Close)

	if cfg.Metrics.Addr != "" {
		srv := startMetrics(cfg.Metrics.Addr, slogger)
		shutdownHandler.OnShutdown("metrics", srv.Shutdown)
	}

	watcher, err := watch(*configFile, cfg.Schema, d, slogger)
	if err != nil {
		log.Warn("file watching disabled", "error", err)
	} else {
		shutdownHandler.OnShutdown("watcher", func(context.Context) error { return watcher.Stop() })
	}

	log.Info("savekeepd running, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("savekeepd stopped")
	return nil
}

func loadConfig(configFile string) (*config.Config, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func startMetrics(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metric.Global().Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// watch reloads the configuration file and the schema when they change on
// disk. A reload that fails validation is logged and ignored.
func watch(configFile, schema string, d *daemon.Daemon, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.With("component", "watcher")))
	if err != nil {
		return nil, err
	}

	if configFile != "" {
		err := w.Watch(configFile, func(string) {
			cfg, err := loadConfig(configFile)
			if err != nil {
				log.Error("config reload rejected", "error", err)
				return
			}
			if err := d.ApplyConfig(cfg); err != nil {
				log.Error("config reload failed", "error", err)
			}
		})
		if err != nil {
			_ = w.Stop()
			return nil, err
		}
	}

	err = w.Watch(schema, func(string) {
		_ = d.ReloadSchema()
	})
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	w.StartAsync()
	return w, nil
}

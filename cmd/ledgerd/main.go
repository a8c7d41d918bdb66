// Command ledgerd serves the ledger HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ledger-core/pkg/accounts"
	"ledger-core/pkg/api"
	"ledger-core/pkg/config"
	"ledger-core/pkg/engine"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"
	metricsmem "ledger-core/pkg/metrics/memory"
	metricsprom "ledger-core/pkg/metrics/prometheus"
	"ledger-core/pkg/session"
	"ledger-core/pkg/store"
	"ledger-core/pkg/txlog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerd:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	addr       string
	backend    string
	logLevel   string
	seedDemo   bool
}

func parseFlags(args []string) (flags, *pflag.FlagSet, error) {
	var f flags
	fs := pflag.NewFlagSet("ledgerd", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&f.addr, "addr", "", "listen address (overrides config)")
	fs.StringVar(&f.backend, "store", "", "store backend: memory, redis, postgres or chain")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (overrides config)")
	fs.BoolVar(&f.seedDemo, "seed-demo", false, "install the demo account at startup")
	err := fs.Parse(args)
	return f, fs, err
}

// loadConfig reads the config file and applies flags that were set.
func loadConfig(f flags, fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if fs.Changed("addr") {
		cfg.Server.Addr = f.addr
	}
	if fs.Changed("store") {
		cfg.Store.Backend = f.backend
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if fs.Changed("seed-demo") {
		cfg.SeedDemo = f.seedDemo
	}
	return cfg, cfg.Validate()
}

func run(args []string) error {
	f, fs, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f, fs)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	collector, registry, err := newCollector(cfg.Metrics)
	if err != nil {
		return err
	}

	layer, err := buildStore(cfg.Store, collector, logger)
	if err != nil {
		return err
	}
	defer layer.Close()

	logger.Info("Store ready",
		zap.String("backend", cfg.Store.Backend),
		zap.String("layer", layer.Name()))

	srv, err := wire(cfg, layer, collector, registry, logger)
	if err != nil {
		return err
	}

	if cfg.SeedDemo {
		if _, err := srv.accounts.SeedDemo(context.Background()); err != nil {
			return fmt.Errorf("seed demo account: %w", err)
		}
		logger.Info("Demo account ready", zap.String("email", accounts.DemoEmail))
	}

	errc := srv.api.Start()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case sig := <-sigc:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.api.Stop(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}

// newCollector fans ledger metrics out to Prometheus and to the in-memory
// collector behind /metrics/json.
func newCollector(cfg config.MetricsConfig) (metrics.MetricsCollector, *prometheus.Registry, error) {
	mem := metricsmem.NewMemoryCollector()
	if !cfg.Enabled {
		return mem, nil, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := metricsprom.NewPrometheusCollector(cfg.Namespace)
	if err := prom.Register(registry); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}
	return metrics.Multi(mem, prom), registry, nil
}

type services struct {
	accounts *accounts.Store
	api      *api.Server
}

func wire(cfg config.Config, layer store.Layer, collector metrics.MetricsCollector, registry *prometheus.Registry, logger *logging.Logger) (*services, error) {
	keys := store.NewKeyPattern(cfg.Store.KeyPrefix, ":")

	accts := accounts.New(layer, keys, cfg.Accounts, accounts.Options{
		Metrics: collector,
		Logger:  logger.Named("accounts"),
	})
	log := txlog.New(layer, keys, cfg.TxLog, logger.Named("txlog"))
	sessions := session.NewManager(accts, layer, keys, session.Options{
		PIN:     cfg.PIN,
		Metrics: collector,
		Logger:  logger.Named("session"),
	})
	eng := engine.New(accts, log, sessions, cfg.Engine, engine.Options{
		Metrics: collector,
		Logger:  logger.Named("engine"),
	})

	serverConfig := api.ServerConfig{
		Address:      cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	// Confirm holds the response open for the commit delay.
	if minWrite := cfg.Engine.CommitDelay * 2; serverConfig.WriteTimeout < minWrite {
		serverConfig.WriteTimeout = minWrite
	}

	srv, err := api.NewServer(api.Dependencies{
		Accounts: accts,
		Sessions: sessions,
		Engine:   eng,
		Log:      log,
		Store:    layer,
		Metrics:  collector,
		Registry: registry,
		Logger:   logger.Named("api"),
	}, serverConfig)
	if err != nil {
		return nil, err
	}

	return &services{accounts: accts, api: srv}, nil
}

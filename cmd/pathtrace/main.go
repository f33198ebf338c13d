package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/fabwork/pathtrace/pkg/logging"
	"github.com/fabwork/pathtrace/pkg/metrics"
	"github.com/fabwork/pathtrace/pkg/run"
	"github.com/fabwork/pathtrace/pkg/store"
)

// fileConfig is the on-disk shape of a pathtrace configuration.
type fileConfig struct {
	Database struct {
		Driver string `yaml:"driver"` // "postgres" or "sqlite"
		URL    string `yaml:"url"`    // postgres connection string
		Path   string `yaml:"path"`   // sqlite file path
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Run run.Config `yaml:"run"`
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{Run: run.DefaultConfig()}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *fileConfig, logger logging.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return store.NewPGStore(ctx, cfg.Database.URL, logger)
	case "", "sqlite":
		path := cfg.Database.Path
		if path == "" {
			path = "./pathtrace.db"
		}
		return store.NewSQLiteStore(path, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	metricsAddr := flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (empty = disabled)")
	approach := flag.String("approach", "", "Override run approach (RANDOM or SCENARIO)")
	startNode := flag.Int64("start-node", 0, "Override scenario start node id")
	seed := flag.Int64("seed", 0, "Override random seed")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *approach != "" {
		cfg.Run.Approach = *approach
	}
	if *startNode != 0 {
		cfg.Run.StartNodeID = *startNode
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	registry := metrics.DefaultRegistry()
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics endpoint failed", logging.Error(err))
			}
		}()
	}

	runner, err := run.NewRunner(st, cfg.Run, logger, registry)
	if err != nil {
		log.Fatalf("Invalid run configuration: %v", err)
	}

	report, err := runner.Execute(ctx)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	fmt.Print(report.String())
}

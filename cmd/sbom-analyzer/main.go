package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/ritzau/sbom-analyzer/pkg/analysis"
	"github.com/ritzau/sbom-analyzer/pkg/config"
	"github.com/ritzau/sbom-analyzer/pkg/logging"
	"github.com/ritzau/sbom-analyzer/pkg/store"
	"github.com/ritzau/sbom-analyzer/pkg/web"
)

func main() {
	flags := pflag.NewFlagSet("sbom-analyzer", pflag.ExitOnError)
	flags.String("store", "./sbom-analyzer.db", "Path to the SBOM store")
	flags.Int("port", 8080, "Port for the analysis API server")
	flags.Uint64("max-cache-size", 200*1024*1024, "Graph cache bound in approximate bytes")
	flags.Int("max-concurrency", 8, "Concurrent component expansions per request")
	flags.Int("max-depth", 1<<20, "Default traversal depth when a request gives none")
	flags.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	flags.Bool("json-logs", false, "Emit logs as JSON")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	configureLogging(cfg)

	st, err := store.Open(store.Config{Path: cfg.StorePath, SyncWrites: true})
	if err != nil {
		logging.Fatal("failed to open store", "path", cfg.StorePath, "error", err)
	}
	defer st.Close()

	service := analysis.New(cfg, st)
	server := web.NewServer(service)

	logging.Info("starting analysis server", "port", cfg.Port, "store", cfg.StorePath)
	if err := server.Start(cfg.Port); err != nil {
		logging.Fatal("server exited", "error", err)
	}
}

func configureLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Verbosity {
	case "trace":
		level = slog.LevelDebug - 4
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Unknown verbosity %q, using info\n", cfg.Verbosity)
	}

	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}
}

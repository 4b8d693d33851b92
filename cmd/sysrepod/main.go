package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/yangstore/pkg/config"
	"github.com/cuemby/yangstore/pkg/dispatcher"
	"github.com/cuemby/yangstore/pkg/engine"
	"github.com/cuemby/yangstore/pkg/log"
	"github.com/cuemby/yangstore/pkg/metrics"
	"github.com/cuemby/yangstore/pkg/schema"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sysrepod",
	Short: "yangstore - a YANG-modeled configuration and state datastore engine",
	Long: `sysrepod is the daemon process hosting the yangstore engine: the
Schema Registry, Lock Set, Operation Log, Commit Engine, Subscription
Registry, Operational-Data Broker, and Request Dispatcher described in
the design, all wired into a single long-lived process.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"sysrepod version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to yangstore.yaml (defaults stand if omitted)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Force JSON log output regardless of config")

	rootCmd.AddCommand(serveCmd)
}

func loadConfigFromFlags(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if json, _ := cmd.Flags().GetBool("log-json"); json {
		cfg.LogJSON = true
	}
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the yangstore daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFromFlags(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log.Init(log.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
		logger := log.WithComponent("sysrepod")
		logger.Info().Str("repo_root", cfg.RepoRoot).Msg("starting yangstore")

		featureStore, err := schema.NewFileFeatureStore(filepath.Join(cfg.RepoRoot, "data", "internal"))
		if err != nil {
			return fmt.Errorf("open feature store: %w", err)
		}
		schemaLoader := schema.NewFileLoader(filepath.Join(cfg.RepoRoot, "schema"))

		e, err := engine.New(engine.Config{
			RepoRoot:               cfg.RepoRoot,
			SchemaLoader:           schemaLoader,
			FeatureStore:           featureStore,
			CommitGranularity:      cfg.CommitGranularity,
			OperationalDataTimeout: cfg.OperationalDataTimeout,
			Dispatcher: dispatcher.Config{
				QueueCapacity: cfg.DispatcherQueueSize,
				Workers:       cfg.DispatcherWorkers,
			},
		})
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		logger.Info().Msg("engine wired")

		metricsCollector := metrics.NewCollector(e)
		metricsCollector.Start()
		metrics.SetVersion(Version)
		metrics.RegisterComponent("datastore", true, "ready")
		metrics.RegisterComponent("commit", true, "ready")
		metrics.RegisterComponent("dispatcher", true, "ready")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		httpServer := &http.Server{Addr: cfg.MetricsListenAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("metrics and health endpoints listening")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutdown signal received")
		case err := <-errCh:
			logger.Error().Err(err).Msg("metrics server failed")
		}

		metricsCollector.Stop()
		_ = httpServer.Close()
		e.Stop()
		logger.Info().Msg("shutdown complete")
		return nil
	},
}

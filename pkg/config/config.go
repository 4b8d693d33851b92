/*
Package config loads the yangstore daemon's configuration: a flat,
YAML-backed struct in the shape of the teacher's Config/DefaultConfig
convention (pkg/health.Config), extended with environment variable
overrides since the daemon exposes more knobs than the teacher's
single-flag CLI warrants.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/yangstore/pkg/log"
)

// Config is the daemon's full configuration (SPEC_FULL.md §6).
type Config struct {
	RepoRoot               string        `yaml:"repo_root"`
	SocketPath             string        `yaml:"socket_path"`
	SubscriptionsSocketDir string        `yaml:"subscriptions_socket_dir"`
	PluginsDir             string        `yaml:"plugins_dir"`
	NACMRecoveryUID        int           `yaml:"nacm_recovery_uid"`
	CommitGranularity      time.Duration `yaml:"commit_granularity"`
	OperationalDataTimeout time.Duration `yaml:"operational_data_timeout"`
	LockWaitTimeout        time.Duration `yaml:"lock_wait_timeout"`
	CommitVerifyTimeout    time.Duration `yaml:"commit_verify_timeout"`
	DispatcherDrainTimeout time.Duration `yaml:"dispatcher_drain_timeout"`
	SessionIdleTimeout     time.Duration `yaml:"session_idle_timeout"`
	LogLevel               string        `yaml:"log_level"`
	LogJSON                bool          `yaml:"log_json"`
	MetricsListenAddr      string        `yaml:"metrics_listen_addr"`
	DispatcherWorkers      int           `yaml:"dispatcher_workers"`
	DispatcherQueueSize    int           `yaml:"dispatcher_queue_size"`
}

// DefaultConfig returns a Config with sensible defaults, mirroring the
// teacher's pkg/health.DefaultConfig shape.
func DefaultConfig() Config {
	return Config{
		RepoRoot:               "/var/lib/yangstore",
		SocketPath:             "/var/run/yangstore/yangstore.sock",
		SubscriptionsSocketDir: "/var/run/yangstore/subscriptions",
		PluginsDir:             "/var/lib/yangstore/plugins",
		NACMRecoveryUID:        0,
		CommitGranularity:      time.Second,
		OperationalDataTimeout: 5 * time.Second,
		LockWaitTimeout:        10 * time.Second,
		CommitVerifyTimeout:    15 * time.Second,
		DispatcherDrainTimeout: 30 * time.Second,
		SessionIdleTimeout:     10 * time.Minute,
		LogLevel:               "info",
		LogJSON:                false,
		MetricsListenAddr:      "127.0.0.1:9191",
		DispatcherWorkers:      4,
		DispatcherQueueSize:    256,
	}
}

// Load reads a YAML file at path (if it exists; a missing file is not
// an error — the defaults stand) over DefaultConfig, then applies any
// YANGSTORE_*-prefixed environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			log.WithComponent("config").Warn().Str("path", path).Msg("config file not found, using defaults")
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString("YANGSTORE_REPO_ROOT", &cfg.RepoRoot)
	overrideString("YANGSTORE_SOCKET_PATH", &cfg.SocketPath)
	overrideString("YANGSTORE_SUBSCRIPTIONS_SOCKET_DIR", &cfg.SubscriptionsSocketDir)
	overrideString("YANGSTORE_PLUGINS_DIR", &cfg.PluginsDir)
	overrideString("YANGSTORE_LOG_LEVEL", &cfg.LogLevel)
	overrideString("YANGSTORE_METRICS_LISTEN_ADDR", &cfg.MetricsListenAddr)
	overrideInt("YANGSTORE_NACM_RECOVERY_UID", &cfg.NACMRecoveryUID)
	overrideInt("YANGSTORE_DISPATCHER_WORKERS", &cfg.DispatcherWorkers)
	overrideInt("YANGSTORE_DISPATCHER_QUEUE_SIZE", &cfg.DispatcherQueueSize)
	overrideBool("YANGSTORE_LOG_JSON", &cfg.LogJSON)
	overrideDuration("YANGSTORE_COMMIT_GRANULARITY", &cfg.CommitGranularity)
	overrideDuration("YANGSTORE_OPERATIONAL_DATA_TIMEOUT", &cfg.OperationalDataTimeout)
	overrideDuration("YANGSTORE_LOCK_WAIT_TIMEOUT", &cfg.LockWaitTimeout)
	overrideDuration("YANGSTORE_COMMIT_VERIFY_TIMEOUT", &cfg.CommitVerifyTimeout)
	overrideDuration("YANGSTORE_DISPATCHER_DRAIN_TIMEOUT", &cfg.DispatcherDrainTimeout)
	overrideDuration("YANGSTORE_SESSION_IDLE_TIMEOUT", &cfg.SessionIdleTimeout)
}

func overrideString(env string, dst *string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func overrideInt(env string, dst *int) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithComponent("config").Warn().Str("env", env).Str("value", v).Msg("ignoring malformed integer override")
		return
	}
	*dst = n
}

func overrideBool(env string, dst *bool) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.WithComponent("config").Warn().Str("env", env).Str("value", v).Msg("ignoring malformed boolean override")
		return
	}
	*dst = b
}

func overrideDuration(env string, dst *time.Duration) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.WithComponent("config").Warn().Str("env", env).Str("value", v).Msg("ignoring malformed duration override")
		return
	}
	*dst = d
}

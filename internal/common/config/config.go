// Package config loads the audit service configuration: a yaml file with
// environment-variable overrides for the deployment knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sitescan/engine/internal/common/configtypes"
)

// Environment variables that override file configuration.
const (
	EnvBudgetMs   = "AUDIT_BUDGET_MS"
	EnvCacheTTLMs = "AUDIT_CACHE_TTL_MS"
	EnvPSIAPIKey  = "PSI_API_KEY"
	EnvDebugAudit = "DEBUG_AUDIT"
	EnvBlobToken  = "BLOB_READ_WRITE_TOKEN"
	EnvBlobBase   = "BLOB_PUBLIC_BASE"
	EnvShareBase  = "SHARE_BASE"
	EnvResendKey  = "RESEND_API_KEY"
)

// Defaults applied when neither file nor environment provides a value.
const (
	DefaultListen         = ":8080"
	DefaultServerTimeout  = 30 * time.Second
	DefaultBudgetMs       = 8500
	DefaultSubRequests    = 8
	DefaultCacheTTLMs     = 90_000
	DefaultSitemapSamples = 1
	DefaultImageHeads     = 2
	DefaultMetricsListen  = ":9090"
	DefaultMetricsPath    = "/metrics"
	DefaultNamespace      = "sitescan"
)

// Load reads the yaml file at path (optional; empty path loads pure
// defaults), applies environment overrides, fills defaults, and validates.
func Load(path string) (*configtypes.Config, error) {
	cfg := &configtypes.Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *configtypes.Config) {
	if v := os.Getenv(EnvBudgetMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Audit.BudgetMs = n
		}
	}
	if v := os.Getenv(EnvCacheTTLMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Audit.CacheTTLMs = n
		}
	}
	if v := os.Getenv(EnvPSIAPIKey); v != "" {
		cfg.Audit.PSIAPIKey = v
	}
	if os.Getenv(EnvDebugAudit) == "1" {
		cfg.Audit.Debug = true
	}
	if v := os.Getenv(EnvBlobToken); v != "" {
		cfg.Snapshot.Token = v
	}
	if v := os.Getenv(EnvBlobBase); v != "" {
		cfg.Snapshot.PublicBase = v
	}
	if v := os.Getenv(EnvShareBase); v != "" {
		cfg.Snapshot.ShareBase = v
	}
	if v := os.Getenv(EnvResendKey); v != "" {
		cfg.Lead.APIKey = v
	}
}

func applyDefaults(cfg *configtypes.Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = configtypes.Duration(DefaultServerTimeout)
	}
	if cfg.Audit.BudgetMs == 0 {
		cfg.Audit.BudgetMs = DefaultBudgetMs
	}
	if cfg.Audit.SubRequests == 0 {
		cfg.Audit.SubRequests = DefaultSubRequests
	}
	if cfg.Audit.CacheTTLMs == 0 {
		cfg.Audit.CacheTTLMs = DefaultCacheTTLMs
	}
	if cfg.Audit.SitemapSamples == 0 {
		cfg.Audit.SitemapSamples = DefaultSitemapSamples
	}
	if cfg.Audit.ImageHeads == 0 {
		cfg.Audit.ImageHeads = DefaultImageHeads
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = configtypes.CacheBackendMemory
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultNamespace
	}
}

func validate(cfg *configtypes.Config) error {
	if err := configtypes.ValidateListenAddress(cfg.Server.Listen); err != nil {
		return fmt.Errorf("server.listen: %w", err)
	}
	if cfg.Metrics.Enabled {
		if err := configtypes.ValidateListenAddress(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen: %w", err)
		}
		if cfg.Metrics.Listen == cfg.Server.Listen {
			return fmt.Errorf("metrics.listen must differ from server.listen")
		}
	}
	switch cfg.Cache.Backend {
	case configtypes.CacheBackendMemory, configtypes.CacheBackendRedis:
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q",
			configtypes.CacheBackendMemory, configtypes.CacheBackendRedis, cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == configtypes.CacheBackendRedis && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when cache.backend is redis")
	}
	if cfg.Events.Enabled && cfg.Events.Log.Path == "" {
		return fmt.Errorf("events.log.path is required when events are enabled")
	}
	return nil
}

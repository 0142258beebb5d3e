package configtypes

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Cache backend constants
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Duration is a time.Duration that unmarshals from yaml strings like "30s".
type Duration time.Duration

// UnmarshalYAML parses either a duration string or a bare number of
// nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
}

// Config is the audit service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Audit    AuditConfig    `yaml:"audit"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Lead     LeadConfig     `yaml:"lead"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Events   EventsConfig   `yaml:"events"`
}

type ServerConfig struct {
	Listen  string   `yaml:"listen"`
	Timeout Duration `yaml:"timeout"`
}

// AuditConfig bounds one audit run.
type AuditConfig struct {
	BudgetMs       int    `yaml:"budget_ms"`
	SubRequests    int    `yaml:"sub_requests"`
	CacheTTLMs     int    `yaml:"cache_ttl_ms"`
	SitemapSamples int    `yaml:"sitemap_samples"`
	ImageHeads     int    `yaml:"image_heads"`
	PSIAPIKey      string `yaml:"psi_api_key"`
	Debug          bool   `yaml:"debug"`
}

type CacheConfig struct {
	Backend     string `yaml:"backend"`     // memory or redis
	Compression string `yaml:"compression"` // none, snappy, lz4 (redis backend only)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SnapshotConfig wires the external blob store and the share link.
type SnapshotConfig struct {
	UploadBase string `yaml:"upload_base"`
	PublicBase string `yaml:"public_base"`
	Token      string `yaml:"token"`
	ShareBase  string `yaml:"share_base"`
}

// LeadConfig wires the transactional email provider behind /lead.
type LeadConfig struct {
	APIKey string `yaml:"api_key"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxAge     int  `yaml:"max_age"`     // days
	MaxBackups int  `yaml:"max_backups"` // files
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

type EventsConfig struct {
	Enabled bool           `yaml:"enabled"`
	Log     EventLogConfig `yaml:"log"`
}

type EventLogConfig struct {
	Path     string         `yaml:"path"`
	Rotation RotationConfig `yaml:"rotation"`
}

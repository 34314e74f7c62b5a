// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Storage() StorageConfig
	Document() DocumentConfig
	Scanner() ScannerConfig
	Remediator() RemediatorConfig
	Interceptor() InterceptorConfig
	Export() ExportConfig
	Server() ServerConfig
	Notify() NotifyConfig

	// Setters used by CLI flag overrides.
	SetDocumentSource(string)
	SetExportDir(string)
	SetStorageDriver(string)
}

// Config holds the entire application configuration. Sections are exported so
// viper can decode into them; callers go through the Interface getters.
type Config struct {
	LoggerSection      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	StorageSection     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	DocumentSection    DocumentConfig    `mapstructure:"document" yaml:"document"`
	ScannerSection     ScannerConfig     `mapstructure:"scanner" yaml:"scanner"`
	RemediatorSection  RemediatorConfig  `mapstructure:"remediator" yaml:"remediator"`
	InterceptorSection InterceptorConfig `mapstructure:"interceptor" yaml:"interceptor"`
	ExportSection      ExportConfig      `mapstructure:"export" yaml:"export"`
	ServerSection      ServerConfig      `mapstructure:"server" yaml:"server"`
	NotifySection      NotifyConfig      `mapstructure:"notify" yaml:"notify"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerSection }
func (c *Config) Storage() StorageConfig         { return c.StorageSection }
func (c *Config) Document() DocumentConfig       { return c.DocumentSection }
func (c *Config) Scanner() ScannerConfig         { return c.ScannerSection }
func (c *Config) Remediator() RemediatorConfig   { return c.RemediatorSection }
func (c *Config) Interceptor() InterceptorConfig { return c.InterceptorSection }
func (c *Config) Export() ExportConfig           { return c.ExportSection }
func (c *Config) Server() ServerConfig           { return c.ServerSection }
func (c *Config) Notify() NotifyConfig           { return c.NotifySection }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetDocumentSource(s string) { c.DocumentSection.Source = s }
func (c *Config) SetExportDir(d string)      { c.ExportSection.Dir = d }
func (c *Config) SetStorageDriver(d string)  { c.StorageSection.Driver = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// StorageConfig selects and configures the blob store backing the log history
// and the snapshot slot.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite", "postgres" or "pebble".
	Driver      string `mapstructure:"driver" yaml:"driver"`
	Path        string `mapstructure:"path" yaml:"path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"-"`
	// Namespace prefixes every key so engine state never collides with unrelated data.
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// DocumentConfig names where the inspected document comes from.
type DocumentConfig struct {
	// Source is a file path or "chrome:<url>" for a live tab.
	Source string `mapstructure:"source" yaml:"source"`
	// LocationHost is the host scripts are compared against. Derived from the
	// chrome URL when empty, "localhost" for files.
	LocationHost  string        `mapstructure:"location_host" yaml:"location_host"`
	ChromeTimeout time.Duration `mapstructure:"chrome_timeout" yaml:"chrome_timeout"`
}

// ScannerConfig holds the classification thresholds.
type ScannerConfig struct {
	InlineScriptMaxLen int      `mapstructure:"inline_script_max_len" yaml:"inline_script_max_len"`
	EmptyDivThreshold  int      `mapstructure:"empty_div_threshold" yaml:"empty_div_threshold"`
	InlineStyleLimit   int      `mapstructure:"inline_style_limit" yaml:"inline_style_limit"`
	MaxClasses         int      `mapstructure:"max_classes" yaml:"max_classes"`
	CommentLimit       int      `mapstructure:"comment_limit" yaml:"comment_limit"`
	DataAttrMaxLen     int      `mapstructure:"data_attr_max_len" yaml:"data_attr_max_len"`
	HiddenLimit        int      `mapstructure:"hidden_limit" yaml:"hidden_limit"`
	IgnoreAttrPrefixes []string `mapstructure:"ignore_attr_prefixes" yaml:"ignore_attr_prefixes"`
	IgnoreRoles        []string `mapstructure:"ignore_roles" yaml:"ignore_roles"`
}

// RemediatorConfig tunes the auto-fixer and its follow-up steps.
type RemediatorConfig struct {
	StyleFixLimit int           `mapstructure:"style_fix_limit" yaml:"style_fix_limit"`
	RescanDelay   time.Duration `mapstructure:"rescan_delay" yaml:"rescan_delay"`
	ExportDelay   time.Duration `mapstructure:"export_delay" yaml:"export_delay"`
	AutoExport    bool          `mapstructure:"auto_export" yaml:"auto_export"`
}

// InterceptorConfig configures the runtime log interceptor and its bounded history.
type InterceptorConfig struct {
	Capacity       int      `mapstructure:"capacity" yaml:"capacity"`
	SuccessMarkers []string `mapstructure:"success_markers" yaml:"success_markers"`
	Source         string   `mapstructure:"source" yaml:"source"`
	CaptureStack   bool     `mapstructure:"capture_stack" yaml:"capture_stack"`
}

// ExportConfig sets where report artifacts are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// NotifyConfig throttles user notifications.
type NotifyConfig struct {
	// RatePerSecond of 0 disables throttling.
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "domsentry")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Storage --
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "~/.domsentry/state.db")
	v.SetDefault("storage.namespace", "domsentry")

	// -- Document --
	v.SetDefault("document.source", "index.html")
	v.SetDefault("document.location_host", "")
	v.SetDefault("document.chrome_timeout", "30s")

	// -- Scanner --
	v.SetDefault("scanner.inline_script_max_len", 1000)
	v.SetDefault("scanner.empty_div_threshold", 5)
	v.SetDefault("scanner.inline_style_limit", 50)
	v.SetDefault("scanner.max_classes", 20)
	v.SetDefault("scanner.comment_limit", 10)
	v.SetDefault("scanner.data_attr_max_len", 500)
	v.SetDefault("scanner.hidden_limit", 20)
	v.SetDefault("scanner.ignore_attr_prefixes", []string{"data-radix", "data-state", "cmdk-"})
	v.SetDefault("scanner.ignore_roles", []string{"dialog", "menu"})

	// -- Remediator --
	v.SetDefault("remediator.style_fix_limit", 10)
	v.SetDefault("remediator.rescan_delay", "500ms")
	v.SetDefault("remediator.export_delay", "1s")
	v.SetDefault("remediator.auto_export", true)

	// -- Interceptor --
	v.SetDefault("interceptor.capacity", 500)
	v.SetDefault("interceptor.success_markers", []string{"✓", "success"})
	v.SetDefault("interceptor.source", "Runtime Console")
	v.SetDefault("interceptor.capture_stack", true)

	// -- Export --
	v.SetDefault("export.dir", ".")

	// -- Server --
	v.SetDefault("server.addr", "127.0.0.1:8089")
	v.SetDefault("server.shutdown_timeout", "10s")

	// -- Notify --
	v.SetDefault("notify.rate_per_second", 5.0)
	v.SetDefault("notify.burst", 10)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("storage.postgres_url", "DOMSENTRY_POSTGRES_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	expanded, err := homedir.Expand(cfg.StorageSection.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand storage.path: %w", err)
	}
	cfg.StorageSection.Path = expanded

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// MaxLogCapacity is the largest log history the interceptor keeps.
const MaxLogCapacity = 500

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.StorageSection.Validate(); err != nil {
		return fmt.Errorf("storage configuration invalid: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LoggerSection.Level); err != nil {
		return fmt.Errorf("logger.level: %w", err)
	}
	if c.InterceptorSection.Capacity <= 0 || c.InterceptorSection.Capacity > MaxLogCapacity {
		return fmt.Errorf("interceptor.capacity must be between 1 and %d", MaxLogCapacity)
	}
	if c.RemediatorSection.StyleFixLimit < 0 {
		return fmt.Errorf("remediator.style_fix_limit must not be negative")
	}
	if c.RemediatorSection.RescanDelay < 0 || c.RemediatorSection.ExportDelay < 0 {
		return fmt.Errorf("remediator delays must not be negative")
	}
	if c.ScannerSection.MaxClasses <= 0 {
		return fmt.Errorf("scanner.max_classes must be a positive integer")
	}
	if c.NotifySection.RatePerSecond < 0 {
		return fmt.Errorf("notify.rate_per_second must not be negative")
	}
	return nil
}

// Validate checks the storage configuration for the selected driver.
func (s *StorageConfig) Validate() error {
	switch strings.ToLower(s.Driver) {
	case "memory":
		return nil
	case "sqlite", "pebble":
		if s.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", s.Driver)
		}
		return nil
	case "postgres":
		if s.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for driver postgres. Ensure DOMSENTRY_POSTGRES_URL is set")
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage.driver: %s", s.Driver)
	}
}

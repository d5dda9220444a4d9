// Package config loads the YAML configuration of the reportpdf service and
// the job files listing the work items of a run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-reportpdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrJobParse        = errors.New("failed to parse job file")
)

// Storage drivers.
const (
	StorageDir      = "dir"
	StoragePostgres = "postgres"
)

// Bounds checked by Validate.
const (
	MinMargin   = 0.25
	MaxMargin   = 3.0
	MaxWorkers  = 32
	MaxAttempts = 10
	MaxDelay    = 10 * time.Second
)

// appName is the directory searched under the user config dir.
const appName = "go-reportpdf"

// Config holds the configuration of the assemble and serve commands.
type Config struct {
	Render    RenderConfig    `yaml:"render"`
	Storage   StorageConfig   `yaml:"storage"`
	PageCount PageCountConfig `yaml:"pagecount"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// RenderConfig configures fragment rendering.
type RenderConfig struct {
	PageSize     string        `yaml:"pageSize"`     // "letter", "a4", "legal"
	Orientation  string        `yaml:"orientation"`  // "portrait", "landscape"
	Margin       float64       `yaml:"margin"`       // inches
	Timeout      time.Duration `yaml:"timeout"`      // per page load
	Workers      int           `yaml:"workers"`      // browser instances, 0 = auto
	Style        string        `yaml:"style"`        // CSS style name
	AssetsPath   string        `yaml:"assetsPath"`   // custom styles/ and templates/ root
	BaseDir      string        `yaml:"baseDir"`      // relative image paths in templates
	HeadingLevel int           `yaml:"headingLevel"` // deepest heading in fragment outlines
}

// StorageConfig selects the attachment store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "dir" or "postgres"
	Dir    string `yaml:"dir"`
	DSN    string `yaml:"dsn"`
}

// PageCountConfig configures the page count retry policy.
type PageCountConfig struct {
	Attempts uint          `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "console" or "json"
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
}

// MetricsConfig enables the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Render: RenderConfig{
			PageSize:     "a4",
			Orientation:  "portrait",
			Margin:       0.5,
			Timeout:      30 * time.Second,
			Style:        "report",
			HeadingLevel: 3,
		},
		Storage:   StorageConfig{Driver: StorageDir, Dir: "."},
		PageCount: PageCountConfig{Attempts: 3, Delay: 100 * time.Millisecond},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			MaxBodyBytes: 4 << 20,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Validate checks every field.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...)))
	}

	switch strings.ToLower(c.Render.PageSize) {
	case "letter", "a4", "legal":
	default:
		add("render.pageSize", "unknown size %q", c.Render.PageSize)
	}
	switch strings.ToLower(c.Render.Orientation) {
	case "portrait", "landscape":
	default:
		add("render.orientation", "unknown orientation %q", c.Render.Orientation)
	}
	if c.Render.Margin < MinMargin || c.Render.Margin > MaxMargin {
		add("render.margin", "must be between %.2f and %.2f, got %.2f", MinMargin, MaxMargin, c.Render.Margin)
	}
	if c.Render.Timeout < 0 {
		add("render.timeout", "must not be negative")
	}
	if c.Render.Workers < 0 || c.Render.Workers > MaxWorkers {
		add("render.workers", "must be between 0 and %d, got %d", MaxWorkers, c.Render.Workers)
	}
	if c.Render.HeadingLevel < 1 || c.Render.HeadingLevel > 6 {
		add("render.headingLevel", "must be between 1 and 6, got %d", c.Render.HeadingLevel)
	}

	switch c.Storage.Driver {
	case StorageDir:
		if c.Storage.Dir == "" {
			add("storage.dir", "required by the dir driver")
		}
	case StoragePostgres:
		if c.Storage.DSN == "" {
			add("storage.dsn", "required by the postgres driver")
		}
	default:
		add("storage.driver", "must be %q or %q, got %q", StorageDir, StoragePostgres, c.Storage.Driver)
	}

	if c.PageCount.Attempts < 1 || c.PageCount.Attempts > MaxAttempts {
		add("pagecount.attempts", "must be between 1 and %d, got %d", MaxAttempts, c.PageCount.Attempts)
	}
	if c.PageCount.Delay < 0 || c.PageCount.Delay > MaxDelay {
		add("pagecount.delay", "must be between 0 and %s, got %s", MaxDelay, c.PageCount.Delay)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		add("logging.format", "must be console or json, got %q", c.Logging.Format)
	}

	if c.Server.Addr == "" {
		add("server.addr", "required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		add("server", "timeouts must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.maxBodyBytes", "must not be negative")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path", "must start with /, got %q", c.Metrics.Path)
	}

	return errors.Join(errs...)
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Fields missing from the file keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !isFilePath(nameOrPath) {
		var err error
		if configPath, err = resolveConfigPath(nameOrPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name in the current
// directory, then in the user config directory, trying .yaml then .yml.
func resolveConfigPath(name string) (string, error) {
	var candidates []string
	for _, ext := range []string{".yaml", ".yml"} {
		candidates = append(candidates, name+ext)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range []string{".yaml", ".yml"} {
			candidates = append(candidates, filepath.Join(dir, appName, name+ext))
		}
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(candidates, ", "))
}

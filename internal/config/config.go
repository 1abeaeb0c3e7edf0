package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "STARNAV_CONFIG"

// Catalogue sources.
const (
	SourceFile     = "file"
	SourceDatabase = "database"
)

// Config holds all configuration for starnav.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Catalog    CatalogConfig    `yaml:"catalog"`
	Index      IndexConfig      `yaml:"index"`
	Planner    PlannerConfig    `yaml:"planner"`
	Range      RangeConfig      `yaml:"range"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Database   DatabaseConfig   `yaml:"database"`
}

// CatalogConfig says where stars are loaded from.
type CatalogConfig struct {
	Source string `yaml:"source"` // "file" or "database"
	Path   string `yaml:"path"`   // .json or .csv, used when source is "file"
}

// IndexConfig tunes the spatial index.
type IndexConfig struct {
	Capacity int `yaml:"capacity"` // points per leaf before subdividing
}

// PlannerConfig bounds a single route search.
type PlannerConfig struct {
	MaxIterations   int           `yaml:"max_iterations"`
	TimeLimit       time.Duration `yaml:"time_limit"`        // inline searches
	WorkerTimeLimit time.Duration `yaml:"worker_time_limit"` // worker searches
}

// RangeConfig tunes the minimum jump range search.
type RangeConfig struct {
	Upper      float64 `yaml:"upper"`
	Resolution float64 `yaml:"resolution"`
}

// DispatcherConfig controls background execution.
type DispatcherConfig struct {
	Enabled       bool          `yaml:"enabled"`
	WorkerTimeout time.Duration `yaml:"worker_timeout"`
	CallerTimeout time.Duration `yaml:"caller_timeout"`
	QueueSize     int           `yaml:"queue_size"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Default returns Config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Catalog: CatalogConfig{
			Source: SourceFile,
			Path:   "data/stars.json",
		},
		Index: IndexConfig{Capacity: 8},
		Planner: PlannerConfig{
			MaxIterations:   50_000,
			TimeLimit:       10 * time.Second,
			WorkerTimeLimit: 30 * time.Second,
		},
		Range: RangeConfig{
			Upper:      100,
			Resolution: 0.1,
		},
		Dispatcher: DispatcherConfig{
			Enabled:       true,
			WorkerTimeout: 30 * time.Second,
			CallerTimeout: 35 * time.Second,
			QueueSize:     4,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "starnav",
			Password: "starnav",
			DBName:   "starnav",
			SSLMode:  "disable",
		},
	}
}

// Path returns the config path from STARNAV_CONFIG, or def when unset.
func Path(def string) string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return def
}

// Load loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Catalog.Source {
	case SourceFile:
		if c.Catalog.Path == "" {
			errs = append(errs, errors.New("catalog.path is required for file source"))
		}
	case SourceDatabase:
	default:
		errs = append(errs, fmt.Errorf("catalog.source %q is not %q or %q", c.Catalog.Source, SourceFile, SourceDatabase))
	}

	if c.Index.Capacity < 1 {
		errs = append(errs, fmt.Errorf("index.capacity must be >= 1, got %d", c.Index.Capacity))
	}
	if c.Planner.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("planner.max_iterations must be >= 1, got %d", c.Planner.MaxIterations))
	}
	if c.Planner.TimeLimit <= 0 || c.Planner.WorkerTimeLimit <= 0 {
		errs = append(errs, errors.New("planner time limits must be positive"))
	}
	if !(c.Range.Upper > 0) || !(c.Range.Resolution > 0) {
		errs = append(errs, errors.New("range.upper and range.resolution must be positive"))
	}

	d := c.Dispatcher
	if d.Enabled {
		if d.WorkerTimeout <= 0 || d.CallerTimeout <= 0 {
			errs = append(errs, errors.New("dispatcher timeouts must be positive"))
		} else if d.CallerTimeout < d.WorkerTimeout {
			errs = append(errs, fmt.Errorf("dispatcher.caller_timeout %s is shorter than worker_timeout %s", d.CallerTimeout, d.WorkerTimeout))
		}
		if d.QueueSize < 1 {
			errs = append(errs, fmt.Errorf("dispatcher.queue_size must be >= 1, got %d", d.QueueSize))
		}
	}

	return errors.Join(errs...)
}

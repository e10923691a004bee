// Package config loads runtime settings from an optional YAML file, an
// optional .env file and INSPECTCORE_* environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INSPECTCORE_"

// Config is the complete runtime configuration.
type Config struct {
	Storage     Storage     `yaml:"storage"`
	Persistence Persistence `yaml:"persistence"`
	Blob        Blob        `yaml:"blob"`
	Log         Log         `yaml:"log"`
	Metrics     Metrics     `yaml:"metrics"`
}

// Storage selects the persistent store.
type Storage struct {
	Driver      string `yaml:"driver"` // memory|sqlite|postgres|disabled
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Persistence carries the platform capability flag. When Enabled is false
// the disabled store is used regardless of Storage.Driver.
type Persistence struct {
	Enabled bool `yaml:"enabled"`
}

// Blob selects the protocol archive backend.
type Blob struct {
	Driver string `yaml:"driver"` // memory|fs|s3
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures the S3-compatible archive.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// Metrics selects the operation metrics exporter.
type Metrics struct {
	Exporter  string `yaml:"exporter"` // prometheus|expvar
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage:     Storage{Driver: "sqlite", SQLitePath: "./inspectcore.db"},
		Persistence: Persistence{Enabled: true},
		Blob:        Blob{Driver: "fs", FSRoot: "./protocols"},
		Log:         Log{Level: "info", Format: "json"},
		Metrics:     Metrics{Exporter: "prometheus", Namespace: "inspectcore"},
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it. envFiles are loaded with godotenv (default ".env"); missing
// files are ignored, and variables already set in the process win.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"STORAGE_DRIVER":    &cfg.Storage.Driver,
		"SQLITE_PATH":       &cfg.Storage.SQLitePath,
		"POSTGRES_DSN":      &cfg.Storage.PostgresDSN,
		"BLOB_DRIVER":       &cfg.Blob.Driver,
		"BLOB_FS_ROOT":      &cfg.Blob.FSRoot,
		"BLOB_S3_BUCKET":    &cfg.Blob.S3.Bucket,
		"BLOB_S3_REGION":    &cfg.Blob.S3.Region,
		"BLOB_S3_ENDPOINT":  &cfg.Blob.S3.Endpoint,
		"LOG_LEVEL":         &cfg.Log.Level,
		"LOG_FORMAT":        &cfg.Log.Format,
		"METRICS_EXPORTER":  &cfg.Metrics.Exporter,
		"METRICS_NAMESPACE": &cfg.Metrics.Namespace,
	}
	for name, target := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*target = strings.TrimSpace(v)
		}
	}
	bools := map[string]*bool{
		"PERSISTENCE_ENABLED": &cfg.Persistence.Enabled,
		"BLOB_S3_PATH_STYLE":  &cfg.Blob.S3.PathStyle,
	}
	for name, target := range bools {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*target = b
	}
	return nil
}

// Validate rejects unknown drivers and incomplete backend settings. An empty
// storage driver selects sqlite.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "", "sqlite", "disabled":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage.postgres_dsn required for postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "memory", "fs":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return errors.New("config: blob.s3.bucket required for s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	switch c.Metrics.Exporter {
	case "", "prometheus", "expvar":
	default:
		return fmt.Errorf("config: unknown metrics exporter %q", c.Metrics.Exporter)
	}
	return nil
}

// PersistenceEnabled reports whether a durable store should be opened.
func (c Config) PersistenceEnabled() bool {
	return c.Persistence.Enabled && c.Storage.Driver != "disabled"
}

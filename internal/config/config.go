// Package config loads fwunpack settings from defaults, an optional YAML file,
// FWUNPACK_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/javi11/fwunpack/internal/checksum"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. FWUNPACK_CHECKSUM_BACKEND.
const EnvPrefix = "FWUNPACK"

// Container formats accepted by the format setting.
const (
	FormatAuto = "auto"
	FormatApp  = "app"
	FormatBin  = "bin"
)

// Log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Config is the complete runtime configuration.
type Config struct {
	Checksum ChecksumConfig `mapstructure:"checksum" yaml:"checksum"`
	Extract  ExtractConfig  `mapstructure:"extract" yaml:"extract"`
	Verify   VerifyConfig   `mapstructure:"verify" yaml:"verify"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ChecksumConfig selects and sizes the payload checksum backend.
type ChecksumConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Workers is the parallel pool size. 0 uses the CPU count.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// ProgressInterval is how many chunks pass between progress log lines.
	ProgressInterval int `mapstructure:"progress_interval" yaml:"progress_interval"`
}

// ExtractConfig holds extraction defaults.
type ExtractConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	// Verify turns on payload checksum and digest verification.
	Verify bool `mapstructure:"verify" yaml:"verify"`
	// OutputDir overrides the default extracted_files directory.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// VerifyConfig holds settings of the verify command.
type VerifyConfig struct {
	Jobs int `mapstructure:"jobs" yaml:"jobs"`
}

// LogConfig configures slog output and the optional rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Checksum: ChecksumConfig{
			Backend:          checksum.BackendAuto,
			Workers:          0,
			ProgressInterval: 1000,
		},
		Extract: ExtractConfig{
			Format: FormatAuto,
		},
		Verify: VerifyConfig{
			Jobs: 2,
		},
		Log: LogConfig{
			Level:      LogLevelInfo,
			MaxSize:    50,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"checksum-backend": "checksum.backend",
	"checksum-workers": "checksum.workers",
	"format":           "extract.format",
	"verify":           "extract.verify",
	"output-dir":       "extract.output_dir",
	"jobs":             "verify.jobs",
	"log-level":        "log.level",
	"log-file":         "log.file",
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("checksum.backend", d.Checksum.Backend)
	v.SetDefault("checksum.workers", d.Checksum.Workers)
	v.SetDefault("checksum.progress_interval", d.Checksum.ProgressInterval)
	v.SetDefault("extract.format", d.Extract.Format)
	v.SetDefault("extract.verify", d.Extract.Verify)
	v.SetDefault("extract.output_dir", d.Extract.OutputDir)
	v.SetDefault("verify.jobs", d.Verify.Jobs)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.compress", d.Log.Compress)
}

// LoadConfig reads configFile (or fwunpack.yaml from the working directory
// and the user config directory when configFile is empty), applies
// environment overrides and the changed flags of flags, and validates the
// result. flags may be nil.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("fwunpack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "fwunpack"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !slices.Contains(checksum.Backends(), c.Checksum.Backend) {
		return fmt.Errorf("checksum backend must be one of %s, got %q",
			strings.Join(checksum.Backends(), ", "), c.Checksum.Backend)
	}
	if c.Checksum.Workers < 0 {
		return fmt.Errorf("checksum workers must be >= 0, got %d", c.Checksum.Workers)
	}
	if c.Checksum.ProgressInterval < 1 {
		return fmt.Errorf("checksum progress_interval must be >= 1, got %d", c.Checksum.ProgressInterval)
	}

	switch c.Extract.Format {
	case FormatAuto, FormatApp, FormatBin:
	default:
		return fmt.Errorf("format must be one of auto, app, bin, got %q", c.Extract.Format)
	}

	if c.Verify.Jobs < 1 {
		return fmt.Errorf("verify jobs must be >= 1, got %d", c.Verify.Jobs)
	}

	switch c.Log.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.File != "" && c.Log.MaxSize < 1 {
		return fmt.Errorf("log max_size must be >= 1 when a log file is set, got %d", c.Log.MaxSize)
	}

	return nil
}

// Package config loads pinlock settings from a config file, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendVault   = "vault"
	BackendKeyring = "keyring"
	envPrefix      = "PINLOCK"

	// DriverFprintd drives a fingerprint reader through the fprintd tools
	DriverFprintd = "fprintd"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Sensor describes one external biometric verifier. With a driver set the
// commands are derived from it and User picks the enrolled account (default:
// the current user).
type Sensor struct {
	Type         string   `mapstructure:"type"`
	Driver       string   `mapstructure:"driver"`
	User         string   `mapstructure:"user"`
	AvailableCmd []string `mapstructure:"available_cmd"`
	VerifyCmd    []string `mapstructure:"verify_cmd"`
}

// Biometric holds biometric gateway settings
type Biometric struct {
	Reason  string   `mapstructure:"reason"`
	Sensors []Sensor `mapstructure:"sensors"`
}

// Config stores all configuration for pinlock
type Config struct {
	DataDir       string        `mapstructure:"data_dir"`
	StateFile     string        `mapstructure:"state_file"`
	SecureBackend string        `mapstructure:"secure_backend"`
	KDFIterations int           `mapstructure:"kdf_iterations"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	SubmitDelay   time.Duration `mapstructure:"submit_delay"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	Biometric     Biometric     `mapstructure:"biometric"`
}

// DefaultDataDir returns the per-user configuration directory for pinlock
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".pinlock"
	}
	return filepath.Join(dir, "pinlock")
}

// Load reads configuration. Precedence: PINLOCK_* environment variables
// (including ones from a .env file in the working directory), then the
// config file, then defaults. configFile may be empty, in which case
// config.yaml is looked up in the data directory and the working directory.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("state_file", "pinlock.db")
	v.SetDefault("secure_backend", BackendVault)
	v.SetDefault("kdf_iterations", 210000)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("cooldown", "30s")
	v.SetDefault("submit_delay", "150ms")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("biometric.reason", "Unlock pinlock")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("data_dir"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir is empty", ErrInvalidConfig)
	case c.StateFile == "":
		return fmt.Errorf("%w: state_file is empty", ErrInvalidConfig)
	case c.SecureBackend != BackendVault && c.SecureBackend != BackendKeyring:
		return fmt.Errorf("%w: secure_backend must be %q or %q, got %q",
			ErrInvalidConfig, BackendVault, BackendKeyring, c.SecureBackend)
	case c.KDFIterations < 1000:
		return fmt.Errorf("%w: kdf_iterations must be at least 1000", ErrInvalidConfig)
	case uint64(c.KDFIterations) > math.MaxUint32:
		return fmt.Errorf("%w: kdf_iterations must be at most %d", ErrInvalidConfig, uint64(math.MaxUint32))
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	case c.Cooldown < time.Second:
		return fmt.Errorf("%w: cooldown must be at least 1s", ErrInvalidConfig)
	case c.SubmitDelay < 0:
		return fmt.Errorf("%w: submit_delay must not be negative", ErrInvalidConfig)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}

	for i, s := range c.Biometric.Sensors {
		switch s.Type {
		case "fingerprint", "face", "iris":
		default:
			return fmt.Errorf("%w: biometric.sensors[%d].type %q", ErrInvalidConfig, i, s.Type)
		}
		switch s.Driver {
		case "":
			if len(s.VerifyCmd) == 0 {
				return fmt.Errorf("%w: biometric.sensors[%d].verify_cmd is empty", ErrInvalidConfig, i)
			}
		case DriverFprintd:
			if s.Type != "fingerprint" {
				return fmt.Errorf("%w: biometric.sensors[%d] driver %q needs type fingerprint", ErrInvalidConfig, i, s.Driver)
			}
		default:
			return fmt.Errorf("%w: biometric.sensors[%d].driver %q", ErrInvalidConfig, i, s.Driver)
		}
	}
	return nil
}

// Package config loads the bridge configuration from a YAML file, the
// environment, and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "SERIALBRIDGE"

// Config is the root configuration.
type Config struct {
	Serial      SerialConfig      `mapstructure:"serial"`
	Relay       RelayConfig       `mapstructure:"relay"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Log         LogConfig         `mapstructure:"log"`
	Device      DeviceConfig      `mapstructure:"device"`

	// Simulate replaces the serial port with a simulated device.
	Simulate bool `mapstructure:"simulate"`
}

// SerialConfig selects the serial port. Port "auto" picks the second
// channel of an FT2232.
type SerialConfig struct {
	Port      string `mapstructure:"port"`
	Baud      int    `mapstructure:"baud"`
	ChunkSize int    `mapstructure:"chunk_size"` // Read requests per batch.
}

type RelayConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type CoordinatorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type GatewayConfig struct {
	// Policy for a request arriving while one of its kind is pending:
	// reject or queue.
	Policy string `mapstructure:"policy"`
	// RequestTimeout bounds each parked request. Zero waits forever.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// Listen is the address for the HTTP endpoints. Empty keeps them
	// in-process.
	Listen string `mapstructure:"listen"`
}

type DeviceConfig struct {
	Capacity int `mapstructure:"capacity"` // Registers in the simulated device.
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:      "auto",
			Baud:      115200,
			ChunkSize: 256,
		},
		Relay:       RelayConfig{Interval: 100 * time.Millisecond},
		Coordinator: CoordinatorConfig{Interval: 250 * time.Millisecond},
		Gateway: GatewayConfig{
			Policy:         "reject",
			RequestTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/serialbridge.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Device: DeviceConfig{Capacity: 4096},
	}
}

// FLAGS maps command line flag names to configuration keys.
var FLAGS = map[string]string{
	"port":      "serial.port",
	"baud":      "serial.baud",
	"simulate":  "simulate",
	"log-level": "log.level",
	"listen":    "gateway.listen",
	"policy":    "gateway.policy",
	"timeout":   "gateway.request_timeout",
}

// Load reads the configuration. With an empty path it checks
// SERIALBRIDGE_CONFIG, then searches for serialbridge.yaml in the working
// directory and ~/.serialbridge. Environment variables use the
// SERIALBRIDGE prefix with "." replaced by "_", for example
// SERIALBRIDGE_SERIAL_PORT. Flags in flags that were set on the command line
// override everything.
func Load(path string, flags *pflag.FlagSet) (cfg *Config, err error) {
	cfg = Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("serial.port", cfg.Serial.Port)
	v.SetDefault("serial.baud", cfg.Serial.Baud)
	v.SetDefault("serial.chunk_size", cfg.Serial.ChunkSize)
	v.SetDefault("relay.interval", cfg.Relay.Interval)
	v.SetDefault("coordinator.interval", cfg.Coordinator.Interval)
	v.SetDefault("gateway.policy", cfg.Gateway.Policy)
	v.SetDefault("gateway.request_timeout", cfg.Gateway.RequestTimeout)
	v.SetDefault("gateway.listen", cfg.Gateway.Listen)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("device.capacity", cfg.Device.Capacity)
	v.SetDefault("simulate", cfg.Simulate)

	if flags != nil {
		for name, key := range FLAGS {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			err = v.BindPFlag(key, flag)
			if err != nil {
				return
			}
		}
	}

	if path == "" {
		path = os.Getenv(ENV_PREFIX + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("serialbridge")
		v.AddConfigPath(".")
		if home, herr := os.UserHomeDir(); herr == nil {
			v.AddConfigPath(filepath.Join(home, ".serialbridge"))
		}
	}

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			err = fmt.Errorf("read config: %w", err)
			return
		}
		err = nil
	}

	err = v.Unmarshal(cfg)
	if err != nil {
		err = fmt.Errorf("decode config: %w", err)
		return
	}

	err = cfg.Validate()
	return
}

// Validate normalizes cfg and checks its values.
func (c *Config) Validate() (err error) {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrLogLevel, c.Log.Level)
	}

	c.Gateway.Policy = strings.ToLower(strings.TrimSpace(c.Gateway.Policy))
	switch c.Gateway.Policy {
	case "", "reject", "queue":
	default:
		return fmt.Errorf("%w: %q", ErrPolicy, c.Gateway.Policy)
	}

	if c.Relay.Interval <= 0 || c.Coordinator.Interval <= 0 {
		return ErrInterval
	}

	if c.Simulate && c.Device.Capacity <= 0 {
		return ErrCapacity
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	return
}

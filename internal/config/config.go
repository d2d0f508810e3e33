// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Idle notification settings
	Idle IdleConfig `mapstructure:"idle"`

	// Polling and smart pause settings
	Watch WatchConfig `mapstructure:"watch"`

	// Local socket export
	IPC IPCConfig `mapstructure:"ipc"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// IdleConfig contains the idle notification settings
type IdleConfig struct {
	TimeoutSeconds   uint32        `mapstructure:"timeout_seconds"`   // Seconds without input before the compositor reports idle
	InputIdle        bool          `mapstructure:"input_idle"`        // Ignore idle inhibitors such as video players
	RoundtripTimeout time.Duration `mapstructure:"roundtrip_timeout"` // Bound on blocking round-trips, 0 waits forever
}

// WatchConfig contains polling settings
type WatchConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	PauseAfter time.Duration `mapstructure:"pause_after"` // 0 disables smart pause
}

// IPCConfig contains the daemon socket settings
type IPCConfig struct {
	SocketPath string `mapstructure:"socket_path"` // Empty means $XDG_RUNTIME_DIR/wayidle.sock
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

const configName = "wayidle"

// maxTimeoutSeconds keeps the timeout representable in milliseconds on the wire.
const maxTimeoutSeconds = (1<<32 - 1) / 1000

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Idle: IdleConfig{
			TimeoutSeconds:   1,
			InputIdle:        false,
			RoundtripTimeout: 5 * time.Second,
		},
		Watch: WatchConfig{
			Interval:   time.Second,
			PauseAfter: 5 * time.Minute,
		},
		IPC: IPCConfig{
			SocketPath: "",
		},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName(configName)
	viper.SetConfigType("toml")

	// If a specific path is set, use only that
	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if dir := userConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("idle.timeout_seconds", DefaultConfig.Idle.TimeoutSeconds)
	viper.SetDefault("idle.input_idle", DefaultConfig.Idle.InputIdle)
	viper.SetDefault("idle.roundtrip_timeout", DefaultConfig.Idle.RoundtripTimeout)

	viper.SetDefault("watch.interval", DefaultConfig.Watch.Interval)
	viper.SetDefault("watch.pause_after", DefaultConfig.Watch.PauseAfter)

	viper.SetDefault("ipc.socket_path", DefaultConfig.IPC.SocketPath)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cfg = loaded
	return nil
}

// Validate checks values the rest of the program relies on
func (c *Config) Validate() error {
	if c.Idle.TimeoutSeconds > maxTimeoutSeconds {
		return fmt.Errorf("idle.timeout_seconds must be at most %d, got %d", maxTimeoutSeconds, c.Idle.TimeoutSeconds)
	}
	if c.Idle.RoundtripTimeout < 0 {
		return fmt.Errorf("idle.roundtrip_timeout must not be negative, got %s", c.Idle.RoundtripTimeout)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval)
	}
	if c.Watch.PauseAfter < 0 {
		return fmt.Errorf("watch.pause_after must not be negative, got %s", c.Watch.PauseAfter)
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		defaults := DefaultConfig
		return &defaults
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save writes the current configuration to GetConfigPath
func Save() error {
	configPath := GetConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path unless a file already exists
// there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("idle.timeout_seconds", DefaultConfig.Idle.TimeoutSeconds)
	v.Set("idle.input_idle", DefaultConfig.Idle.InputIdle)
	v.Set("idle.roundtrip_timeout", DefaultConfig.Idle.RoundtripTimeout.String())
	v.Set("watch.interval", DefaultConfig.Watch.Interval.String())
	v.Set("watch.pause_after", DefaultConfig.Watch.PauseAfter.String())
	v.Set("ipc.socket_path", DefaultConfig.IPC.SocketPath)
	v.Set("logging.log_level", DefaultConfig.Logging.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	// If override is set, use that
	if configPathOverride != "" {
		return configPathOverride
	}

	// Check if config file is already loaded
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if dir := userConfigDir(); dir != "" {
		return filepath.Join(dir, configName+".toml")
	}
	return configName + ".toml"
}

func userConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, configName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", configName)
	}
	return ""
}

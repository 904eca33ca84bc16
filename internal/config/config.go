// Package config provides configuration management for focus.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultBaseURL is where the tracker backend listens by default.
const DefaultBaseURL = "http://127.0.0.1:5000"

// Config holds all configuration for the focus application.
type Config struct {
	Backend       BackendConfig      `mapstructure:"backend"`
	Poll          PollConfig         `mapstructure:"poll"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Log           LogConfig          `mapstructure:"log"`
	Rules         RulesConfig        `mapstructure:"rules"`
	MCP           MCPConfig          `mapstructure:"mcp"`
	Theme         ThemeConfig        `mapstructure:"theme"`
}

// BackendConfig holds the tracker backend connection settings.
type BackendConfig struct {
	BaseURL string   `mapstructure:"base_url"`
	Timeout Duration `mapstructure:"timeout"`
}

// PollConfig controls the status poller cadence.
type PollConfig struct {
	Interval Duration `mapstructure:"interval"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Sound   bool `mapstructure:"sound"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig holds logger settings. An empty File means <data_dir>/focus.log.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// RulesConfig points at the YAML file used by rules import/export.
type RulesConfig struct {
	File string `mapstructure:"file"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ThemeConfig holds dashboard colors.
type ThemeConfig struct {
	ColorFocus    string `mapstructure:"color_focus"`
	ColorPaused   string `mapstructure:"color_paused"`
	ColorIdle     string `mapstructure:"color_idle"`
	ColorBlocked  string `mapstructure:"color_blocked"`
	ColorAllowed  string `mapstructure:"color_allowed"`
	ColorHelp     string `mapstructure:"color_help"`
	GradientStart string `mapstructure:"gradient_start"`
	GradientEnd   string `mapstructure:"gradient_end"`
}

// DefaultThemeConfig returns the default theme configuration.
func DefaultThemeConfig() ThemeConfig {
	return ThemeConfig{
		ColorFocus:    "#7C6FE0",
		ColorPaused:   "#6B7280",
		ColorIdle:     "#4ECDC4",
		ColorBlocked:  "#E06C75",
		ColorAllowed:  "#2ECC71",
		ColorHelp:     "#95A5A6",
		GradientStart: "#7C6FE0",
		GradientEnd:   "#A78BFA",
	}
}

// Duration is a wrapper around time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: DefaultBaseURL,
			Timeout: Duration(5 * time.Second),
		},
		Poll: PollConfig{
			Interval: Duration(time.Second),
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Sound:   true,
		},
		Storage: StorageConfig{
			DataDir: "~/.focus",
		},
		Log: LogConfig{
			Level: "info",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Theme: DefaultThemeConfig(),
	}
}

// Load loads the configuration from the config file, creating it with
// defaults on first use.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from an explicit path.
func LoadFrom(configPath string) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	v.SetEnvPrefix("FOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	dataDir, err := expandHome(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.Storage.DataDir = dataDir
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = DefaultBaseURL
	}
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = Duration(time.Second)
	}

	return &cfg, nil
}

// Save saves the configuration to the default config file.
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveTo(configPath, cfg)
}

// SaveTo writes the configuration to configPath.
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.Set("backend.base_url", cfg.Backend.BaseURL)
	v.Set("backend.timeout", cfg.Backend.Timeout.String())
	v.Set("poll.interval", cfg.Poll.Interval.String())
	v.Set("notifications.enabled", cfg.Notifications.Enabled)
	v.Set("notifications.sound", cfg.Notifications.Sound)
	v.Set("storage.data_dir", cfg.Storage.DataDir)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("rules.file", cfg.Rules.File)
	v.Set("mcp.enabled", cfg.MCP.Enabled)
	v.Set("theme.color_focus", cfg.Theme.ColorFocus)
	v.Set("theme.color_paused", cfg.Theme.ColorPaused)
	v.Set("theme.color_idle", cfg.Theme.ColorIdle)
	v.Set("theme.color_blocked", cfg.Theme.ColorBlocked)
	v.Set("theme.color_allowed", cfg.Theme.ColorAllowed)
	v.Set("theme.color_help", cfg.Theme.ColorHelp)
	v.Set("theme.gradient_start", cfg.Theme.GradientStart)
	v.Set("theme.gradient_end", cfg.Theme.GradientEnd)

	return v.WriteConfig()
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".focus", "config.toml"), nil
}

// GetDBPath returns the path to the database file.
func GetDBPath(cfg *Config) string {
	return filepath.Join(cfg.Storage.DataDir, "focus.db")
}

// GetLogPath returns the log file path.
func GetLogPath(cfg *Config) string {
	if cfg.Log.File != "" {
		return cfg.Log.File
	}
	return filepath.Join(cfg.Storage.DataDir, "focus.log")
}

// GetRulesFile returns the YAML rules file path.
func GetRulesFile(cfg *Config) string {
	if cfg.Rules.File != "" {
		return cfg.Rules.File
	}
	return filepath.Join(cfg.Storage.DataDir, "rules.yaml")
}

// setDefaults sets default values for viper.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("backend.base_url", defaults.Backend.BaseURL)
	v.SetDefault("backend.timeout", defaults.Backend.Timeout.String())
	v.SetDefault("poll.interval", defaults.Poll.Interval.String())
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.sound", true)
	v.SetDefault("storage.data_dir", defaults.Storage.DataDir)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("rules.file", "")
	v.SetDefault("mcp.enabled", true)

	theme := DefaultThemeConfig()
	v.SetDefault("theme.color_focus", theme.ColorFocus)
	v.SetDefault("theme.color_paused", theme.ColorPaused)
	v.SetDefault("theme.color_idle", theme.ColorIdle)
	v.SetDefault("theme.color_blocked", theme.ColorBlocked)
	v.SetDefault("theme.color_allowed", theme.ColorAllowed)
	v.SetDefault("theme.color_help", theme.ColorHelp)
	v.SetDefault("theme.gradient_start", theme.GradientStart)
	v.SetDefault("theme.gradient_end", theme.GradientEnd)
}

// expandHome resolves a leading "~" against the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		path = "~/.focus"
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}

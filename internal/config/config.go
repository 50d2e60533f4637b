// Package config provides configuration loading for owlctl.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/EngrMohsinAzam/OwlCoin/internal/artifact"
	"github.com/EngrMohsinAzam/OwlCoin/internal/journal"
	"github.com/EngrMohsinAzam/OwlCoin/internal/network"
)

// EnvPrefix prefixes environment overrides of config keys (OWL_LOG_LEVEL, ...).
const EnvPrefix = "OWL"

// DefaultEnvFile is loaded into the environment before anything is read.
const DefaultEnvFile = ".env"

// Config holds all configuration for owlctl.
type Config struct {
	DefaultNetwork string                      `mapstructure:"default_network" json:"default_network" yaml:"default_network"`
	Artifacts      string                      `mapstructure:"artifacts" json:"artifacts" yaml:"artifacts"`
	Networks       map[string]network.Override `mapstructure:"networks" json:"networks,omitempty" yaml:"networks,omitempty"`
	Journal        journal.Config              `mapstructure:"journal" json:"journal" yaml:"journal"`
	Log            LogConfig                   `mapstructure:"log" json:"log" yaml:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" json:"config_file,omitempty" yaml:"config_file,omitempty"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"` // text, json
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. It must exist.
	File string
	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string
	// Dir is searched for owlctl.yaml before $HOME/.owlctl.yaml. Defaults to ".".
	Dir string
}

// Load reads .env, the config file and OWL_* environment variables, in
// increasing order of priority over the defaults.
func Load(opts Options) (*Config, error) {
	if err := loadDotEnv(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	_ = v.BindEnv("default_network", "OWL_NETWORK", "OWL_DEFAULT_NETWORK")
	_ = v.BindEnv("journal.driver", "OWL_JOURNAL_DRIVER")
	_ = v.BindEnv("journal.dir", "OWL_JOURNAL_DIR")
	_ = v.BindEnv("journal.dsn", "OWL_JOURNAL_DSN")

	file := opts.File
	if file == "" {
		file = findConfigFile(opts.Dir)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_network", network.DefaultNetwork)
	v.SetDefault("artifacts", artifact.DefaultDir)

	v.SetDefault("journal.driver", journal.DriverFile)
	v.SetDefault("journal.dir", journal.DefaultDir)
	v.SetDefault("journal.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// loadDotEnv loads path (or .env) into the process environment without
// overriding variables that are already set.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func findConfigFile(dir string) string {
	if dir == "" {
		dir = "."
	}
	candidates := []string{
		filepath.Join(dir, "owlctl.yaml"),
		filepath.Join(dir, "owlctl.yml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".owlctl.yaml"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// NetworkTable returns the built-in networks with the configured ones merged
// over them. Viper lowercases keys, so names matching a preset
// case-insensitively override that preset.
func (c *Config) NetworkTable() (network.Table, error) {
	presets := network.Presets()

	overrides := make(map[string]network.Override, len(c.Networks))
	for name, p := range c.Networks {
		overrides[presetName(presets, name)] = p
	}

	table := presets.Merge(overrides)
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func presetName(presets network.Table, name string) string {
	if _, ok := presets[name]; ok {
		return name
	}
	for preset := range presets {
		if strings.EqualFold(preset, name) {
			return preset
		}
	}
	return name
}

// LogLevel parses Log.Level. Unknown levels fall back to info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Package config loads luashell settings from defaults, an optional config file,
// .env files and LUASHELL_* environment variables, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides (LUASHELL_PORT, ...).
const EnvPrefix = "LUASHELL"

// Config keys, shared by viper, flags and the YAML template.
const (
	KeyPort                = "port"
	KeyBaud                = "baud"
	KeyStorage             = "storage"
	KeyScriptExt           = "script-ext"
	KeyMainModule          = "main-module"
	KeyLineCapacity        = "line-capacity"
	KeyDownloadTimeout     = "download-timeout"
	KeyTickInterval        = "tick-interval"
	KeyExecEnabled         = "exec-enabled"
	KeyHousekeepingEnabled = "housekeeping-enabled"
	KeyLogLevel            = "log-level"
	KeyLogFile             = "log-file"
	KeyTestMode            = "test-mode"
)

// Config holds the effective runtime settings.
type Config struct {
	// Port is the serial device; empty means the local console.
	Port string
	Baud int
	// Storage is the afs URL or local directory backing module files.
	Storage    string
	ScriptExt  string
	MainModule string

	LineCapacity    int
	DownloadTimeout time.Duration
	TickInterval    time.Duration

	ExecEnabled         bool
	HousekeepingEnabled bool

	LogLevel string
	LogFile  string
	TestMode bool
}

// Defaults returns the settings used by the firmware this shell mirrors.
func Defaults() Config {
	return Config{
		Baud:                115200,
		Storage:             "./sd",
		ScriptExt:           "lua",
		MainModule:          "main",
		LineCapacity:        300,
		DownloadTimeout:     1000 * time.Millisecond,
		TickInterval:        10 * time.Millisecond,
		ExecEnabled:         true,
		HousekeepingEnabled: true,
		LogLevel:            "info",
	}
}

// SetDefaults registers Defaults() on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyBaud, d.Baud)
	v.SetDefault(KeyStorage, d.Storage)
	v.SetDefault(KeyScriptExt, d.ScriptExt)
	v.SetDefault(KeyMainModule, d.MainModule)
	v.SetDefault(KeyLineCapacity, d.LineCapacity)
	v.SetDefault(KeyDownloadTimeout, d.DownloadTimeout)
	v.SetDefault(KeyTickInterval, d.TickInterval)
	v.SetDefault(KeyExecEnabled, d.ExecEnabled)
	v.SetDefault(KeyHousekeepingEnabled, d.HousekeepingEnabled)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFile, d.LogFile)
	v.SetDefault(KeyTestMode, d.TestMode)
}

// Load resolves the configuration into a validated Config.
// configFile may be empty, in which case luashell.yaml is searched in the
// working directory and the user config directory; a missing file is not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("luashell")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "luashell"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromViper builds a Config from the current viper values without validation.
func FromViper(v *viper.Viper) Config {
	return Config{
		Port:                v.GetString(KeyPort),
		Baud:                v.GetInt(KeyBaud),
		Storage:             v.GetString(KeyStorage),
		ScriptExt:           strings.TrimPrefix(v.GetString(KeyScriptExt), "."),
		MainModule:          v.GetString(KeyMainModule),
		LineCapacity:        v.GetInt(KeyLineCapacity),
		DownloadTimeout:     v.GetDuration(KeyDownloadTimeout),
		TickInterval:        v.GetDuration(KeyTickInterval),
		ExecEnabled:         v.GetBool(KeyExecEnabled),
		HousekeepingEnabled: v.GetBool(KeyHousekeepingEnabled),
		LogLevel:            v.GetString(KeyLogLevel),
		LogFile:             v.GetString(KeyLogFile),
		TestMode:            v.GetBool(KeyTestMode),
	}
}

// Validate checks the invariants the shell relies on.
func (c Config) Validate() error {
	if c.LineCapacity <= 0 {
		return fmt.Errorf("line-capacity must be positive, got %d", c.LineCapacity)
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download-timeout must be positive, got %s", c.DownloadTimeout)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick-interval must be positive, got %s", c.TickInterval)
	}
	if c.TickInterval >= c.DownloadTimeout {
		return fmt.Errorf("tick-interval %s must be shorter than download-timeout %s", c.TickInterval, c.DownloadTimeout)
	}
	if c.ScriptExt == "" || strings.ContainsAny(c.ScriptExt, "/. ") {
		return fmt.Errorf("invalid script-ext %q", c.ScriptExt)
	}
	if c.Storage == "" {
		return fmt.Errorf("storage must be set")
	}
	if c.Port != "" && c.Baud <= 0 {
		return fmt.Errorf("baud must be positive for serial port %s", c.Port)
	}
	return nil
}

// loadDotEnv loads .env from the user config directory and then the working directory.
// Variables already present in the environment are never overwritten.
func loadDotEnv() error {
	var candidates []string
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "luashell", ".env"))
	}
	candidates = append(candidates, ".env")

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue // Missing .env file is not an error
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// fileView is the YAML shape of Config with durations rendered as strings.
type fileView struct {
	Port                string `yaml:"port"`
	Baud                int    `yaml:"baud"`
	Storage             string `yaml:"storage"`
	ScriptExt           string `yaml:"script-ext"`
	MainModule          string `yaml:"main-module"`
	LineCapacity        int    `yaml:"line-capacity"`
	DownloadTimeout     string `yaml:"download-timeout"`
	TickInterval        string `yaml:"tick-interval"`
	ExecEnabled         bool   `yaml:"exec-enabled"`
	HousekeepingEnabled bool   `yaml:"housekeeping-enabled"`
	LogLevel            string `yaml:"log-level"`
	LogFile             string `yaml:"log-file,omitempty"`
}

// WriteYAML renders c in the luashell.yaml format.
func WriteYAML(w io.Writer, c Config) error {
	view := fileView{
		Port:                c.Port,
		Baud:                c.Baud,
		Storage:             c.Storage,
		ScriptExt:           c.ScriptExt,
		MainModule:          c.MainModule,
		LineCapacity:        c.LineCapacity,
		DownloadTimeout:     c.DownloadTimeout.String(),
		TickInterval:        c.TickInterval.String(),
		ExecEnabled:         c.ExecEnabled,
		HousekeepingEnabled: c.HousekeepingEnabled,
		LogLevel:            c.LogLevel,
		LogFile:             c.LogFile,
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

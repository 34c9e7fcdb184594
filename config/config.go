// Package config loads the kernel simulator's configuration from a file,
// the environment and command line flags.
package config

import (
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sanjaysanjel019/serenity/limits"
)

const (
	// EnvPrefix prefixes every environment override, e.g. WAITK_LOGGING_LEVEL.
	EnvPrefix = "WAITK"
	// FileName is the config file base name searched for when no path is given.
	FileName = "waitsim"
)

// Config_t is the complete simulator configuration.
type Config_t struct {
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LimitsConfig mirrors limits.Syslimit_t.
type LimitsConfig struct {
	// Total threads in the system (default: 10000)
	Sysprocs int `mapstructure:"sysprocs"`
	// Unreaped children per process (default: 1024)
	Noproc uint `mapstructure:"noproc"`
	// Pages per address space (default: 32768)
	Pages int `mapstructure:"pages"`
}

// LoggingConfig controls the phuslu logger.
type LoggingConfig struct {
	// trace, debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`
	// console or json (default: console)
	Format string `mapstructure:"format"`
	// stdout or stderr (default: stderr)
	Writer string `mapstructure:"writer"`
	// Report caller file:line (default: false)
	Caller bool `mapstructure:"caller"`
	// Colorize console output (default: false)
	Color bool `mapstructure:"color"`
}

// MetricsConfig controls the prometheus endpoint of `waitsim serve`.
type MetricsConfig struct {
	// Listen address (default: ":9190")
	ListenAddress string `mapstructure:"listen_address"`
	// Metrics endpoint path (default: "/metrics")
	Path string `mapstructure:"path"`
}

// SetDefaults installs the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	def := limits.MkSysLimit()
	v.SetDefault("limits.sysprocs", def.Sysprocs)
	v.SetDefault("limits.noproc", def.Noproc)
	v.SetDefault("limits.pages", def.Pages)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.writer", "stderr")
	v.SetDefault("logging.caller", false)
	v.SetDefault("logging.color", false)

	v.SetDefault("metrics.listen_address", ":9190")
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads the configuration into a Config_t. An empty path searches the
// working directory and ~/.waitsim for a waitsim.{toml,yaml,json}; a missing
// file is not an error, a missing explicit path is.
func Load(v *viper.Viper, path string) (*Config_t, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+FileName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config_t{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the kernel cannot run with.
func (c *Config_t) Validate() error {
	if c.Limits.Sysprocs <= 0 {
		return errors.Errorf("limits.sysprocs must be positive, got %d", c.Limits.Sysprocs)
	}
	if c.Limits.Noproc == 0 {
		return errors.New("limits.noproc must be positive")
	}
	if c.Limits.Pages <= 0 {
		return errors.Errorf("limits.pages must be positive, got %d", c.Limits.Pages)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Syslimit converts the limits section into the kernel's limit record.
func (c *Config_t) Syslimit() *limits.Syslimit_t {
	return &limits.Syslimit_t{
		Sysprocs: c.Limits.Sysprocs,
		Noproc:   c.Limits.Noproc,
		Pages:    c.Limits.Pages,
	}
}

// Public domain.

// Package config loads run settings from defaults, an optional YAML file,
// SPECFIT_ environment variables and command line flags, in increasing
// priority.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/soniakeys/specfit/internal/fitter"
	"github.com/soniakeys/specfit/internal/lmsolver"
)

// EnvPrefix prefixes environment overrides, as in SPECFIT_WORKERS.
const EnvPrefix = "SPECFIT"

// Config holds the resolved settings.
type Config struct {
	Workers     string  `mapstructure:"workers"`
	Granularity string  `mapstructure:"granularity"`
	MaxIter     int     `mapstructure:"max_iter"`
	FTol        float64 `mapstructure:"ftol"`
	XTol        float64 `mapstructure:"xtol"`
	GTol        float64 `mapstructure:"gtol"`
	LogLevel    string  `mapstructure:"log_level"`

	File string `mapstructure:"-"` // config file used, if any
}

// NewViper returns a viper instance with defaults and environment
// overrides set up.  Callers may bind flags to it before Decode.
func NewViper() *viper.Viper {
	v := viper.New()
	d := lmsolver.DefaultSettings()
	v.SetDefault("workers", "max")
	v.SetDefault("granularity", "step")
	v.SetDefault("max_iter", d.MaxIter)
	v.SetDefault("ftol", d.FTol)
	v.SetDefault("xtol", d.XTol)
	v.SetDefault("gtol", d.GTol)
	v.SetDefault("log_level", "info")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Decode reads the config file at path, if path is not empty, and
// resolves v into a Config.
func Decode(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.File = v.ConfigFileUsed()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load is Decode on a fresh NewViper.
func Load(path string) (*Config, error) {
	return Decode(NewViper(), path)
}

func (c *Config) validate() error {
	if _, err := fitter.ParseWorkers(c.Workers); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := fitter.ParseGranularity(c.Granularity); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxIter < 1 {
		return fmt.Errorf("config: max_iter %d, want at least 1", c.MaxIter)
	}
	if c.FTol < 0 || c.XTol < 0 || c.GTol < 0 {
		return fmt.Errorf("config: negative tolerance")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Settings returns the solver settings.
func (c *Config) Settings() lmsolver.Settings {
	return lmsolver.Settings{MaxIter: c.MaxIter, FTol: c.FTol, XTol: c.XTol, GTol: c.GTol}
}

// FitterOptions translates c for fitter.New.
func (c *Config) FitterOptions() ([]fitter.Option, error) {
	w, err := fitter.ParseWorkers(c.Workers)
	if err != nil {
		return nil, err
	}
	g, err := fitter.ParseGranularity(c.Granularity)
	if err != nil {
		return nil, err
	}
	return []fitter.Option{
		fitter.WithWorkers(w),
		fitter.WithGranularity(g),
		fitter.WithSettings(c.Settings()),
	}, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lv, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		lv = logrus.InfoLevel
	}
	l.SetLevel(lv)
	return l
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agvlabs/launchstat/internal/model"
	"github.com/agvlabs/launchstat/internal/timespec"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Interval       string        `mapstructure:"interval"`
	Window         string        `mapstructure:"window"`
	Refresh        time.Duration `mapstructure:"refresh"`
	Tail           int           `mapstructure:"tail"`
	TopNodes       int           `mapstructure:"top-nodes"`
	Width          int           `mapstructure:"width"`
	Node           string        `mapstructure:"node"`
	ErrorsOnly     bool          `mapstructure:"errors-only"`
	From           string        `mapstructure:"from"`
	To             string        `mapstructure:"to"`
	CSVPath        string        `mapstructure:"csv"`
	CheckpointPath string        `mapstructure:"checkpoint"`
	Follow         bool          `mapstructure:"follow"`
	FullRescan     bool          `mapstructure:"full"`
	ConfigPath     string        `mapstructure:"-"`

	// Derived from the string fields by finalize.
	IntervalSec int64   `mapstructure:"-"`
	WindowSec   int64   `mapstructure:"-"`
	FromTS      float64 `mapstructure:"-"`
	ToTS        float64 `mapstructure:"-"`
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LAUNCHSTAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("interval", model.DefaultInterval)
	v.SetDefault("window", model.DefaultWindow)
	v.SetDefault("refresh", model.DefaultRefresh)
	v.SetDefault("tail", model.DefaultTail)
	v.SetDefault("top-nodes", model.DefaultTopNodes)
	v.SetDefault("width", 0)
	v.SetDefault("node", "")
	v.SetDefault("errors-only", false)
	v.SetDefault("from", "")
	v.SetDefault("to", "")
	v.SetDefault("csv", "")
	v.SetDefault("checkpoint", "")
	v.SetDefault("follow", false)
	v.SetDefault("full", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "launchstat", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	return cfg, nil
}

// finalize parses the human-facing time fields and validates the result.
// Everything here must fail before any file is opened.
func (cfg *appConfig) finalize(now time.Time) error {
	var err error
	cfg.IntervalSec, err = timespec.ParseInterval(cfg.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	cfg.WindowSec, err = timespec.ParseInterval(cfg.Window)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	if cfg.From != "" {
		cfg.FromTS, err = timespec.ParseTimeArg(cfg.From, now)
		if err != nil {
			return fmt.Errorf("invalid from time: %w", err)
		}
	}
	if cfg.To != "" {
		cfg.ToTS, err = timespec.ParseTimeArg(cfg.To, now)
		if err != nil {
			return fmt.Errorf("invalid to time: %w", err)
		}
	}
	if cfg.FromTS != 0 && cfg.ToTS != 0 && cfg.FromTS >= cfg.ToTS {
		return fmt.Errorf("from time %s is not before to time %s", cfg.From, cfg.To)
	}
	if cfg.Refresh <= 0 {
		return fmt.Errorf("invalid refresh: %v", cfg.Refresh)
	}
	if cfg.Tail < 0 {
		return fmt.Errorf("invalid tail: %d", cfg.Tail)
	}
	if cfg.TopNodes <= 0 {
		return fmt.Errorf("invalid top-nodes: %d", cfg.TopNodes)
	}
	return nil
}

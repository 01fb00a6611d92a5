package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/vxlview/internal/duckdb"
	"github.com/tinytelemetry/vxlview/internal/httpserver"
	"github.com/tinytelemetry/vxlview/internal/tui"
)

const (
	defaultQueryTimeout    = duckdb.DefaultQueryTimeout
	defaultInsertBatchSize = duckdb.DefaultBatchSize
	defaultScanAhead       = tui.DefaultScanAhead
	defaultAPIAddr         = httpserver.DefaultAddr
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	LogDir             string        `mapstructure:"log-dir"`
	ExportDir          string        `mapstructure:"export-dir"`
	Timezone           string        `mapstructure:"timezone"`
	ReverseScrollWheel bool          `mapstructure:"reverse-scroll-wheel"`
	ScanAhead          int           `mapstructure:"scan-ahead"`
	APIAddr            string        `mapstructure:"api-addr"`
	QueryTimeout       time.Duration `mapstructure:"query-timeout"`
	InsertBatchSize    int           `mapstructure:"insert-batch-size"`
	Preset             string        `mapstructure:"preset"`
	ConfigPath         string        `mapstructure:"-"` // not from config file
}

// configKeys are the flags that may also come from the config file or the
// environment.
var configKeys = []string{"log-dir", "export-dir", "timezone", "reverse-scroll-wheel", "api-addr", "preset"}

// defaultLogDir is where the logging subsystem writes its .vxl files:
// $XDG_STATE_HOME/vxkex/logs, falling back to ~/.local/state.
func defaultLogDir(home string) string {
	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, "vxkex", "logs")
}

func loadConfig(flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("VXLVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("log-dir", defaultLogDir(home))
	v.SetDefault("export-dir", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("reverse-scroll-wheel", false)
	v.SetDefault("scan-ahead", defaultScanAhead)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("preset", "")

	for _, name := range configKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(name, f); err != nil {
				return cfg, err
			}
		}
	}

	configPath, _ := flags.GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "vxlview", "config.yml"))
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
	if cfg.ScanAhead <= 0 {
		return cfg, fmt.Errorf("invalid scan-ahead: %d", cfg.ScanAhead)
	}
	if cfg.InsertBatchSize <= 0 {
		return cfg, fmt.Errorf("invalid insert-batch-size: %d", cfg.InsertBatchSize)
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.LogDir, &cfg.ExportDir, &cfg.Preset} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	return cfg, nil
}

// location resolves the timezone setting: "Local", "UTC" or an IANA name.
func (c appConfig) location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

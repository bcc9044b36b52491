package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luinbytes/recovery-dedup/audit"
	"github.com/luinbytes/recovery-dedup/scan"
	"github.com/luinbytes/recovery-dedup/similar"
)

const (
	envPrefix         = "RECUP"
	localConfigFile   = ".recuprc.yaml"
	defaultConfigName = "config.yaml"
	appName           = "recovery-dedup"
)

// Config holds the settings that may come from flags, the environment or a
// config file.
type Config struct {
	Root            string        `mapstructure:"root"`
	RecupPrefix     string        `mapstructure:"recup_prefix"`
	ReportsDirname  string        `mapstructure:"reports_dirname"`
	ExcludeDirnames []string      `mapstructure:"exclude_dirnames"`
	Workers         int           `mapstructure:"workers"`
	Similar         SimilarConfig `mapstructure:"similar"`
	Log             LogConfig     `mapstructure:"log"`
}

type SimilarConfig struct {
	MaxDistance int `mapstructure:"max_distance"`
	FuzzyCap    int `mapstructure:"fuzzy_cap"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// RunFlags are only ever taken from the command line. A config file or an
// environment variable must never turn a dry run into a real one.
type RunFlags struct {
	Apply   bool
	Yes     bool
	Review  bool
	NoColor bool
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"root":                 "root",
	"recup_prefix":         "recup-prefix",
	"workers":              "workers",
	"similar.max_distance": "max-distance",
	"similar.fuzzy_cap":    "fuzzy-cap",
	"log.level":            "log-level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", "")
	v.SetDefault("recup_prefix", scan.DefaultPrefix)
	v.SetDefault("reports_dirname", audit.DefaultDirname)
	v.SetDefault("exclude_dirnames", []string{audit.DefaultDirname})
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("similar.max_distance", similar.DefaultMaxDistance)
	v.SetDefault("similar.fuzzy_cap", similar.DefaultFuzzyCap)
	v.SetDefault("log.level", "info")
}

// configFile resolves which config file to read.
// Precedence: explicit --config > ./.recuprc.yaml > ~/.config/recovery-dedup/config.yaml
func configFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(localConfigFile); err == nil {
		return localConfigFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	global := filepath.Join(home, ".config", appName, defaultConfigName)
	if _, err := os.Stat(global); err == nil {
		return global
	}
	return ""
}

// loadConfig merges defaults, the config file, RECUP_* variables and the
// flags of cmd, in increasing order of precedence.
func loadConfig(v *viper.Viper, cmd *cobra.Command, explicit string) (Config, string, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, "", err
			}
		}
	}

	path := configFile(explicit)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, "", fmt.Errorf("cannot read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("cannot parse config: %w", err)
	}
	return cfg, path, nil
}

// Validate rejects settings no run can proceed with.
func (c Config) Validate() error {
	var errs []error
	if c.RecupPrefix == "" {
		errs = append(errs, errors.New("recup_prefix must not be empty"))
	}
	if c.ReportsDirname == "" || strings.ContainsRune(c.ReportsDirname, filepath.Separator) {
		errs = append(errs, fmt.Errorf("reports_dirname %q must be a plain folder name", c.ReportsDirname))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Similar.MaxDistance < 0 || c.Similar.MaxDistance > 64 {
		errs = append(errs, fmt.Errorf("max_distance must be between 0 and 64, got %d", c.Similar.MaxDistance))
	}
	if c.Similar.FuzzyCap < 0 {
		errs = append(errs, fmt.Errorf("fuzzy_cap must not be negative, got %d", c.Similar.FuzzyCap))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	return errors.Join(errs...)
}

// Exclude returns the folder names skipped while scanning. The reports
// folder is always among them.
func (c Config) Exclude() []string {
	out := append([]string{}, c.ExcludeDirnames...)
	for _, name := range out {
		if name == c.ReportsDirname {
			return out
		}
	}
	return append(out, c.ReportsDirname)
}

// Package config loads the settings of the itch command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/sarchlab/itch/judge"
)

// EnvPrefix prefixes the environment variables that override the
// configuration.
const EnvPrefix = "ITCH_"

type Config struct {
	Judge   JudgeConfig   `toml:"judge"`
	Stage   StageConfig   `toml:"stage"`
	Logging LoggingConfig `toml:"logging"`
	Monitor MonitorConfig `toml:"monitor"`
	Output  OutputConfig  `toml:"output"`
	Batch   BatchConfig   `toml:"batch"`
}

type JudgeConfig struct {
	Acceleration  judge.Acceleration `toml:"acceleration"`
	ActionTimeout time.Duration      `toml:"action_timeout"`
	RunTimeout    time.Duration      `toml:"run_timeout"` // wall clock limit of a whole run
	Profile       bool               `toml:"profile"`
}

type StageConfig struct {
	StepFrequency float64 `toml:"step_frequency"` // Hz
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type MonitorConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	Open    bool   `toml:"open"`
	Assets  string `toml:"assets"` // serve the pages from this directory
}

type OutputConfig struct {
	Dir    string `toml:"dir"`
	Format string `toml:"format"` // "console" or "json"
	Record bool   `toml:"record"` // export runs to SQLite
}

type BatchConfig struct {
	Workers int `toml:"workers"`
}

// Load reads the configuration. The environment files are loaded first,
// without overriding variables that are already set; a missing file is
// skipped. The TOML file at path, if any, is applied over the defaults and
// ITCH_* variables are applied last.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env %s: %w", f, err)
		}
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Judge: JudgeConfig{
			Acceleration:  judge.NoAcceleration,
			ActionTimeout: judge.DefaultActionTimeout,
			RunTimeout:    5 * time.Minute,
		},
		Stage: StageConfig{
			StepFrequency: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Monitor: MonitorConfig{
			Port: 0,
		},
		Output: OutputConfig{
			Dir:    ".",
			Format: "console",
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"ACCELERATION", floatSetter(&c.Judge.Acceleration.Factor)},
		{"TIME_ACCELERATION", floatSetter(&c.Judge.Acceleration.Time)},
		{"EVENT_ACCELERATION", floatSetter(&c.Judge.Acceleration.Event)},
		{"ACTION_TIMEOUT", durationSetter(&c.Judge.ActionTimeout)},
		{"RUN_TIMEOUT", durationSetter(&c.Judge.RunTimeout)},
		{"PROFILE", boolSetter(&c.Judge.Profile)},
		{"STEP_FREQUENCY", floatSetter(&c.Stage.StepFrequency)},
		{"LOG_LEVEL", stringSetter(&c.Logging.Level)},
		{"LOG_FORMAT", stringSetter(&c.Logging.Format)},
		{"MONITOR", boolSetter(&c.Monitor.Enabled)},
		{"MONITOR_PORT", intSetter(&c.Monitor.Port)},
		{"MONITOR_ASSETS", stringSetter(&c.Monitor.Assets)},
		{"OUTPUT_DIR", stringSetter(&c.Output.Dir)},
		{"OUTPUT_FORMAT", stringSetter(&c.Output.Format)},
		{"RECORD", boolSetter(&c.Output.Record)},
		{"WORKERS", intSetter(&c.Batch.Workers)},
	}

	for _, o := range overrides {
		v, ok := lookup(EnvPrefix + o.key)
		if !ok {
			continue
		}

		if err := o.apply(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, o.key, err)
		}
	}

	return nil
}

func floatSetter(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}

		*dst = v

		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}

		*dst = v

		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}

		*dst = v

		return nil
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(s string) error {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}

		*dst = v

		return nil
	}
}

func stringSetter(dst *string) func(string) error {
	return func(s string) error {
		*dst = s
		return nil
	}
}

// Validate checks the values that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Stage.StepFrequency <= 0:
		return fmt.Errorf("step frequency must be positive, got %g", c.Stage.StepFrequency)
	case c.Judge.ActionTimeout <= 0:
		return fmt.Errorf("action timeout must be positive, got %s", c.Judge.ActionTimeout)
	case c.Batch.Workers <= 0:
		return fmt.Errorf("batch workers must be positive, got %d", c.Batch.Workers)
	case c.Output.Format != "console" && c.Output.Format != "json":
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}

	return nil
}

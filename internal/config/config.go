package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/sigreplay/internal/backtest"
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/instrument"
	"github.com/spf13/viper"
)

type Config struct {
	Log         LogConfig                 `mapstructure:"log"`
	Simulation  SimulationConfig          `mapstructure:"simulation"`
	Data        DataConfig                `mapstructure:"data"`
	Output      OutputConfig              `mapstructure:"output"`
	Sweep       SweepConfig               `mapstructure:"sweep"`
	Strategies  map[string]StrategyConfig `mapstructure:"strategies"`
	Instruments []instrument.Instrument   `mapstructure:"instruments"`
	Metrics     MetricsConfig             `mapstructure:"metrics"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SimulationConfig holds the replay parameters shared by every run.
type SimulationConfig struct {
	ProfitFactor        float64    `mapstructure:"profit_factor"`
	LossFactor          float64    `mapstructure:"loss_factor"`
	ExecutionDelayHours int        `mapstructure:"execution_delay_hours"`
	UseSpread           bool       `mapstructure:"use_spread"`
	IncludeIncomplete   bool       `mapstructure:"include_incomplete"`
	Gain                GainConfig `mapstructure:"gain"`
}

// GainConfig selects how take-profit distances are sized.
type GainConfig struct {
	Mode   string  `mapstructure:"mode"` // "range", "pips" or "column"
	Pips   float64 `mapstructure:"pips"`
	Column string  `mapstructure:"column"`
}

// DataConfig describes where candle files are read from.
type DataConfig struct {
	Source            ArchiveConfig `mapstructure:"source"`
	CoarseGranularity string        `mapstructure:"coarse_granularity"`
	FineGranularity   string        `mapstructure:"fine_granularity"`
	From              string        `mapstructure:"from"` // RFC3339 or 2006-01-02, inclusive
	To                string        `mapstructure:"to"`   // exclusive
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// OutputConfig holds the result sinks. Both are optional.
type OutputConfig struct {
	Archive  ResultArchiveConfig `mapstructure:"archive"`
	Postgres PostgresConfig      `mapstructure:"postgres"`
}

type ResultArchiveConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	ArchiveConfig `mapstructure:",squash"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SweepConfig drives the parameter sweep command.
type SweepConfig struct {
	Workers    int              `mapstructure:"workers"`
	Strategy   string           `mapstructure:"strategy"`
	Pairs      []string         `mapstructure:"pairs"`
	Currencies []string         `mapstructure:"currencies"`
	ParamSets  []map[string]any `mapstructure:"param_sets"`
}

type StrategyConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Params  map[string]any `mapstructure:"params"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

// Load reads configuration from file. Keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("simulation.profit_factor", d.Simulation.ProfitFactor)
	v.SetDefault("simulation.loss_factor", d.Simulation.LossFactor)
	v.SetDefault("simulation.execution_delay_hours", d.Simulation.ExecutionDelayHours)
	v.SetDefault("simulation.use_spread", d.Simulation.UseSpread)
	v.SetDefault("simulation.include_incomplete", d.Simulation.IncludeIncomplete)
	v.SetDefault("simulation.gain.mode", d.Simulation.Gain.Mode)
	v.SetDefault("data.source.type", d.Data.Source.Type)
	v.SetDefault("data.source.path", d.Data.Source.Path)
	v.SetDefault("data.coarse_granularity", d.Data.CoarseGranularity)
	v.SetDefault("data.fine_granularity", d.Data.FineGranularity)
	v.SetDefault("output.archive.type", d.Output.Archive.Type)
	v.SetDefault("output.postgres.max_conns", d.Output.Postgres.MaxConns)
	v.SetDefault("sweep.workers", d.Sweep.Workers)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	bt := backtest.DefaultConfig()
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Simulation: SimulationConfig{
			ProfitFactor:        bt.ProfitFactor,
			LossFactor:          bt.LossFactor,
			ExecutionDelayHours: int(bt.ExecutionDelay / time.Hour),
			UseSpread:           bt.UseSpread,
			IncludeIncomplete:   bt.IncludeIncomplete,
			Gain:                GainConfig{Mode: "range"},
		},
		Data: DataConfig{
			Source:            ArchiveConfig{Type: "localfs", Path: "./data"},
			CoarseGranularity: "H1",
			FineGranularity:   "M5",
		},
		Output: OutputConfig{
			Archive:  ResultArchiveConfig{ArchiveConfig: ArchiveConfig{Type: "localfs"}},
			Postgres: PostgresConfig{MaxConns: 4},
		},
		Sweep: SweepConfig{
			Workers: 4,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.Backtest(); err != nil {
		return err
	}
	if c.Simulation.ExecutionDelayHours < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("execution_delay_hours cannot be negative, got %d", c.Simulation.ExecutionDelayHours))
	}

	switch c.Simulation.Gain.Mode {
	case "range":
	case "pips":
		if !(c.Simulation.Gain.Pips > 0) {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("gain.pips must be positive, got %v", c.Simulation.Gain.Pips))
		}
	case "column":
		if c.Simulation.Gain.Column == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("gain.column required when gain mode is column"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown gain mode %q", c.Simulation.Gain.Mode))
	}

	if err := c.Data.Source.validate("data.source"); err != nil {
		return err
	}
	if c.Data.CoarseGranularity == "" || c.Data.FineGranularity == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("coarse_granularity and fine_granularity are required"))
	}
	if c.Data.CoarseGranularity == c.Data.FineGranularity {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("coarse and fine granularity must differ, both are %s", c.Data.CoarseGranularity))
	}
	from, to, err := c.Data.Window()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.from %s must be before data.to %s", c.Data.From, c.Data.To))
	}

	if c.Output.Archive.Enabled {
		if err := c.Output.Archive.validate("output.archive"); err != nil {
			return err
		}
	}

	if c.Sweep.Workers < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sweep.workers must be at least 1, got %d", c.Sweep.Workers))
	}

	if _, err := instrument.NewTable(c.Instruments); err != nil {
		return err
	}

	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("metrics.textfile required when metrics are enabled"))
	}

	return nil
}

func (a ArchiveConfig) validate(key string) error {
	switch a.Type {
	case "localfs":
		if a.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("%s.path required for localfs", key))
		}
	case "s3":
		if a.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("%s.s3.bucket required for s3", key))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("%s.type must be localfs or s3, got %q", key, a.Type))
	}
	return nil
}

// Backtest converts the simulation section into a backtest configuration.
func (c *Config) Backtest() (backtest.Config, error) {
	cfg := backtest.Config{
		ProfitFactor:      c.Simulation.ProfitFactor,
		LossFactor:        c.Simulation.LossFactor,
		ExecutionDelay:    time.Duration(c.Simulation.ExecutionDelayHours) * time.Hour,
		UseSpread:         c.Simulation.UseSpread,
		IncludeIncomplete: c.Simulation.IncludeIncomplete,
	}
	return cfg, cfg.Validate()
}

// Window parses the optional data window. Zero times mean unbounded.
func (d DataConfig) Window() (from, to time.Time, err error) {
	if from, err = parseTime("data.from", d.From); err != nil {
		return
	}
	to, err = parseTime("data.to", d.To)
	return
}

func parseTime(key, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.WrapError(core.ErrConfigInvalid,
		fmt.Errorf("%s: cannot parse %q as RFC3339 or YYYY-MM-DD", key, s))
}

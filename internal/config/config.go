// Package config loads the pipeline configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/features"
)

// EnvPrefix prefixes environment overrides, e.g. FEATURELAB_SOURCES_FRED_API_KEY.
const EnvPrefix = "FEATURELAB"

// Config is the full configuration surface of a run.
type Config struct {
	Calendar    DateRange         `mapstructure:"calendar"`
	Range       DateRange         `mapstructure:"range"`
	Instruments []string          `mapstructure:"instruments"`
	Indicators  []IndicatorConfig `mapstructure:"indicators"`
	Horizons    []HorizonConfig   `mapstructure:"horizons"`
	Features    FeaturesConfig    `mapstructure:"features"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// DateRange is an inclusive YYYY-MM-DD range.
type DateRange struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// Bounds parses the range.
func (r DateRange) Bounds() (start, end time.Time, err error) {
	start, err = domain.ParseDay(r.Start)
	if err != nil {
		return start, end, fmt.Errorf("parse start %q: %w", r.Start, err)
	}
	end, err = domain.ParseDay(r.End)
	if err != nil {
		return start, end, fmt.Errorf("parse end %q: %w", r.End, err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end %s before start %s", r.End, r.Start)
	}
	return start, end, nil
}

// IndicatorConfig maps a panel alias to an upstream series code.
type IndicatorConfig struct {
	Alias        string `mapstructure:"alias"`
	Code         string `mapstructure:"code"`
	RateOfChange bool   `mapstructure:"rate_of_change"`
}

// HorizonConfig is one row of the horizon table.
type HorizonConfig struct {
	Name      string   `mapstructure:"name"`
	Days      int      `mapstructure:"days"`
	Metrics   []string `mapstructure:"metrics"`
	VolumeAgg string   `mapstructure:"volume_agg"`
}

// FeaturesConfig selects feature conventions.
type FeaturesConfig struct {
	ReturnConvention string `mapstructure:"return_convention"`
	TargetDays       int    `mapstructure:"target_days"`
	Workers          int    `mapstructure:"workers"`
}

// SimulationConfig configures the Monte-Carlo projector.
type SimulationConfig struct {
	Replicates int     `mapstructure:"replicates"`
	Step       float64 `mapstructure:"step"`
	Horizon    float64 `mapstructure:"horizon"`
	Seed       uint64  `mapstructure:"seed"` // 0 = fresh seed per run
	Workers    int     `mapstructure:"workers"`
}

// SourcesConfig selects where raw series come from.
type SourcesConfig struct {
	Backend     string        `mapstructure:"backend"` // http, csv, postgres
	YahooURL    string        `mapstructure:"yahoo_url"`
	FredURL     string        `mapstructure:"fred_url"`
	FredAPIKey  string        `mapstructure:"fred_api_key"`
	CSVDir      string        `mapstructure:"csv_dir"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Workers     int           `mapstructure:"workers"`
}

// StorageConfig selects where the panel is persisted.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // csv, postgres, clickhouse, memory
	Path          string `mapstructure:"path"`    // csv directory
	PanelName     string `mapstructure:"panel_name"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// LogConfig configures logging.
type LogConfig struct {
	Production bool `mapstructure:"production"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables
}

// envKeys are bound explicitly so they override file values even when
// the file omits them.
var envKeys = []string{
	"sources.backend",
	"sources.fred_api_key",
	"sources.postgres_dsn",
	"sources.csv_dir",
	"storage.backend",
	"storage.path",
	"storage.panel_name",
	"storage.postgres_dsn",
	"storage.clickhouse_dsn",
	"simulation.seed",
	"log.production",
	"metrics.addr",
}

// Load reads path (optional) and environment overrides, fills unset
// fields from Default and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills zero-valued fields from Default.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Calendar.Start == "" {
		c.Calendar.Start = d.Calendar.Start
	}
	if c.Calendar.End == "" {
		c.Calendar.End = d.Calendar.End
	}
	if c.Range.Start == "" {
		c.Range.Start = d.Range.Start
	}
	if c.Range.End == "" {
		c.Range.End = d.Range.End
	}
	if len(c.Instruments) == 0 {
		c.Instruments = d.Instruments
	}
	if len(c.Indicators) == 0 {
		c.Indicators = d.Indicators
	}
	if len(c.Horizons) == 0 {
		c.Horizons = d.Horizons
	}
	if c.Features.ReturnConvention == "" {
		c.Features.ReturnConvention = d.Features.ReturnConvention
	}
	if c.Features.TargetDays == 0 {
		c.Features.TargetDays = d.Features.TargetDays
	}
	if c.Features.Workers == 0 {
		c.Features.Workers = d.Features.Workers
	}
	if c.Simulation.Replicates == 0 {
		c.Simulation.Replicates = d.Simulation.Replicates
	}
	if c.Simulation.Step == 0 {
		c.Simulation.Step = d.Simulation.Step
	}
	if c.Simulation.Horizon == 0 {
		c.Simulation.Horizon = d.Simulation.Horizon
	}
	if c.Sources.Backend == "" {
		c.Sources.Backend = d.Sources.Backend
	}
	if c.Sources.YahooURL == "" {
		c.Sources.YahooURL = d.Sources.YahooURL
	}
	if c.Sources.FredURL == "" {
		c.Sources.FredURL = d.Sources.FredURL
	}
	if c.Sources.Timeout == 0 {
		c.Sources.Timeout = d.Sources.Timeout
	}
	if c.Sources.Workers == 0 {
		c.Sources.Workers = d.Sources.Workers
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.PanelName == "" {
		c.Storage.PanelName = d.Storage.PanelName
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := c.Calendar.Bounds(); err != nil {
		errs = append(errs, fmt.Errorf("calendar: %w", err))
	}
	if _, _, err := c.Range.Bounds(); err != nil {
		errs = append(errs, fmt.Errorf("range: %w", err))
	}
	if len(c.Instruments) == 0 {
		errs = append(errs, errors.New("instruments: at least one required"))
	}
	seenTicker := make(map[string]bool)
	for _, tk := range c.Instruments {
		if tk == "" || seenTicker[tk] {
			errs = append(errs, fmt.Errorf("instruments: empty or duplicate ticker %q", tk))
		}
		seenTicker[tk] = true
	}
	seenAlias := make(map[string]bool)
	for _, ind := range c.Indicators {
		if ind.Alias == "" || ind.Code == "" {
			errs = append(errs, fmt.Errorf("indicators: alias and code required (%q/%q)", ind.Alias, ind.Code))
		}
		if seenAlias[ind.Alias] {
			errs = append(errs, fmt.Errorf("indicators: duplicate alias %q", ind.Alias))
		}
		seenAlias[ind.Alias] = true
	}
	for _, h := range c.FeatureHorizons() {
		if err := h.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("horizons: %w", err))
		}
	}
	switch features.ReturnConvention(c.Features.ReturnConvention) {
	case features.ReturnRollingMean, features.ReturnPctChange:
	default:
		errs = append(errs, fmt.Errorf("features: unknown return convention %q", c.Features.ReturnConvention))
	}
	if c.Features.TargetDays < 1 {
		errs = append(errs, fmt.Errorf("features: target_days must be >= 1"))
	}
	if c.Simulation.Replicates < 1 {
		errs = append(errs, fmt.Errorf("simulation: replicates must be >= 1"))
	}
	if !(c.Simulation.Step > 0) || !(c.Simulation.Horizon > 0) {
		errs = append(errs, fmt.Errorf("simulation: step and horizon must be > 0"))
	} else if int(c.Simulation.Horizon/c.Simulation.Step) < 1 {
		errs = append(errs, fmt.Errorf("simulation: horizon/step gives no steps"))
	}
	switch c.Sources.Backend {
	case "http", "csv", "postgres":
	default:
		errs = append(errs, fmt.Errorf("sources: unknown backend %q", c.Sources.Backend))
	}
	switch c.Storage.Backend {
	case "csv", "postgres", "clickhouse", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage.Backend))
	}

	return errors.Join(errs...)
}

// FeatureHorizons converts the horizon table.
func (c *Config) FeatureHorizons() []features.Horizon {
	out := make([]features.Horizon, len(c.Horizons))
	for i, h := range c.Horizons {
		metrics := make([]domain.Metric, len(h.Metrics))
		for j, m := range h.Metrics {
			metrics[j] = domain.Metric(strings.ToUpper(m))
		}
		out[i] = features.Horizon{
			Name:      h.Name,
			Days:      h.Days,
			Metrics:   metrics,
			VolumeAgg: features.VolumeAgg(h.VolumeAgg),
		}
	}
	return out
}

// RateOfChangeAliases returns aliases flagged for the rate-of-change transform.
func (c *Config) RateOfChangeAliases() []string {
	var out []string
	for _, ind := range c.Indicators {
		if ind.RateOfChange {
			out = append(out, ind.Alias)
		}
	}
	return out
}

// Package config loads the analysis configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sartorproj/ridecast/holtwinters"
	"github.com/sartorproj/ridecast/orderselect"
	"github.com/sartorproj/ridecast/sarima"
	"github.com/sartorproj/ridecast/timeseries"
)

// Config holds all analysis configuration.
type Config struct {
	Data struct {
		Path        string `yaml:"path"`
		ValueColumn string `yaml:"value_column"`
		ValueIndex  *int   `yaml:"value_index"` // nil uses column 1 unless ValueColumn is set
		Start       string `yaml:"start"`
		Periods     int    `yaml:"periods"` // -1 accepts any length
	} `yaml:"data"`
	Model struct {
		SeasonalPeriod int `yaml:"seasonal_period"`
		HoltWinters    struct {
			Trend    string `yaml:"trend"`
			Seasonal string `yaml:"seasonal"`
			Damped   bool   `yaml:"damped"`
		} `yaml:"holt_winters"`
		Grid struct {
			P        []int         `yaml:"p"`
			Q        []int         `yaml:"q"`
			D        int           `yaml:"d"`
			Seasonal SeasonalOrder `yaml:"seasonal"`
		} `yaml:"grid"`
		Workers int `yaml:"workers"`
	} `yaml:"model"`
	Forecast struct {
		Horizon    int     `yaml:"horizon"`
		Confidence float64 `yaml:"confidence"`
	} `yaml:"forecast"`
	Output struct {
		Dir             string `yaml:"dir"`
		Database        string `yaml:"database"`
		MetricsTextfile string `yaml:"metrics_textfile"`
	} `yaml:"output"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// SeasonalOrder is the fixed (P, D, Q, m) of the order grid.
type SeasonalOrder struct {
	P int `yaml:"p"`
	D int `yaml:"d"`
	Q int `yaml:"q"`
	M int `yaml:"m"`
}

// Default returns the configuration of the monthly ride analysis: 84 months
// from January 2013, additive Holt-Winters, and the default order grid.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if v := os.Getenv("RIDECAST_DATA_PATH"); v != "" {
		cfg.Data.Path = v
	}
	if v := os.Getenv("RIDECAST_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("RIDECAST_DB"); v != "" {
		cfg.Output.Database = v
	}
	if v := os.Getenv("RIDECAST_METRICS_TEXTFILE"); v != "" {
		cfg.Output.MetricsTextfile = v
	}
	if v := os.Getenv("RIDECAST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RIDECAST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("RIDECAST_WORKERS: %w", err)
		}
		cfg.Model.Workers = n
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Data.Path == "" {
		c.Data.Path = "data/rides_monthly_aggregate.csv"
	}
	if c.Data.ValueColumn == "" && c.Data.ValueIndex == nil {
		idx := 1
		c.Data.ValueIndex = &idx
	}
	if c.Data.Start == "" {
		c.Data.Start = "2013-01"
	}
	if c.Data.Periods == 0 {
		c.Data.Periods = 84
	}
	if c.Model.SeasonalPeriod == 0 {
		c.Model.SeasonalPeriod = 12
	}
	hw := &c.Model.HoltWinters
	if hw.Trend == "" {
		hw.Trend = string(holtwinters.Additive)
	}
	if hw.Seasonal == "" {
		hw.Seasonal = string(holtwinters.Additive)
	}
	g := &c.Model.Grid
	def := orderselect.DefaultGrid()
	if len(g.P) == 0 {
		g.P = def.PValues
	}
	if len(g.Q) == 0 {
		g.Q = def.QValues
	}
	if g.Seasonal == (SeasonalOrder{}) {
		g.Seasonal.P, g.Seasonal.D, g.Seasonal.Q = def.Seasonal.P, def.Seasonal.D, def.Seasonal.Q
		g.Seasonal.M = c.Model.SeasonalPeriod
	}
	if c.Model.Workers == 0 {
		c.Model.Workers = 1
	}
	if c.Forecast.Horizon == 0 {
		c.Forecast.Horizon = 24
	}
	if c.Forecast.Confidence == 0 {
		c.Forecast.Confidence = 0.95
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if c.Data.ValueIndex != nil && *c.Data.ValueIndex < 0 {
		return fmt.Errorf("data.value_index must not be negative")
	}
	if _, err := c.StartMonth(); err != nil {
		return fmt.Errorf("data.start: %w", err)
	}
	if c.Data.Periods < -1 {
		return fmt.Errorf("data.periods must be positive, or -1 for any length")
	}
	if c.Model.SeasonalPeriod < 2 {
		return fmt.Errorf("model.seasonal_period must be at least 2")
	}
	if _, err := c.HoltWinters(); err != nil {
		return fmt.Errorf("model.holt_winters: %w", err)
	}
	if c.Model.Workers < 1 {
		return fmt.Errorf("model.workers must be positive")
	}
	if c.Forecast.Horizon < 1 {
		return fmt.Errorf("forecast.horizon must be positive")
	}
	if c.Forecast.Confidence <= 0 || c.Forecast.Confidence >= 1 {
		return fmt.Errorf("forecast.confidence must be in (0, 1)")
	}
	return nil
}

// StartMonth parses Data.Start.
func (c *Config) StartMonth() (time.Time, error) {
	return timeseries.ParseMonth(c.Data.Start)
}

// CSVOptions returns the loader options for Data.
func (c *Config) CSVOptions() (*timeseries.CSVOptions, error) {
	start, err := c.StartMonth()
	if err != nil {
		return nil, err
	}
	opts := timeseries.DefaultCSVOptions()
	opts.ValueColumn = c.Data.ValueColumn
	if c.Data.ValueIndex != nil {
		opts.ValueIndex = *c.Data.ValueIndex
	}
	opts.Start = start
	return opts, nil
}

// HoltWinters returns the exponential smoothing structure.
func (c *Config) HoltWinters() (holtwinters.Config, error) {
	trend, err := holtwinters.ParseComponent(c.Model.HoltWinters.Trend)
	if err != nil {
		return holtwinters.Config{}, err
	}
	seasonal, err := holtwinters.ParseComponent(c.Model.HoltWinters.Seasonal)
	if err != nil {
		return holtwinters.Config{}, err
	}
	return holtwinters.Config{
		SeasonalPeriods: c.Model.SeasonalPeriod,
		Trend:           trend,
		Seasonal:        seasonal,
		Damped:          c.Model.HoltWinters.Damped,
	}, nil
}

// Grid returns the order selection grid. Grid values themselves are checked
// by the selector.
func (c *Config) Grid() orderselect.Grid {
	g := c.Model.Grid
	return orderselect.Grid{
		PValues: append([]int(nil), g.P...),
		QValues: append([]int(nil), g.Q...),
		D:       g.D,
		Seasonal: sarima.SeasonalOrder{
			P: g.Seasonal.P,
			D: g.Seasonal.D,
			Q: g.Seasonal.Q,
			M: g.Seasonal.M,
		},
		Periods: max(c.Data.Periods, 0),
	}
}

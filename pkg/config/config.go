package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
	"github.com/ducminhle1904/noise-engine/internal/engine"
	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/internal/portfolio"
	"github.com/ducminhle1904/noise-engine/internal/risk"
	"github.com/ducminhle1904/noise-engine/internal/signals"
	"github.com/ducminhle1904/noise-engine/internal/stops"
)

// EnvPrefix prefixes environment overrides, e.g. NOISE_RISK_MAX_ORDER_VALUE
const EnvPrefix = "NOISE"

const component = "config"

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen" validate:"required_if=Enabled true"`
}

// ReplayConfig describes a CSV replay run
type ReplayConfig struct {
	DataFile    string  `json:"data_file" mapstructure:"data_file"`
	Symbol      string  `json:"symbol" mapstructure:"symbol" validate:"required"`
	AssetClass  string  `json:"asset_class" mapstructure:"asset_class" validate:"required,oneof=FUTURES EQUITY"`
	Timeframe   string  `json:"timeframe" mapstructure:"timeframe" validate:"required"`
	InitialCash float64 `json:"initial_cash" mapstructure:"initial_cash" validate:"gt=0"`
	Window      int     `json:"window" mapstructure:"window" validate:"gte=0"`
	ReportFile  string  `json:"report_file" mapstructure:"report_file"`
}

// Config is the full configuration tree of the decision core
type Config struct {
	Signals      signals.Config        `json:"signals" mapstructure:"signals"`
	Risk         risk.Config           `json:"risk" mapstructure:"risk"`
	TrailingStop stops.Config          `json:"trailing_stop" mapstructure:"trailing_stop"`
	Portfolio    portfolio.Constraints `json:"portfolio" mapstructure:"portfolio"`
	Logging      logger.Config         `json:"logging" mapstructure:"logging"`
	Metrics      MetricsConfig         `json:"metrics" mapstructure:"metrics"`
	Replay       ReplayConfig          `json:"replay" mapstructure:"replay"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Signals:      signals.DefaultConfig(),
		Risk:         risk.DefaultConfig(),
		TrailingStop: stops.DefaultConfig(),
		Portfolio:    portfolio.DefaultConstraints(),
		Logging: logger.Config{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Metrics: MetricsConfig{Listen: ":9090"},
		Replay: ReplayConfig{
			Symbol:      "MNQ",
			AssetClass:  "FUTURES",
			Timeframe:   "5m",
			InitialCash: 100000,
			Window:      200,
		},
	}
}

// Engine returns the component settings consumed by engine.New
func (c Config) Engine() engine.Config {
	return engine.Config{
		Signals:     c.Signals,
		Risk:        c.Risk,
		Stops:       c.TrailingStop,
		Constraints: c.Portfolio,
	}
}

// Load reads the config file at path (YAML, JSON or TOML by extension) over
// the defaults, applies NOISE_* environment overrides and validates the
// result. An empty path uses defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := toMap(Default())
	if err != nil {
		return Config{}, coreerrors.WrapError(err, coreerrors.ErrorCategoryConfiguration, component, "Load")
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return Config{}, coreerrors.WrapError(err, coreerrors.ErrorCategoryConfiguration, component, "Load")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, coreerrors.WrapError(err, coreerrors.ErrorCategoryConfiguration, component, "Load").
				WithContext("path", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, coreerrors.WrapError(err, coreerrors.ErrorCategoryConfiguration, component, "Load")
	}
	cfg.normalize()

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv loads a .env file into the process environment. A missing file is
// reported as NOT_FOUND so callers can treat it as optional.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return coreerrors.NewNotFoundError(component, "LoadEnv", path)
	}
	if err := godotenv.Load(path); err != nil {
		return coreerrors.WrapError(err, coreerrors.ErrorCategoryConfiguration, component, "LoadEnv").
			WithContext("path", path)
	}
	return nil
}

var validate = validator.New()

// Validate checks every field constraint in the tree
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return coreerrors.NewConfigurationError(component, "Validate", fmt.Sprintf("invalid configuration: %v", err))
	}
	return nil
}

// normalize undoes viper's key lowercasing where keys are data
func (c *Config) normalize() {
	if len(c.Portfolio.SectorConcentration) > 0 {
		sectors := make(map[string]float64, len(c.Portfolio.SectorConcentration))
		for name, limit := range c.Portfolio.SectorConcentration {
			sectors[strings.ToUpper(name)] = limit
		}
		c.Portfolio.SectorConcentration = sectors
	}
	c.Replay.AssetClass = strings.ToUpper(c.Replay.AssetClass)
}

func toMap(cfg Config) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

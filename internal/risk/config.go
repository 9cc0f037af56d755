package risk

// Config holds the risk limits applied to every order
type Config struct {
	MaxRiskPerTradePercent     float64 `json:"max_risk_per_trade_percent" mapstructure:"max_risk_per_trade_percent" validate:"gt=0,lte=100"`
	MaxDailyLossPercent        float64 `json:"max_daily_loss_percent" mapstructure:"max_daily_loss_percent" validate:"gt=0,lte=100"`
	MaxPositionPercent         float64 `json:"max_position_percent" mapstructure:"max_position_percent" validate:"gt=0,lte=100"`
	MaxConcurrentPositions     int     `json:"max_concurrent_positions" mapstructure:"max_concurrent_positions" validate:"gt=0"`
	MaxTotalExposurePercent    float64 `json:"max_total_exposure_percent" mapstructure:"max_total_exposure_percent" validate:"gt=0"`
	MaxOrderValue              float64 `json:"max_order_value" mapstructure:"max_order_value" validate:"gt=0"`
	MinOrderValue              float64 `json:"min_order_value" mapstructure:"min_order_value" validate:"gte=0,ltefield=MaxOrderValue"`
	MaxFuturesExposurePercent  float64 `json:"max_futures_exposure_percent" mapstructure:"max_futures_exposure_percent" validate:"gt=0"`
	MaxEquitiesExposurePercent float64 `json:"max_equities_exposure_percent" mapstructure:"max_equities_exposure_percent" validate:"gt=0"`
	ConsecutiveLossLimit       int     `json:"consecutive_loss_limit" mapstructure:"consecutive_loss_limit" validate:"gte=0"`
	EnableExposureCheck        bool    `json:"enable_exposure_check" mapstructure:"enable_exposure_check"`
}

// DefaultConfig returns the default risk limits
func DefaultConfig() Config {
	return Config{
		MaxRiskPerTradePercent:     2.0,
		MaxDailyLossPercent:        5.0,
		MaxPositionPercent:         20.0,
		MaxConcurrentPositions:     5,
		MaxTotalExposurePercent:    200.0,
		MaxOrderValue:              10000.0,
		MinOrderValue:              100.0,
		MaxFuturesExposurePercent:  150.0,
		MaxEquitiesExposurePercent: 100.0,
		ConsecutiveLossLimit:       3,
		EnableExposureCheck:        true,
	}
}

// BreakerConfig returns the part of the config that drives the circuit breaker
func (c Config) BreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxDailyLossPercent:  c.MaxDailyLossPercent,
		ConsecutiveLossLimit: c.ConsecutiveLossLimit,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRiskPerTradePercent <= 0 {
		c.MaxRiskPerTradePercent = d.MaxRiskPerTradePercent
	}
	if c.MaxDailyLossPercent <= 0 {
		c.MaxDailyLossPercent = d.MaxDailyLossPercent
	}
	if c.MaxPositionPercent <= 0 {
		c.MaxPositionPercent = d.MaxPositionPercent
	}
	if c.MaxConcurrentPositions <= 0 {
		c.MaxConcurrentPositions = d.MaxConcurrentPositions
	}
	if c.MaxTotalExposurePercent <= 0 {
		c.MaxTotalExposurePercent = d.MaxTotalExposurePercent
	}
	if c.MaxOrderValue <= 0 {
		c.MaxOrderValue = d.MaxOrderValue
	}
	if c.MinOrderValue < 0 {
		c.MinOrderValue = 0
	}
	if c.MaxFuturesExposurePercent <= 0 {
		c.MaxFuturesExposurePercent = d.MaxFuturesExposurePercent
	}
	if c.MaxEquitiesExposurePercent <= 0 {
		c.MaxEquitiesExposurePercent = d.MaxEquitiesExposurePercent
	}
	return c
}

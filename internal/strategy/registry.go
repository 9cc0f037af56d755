package strategy

// Config selects the settings of every registered scorer
type Config struct {
	Momentum      MomentumConfig      `json:"momentum" mapstructure:"momentum"`
	MeanReversion MeanReversionConfig `json:"mean_reversion" mapstructure:"mean_reversion"`
	Breakout      BreakoutConfig      `json:"breakout" mapstructure:"breakout"`
}

// DefaultConfig returns the default settings for every scorer
func DefaultConfig() Config {
	return Config{
		Momentum:      DefaultMomentumConfig(),
		MeanReversion: DefaultMeanReversionConfig(),
		Breakout:      DefaultBreakoutConfig(),
	}
}

// Registry returns the scorers in registration order. That order breaks
// strength ties when signals are capped per symbol.
func Registry(cfg Config) []Scorer {
	return []Scorer{
		NewMomentum(cfg.Momentum),
		NewMeanReversion(cfg.MeanReversion),
		NewBreakout(cfg.Breakout),
	}
}

// Names returns the registered strategy names in registration order
func Names() []string {
	scorers := Registry(DefaultConfig())
	names := make([]string, len(scorers))
	for i, s := range scorers {
		names[i] = s.Name()
	}
	return names
}

// ByName looks up a scorer built from cfg by its strategy name
func ByName(cfg Config, name string) (Scorer, bool) {
	for _, s := range Registry(cfg) {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

package domain

// IndicatorConfig names one indicator module and carries its parameters.
type IndicatorConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// StrategyConfig is the ordered indicator chain plus the widest lookback any
// of them needs. Immutable once a backtest starts.
type StrategyConfig struct {
	LookbackWeeks int               `yaml:"lookback_weeks"`
	Indicators    []IndicatorConfig `yaml:"indicators"`
}

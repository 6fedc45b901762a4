// Package indicator implements the technical-analysis pipeline: a chain of
// decorator modules over a common Analyse interface, composed from strategy
// configuration through a static registry.
package indicator

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/alejandrodnm/backtester/internal/domain"
)

// Analyzer inspects a price series and records any triggered signals in the
// annotations. Implementations wrap an inner Analyzer and run it first, so a
// chain executes innermost-first in configuration order. Indicators only see
// the raw series and the shared annotation set, never each other's derived
// columns.
type Analyzer interface {
	Analyse(series domain.PriceSeries, ann *domain.Annotations) error
}

// Factory builds an indicator wrapping inner, validating params eagerly.
type Factory func(inner Analyzer, params map[string]any) (Analyzer, error)

// registry maps indicator names to factories. Names match the strategy
// configuration strings.
var registry = map[string]Factory{
	"MovingAverages": newMovingAverages,
	"BollingerBands": newBollingerBands,
}

// Base returns the no-op analyzer that starts every chain.
func Base() Analyzer {
	return base{}
}

type base struct{}

func (base) Analyse(domain.PriceSeries, *domain.Annotations) error {
	return nil
}

// New builds the named indicator around inner. Unknown names and bad
// parameters fail with domain.ErrInvalidStrategyConfig, at build time rather
// than mid-run.
func New(name string, inner Analyzer, params map[string]any) (Analyzer, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("indicator.New: unrecognised indicator %q: %w",
			name, domain.ErrInvalidStrategyConfig)
	}
	return factory(inner, params)
}

// attachFigure stores an opaque overlay payload for the UI on first trigger.
// The engine never reads it back.
func attachFigure(series domain.PriceSeries, ann *domain.Annotations) {
	if ann.Figure != nil {
		return
	}
	payload := struct {
		Ticker     string   `json:"ticker"`
		Indicators []string `json:"indicators"`
	}{Ticker: series.Ticker, Indicators: ann.Triggered}
	if raw, err := json.Marshal(payload); err == nil {
		ann.Figure = raw
	}
}

// intParam reads an integer parameter, accepting the numeric types YAML
// decoding produces.
func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q: %w", key, domain.ErrInvalidStrategyConfig)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("parameter %q is not a number: %w", key, domain.ErrInvalidStrategyConfig)
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q: %w", key, domain.ErrInvalidStrategyConfig)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q is not a string: %w", key, domain.ErrInvalidStrategyConfig)
	}
	return s, nil
}

// rollingMean computes a simple moving average aligned with vals. Positions
// before a full window hold NaN, so comparisons against them never signal.
func rollingMean(vals []float64, period int) []float64 {
	out := make([]float64, len(vals))
	var sum float64
	for i, v := range vals {
		sum += v
		if i >= period {
			sum -= vals[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// rollingStd computes the rolling sample standard deviation (ddof=1),
// NaN during warmup.
func rollingStd(vals []float64, period int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < period-1 || period < 2 {
			out[i] = math.NaN()
			continue
		}
		window := vals[i-period+1 : i+1]
		var mean float64
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		var sq float64
		for _, v := range window {
			d := v - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period-1))
	}
	return out
}

// ewma computes an exponential moving average over the whole series with
// smoothing 2/(span+1), seeded from the first value.
func ewma(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// lastTwo returns the final two values of a series.
func lastTwo(vals []float64) (secondLast, last float64) {
	return vals[len(vals)-2], vals[len(vals)-1]
}

// Package strategy composes the configured indicator chain and fans the
// analysis out across the ticker universe.
package strategy

import (
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/backtester/internal/domain"
	"github.com/alejandrodnm/backtester/internal/indicator"
)

// Strategy is the immutable analysis pipeline for one backtest run.
type Strategy struct {
	LookbackWeeks int

	chain   indicator.Analyzer
	modules []string
}

// Build composes the indicator chain described by cfg. Every indicator name
// and parameter set is validated here, before the run starts; an
// unrecognised module fails the build with domain.ErrInvalidStrategyConfig
// instead of surfacing mid-run.
func Build(cfg domain.StrategyConfig) (*Strategy, error) {
	if cfg.LookbackWeeks < 1 {
		return nil, fmt.Errorf("strategy.Build: lookback_weeks must be >= 1: %w",
			domain.ErrInvalidStrategyConfig)
	}
	if len(cfg.Indicators) == 0 {
		return nil, fmt.Errorf("strategy.Build: no indicators configured: %w",
			domain.ErrInvalidStrategyConfig)
	}

	// Start from the no-op base and wrap outward, so indicators execute
	// innermost-first in configuration order.
	chain := indicator.Base()
	modules := make([]string, 0, len(cfg.Indicators))
	for _, ic := range cfg.Indicators {
		wrapped, err := indicator.New(ic.Name, chain, ic.Params)
		if err != nil {
			return nil, fmt.Errorf("strategy.Build: %w", err)
		}
		chain = wrapped
		modules = append(modules, ic.Name)
	}

	slog.Info("analysis modules in use", "modules", modules)

	return &Strategy{
		LookbackWeeks: cfg.LookbackWeeks,
		chain:         chain,
		modules:       modules,
	}, nil
}

// Modules returns the configured indicator names in execution order.
func (s *Strategy) Modules() []string {
	return s.modules
}

// Analyse runs the full chain over one ticker's series.
func (s *Strategy) Analyse(series domain.PriceSeries, ann *domain.Annotations) error {
	return s.chain.Analyse(series, ann)
}

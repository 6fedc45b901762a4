package indicator

import (
	"fmt"

	"github.com/alejandrodnm/backtester/internal/domain"
)

// Average types accepted by the MovingAverages indicator.
const (
	typeSMA = "SMA"
	typeEMA = "EMA"
)

// MovingAverages detects short-term/long-term average crossovers. A bullish
// crossover (short moving from at-or-below to at-or-above long between the
// last two days) triggers. The bearish counterpart is detected but never
// flagged: short-selling is unsupported.
type MovingAverages struct {
	inner Analyzer

	shortType   string
	shortPeriod int
	longType    string
	longPeriod  int
}

func newMovingAverages(inner Analyzer, params map[string]any) (Analyzer, error) {
	ma := &MovingAverages{inner: inner}
	var err error
	if ma.shortType, err = stringParam(params, "shortTermType"); err != nil {
		return nil, fmt.Errorf("indicator.MovingAverages: %w", err)
	}
	if ma.longType, err = stringParam(params, "longTermType"); err != nil {
		return nil, fmt.Errorf("indicator.MovingAverages: %w", err)
	}
	for _, t := range []string{ma.shortType, ma.longType} {
		if t != typeSMA && t != typeEMA {
			return nil, fmt.Errorf("indicator.MovingAverages: average type %q is unrecognised: %w",
				t, domain.ErrInvalidStrategyConfig)
		}
	}
	if ma.shortPeriod, err = intParam(params, "shortTermDayPeriod"); err != nil {
		return nil, fmt.Errorf("indicator.MovingAverages: %w", err)
	}
	if ma.longPeriod, err = intParam(params, "longTermDayPeriod"); err != nil {
		return nil, fmt.Errorf("indicator.MovingAverages: %w", err)
	}
	if ma.shortPeriod < 1 || ma.longPeriod < 1 {
		return nil, fmt.Errorf("indicator.MovingAverages: day periods must be >= 1: %w",
			domain.ErrInvalidStrategyConfig)
	}
	return ma, nil
}

// Analyse runs the inner chain, then checks for a fresh bullish crossover.
func (ma *MovingAverages) Analyse(series domain.PriceSeries, ann *domain.Annotations) error {
	if err := ma.inner.Analyse(series, ann); err != nil {
		return err
	}

	closes := series.Closes()
	if len(closes) < 2 {
		return fmt.Errorf("indicator.MovingAverages: %s has %d bars: %w",
			series.Ticker, len(closes), domain.ErrInsufficientData)
	}

	longTerm := ma.average(closes, ma.longType, ma.longPeriod)
	shortTerm := ma.average(closes, ma.shortType, ma.shortPeriod)

	if checkForIntersect(longTerm, shortTerm) {
		ann.Trigger("MovingAverages")
		attachFigure(series, ann)
	}
	return nil
}

func (ma *MovingAverages) average(closes []float64, avgType string, period int) []float64 {
	if avgType == typeEMA {
		return ewma(closes, period)
	}
	return rollingMean(closes, period)
}

// checkForIntersect compares the last two days of both averages. NaN warmup
// values make every comparison false, so short windows never signal.
func checkForIntersect(longTerm, shortTerm []float64) bool {
	ltPrev, ltLast := lastTwo(longTerm)
	stPrev, stLast := lastTwo(shortTerm)

	if stPrev <= ltPrev && stLast >= ltLast {
		// Bullish crossover: the uptrend just started.
		return true
	}
	// A move from above to below would be a sell signal; not traded.
	return false
}

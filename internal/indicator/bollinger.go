package indicator

import (
	"fmt"

	"github.com/alejandrodnm/backtester/internal/domain"
)

// BollingerBands detects a mean-reversion entry: the close crossing down
// through the lower band (mean - 2 sigma) while the mean is still rising.
// Upper-band breakouts are not evaluated — short-selling is unsupported.
type BollingerBands struct {
	inner  Analyzer
	period int
}

func newBollingerBands(inner Analyzer, params map[string]any) (Analyzer, error) {
	period, err := intParam(params, "dayPeriod")
	if err != nil {
		return nil, fmt.Errorf("indicator.BollingerBands: %w", err)
	}
	if period < 2 {
		return nil, fmt.Errorf("indicator.BollingerBands: dayPeriod must be >= 2: %w",
			domain.ErrInvalidStrategyConfig)
	}
	return &BollingerBands{inner: inner, period: period}, nil
}

// Analyse runs the inner chain, then checks for a lower-band breakdown.
func (bb *BollingerBands) Analyse(series domain.PriceSeries, ann *domain.Annotations) error {
	if err := bb.inner.Analyse(series, ann); err != nil {
		return err
	}

	closes := series.Closes()
	if len(closes) < 2 {
		return fmt.Errorf("indicator.BollingerBands: %s has %d bars: %w",
			series.Ticker, len(closes), domain.ErrInsufficientData)
	}

	sma := rollingMean(closes, bb.period)
	stdev := rollingStd(closes, bb.period)

	lowerBand := make([]float64, len(closes))
	for i := range closes {
		lowerBand[i] = sma[i] - 2*stdev[i]
	}

	if checkForBreakdown(closes, sma, lowerBand) {
		ann.Trigger("BollingerBands")
		attachFigure(series, ann)
	}
	return nil
}

// checkForBreakdown looks at the last two days: close moved from at-or-above
// to at-or-below the lower band, with the mean still climbing. NaN warmup
// values fail every comparison.
func checkForBreakdown(closes, sma, lowerBand []float64) bool {
	lbPrev, lbLast := lastTwo(lowerBand)
	closePrev, closeLast := lastTwo(closes)
	smaPrev, smaLast := lastTwo(sma)

	return closePrev >= lbPrev && closeLast <= lbLast && smaLast > smaPrev
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the recoverable conditions of a backtest run. Callers
// classify with errors.Is; none of these abort the run on their own.
var (
	// ErrNoCandidates means a full ticker scan produced no triggered
	// indicator anywhere. The controller logs it and moves to the next day.
	ErrNoCandidates = errors.New("no trade candidates found")

	// ErrInsufficientFunds means the available balance cannot cover a single
	// share of the chosen candidate.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidStrategyConfig means the strategy configuration references an
	// unknown indicator or carries unusable parameters. Raised at build time,
	// before the run starts.
	ErrInvalidStrategyConfig = errors.New("invalid strategy config")

	// ErrInsufficientData means a series is too short for an indicator to
	// compare its last two points.
	ErrInsufficientData = errors.New("insufficient data points")
)

// InsufficientHistoryError is returned by the history store when a requested
// window starts before the earliest recorded bar for a ticker. It is an
// expected per-ticker condition: scans catch it and skip the ticker.
type InsufficientHistoryError struct {
	Ticker            string
	RequestedStart    time.Time
	EarliestAvailable time.Time
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s comes before the first recorded date for %s (%s)",
		e.RequestedStart.Format("2006-01-02"), e.Ticker,
		e.EarliestAvailable.Format("2006-01-02"))
}

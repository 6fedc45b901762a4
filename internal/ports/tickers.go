package ports

import "context"

// TickerSource supplies the universe of tradeable ticker symbols for a run.
// The backtest treats the list as a static input.
type TickerSource interface {
	Tickers(ctx context.Context) ([]string, error)
}

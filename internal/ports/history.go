package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/backtester/internal/domain"
)

// History provides windowed read access to historical OHLCV data. The
// underlying medium (local sqlite, remote API) is an adapter concern; the
// contract is purely the windowing semantics.
type History interface {
	// GetWindow returns all bars for ticker dated within
	// [asOf - (lookbackWeeks*7 + lookbackDays) days, asOf] inclusive,
	// ascending by date, as a fresh copy. Returns
	// *domain.InsufficientHistoryError when the window start precedes the
	// ticker's earliest recorded bar.
	GetWindow(ctx context.Context, ticker string, asOf time.Time, lookbackWeeks, lookbackDays int) (domain.PriceSeries, error)
}

package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/backtester/internal/adapters/history"
	"github.com/alejandrodnm/backtester/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekdaySeries builds n consecutive weekday bars starting at start.
func weekdaySeries(ticker string, start time.Time, n int) domain.PriceSeries {
	s := domain.PriceSeries{Ticker: ticker}
	day := start
	for len(s.Bars) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			price := 100 + float64(len(s.Bars))
			s.Bars = append(s.Bars, domain.Bar{
				Date: day, Open: price, High: price + 1, Low: price - 1,
				Close: price, AdjClose: price, Volume: 10000,
			})
		}
		day = day.AddDate(0, 0, 1)
	}
	return s
}

func newStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetWindow_ReturnsAscendingRange(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	series := weekdaySeries("AAPL", date(2023, time.January, 2), 30)
	require.NoError(t, store.SaveBars(ctx, series))

	asOf := series.Bars[len(series.Bars)-1].Date
	window, err := store.GetWindow(ctx, "AAPL", asOf, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", window.Ticker)
	require.Greater(t, window.Len(), 0)
	assert.Equal(t, asOf, window.LastDate())
	for i := 1; i < window.Len(); i++ {
		assert.True(t, window.Bars[i-1].Date.Before(window.Bars[i].Date))
	}
	// 1 lookback week spans 5 trading days plus the as-of day.
	assert.Equal(t, 6, window.Len())
}

func TestGetWindow_RepeatedCallsAreIdentical(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	series := weekdaySeries("AAPL", date(2023, time.January, 2), 30)
	require.NoError(t, store.SaveBars(ctx, series))

	asOf := series.Bars[len(series.Bars)-1].Date
	first, err := store.GetWindow(ctx, "AAPL", asOf, 2, 0)
	require.NoError(t, err)
	second, err := store.GetWindow(ctx, "AAPL", asOf, 2, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Mutating one copy must not leak into the other.
	first.Bars[0].Close = -1
	assert.NotEqual(t, first.Bars[0].Close, second.Bars[0].Close)
}

func TestGetWindow_InsufficientHistory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	series := weekdaySeries("NEW", date(2023, time.June, 1), 10)
	require.NoError(t, store.SaveBars(ctx, series))

	_, err := store.GetWindow(ctx, "NEW", series.Bars[5].Date, 24, 0)
	var insufficient *domain.InsufficientHistoryError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "NEW", insufficient.Ticker)
	assert.True(t, insufficient.RequestedStart.Before(insufficient.EarliestAvailable))
}

func TestGetWindow_UnknownTicker(t *testing.T) {
	store := newStore(t)

	_, err := store.GetWindow(context.Background(), "NOPE", date(2023, time.June, 1), 1, 0)
	require.Error(t, err)

	var insufficient *domain.InsufficientHistoryError
	assert.False(t, errors.As(err, &insufficient))
}

func TestSaveBars_UpsertIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	series := weekdaySeries("AAPL", date(2023, time.January, 2), 10)
	require.NoError(t, store.SaveBars(ctx, series))
	require.NoError(t, store.SaveBars(ctx, series))

	asOf := series.Bars[len(series.Bars)-1].Date
	window, err := store.GetWindow(ctx, "AAPL", asOf, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, window.Len())
}

func TestSaveBars_EmptySeriesIsNoop(t *testing.T) {
	store := newStore(t)
	assert.NoError(t, store.SaveBars(context.Background(), domain.PriceSeries{Ticker: "X"}))
}

func TestTickers_ExcludesInvalidSeries(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBars(ctx, weekdaySeries("GOOD", date(2023, time.January, 2), 10)))

	// A three-week hole in the middle marks the series invalid.
	gappy := domain.PriceSeries{Ticker: "GAPPY", Bars: []domain.Bar{
		{Date: date(2023, time.January, 2), Close: 10},
		{Date: date(2023, time.January, 23), Close: 11},
	}}
	require.NoError(t, store.SaveBars(ctx, gappy))

	tickers, err := store.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GOOD"}, tickers)
}

func TestValidateSeries_GapRules(t *testing.T) {
	ok := domain.PriceSeries{Bars: []domain.Bar{
		{Date: date(2023, time.June, 2)},  // Friday
		{Date: date(2023, time.June, 5)},  // Monday
		{Date: date(2023, time.June, 6)},
	}}
	assert.True(t, history.ValidateSeries(ok))

	tooWide := domain.PriceSeries{Bars: []domain.Bar{
		{Date: date(2023, time.June, 2)},
		{Date: date(2023, time.June, 9)},
	}}
	assert.False(t, history.ValidateSeries(tooWide))
}

func TestValidateSeries_MarketClosureExemption(t *testing.T) {
	// The NYSE was closed Sep 11-14 2001; that week's gap is expected.
	closure := domain.PriceSeries{Bars: []domain.Bar{
		{Date: date(2001, time.September, 10)},
		{Date: date(2001, time.September, 17)},
		{Date: date(2001, time.September, 18)},
	}}
	assert.True(t, history.ValidateSeries(closure))

	// The same width anywhere else still fails.
	other := domain.PriceSeries{Bars: []domain.Bar{
		{Date: date(2002, time.September, 10)},
		{Date: date(2002, time.September, 17)},
	}}
	assert.False(t, history.ValidateSeries(other))
}

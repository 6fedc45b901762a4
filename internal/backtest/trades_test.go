package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/backtester/internal/domain"
	"github.com/alejandrodnm/backtester/internal/ports"
)

// barHistory serves windows out of an in-memory bar list per ticker.
type barHistory struct {
	bars map[string][]domain.Bar
}

func (h *barHistory) GetWindow(_ context.Context, ticker string, asOf time.Time, lookbackWeeks, lookbackDays int) (domain.PriceSeries, error) {
	bars, ok := h.bars[ticker]
	if !ok {
		return domain.PriceSeries{}, fmt.Errorf("no data for %s", ticker)
	}
	windowStart := asOf.AddDate(0, 0, -(lookbackWeeks*7 + lookbackDays))
	if windowStart.Before(bars[0].Date) {
		return domain.PriceSeries{}, &domain.InsufficientHistoryError{
			Ticker:            ticker,
			RequestedStart:    windowStart,
			EarliestAvailable: bars[0].Date,
		}
	}
	series := domain.PriceSeries{Ticker: ticker}
	for _, b := range bars {
		if !b.Date.Before(windowStart) && !b.Date.After(asOf) {
			series.Bars = append(series.Bars, b)
		}
	}
	return series, nil
}

// recordStore is a ports.RunStore that records what was persisted.
type recordStore struct {
	tradeID    string
	saveErr    error
	initCalls  int
	dates      []time.Time
	saved      []*domain.Trade
	syncOpen   [][]*domain.Trade
	syncClosed [][]*domain.Trade
	snapshots  []ports.RunSnapshot
}

func (s *recordStore) InitRun(context.Context, ports.RunSnapshot) error {
	s.initCalls++
	return nil
}

func (s *recordStore) UpdateDate(_ context.Context, _ string, d time.Time) error {
	s.dates = append(s.dates, d)
	return nil
}

func (s *recordStore) SaveTrade(_ context.Context, _ string, trade *domain.Trade) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saved = append(s.saved, trade)
	return s.tradeID, nil
}

func (s *recordStore) SyncTrades(_ context.Context, _ string, open, closed []*domain.Trade) error {
	s.syncOpen = append(s.syncOpen, open)
	s.syncClosed = append(s.syncClosed, closed)
	return nil
}

func (s *recordStore) UpdateProperties(_ context.Context, snap ports.RunSnapshot) error {
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func newTestRun(t *testing.T) *Backtest {
	t.Helper()
	bt, err := New(date(2023, time.March, 6), date(2023, time.March, 17), 15000)
	require.NoError(t, err)
	return bt
}

func defaultTradeConfig() TradeConfig {
	return TradeConfig{MaxCapPctPerTrade: 0.25, TPLimit: 1.02, SLLimit: 0.99}
}

func candidateAt(price float64) domain.Candidate {
	series := domain.PriceSeries{Ticker: "TEST", Bars: []domain.Bar{
		{Date: date(2023, time.March, 3), Close: price - 1},
		{Date: date(2023, time.March, 6), Close: price},
	}}
	ann := domain.Annotations{Triggered: []string{"MovingAverages"}}
	return domain.Candidate{Series: series, Annotations: ann}
}

func TestSizePosition_CappedByTotalBalance(t *testing.T) {
	tm := NewTradeManager(newTestRun(t), nil, &recordStore{}, defaultTradeConfig())

	buy, qty, investment, err := tm.sizePosition(candidateAt(100).Series)
	require.NoError(t, err)

	// Budget is 25% of 15000; qty floors so the investment fits inside it.
	assert.Equal(t, 100.0, buy)
	assert.Equal(t, int64(37), qty)
	assert.InDelta(t, 3700.0, investment, 1e-9)
}

func TestSizePosition_CappedByAvailableBalance(t *testing.T) {
	bt := newTestRun(t)
	bt.Portfolio.AvailableBalance = 200
	tm := NewTradeManager(bt, nil, &recordStore{}, defaultTradeConfig())

	_, qty, investment, err := tm.sizePosition(candidateAt(150).Series)
	require.NoError(t, err)
	assert.Equal(t, int64(1), qty)
	assert.InDelta(t, 150.0, investment, 1e-9)
}

func TestSizePosition_InsufficientFunds(t *testing.T) {
	bt := newTestRun(t)
	bt.Portfolio.AvailableBalance = 50
	tm := NewTradeManager(bt, nil, &recordStore{}, defaultTradeConfig())

	_, _, _, err := tm.sizePosition(candidateAt(100).Series)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestComputeThresholds(t *testing.T) {
	tm := NewTradeManager(newTestRun(t), nil, &recordStore{}, defaultTradeConfig())

	tp, sl := tm.computeThresholds(37, 3700)
	assert.InDelta(t, 102.0, tp, 1e-9)
	assert.InDelta(t, 99.0, sl, 1e-9)
}

func TestChooseCandidate_SingleCandidate(t *testing.T) {
	tm := NewTradeManager(newTestRun(t), nil, &recordStore{}, defaultTradeConfig())

	c := candidateAt(100)
	assert.Equal(t, "TEST", tm.ChooseCandidate([]domain.Candidate{c}).Series.Ticker)
}

func TestOpenTrade_DebitsAvailableBalance(t *testing.T) {
	bt := newTestRun(t)
	store := &recordStore{tradeID: "srv-42"}
	tm := NewTradeManager(bt, nil, store, defaultTradeConfig())

	trade, err := tm.OpenTrade(context.Background(), candidateAt(100))
	require.NoError(t, err)

	assert.Equal(t, "srv-42", trade.ID) // store assigns the canonical id
	assert.Equal(t, "TEST", trade.Ticker)
	assert.Equal(t, bt.StartDate, trade.BuyDate)
	assert.Equal(t, int64(37), trade.ShareQty)
	assert.InDelta(t, 11300.0, bt.Portfolio.AvailableBalance, 1e-9)
	assert.Equal(t, 15000.0, bt.Portfolio.TotalBalance) // total untouched on open
	assert.Len(t, tm.OpenTrades(), 1)
	assert.Len(t, store.snapshots, 1)
}

func TestOpenTrade_KeepsLocalIDWithoutStoreID(t *testing.T) {
	tm := NewTradeManager(newTestRun(t), nil, &recordStore{}, defaultTradeConfig())

	trade, err := tm.OpenTrade(context.Background(), candidateAt(100))
	require.NoError(t, err)
	assert.NotEmpty(t, trade.ID)
}

func TestOpenTrade_PersistenceFailureIsFatal(t *testing.T) {
	store := &recordStore{saveErr: errors.New("store down")}
	tm := NewTradeManager(newTestRun(t), nil, store, defaultTradeConfig())

	_, err := tm.OpenTrade(context.Background(), candidateAt(100))
	assert.Error(t, err)
}

func TestRevalueOpenTrades_HoldsInsideThresholds(t *testing.T) {
	bt := newTestRun(t)
	hist := &barHistory{bars: map[string][]domain.Bar{
		"TEST": {
			{Date: date(2023, time.March, 6), Close: 100},
			{Date: date(2023, time.March, 7), Close: 101},
		},
	}}
	tm := NewTradeManager(bt, hist, &recordStore{}, defaultTradeConfig())
	_, err := tm.OpenTrade(context.Background(), candidateAt(100))
	require.NoError(t, err)

	closed, err := tm.RevalueOpenTrades(context.Background(), date(2023, time.March, 7))
	require.NoError(t, err)

	assert.Empty(t, closed)
	require.Len(t, tm.OpenTrades(), 1)
	trade := tm.OpenTrades()[0]
	assert.Equal(t, 101.0, trade.CurrentPrice)
	assert.InDelta(t, 37.0, trade.ProfitLoss, 1e-9) // 101*37 - 3700
	assert.InDelta(t, 1.0, trade.ProfitLossPct, 1e-6)
}

func TestRevalueOpenTrades_ClosesOnTakeProfit(t *testing.T) {
	bt := newTestRun(t)
	hist := &barHistory{bars: map[string][]domain.Bar{
		"TEST": {
			{Date: date(2023, time.March, 6), Close: 100},
			{Date: date(2023, time.March, 7), Close: 103},
		},
	}}
	store := &recordStore{}
	tm := NewTradeManager(bt, hist, store, defaultTradeConfig())
	_, err := tm.OpenTrade(context.Background(), candidateAt(100))
	require.NoError(t, err)

	closed, err := tm.RevalueOpenTrades(context.Background(), date(2023, time.March, 7))
	require.NoError(t, err)

	require.Len(t, closed, 1)
	assert.Empty(t, tm.OpenTrades())

	trade := closed[0]
	require.NotNil(t, trade.SellDate)
	require.NotNil(t, trade.SellPrice)
	assert.Equal(t, date(2023, time.March, 7), *trade.SellDate)
	assert.Equal(t, 103.0, *trade.SellPrice)

	// 37 shares sold at 103 credit the cash; the profit lands on the total.
	assert.InDelta(t, 15111.0, bt.Portfolio.AvailableBalance, 1e-9)
	assert.InDelta(t, 15111.0, bt.Portfolio.TotalBalance, 1e-9)
	assert.InDelta(t, 111.0, bt.Portfolio.TotalProfitLoss, 1e-9)
	assert.InDelta(t, 0.74, bt.Portfolio.TotalProfitLossPct, 1e-6)
}

func TestRevalueOpenTrades_ClosesOnStopLoss(t *testing.T) {
	bt := newTestRun(t)
	hist := &barHistory{bars: map[string][]domain.Bar{
		"TEST": {
			{Date: date(2023, time.March, 6), Close: 100},
			{Date: date(2023, time.March, 7), Close: 95},
		},
	}}
	tm := NewTradeManager(bt, hist, &recordStore{}, defaultTradeConfig())
	_, err := tm.OpenTrade(context.Background(), candidateAt(100))
	require.NoError(t, err)

	closed, err := tm.RevalueOpenTrades(context.Background(), date(2023, time.March, 7))
	require.NoError(t, err)

	require.Len(t, closed, 1)
	assert.InDelta(t, -185.0, closed[0].ProfitLoss, 1e-9) // 95*37 - 3700
	assert.InDelta(t, 15000.0-185.0, bt.Portfolio.TotalBalance, 1e-9)
}

func TestRevalueOpenTrades_KeepsTradeWithoutData(t *testing.T) {
	bt := newTestRun(t)
	hist := &barHistory{bars: map[string][]domain.Bar{
		"TEST": {{Date: date(2023, time.March, 6), Close: 100}},
	}}
	tm := NewTradeManager(bt, hist, &recordStore{}, defaultTradeConfig())
	_, err := tm.OpenTrade(context.Background(), candidateAt(100))
	require.NoError(t, err)

	// Mar 8 window [Mar 7, Mar 8] has no bars: hold at the last valuation.
	closed, err := tm.RevalueOpenTrades(context.Background(), date(2023, time.March, 8))
	require.NoError(t, err)

	assert.Empty(t, closed)
	require.Len(t, tm.OpenTrades(), 1)
	assert.Equal(t, 100.0, tm.OpenTrades()[0].CurrentPrice)
}

func TestRevalueOpenTrades_WindowStaysFixedSize(t *testing.T) {
	bt := newTestRun(t)
	hist := &barHistory{bars: map[string][]domain.Bar{
		"TEST": {
			{Date: date(2023, time.March, 6), Close: 100},
			{Date: date(2023, time.March, 7), Close: 100.5},
		},
	}}
	tm := NewTradeManager(bt, hist, &recordStore{}, defaultTradeConfig())
	trade, err := tm.OpenTrade(context.Background(), candidateAt(100))
	require.NoError(t, err)
	sizeBefore := trade.History.Len()

	// The one-day fetch spans two bars; only the as-of bar may roll in.
	_, err = tm.RevalueOpenTrades(context.Background(), date(2023, time.March, 7))
	require.NoError(t, err)

	assert.Equal(t, sizeBefore, trade.History.Len())
	assert.Equal(t, date(2023, time.March, 7), trade.History.LastDate())
}

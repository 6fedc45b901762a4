package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/backtester/internal/domain"
	"github.com/alejandrodnm/backtester/internal/ports"
)

// TradeConfig sets the position-sizing and exit thresholds for a run.
type TradeConfig struct {
	// MaxCapPctPerTrade caps one trade's investment at this fraction of the
	// total balance.
	MaxCapPctPerTrade float64

	// TPLimit and SLLimit are multipliers on the per-share cost, e.g. 1.02
	// and 0.99.
	TPLimit float64
	SLLimit float64
}

// TradeManager owns the trade lifecycle: sizing, threshold computation,
// opening, daily revaluation and closing, plus the portfolio mutations each
// step implies. It is only ever driven by the controller's single-threaded
// tick, so trades and balances never see concurrent access.
type TradeManager struct {
	backtest *Backtest
	history  ports.History
	store    ports.RunStore
	cfg      TradeConfig

	open   []*domain.Trade
	closed []*domain.Trade
	rng    *rand.Rand
}

// NewTradeManager creates a manager bound to one backtest run.
func NewTradeManager(bt *Backtest, history ports.History, store ports.RunStore, cfg TradeConfig) *TradeManager {
	return &TradeManager{
		backtest: bt,
		history:  history,
		store:    store,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OpenTrades returns the currently open trades.
func (tm *TradeManager) OpenTrades() []*domain.Trade {
	return tm.open
}

// ClosedTrades returns every trade closed so far in this run.
func (tm *TradeManager) ClosedTrades() []*domain.Trade {
	return tm.closed
}

// ChooseCandidate picks uniformly at random among the qualifying candidates.
// No ranking is applied — an intentional simplification, not an oversight.
func (tm *TradeManager) ChooseCandidate(candidates []domain.Candidate) domain.Candidate {
	return candidates[tm.rng.Intn(len(candidates))]
}

// sizePosition works out how many shares to buy. The budget is the smaller
// of the per-trade cap and the uninvested cash; qty is floored so the
// investment never exceeds it.
func (tm *TradeManager) sizePosition(series domain.PriceSeries) (buyPrice float64, qty int64, investment float64, err error) {
	buyPrice = series.LastClose()

	maxInvestment := tm.backtest.Portfolio.TotalBalance * tm.cfg.MaxCapPctPerTrade
	if maxInvestment > tm.backtest.Portfolio.AvailableBalance {
		maxInvestment = tm.backtest.Portfolio.AvailableBalance
	}

	if buyPrice > maxInvestment {
		return 0, 0, 0, fmt.Errorf("backtest.sizePosition: available balance (%.2f) cannot cover a single share of %s (%.2f): %w",
			tm.backtest.Portfolio.AvailableBalance, series.Ticker, buyPrice, domain.ErrInsufficientFunds)
	}

	qty = int64(math.Floor(maxInvestment / buyPrice))
	investment = float64(qty) * buyPrice
	return buyPrice, qty, investment, nil
}

// computeThresholds derives the exit prices from the per-share cost and the
// configured multipliers.
func (tm *TradeManager) computeThresholds(qty int64, investment float64) (takeProfit, stopLoss float64) {
	takeProfit = (investment * tm.cfg.TPLimit) / float64(qty)
	stopLoss = (investment * tm.cfg.SLLimit) / float64(qty)
	return takeProfit, stopLoss
}

// OpenTrade sizes, builds and opens a trade from the chosen candidate,
// debiting the investment from the available balance. The debit and the
// append to the open set happen together within the tick; nothing observes
// a half-applied state. Persistence failure is fatal to the run.
func (tm *TradeManager) OpenTrade(ctx context.Context, candidate domain.Candidate) (*domain.Trade, error) {
	buyPrice, qty, investment, err := tm.sizePosition(candidate.Series)
	if err != nil {
		return nil, err
	}
	takeProfit, stopLoss := tm.computeThresholds(qty, investment)

	trade := &domain.Trade{
		ID:                  uuid.New().String(),
		Ticker:              candidate.Series.Ticker,
		BuyDate:             tm.backtest.Date(),
		BuyPrice:            buyPrice,
		ShareQty:            qty,
		InvestmentTotal:     investment,
		TakeProfit:          takeProfit,
		StopLoss:            stopLoss,
		CurrentPrice:        buyPrice,
		TriggeredIndicators: candidate.Annotations.Triggered,
		History:             candidate.Series.Clone(),
		Figure:              candidate.Annotations.Figure,
	}

	slog.Info("buying shares",
		"ticker", trade.Ticker,
		"qty", trade.ShareQty,
		"investment", fmt.Sprintf("%.2f", trade.InvestmentTotal),
		"take_profit", fmt.Sprintf("%.2f", trade.TakeProfit),
		"stop_loss", fmt.Sprintf("%.2f", trade.StopLoss),
		"triggered_by", trade.TriggeredIndicators,
	)

	tm.backtest.Portfolio.AvailableBalance -= trade.InvestmentTotal
	tm.open = append(tm.open, trade)

	// The store assigns the canonical trade id on create.
	storeID, err := tm.store.SaveTrade(ctx, tm.backtest.RunID, trade)
	if err != nil {
		return nil, fmt.Errorf("backtest.OpenTrade: persist trade: %w", err)
	}
	if storeID != "" {
		trade.ID = storeID
	}
	if err := tm.store.UpdateProperties(ctx, tm.snapshot()); err != nil {
		return nil, fmt.Errorf("backtest.OpenTrade: persist properties: %w", err)
	}
	return trade, nil
}

// RevalueOpenTrades rolls every open trade's window forward to asOf,
// recomputes its valuation and closes the ones whose price crossed a
// threshold. All open trades settle before any new trade is opened for the
// same day, so a day's balance is never double counted. Returns the trades
// closed on this day.
func (tm *TradeManager) RevalueOpenTrades(ctx context.Context, asOf time.Time) ([]*domain.Trade, error) {
	var stillOpen, newlyClosed []*domain.Trade

	for _, trade := range tm.open {
		window, err := tm.history.GetWindow(ctx, trade.Ticker, asOf, 0, 1)
		if err != nil || window.Len() == 0 {
			// No bar for this day; keep the trade at its last valuation.
			slog.Warn("no revaluation data", "ticker", trade.Ticker, "date", asOf.Format("2006-01-02"), "err", err)
			stillOpen = append(stillOpen, trade)
			continue
		}

		// The one-day window can span two bars when the previous calendar
		// day also traded; only the as-of bar rolls in.
		trade.History.Roll(window.Bars[window.Len()-1])
		trade.CurrentPrice = trade.History.LastClose()
		trade.ProfitLoss = trade.CurrentPrice*float64(trade.ShareQty) - trade.InvestmentTotal
		trade.ProfitLossPct = trade.ProfitLoss / trade.InvestmentTotal * 100

		if trade.ShouldClose() {
			tm.closeTrade(trade, asOf)
			newlyClosed = append(newlyClosed, trade)
		} else {
			stillOpen = append(stillOpen, trade)
		}
	}
	tm.open = stillOpen
	tm.closed = append(tm.closed, newlyClosed...)

	if err := tm.store.SyncTrades(ctx, tm.backtest.RunID, tm.open, newlyClosed); err != nil {
		return nil, fmt.Errorf("backtest.RevalueOpenTrades: sync trades: %w", err)
	}
	if err := tm.store.UpdateProperties(ctx, tm.snapshot()); err != nil {
		return nil, fmt.Errorf("backtest.RevalueOpenTrades: persist properties: %w", err)
	}
	return newlyClosed, nil
}

// closeTrade settles one trade at its current price. This is the only path
// that mutates the total balance.
func (tm *TradeManager) closeTrade(trade *domain.Trade, asOf time.Time) {
	sellPrice := trade.CurrentPrice
	sellDate := asOf
	trade.SellPrice = &sellPrice
	trade.SellDate = &sellDate

	pf := &tm.backtest.Portfolio
	pf.AvailableBalance += sellPrice * float64(trade.ShareQty)
	pf.TotalBalance += trade.ProfitLoss
	pf.TotalProfitLoss = pf.TotalBalance - pf.StartBalance
	pf.TotalProfitLossPct = pf.TotalProfitLoss / pf.StartBalance * 100

	outcome := "loss"
	if trade.ProfitLoss > 0 {
		outcome = "profit"
	}
	slog.Info("closing trade",
		"ticker", trade.Ticker,
		"outcome", outcome,
		"profit_loss", fmt.Sprintf("%.2f", trade.ProfitLoss),
		"triggered_by", trade.TriggeredIndicators,
	)
}

func (tm *TradeManager) snapshot() ports.RunSnapshot {
	return ports.RunSnapshot{
		RunID:     tm.backtest.RunID,
		Date:      tm.backtest.Date(),
		Portfolio: tm.backtest.Portfolio,
	}
}

package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/backtester/internal/domain"
	"github.com/alejandrodnm/backtester/internal/ports"
	"github.com/alejandrodnm/backtester/internal/strategy"
)

// pausePollInterval is how often a paused run re-checks its state.
const pausePollInterval = 300 * time.Millisecond

// ControllerConfig tunes the day loop.
type ControllerConfig struct {
	// MinTickDuration is the wall-clock floor per simulated day. Pacing
	// only; correctness never depends on it.
	MinTickDuration time.Duration
}

// Controller drives the day-stepping loop: advance the clock, settle open
// trades, scan for a candidate, open at most one trade, persist, repeat.
// One single-threaded loop; the only fan-out is the executor's scan, which
// joins before the tick continues.
type Controller struct {
	backtest *Backtest
	trades   *TradeManager
	executor *strategy.Executor
	store    ports.RunStore
	notifier ports.Notifier
	tickers  []string
	limiter  *rate.Limiter
}

// NewController wires a controller for one run.
func NewController(
	bt *Backtest,
	trades *TradeManager,
	executor *strategy.Executor,
	store ports.RunStore,
	notifier ports.Notifier,
	tickers []string,
	cfg ControllerConfig,
) *Controller {
	if cfg.MinTickDuration <= 0 {
		cfg.MinTickDuration = 3 * time.Second
	}
	return &Controller{
		backtest: bt,
		trades:   trades,
		executor: executor,
		store:    store,
		notifier: notifier,
		tickers:  tickers,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinTickDuration), 1),
	}
}

// Run executes the simulation until the end date, a stop request or a fatal
// persistence failure. It always leaves the backtest inactive before
// returning, and an external stop only takes effect at a tick boundary —
// the in-flight tick completes first.
func (c *Controller) Run(ctx context.Context) error {
	defer c.backtest.setInactive()

	if err := c.store.InitRun(ctx, c.trades.snapshot()); err != nil {
		return fmt.Errorf("backtest.Run: init run: %w", err)
	}

	slog.Info("backtest starting",
		"run_id", c.backtest.RunID,
		"start", c.backtest.StartDate.Format("2006-01-02"),
		"end", c.backtest.EndDate.Format("2006-01-02"),
		"start_balance", c.backtest.Portfolio.StartBalance,
		"tickers", len(c.tickers),
	)

	for {
		switch c.backtest.State() {
		case StateStopping, StateInactive:
			slog.Info("backtest stopped", "date", c.backtest.Date().Format("2006-01-02"))
			return nil
		case StatePaused:
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pausePollInterval):
			}
			continue
		}

		// Pacing floor: never tick faster than the configured minimum.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}

		done, err := c.tick(ctx)
		if err != nil {
			slog.Error("backtest halted", "err", err)
			return err
		}
		if done {
			slog.Info("backtest completed",
				"final_balance", fmt.Sprintf("%.2f", c.backtest.Portfolio.TotalBalance),
				"profit_loss", fmt.Sprintf("%.2f", c.backtest.Portfolio.TotalProfitLoss),
				"trades_closed", len(c.trades.ClosedTrades()),
			)
			return nil
		}
	}
}

// tick simulates one trading day. Open trades settle strictly before any new
// trade is considered. Recoverable misses (no candidate, nothing affordable)
// are logged and the day ends without a trade.
func (c *Controller) tick(ctx context.Context) (done bool, err error) {
	date := c.backtest.IncrementDate()
	if !date.Before(c.backtest.EndDate) {
		return true, nil
	}
	if err := c.store.UpdateDate(ctx, c.backtest.RunID, date); err != nil {
		return false, fmt.Errorf("backtest.tick: persist date: %w", err)
	}

	if _, err := c.trades.RevalueOpenTrades(ctx, date); err != nil {
		return false, err
	}

	if err := c.scanAndOpen(ctx, date); err != nil {
		return false, err
	}

	if c.notifier != nil {
		if err := c.notifier.NotifyTick(ctx, date.Format("2006-01-02"),
			c.backtest.Portfolio, c.trades.OpenTrades(), c.trades.ClosedTrades()); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	return false, nil
}

// scanAndOpen runs the strategy over the universe and opens a trade for one
// randomly chosen candidate.
func (c *Controller) scanAndOpen(ctx context.Context, date time.Time) error {
	candidates, err := c.executor.Execute(ctx, c.tickers, date)
	if err != nil {
		if errors.Is(err, domain.ErrNoCandidates) {
			slog.Debug("no candidates today", "date", date.Format("2006-01-02"))
			return nil
		}
		return fmt.Errorf("backtest.scanAndOpen: %w", err)
	}

	candidate := c.trades.ChooseCandidate(candidates)
	if _, err := c.trades.OpenTrade(ctx, candidate); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			slog.Debug("cannot afford candidate",
				"ticker", candidate.Series.Ticker,
				"date", date.Format("2006-01-02"),
			)
			return nil
		}
		return err
	}
	return nil
}

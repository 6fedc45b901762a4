package strategy

// executor.go — worker pool for parallel per-ticker analysis.
//
// Scanning a few hundred tickers dominates the cost of a simulated day;
// fanning out across workers keeps a tick in the low seconds.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/backtester/internal/domain"
	"github.com/alejandrodnm/backtester/internal/ports"
)

// DefaultWorkers is the fan-out width when none is configured.
const DefaultWorkers = 6

// Executor scans the ticker universe with the strategy pipeline and collects
// the tickers that triggered at least one indicator.
type Executor struct {
	history  ports.History
	strategy *Strategy
	workers  int
}

// NewExecutor creates an Executor. workers <= 0 falls back to DefaultWorkers.
func NewExecutor(history ports.History, strat *Strategy, workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Executor{
		history:  history,
		strategy: strat,
		workers:  workers,
	}
}

// Execute analyses every ticker as of the given date and returns all
// candidates. Each worker owns a contiguous slice of the universe; results
// go into a shared collection behind a mutex, and all workers join before
// Execute returns. Per-ticker failures (not enough history, series too
// short) are skipped, never fatal. An empty result set after the barrier is
// reported as domain.ErrNoCandidates.
func (e *Executor) Execute(ctx context.Context, tickers []string, asOf time.Time) ([]domain.Candidate, error) {
	start := time.Now()
	slog.Debug("executing strategy", "tickers", len(tickers), "workers", e.workers, "date", asOf.Format("2006-01-02"))

	var (
		mu         sync.Mutex
		candidates []domain.Candidate
		wg         sync.WaitGroup
	)

	for workerID := 0; workerID < e.workers; workerID++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for _, ticker := range partition(tickers, e.workers, id) {
				candidate, ok := e.analyseTicker(ctx, ticker, asOf)
				if !ok {
					continue
				}
				mu.Lock()
				candidates = append(candidates, candidate)
				mu.Unlock()
			}
		}(workerID)
	}
	wg.Wait()

	slog.Debug("strategy executed",
		"candidates", len(candidates),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if len(candidates) == 0 {
		return nil, fmt.Errorf("strategy.Execute: %s: %w", asOf.Format("2006-01-02"), domain.ErrNoCandidates)
	}
	return candidates, nil
}

// analyseTicker fetches the lookback window for one ticker and runs the
// chain over it. Returns ok=false when the ticker should be skipped.
func (e *Executor) analyseTicker(ctx context.Context, ticker string, asOf time.Time) (domain.Candidate, bool) {
	series, err := e.history.GetWindow(ctx, ticker, asOf, e.strategy.LookbackWeeks, 0)
	if err != nil {
		var insufficientHistory *domain.InsufficientHistoryError
		if errors.As(err, &insufficientHistory) {
			// Not enough recorded data for this ticker yet.
			return domain.Candidate{}, false
		}
		slog.Warn("history fetch failed", "ticker", ticker, "err", err)
		return domain.Candidate{}, false
	}

	var ann domain.Annotations
	if err := e.strategy.Analyse(series, &ann); err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			slog.Debug("series too short for analysis", "ticker", ticker, "bars", series.Len())
		} else {
			slog.Warn("analysis failed", "ticker", ticker, "err", err)
		}
		return domain.Candidate{}, false
	}

	if !ann.HasTriggers() {
		return domain.Candidate{}, false
	}
	return domain.Candidate{Series: series, Annotations: ann}, true
}

// partition returns the contiguous slice of tickers owned by one worker.
// Every worker but the last gets floor(n/workers) entries; the last absorbs
// the remainder. Together the slices cover the list exactly once.
func partition(tickers []string, numWorkers, workerID int) []string {
	section := len(tickers) / numWorkers
	begin := section * workerID
	if workerID+1 < numWorkers {
		return tickers[begin : begin+section]
	}
	return tickers[begin:]
}

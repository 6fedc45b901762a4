package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/backtester/internal/domain"
)

// RunSnapshot is the backtest state persisted after every tick.
type RunSnapshot struct {
	RunID     string
	Date      time.Time
	Portfolio domain.Portfolio

	// ProfitLossGraph is an opaque rendering payload for the UI, forwarded
	// unchanged.
	ProfitLossGraph []byte
}

// RunStore persists backtest state to the external data-access API. The
// adapter owns retry/backoff; an error returned here means retries were
// exhausted and the run must halt.
type RunStore interface {
	// InitRun registers a new backtest run.
	InitRun(ctx context.Context, snap RunSnapshot) error

	// UpdateDate advances the persisted simulation date.
	UpdateDate(ctx context.Context, runID string, date time.Time) error

	// SaveTrade upserts a newly opened trade and returns the generated
	// trade identifier.
	SaveTrade(ctx context.Context, runID string, trade *domain.Trade) (string, error)

	// SyncTrades upserts the current open and newly closed trade sets.
	SyncTrades(ctx context.Context, runID string, open, closed []*domain.Trade) error

	// UpdateProperties upserts the run's portfolio snapshot.
	UpdateProperties(ctx context.Context, snap RunSnapshot) error
}

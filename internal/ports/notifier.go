package ports

import (
	"context"

	"github.com/alejandrodnm/backtester/internal/domain"
)

// Notifier presents the state of the simulation to the user.
type Notifier interface {
	// NotifyTick reports the state at the end of one simulated day.
	NotifyTick(ctx context.Context, snapshotDate string, portfolio domain.Portfolio, open, closed []*domain.Trade) error
}

package apistore

import (
	"context"
	"time"

	"github.com/alejandrodnm/backtester/internal/domain"
	"github.com/alejandrodnm/backtester/internal/ports"
)

// Nop is a RunStore that discards everything. Used for storeless runs.
type Nop struct{}

func (Nop) InitRun(context.Context, ports.RunSnapshot) error { return nil }

func (Nop) UpdateDate(context.Context, string, time.Time) error { return nil }

func (Nop) SaveTrade(_ context.Context, _ string, trade *domain.Trade) (string, error) {
	return trade.ID, nil
}

func (Nop) SyncTrades(context.Context, string, []*domain.Trade, []*domain.Trade) error { return nil }

func (Nop) UpdateProperties(context.Context, ports.RunSnapshot) error { return nil }

package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/backtester/internal/adapters/notify"
	"github.com/alejandrodnm/backtester/internal/domain"
)

func sampleState() (domain.Portfolio, []*domain.Trade) {
	pf := domain.Portfolio{
		StartBalance:       15000,
		TotalBalance:       15156,
		AvailableBalance:   11412,
		TotalProfitLoss:    156,
		TotalProfitLossPct: 1.04,
	}
	open := []*domain.Trade{{
		ID:                  "t-1",
		Ticker:              "TEST",
		BuyDate:             time.Date(2023, time.March, 9, 0, 0, 0, 0, time.UTC),
		BuyPrice:            12,
		ShareQty:            312,
		InvestmentTotal:     3744,
		TakeProfit:          12.24,
		StopLoss:            11.88,
		CurrentPrice:        12.5,
		ProfitLoss:          156,
		ProfitLossPct:       4.17,
		TriggeredIndicators: []string{"MovingAverages"},
	}}
	return pf, open
}

func TestNotifyTick_Compact(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, false)

	pf, open := sampleState()
	require.NoError(t, console.NotifyTick(context.Background(), "2023-03-10", pf, open, nil))

	out := buf.String()
	assert.Contains(t, out, "2023-03-10")
	assert.Contains(t, out, "15156.00")
	assert.Contains(t, out, "TEST")
	assert.Contains(t, out, "open:1")
	// Compact mode is a single line.
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestNotifyTick_Table(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, true)

	pf, open := sampleState()
	require.NoError(t, console.NotifyTick(context.Background(), "2023-03-10", pf, open, nil))

	out := buf.String()
	assert.Contains(t, out, "TEST")
	assert.Contains(t, out, "£3744.00")
	assert.Contains(t, out, "MovingAverages")
}

func TestNotifyTick_TableWithNoOpenTrades(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, true)

	pf, _ := sampleState()
	require.NoError(t, console.NotifyTick(context.Background(), "2023-03-10", pf, nil, nil))

	assert.Contains(t, buf.String(), "open 0")
}

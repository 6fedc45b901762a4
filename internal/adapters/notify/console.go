// Package notify renders simulation state to the console.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/backtester/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implements ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole creates a notifier that writes to stdout. With table enabled it
// prints the full trade table each day instead of the compact one-liner.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyTick prints the day's state in the configured mode.
func (c *Console) NotifyTick(_ context.Context, date string, pf domain.Portfolio, open, closed []*domain.Trade) error {
	if c.table {
		c.printFull(date, pf, open, closed)
	} else {
		c.printCompact(date, pf, open, closed)
	}
	return nil
}

// printCompact prints the essentials in one line.
func (c *Console) printCompact(date string, pf domain.Portfolio, open, closed []*domain.Trade) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] total £%.2f avail £%.2f pnl %+.2f%% | open:%d closed:%d",
		date, pf.TotalBalance, pf.AvailableBalance, pf.TotalProfitLossPct, len(open), len(closed))

	shown := 0
	for _, t := range open {
		if shown >= 3 {
			break
		}
		fmt.Fprintf(&sb, " | %s %+.2f%%", t.Ticker, t.ProfitLossPct)
		shown++
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull prints the portfolio summary and a table of open trades.
func (c *Console) printFull(date string, pf domain.Portfolio, open, closed []*domain.Trade) {
	fmt.Fprintf(c.out, "\n[%s] total £%.2f | available £%.2f | P&L £%.2f (%+.2f%%) | open %d | closed %d\n",
		date, pf.TotalBalance, pf.AvailableBalance, pf.TotalProfitLoss, pf.TotalProfitLossPct,
		len(open), len(closed))

	if len(open) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Ticker", "Bought", "Buy", "Qty", "Invested", "Current", "TP", "SL", "P&L", "P&L %", "Triggered by")

	for _, t := range open {
		table.Append(
			t.Ticker,
			t.BuyDate.Format("2006-01-02"),
			fmt.Sprintf("£%.2f", t.BuyPrice),
			fmt.Sprintf("%d", t.ShareQty),
			fmt.Sprintf("£%.2f", t.InvestmentTotal),
			fmt.Sprintf("£%.2f", t.CurrentPrice),
			fmt.Sprintf("£%.2f", t.TakeProfit),
			fmt.Sprintf("£%.2f", t.StopLoss),
			fmt.Sprintf("£%.2f", t.ProfitLoss),
			fmt.Sprintf("%+.2f%%", t.ProfitLossPct),
			strings.Join(t.TriggeredIndicators, ", "),
		)
	}
	table.Render()
}

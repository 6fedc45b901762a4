package domain

import (
	"encoding/json"
	"time"
)

// Trade is a simulated position over one ticker. It is created when the
// strategy yields a candidate and sizing succeeds, revalued every trading
// day while open, and closed when the price crosses its take-profit or
// stop-loss threshold.
type Trade struct {
	ID     string
	Ticker string

	BuyDate         time.Time
	BuyPrice        float64
	ShareQty        int64
	InvestmentTotal float64 // ShareQty * BuyPrice, exact

	TakeProfit float64
	StopLoss   float64

	CurrentPrice  float64
	ProfitLoss    float64
	ProfitLossPct float64

	SellDate  *time.Time
	SellPrice *float64

	TriggeredIndicators []string

	// History is the fixed-size trailing window driving valuation; it rolls
	// forward one bar per day while the trade is open.
	History PriceSeries

	// Figure is the opaque analysis payload captured at open time.
	Figure json.RawMessage
}

// Open reports whether the trade has not yet been sold.
func (t *Trade) Open() bool {
	return t.SellDate == nil
}

// ShouldClose reports whether the current price has crossed either threshold.
func (t *Trade) ShouldClose() bool {
	return t.CurrentPrice > t.TakeProfit || t.CurrentPrice < t.StopLoss
}

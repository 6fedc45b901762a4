package domain

import "time"

// Bar is one day of OHLCV data for a ticker.
type Bar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// PriceSeries is an ascending-by-date run of bars for a single ticker.
// Every fetch from the history store returns an independent copy; nothing
// downstream mutates a series another component holds.
type PriceSeries struct {
	Ticker string
	Bars   []Bar
}

// Len returns the number of bars in the series.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// LastClose returns the close of the most recent bar, or 0 for an empty series.
func (s PriceSeries) LastClose() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// LastDate returns the date of the most recent bar.
func (s PriceSeries) LastDate() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Date
}

// Closes returns the close column as a slice, oldest first.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Roll appends bar and drops the oldest entry, keeping the window length
// constant. Open trades use this to slide their valuation window forward
// one trading day at a time.
func (s *PriceSeries) Roll(bar Bar) {
	if len(s.Bars) == 0 {
		s.Bars = []Bar{bar}
		return
	}
	s.Bars = append(s.Bars[1:], bar)
}

// Clone returns a deep copy of the series.
func (s PriceSeries) Clone() PriceSeries {
	bars := make([]Bar, len(s.Bars))
	copy(bars, s.Bars)
	return PriceSeries{Ticker: s.Ticker, Bars: bars}
}

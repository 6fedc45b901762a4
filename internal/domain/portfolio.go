package domain

// Portfolio tracks the virtual capital of a backtest run.
//
// Invariants: AvailableBalance <= TotalBalance at all times, and
// TotalBalance = StartBalance + TotalProfitLoss once open trades have been
// settled for the day. TotalBalance only moves when a trade closes;
// AvailableBalance moves on both open (debit) and close (credit).
type Portfolio struct {
	StartBalance       float64
	TotalBalance       float64
	AvailableBalance   float64
	TotalProfitLoss    float64
	TotalProfitLossPct float64
}

// NewPortfolio creates a portfolio with all balances at startBalance.
func NewPortfolio(startBalance float64) Portfolio {
	return Portfolio{
		StartBalance:     startBalance,
		TotalBalance:     startBalance,
		AvailableBalance: startBalance,
	}
}

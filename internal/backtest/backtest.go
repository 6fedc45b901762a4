// Package backtest owns the simulation state: the clock, the portfolio, the
// open-trade collection and the run state machine that drives the
// day-stepping loop.
package backtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/backtester/internal/calendar"
	"github.com/alejandrodnm/backtester/internal/domain"
)

// State is the run state of a backtest.
type State string

const (
	StateActive   State = "active"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateInactive State = "inactive" // terminal
)

// Backtest holds the state of one simulation run. The clock only moves
// forward, one valid trading day per step, and never lands on a weekend or
// holiday once initialised.
type Backtest struct {
	RunID     string
	StartDate time.Time
	EndDate   time.Time

	Portfolio domain.Portfolio

	mu    sync.Mutex
	date  time.Time
	state State
	done  chan struct{}
}

// New creates a run with the clock resolved to the first valid trading day
// at or after startDate, and the end resolved backward to the last valid
// trading day at or before endDate.
func New(startDate, endDate time.Time, startBalance float64) (*Backtest, error) {
	start, err := calendar.ResolveValidDate(startDate, 1)
	if err != nil {
		return nil, fmt.Errorf("backtest.New: %w", err)
	}
	end, err := calendar.ResolveValidDate(endDate, -1)
	if err != nil {
		return nil, fmt.Errorf("backtest.New: %w", err)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("backtest.New: start date %s is not before end date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return &Backtest{
		RunID:     uuid.New().String(),
		StartDate: start,
		EndDate:   end,
		Portfolio: domain.NewPortfolio(startBalance),
		date:      start,
		state:     StateActive,
		done:      make(chan struct{}),
	}, nil
}

// Date returns the current simulation date.
func (b *Backtest) Date() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.date
}

// IncrementDate advances the clock to the next valid trading day and
// returns it.
func (b *Backtest) IncrementDate() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, _ := calendar.ResolveValidDate(b.date.AddDate(0, 0, 1), 1)
	b.date = next
	return next
}

// State returns the current run state.
func (b *Backtest) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Pause suspends the day loop. Only an active run can pause.
func (b *Backtest) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateActive {
		b.state = StatePaused
	}
}

// Resume re-activates a paused run.
func (b *Backtest) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StatePaused {
		b.state = StateActive
	}
}

// RequestStop asks the run to stop. The controller finishes its in-flight
// tick before the run becomes inactive; use Wait to block until then.
func (b *Backtest) RequestStop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateActive || b.state == StatePaused {
		b.state = StateStopping
	}
}

// setInactive marks the terminal state. No transition leaves it.
func (b *Backtest) setInactive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateInactive {
		b.state = StateInactive
		close(b.done)
	}
}

// Wait blocks until the run reaches the inactive state. Only then is the
// instance safe to discard.
func (b *Backtest) Wait() {
	<-b.done
}

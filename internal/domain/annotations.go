package domain

import "encoding/json"

// Annotations accumulates the outcome of a technical-analysis pass over one
// ticker. It travels alongside the price series instead of being piggybacked
// on it, so the series stays a pure data snapshot.
type Annotations struct {
	// Triggered lists the names of the indicators that flagged the ticker,
	// in the order they fired.
	Triggered []string

	// Figure is an opaque visualization payload for the UI. The engine never
	// inspects it, only threads it through to persistence.
	Figure json.RawMessage
}

// Trigger records that the named indicator flagged the ticker.
func (a *Annotations) Trigger(name string) {
	a.Triggered = append(a.Triggered, name)
}

// HasTriggers reports whether any indicator flagged the ticker.
func (a *Annotations) HasTriggers() bool {
	return len(a.Triggered) > 0
}

// Candidate pairs an analysed series with its annotations. The strategy
// executor emits one per ticker that triggered at least one indicator.
type Candidate struct {
	Series      PriceSeries
	Annotations Annotations
}

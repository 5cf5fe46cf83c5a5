package models

import "time"

// CycleState tracks where a symbol's update cycle currently is.
type CycleState string

const (
	StateIdle        CycleState = "idle"
	StateFetching    CycleState = "fetching"
	StateStoring     CycleState = "storing"
	StateGapScanning CycleState = "gap_scanning"
	StateGapFilling  CycleState = "gap_filling"
	StateRetrying    CycleState = "retrying"
	StateDone        CycleState = "done"
	StateFailed      CycleState = "failed"
	StateCancelled   CycleState = "cancelled"
)

// UpdateOutcome is the result of one orchestrator cycle for one symbol.
// Consumed by the caller and the outcome publisher, never persisted.
type UpdateOutcome struct {
	Symbol      string     `json:"symbol"`
	State       CycleState `json:"state"`
	BarsFetched int        `json:"bars_fetched"`
	BarsStored  int        `json:"bars_stored"`
	GapsFound   int        `json:"gaps_found"`
	GapsFilled  int        `json:"gaps_filled"`
	GapsSkipped int        `json:"gaps_skipped"`
	Attempts    int        `json:"attempts"`
	StartedAt   time.Time  `json:"started_at"`
	Duration    time.Duration `json:"duration_ms"`
	Err         error      `json:"-"`
	ErrMessage  string     `json:"error,omitempty"`
}

// Failed reports whether the cycle ended without completing.
func (o *UpdateOutcome) Failed() bool {
	return o.State == StateFailed || o.State == StateCancelled
}

// Finish stamps the terminal state and duration.
func (o *UpdateOutcome) Finish(state CycleState, err error, now time.Time) {
	o.State = state
	o.Err = err
	if err != nil {
		o.ErrMessage = err.Error()
	}
	o.Duration = now.Sub(o.StartedAt)
}

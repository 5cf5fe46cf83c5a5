package models

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV observation for a single minute, timestamped at the
// start of the interval in UTC.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate checks the OHLC ordering invariant, finiteness, volume sign
// and minute alignment.
func (b *Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %s@%s: non-finite field", b.Symbol, b.Timestamp.Format(time.RFC3339))
		}
	}
	hi := math.Max(b.Open, b.Close)
	lo := math.Min(b.Open, b.Close)
	if b.High < hi || b.Low > lo || b.High < b.Low {
		return fmt.Errorf("bar %s@%s: high/low do not bound open/close", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s@%s: negative volume", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	if !b.Timestamp.Equal(b.Timestamp.Truncate(time.Minute)) {
		return fmt.Errorf("bar %s@%s: timestamp not minute-aligned", b.Symbol, b.Timestamp.Format(time.RFC3339Nano))
	}
	return nil
}

// Symbol describes a tradable instrument. Registered once via the
// symbol registry and treated as immutable afterwards, except metadata
// refreshes from config.
type Symbol struct {
	Name      string  `json:"name"      yaml:"name"`
	PipSize   float64 `json:"pip_size"  yaml:"pip_size"`
	SpreadAvg float64 `json:"spread_avg" yaml:"spread_avg"`
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange normalizes both endpoints to UTC.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start.UTC(), End: end.UTC()}
}

func (r TimeRange) IsEmpty() bool { return !r.Start.Before(r.End) }

func (r TimeRange) Duration() time.Duration {
	if r.IsEmpty() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Minutes returns the number of whole minutes covered by the range.
func (r TimeRange) Minutes() int {
	return int(r.Duration() / time.Minute)
}

// Contains reports whether t falls inside [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Intersect returns the overlap of two ranges; the result may be empty.
func (r TimeRange) Intersect(o TimeRange) TimeRange {
	start := r.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := r.End
	if o.End.Before(end) {
		end = o.End
	}
	return TimeRange{Start: start, End: end}
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// Gap is a maximal open-market range with no stored bar. Derived by the
// gap analyzer, never persisted.
type Gap struct {
	Symbol string    `json:"symbol"`
	Range  TimeRange `json:"range"`
}

// Minutes returns the number of missing one-minute bars the gap spans.
func (g Gap) Minutes() int { return g.Range.Minutes() }

// Bucket is one fixed-width resample window plus its aggregate bar.
// The bar timestamp equals Range.Start.
type Bucket struct {
	Range TimeRange `json:"range"`
	Bar   Bar       `json:"bar"`
}

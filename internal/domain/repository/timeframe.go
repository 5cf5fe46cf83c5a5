package repository

import (
	"fmt"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var timeframeWidths = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// IsValidTimeframe returns true if tf is a supported named timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframeWidths[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1m }

// Width parses tf into a bucket width. Raw durations ("90m", "2h") are
// also accepted as long as they are positive whole-minute multiples.
func Width(tf Timeframe) (time.Duration, error) {
	if w, ok := timeframeWidths[tf]; ok {
		return w, nil
	}
	d, err := time.ParseDuration(string(tf))
	if err != nil {
		return 0, models.NewValidationError("timeframe", fmt.Sprintf("unsupported timeframe %q", tf))
	}
	if d <= 0 || d%time.Minute != 0 {
		return 0, models.NewValidationError("timeframe", fmt.Sprintf("timeframe %q is not a positive whole-minute width", tf))
	}
	return d, nil
}

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if _, err := Width(tf); err != nil {
		return DefaultTimeframe()
	}
	return tf
}

package resample

import (
	"fmt"
	"sort"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

// Resample aggregates one-minute bars into fixed-width buckets. Bucket
// boundaries are aligned to epoch-relative multiples of width, so the
// same minute always lands in the same bucket no matter which range was
// queried. Buckets with no constituent bars are omitted; the resampler
// never manufactures data.
//
// Aggregation per bucket, in time order: open = first open, close =
// last close, high = max high, low = min low, volume = sum.
func Resample(bars []models.Bar, width time.Duration) ([]models.Bucket, error) {
	if width <= 0 || width%time.Minute != 0 {
		return nil, models.NewValidationError("resample",
			fmt.Sprintf("width %s is not a positive multiple of one minute", width))
	}
	if len(bars) == 0 {
		return nil, nil
	}
	if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) }) {
		sorted := make([]models.Bar, len(bars))
		copy(sorted, bars)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
		bars = sorted
	}

	var out []models.Bucket
	for _, b := range bars {
		start := b.Timestamp.UTC().Truncate(width)
		if n := len(out); n > 0 && out[n-1].Range.Start.Equal(start) {
			agg := &out[n-1].Bar
			if b.High > agg.High {
				agg.High = b.High
			}
			if b.Low < agg.Low {
				agg.Low = b.Low
			}
			agg.Close = b.Close
			agg.Volume += b.Volume
			continue
		}
		out = append(out, models.Bucket{
			Range: models.TimeRange{Start: start, End: start.Add(width)},
			Bar: models.Bar{
				Symbol:    b.Symbol,
				Timestamp: start,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			},
		})
	}
	return out, nil
}

// Bars flattens buckets into their aggregate bars.
func Bars(buckets []models.Bucket) []models.Bar {
	out := make([]models.Bar, len(buckets))
	for i, bk := range buckets {
		out[i] = bk.Bar
	}
	return out
}

package gapscan

import (
	"context"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/calendar"
)

// Analyzer derives missing sub-ranges from the stored timestamps of a
// symbol and its trading calendar. Read-only; never mutates the store.
type Analyzer struct {
	store repository.BarStore
}

func New(store repository.BarStore) *Analyzer {
	return &Analyzer{store: store}
}

// FindGaps walks the stored timestamps inside r in ascending order,
// takes every sub-range wider than one minute between neighbours (and
// between the range boundaries and the first/last bar), intersects it
// with the calendar's open windows and emits the non-empty remainders.
// Minutes outside market hours are never reported as gaps.
func (a *Analyzer) FindGaps(ctx context.Context, symbol string, r models.TimeRange, cal *calendar.Calendar) ([]models.Gap, error) {
	if r.IsEmpty() {
		return nil, nil
	}
	ts, err := a.store.Timestamps(ctx, symbol, r)
	if err != nil {
		return nil, err
	}

	var candidates []models.TimeRange
	if len(ts) == 0 {
		candidates = []models.TimeRange{r}
	} else {
		if first := ts[0]; first.After(r.Start) {
			candidates = append(candidates, models.TimeRange{Start: r.Start, End: first})
		}
		for i := 1; i < len(ts); i++ {
			prev, cur := ts[i-1], ts[i]
			if cur.Sub(prev) > time.Minute {
				candidates = append(candidates, models.TimeRange{Start: prev.Add(time.Minute), End: cur})
			}
		}
		if last := ts[len(ts)-1].Add(time.Minute); last.Before(r.End) {
			candidates = append(candidates, models.TimeRange{Start: last, End: r.End})
		}
	}

	var gaps []models.Gap
	for _, c := range candidates {
		for _, w := range cal.OpenWindows(c) {
			gaps = append(gaps, models.Gap{Symbol: symbol, Range: w})
		}
	}
	return gaps, nil
}

// Coverage returns open-market minutes present over open-market minutes
// expected, in [0, 1]. A range that expects nothing is fully covered by
// convention.
func (a *Analyzer) Coverage(ctx context.Context, symbol string, r models.TimeRange, cal *calendar.Calendar) (float64, error) {
	expected := cal.OpenMinutes(r)
	if expected == 0 {
		return 1, nil
	}
	ts, err := a.store.Timestamps(ctx, symbol, r)
	if err != nil {
		return 0, err
	}
	present := 0
	for _, t := range ts {
		if cal.IsOpen(t) {
			present++
		}
	}
	frac := float64(present) / float64(expected)
	if frac > 1 {
		frac = 1
	}
	return frac, nil
}

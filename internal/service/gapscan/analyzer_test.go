package gapscan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/calendar"
)

func seedBars(t *testing.T, store *repository.MemoryStore, times ...time.Time) {
	t.Helper()
	bars := make([]models.Bar, 0, len(times))
	for _, ts := range times {
		bars = append(bars, models.Bar{
			Symbol: "EURUSD", Timestamp: ts,
			Open: 1, High: 1.5, Low: 0.5, Close: 1.2, Volume: 10,
		})
	}
	_, err := store.WriteBars(context.Background(), "EURUSD", bars)
	require.NoError(t, err)
}

func TestFindGapsEmptyPartition(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(store)
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	r := models.NewTimeRange(base, base.Add(10*time.Minute))

	gaps, err := a.FindGaps(context.Background(), "EURUSD", r, calendar.AlwaysOpen())
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, r, gaps[0].Range)
	assert.Equal(t, 10, gaps[0].Minutes())
}

func TestFindGapsBetweenBars(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(store)
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	// bars at 10:00, 10:01, then nothing until 10:05
	seedBars(t, store, base, base.Add(1*time.Minute), base.Add(5*time.Minute))

	r := models.NewTimeRange(base, base.Add(6*time.Minute))
	gaps, err := a.FindGaps(context.Background(), "EURUSD", r, calendar.AlwaysOpen())
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, base.Add(2*time.Minute), gaps[0].Range.Start)
	assert.Equal(t, base.Add(5*time.Minute), gaps[0].Range.End)
}

func TestFindGapsHeadAndTail(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(store)
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	seedBars(t, store, base.Add(2*time.Minute), base.Add(3*time.Minute))

	r := models.NewTimeRange(base, base.Add(6*time.Minute))
	gaps, err := a.FindGaps(context.Background(), "EURUSD", r, calendar.AlwaysOpen())
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, base, gaps[0].Range.Start)
	assert.Equal(t, base.Add(2*time.Minute), gaps[0].Range.End)
	assert.Equal(t, base.Add(4*time.Minute), gaps[1].Range.Start)
	assert.Equal(t, base.Add(6*time.Minute), gaps[1].Range.End)
}

func TestFindGapsFullySeededRange(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(store)
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	seedBars(t, store, base, base.Add(time.Minute), base.Add(2*time.Minute))

	r := models.NewTimeRange(base, base.Add(3*time.Minute))
	gaps, err := a.FindGaps(context.Background(), "EURUSD", r, calendar.AlwaysOpen())
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestFindGapsRespectsCalendar(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(store)
	weekdays, err := calendar.New([]calendar.SessionSpec{
		{Day: "friday", Open: "00:00", Close: "22:00"},
		{Day: "monday", Open: "00:00", Close: "24:00"},
	}, nil)
	require.NoError(t, err)

	// Friday 21:58 through Monday 00:02: the weekend itself is not a gap.
	friday := time.Date(2024, 10, 11, 21, 58, 0, 0, time.UTC)
	monday := time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)
	r := models.NewTimeRange(friday, monday.Add(2*time.Minute))

	gaps, err := a.FindGaps(context.Background(), "EURUSD", r, weekdays)
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, friday, gaps[0].Range.Start)
	assert.Equal(t, time.Date(2024, 10, 11, 22, 0, 0, 0, time.UTC), gaps[0].Range.End)
	assert.Equal(t, monday, gaps[1].Range.Start)
	assert.Equal(t, monday.Add(2*time.Minute), gaps[1].Range.End)
}

func TestFindGapsEmptyRange(t *testing.T) {
	a := New(repository.NewMemoryStore())
	now := time.Now().UTC()
	gaps, err := a.FindGaps(context.Background(), "EURUSD", models.NewTimeRange(now, now), calendar.AlwaysOpen())
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestCoverage(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(store)
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	seedBars(t, store, base, base.Add(time.Minute), base.Add(2*time.Minute))

	r := models.NewTimeRange(base, base.Add(4*time.Minute))
	cov, err := a.Coverage(context.Background(), "EURUSD", r, calendar.AlwaysOpen())
	require.NoError(t, err)
	assert.InDelta(t, 0.75, cov, 1e-9)
}

func TestCoverageClosedRangeIsFull(t *testing.T) {
	a := New(repository.NewMemoryStore())
	weekdays, err := calendar.New([]calendar.SessionSpec{{Day: "monday", Open: "00:00", Close: "24:00"}}, nil)
	require.NoError(t, err)

	// Saturday: nothing expected, nothing stored.
	saturday := time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC)
	cov, err := a.Coverage(context.Background(), "EURUSD", models.NewTimeRange(saturday, saturday.Add(time.Hour)), weekdays)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cov)
}

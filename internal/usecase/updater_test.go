package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	domrepo "github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/calendar"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/gapscan"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/logger"
)

// fakeSource serves minute bars from an in-memory series and can be
// told to fail a number of times first.
type fakeSource struct {
	mu           sync.Mutex
	bars         map[string][]models.Bar
	extra        []models.Bar // returned on every fetch regardless of range
	failuresLeft int
	failWith     error
	failSymbols  map[string]error
	calls        []models.TimeRange
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		bars:        make(map[string][]models.Bar),
		failSymbols: make(map[string]error),
	}
}

func (f *fakeSource) seed(symbol string, from time.Time, minutes int) {
	for i := 0; i < minutes; i++ {
		ts := from.Add(time.Duration(i) * time.Minute)
		f.bars[symbol] = append(f.bars[symbol], models.Bar{
			Symbol: symbol, Timestamp: ts,
			Open: 1, High: 1.5, Low: 0.5, Close: 1.2, Volume: 10,
		})
	}
}

func (f *fakeSource) FetchRange(_ context.Context, symbol string, r models.TimeRange) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r)
	if err, ok := f.failSymbols[symbol]; ok {
		return nil, err
	}
	if f.failuresLeft != 0 {
		if f.failuresLeft > 0 {
			f.failuresLeft--
		}
		return nil, f.failWith
	}
	var out []models.Bar
	for _, b := range f.bars[symbol] {
		if r.Contains(b.Timestamp) {
			out = append(out, b)
		}
	}
	return append(out, f.extra...), nil
}

func (f *fakeSource) FetchLatest(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	bars := f.bars[symbol]
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

func (f *fakeSource) IsSymbolAvailable(context.Context, string) (bool, error) { return true, nil }

func (f *fakeSource) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type capturePublisher struct {
	mu       sync.Mutex
	outcomes []models.UpdateOutcome
}

func (p *capturePublisher) PublishOutcome(_ context.Context, o *models.UpdateOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, *o)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordBarsStored(string, int)                   {}
func (nopMetrics) RecordGaps(string, int, int, int)               {}
func (nopMetrics) RecordCycle(string, models.CycleState, float64) {}
func (nopMetrics) RecordCoverage(string, float64)                 {}
func (nopMetrics) RecordError(string)                             {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func newTestUpdater(t *testing.T, store *repository.MemoryStore, src *fakeSource, pub *capturePublisher, cfg UpdaterConfig, now time.Time) *Updater {
	t.Helper()
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	// keep the interface nil when no publisher is wanted
	var dompub domrepo.OutcomePublisher
	if pub != nil {
		dompub = pub
	}
	u := NewUpdater(
		store, src,
		gapscan.New(store),
		calendar.NewProvider(calendar.AlwaysOpen(), nil),
		dompub,
		nopMetrics{},
		testLogger(t),
		cfg,
	)
	u.SetClock(func() time.Time { return now })
	return u
}

func TestUpdateLatestDropsCurrentMinute(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 5, 30, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	src.seed("EURUSD", time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC), 5)
	// a sloppy source that also returns the still-forming minute
	src.extra = []models.Bar{{
		Symbol: "EURUSD", Timestamp: time.Date(2024, 10, 7, 10, 5, 0, 0, time.UTC),
		Open: 1, High: 1.5, Low: 0.5, Close: 1.2, Volume: 10,
	}}
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{}, now)

	fetched, stored, err := u.UpdateLatest(context.Background(), "EURUSD", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5, fetched)
	assert.Equal(t, 5, stored)

	max, ok, err := store.MaxTimestamp(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 7, 10, 4, 0, 0, time.UTC), max)
}

func TestUpdateLatestResumesAfterMaxTimestamp(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	src.seed("EURUSD", time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC), 5)
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{}, now)

	// first pass stores everything the source has, up to 10:04
	_, _, err := u.UpdateLatest(context.Background(), "EURUSD", time.Hour)
	require.NoError(t, err)

	// second pass must only ask for what is newer than the stored max
	_, _, err = u.UpdateLatest(context.Background(), "EURUSD", time.Hour)
	require.NoError(t, err)

	src.mu.Lock()
	last := src.calls[len(src.calls)-1]
	src.mu.Unlock()
	assert.Equal(t, 2, len(src.calls))
	assert.Equal(t, time.Date(2024, 10, 7, 10, 5, 0, 0, time.UTC), last.Start)
}

func TestUpdateLatestRetriesTransientErrors(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	src.seed("EURUSD", now.Add(-10*time.Minute), 10)
	src.failuresLeft = 2
	src.failWith = models.ErrSourceUnavailable
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{RetryAttempts: 3}, now)

	_, stored, err := u.UpdateLatest(context.Background(), "EURUSD", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 10, stored)
	assert.Equal(t, 3, src.fetchCalls())
}

func TestUpdateLatestRetryExhaustion(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	src.failuresLeft = -1 // never recovers
	src.failWith = models.ErrSourceUnavailable
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{RetryAttempts: 3}, now)

	_, _, err := u.UpdateLatest(context.Background(), "EURUSD", 10*time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
	// exactly the configured number of attempts, no more
	assert.Equal(t, 3, src.fetchCalls())
}

func TestUpdateLatestUnknownSymbolFailsFast(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	src.failuresLeft = -1
	src.failWith = models.ErrUnknownSymbol
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{RetryAttempts: 5}, now)

	_, _, err := u.UpdateLatest(context.Background(), "NOPEUSD", 10*time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownSymbol)
	assert.Equal(t, 1, src.fetchCalls())
}

func TestFillGapsSkipsOldGaps(t *testing.T) {
	now := time.Date(2024, 10, 7, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	src.seed("EURUSD", now.Add(-4*time.Hour), 4*60)
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{}, now)

	// store has bars only between the two gaps
	seedStore(t, store, "EURUSD", now.Add(-2*time.Hour), 60)

	r := models.NewTimeRange(now.Add(-3*time.Hour), now.Add(-30*time.Minute))
	found, filled, skipped, stored, err := u.FillGaps(context.Background(), "EURUSD", r, 90*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, found)
	assert.Equal(t, 1, filled)
	assert.Equal(t, 1, skipped)
	// only the recent gap was fetched and stored
	assert.Equal(t, 30, stored)
	assert.Equal(t, 1, src.fetchCalls())
}

func TestFillGapsNoCutoffFillsEverything(t *testing.T) {
	now := time.Date(2024, 10, 7, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	src.seed("EURUSD", now.Add(-4*time.Hour), 4*60)
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{}, now)

	seedStore(t, store, "EURUSD", now.Add(-2*time.Hour), 60)

	r := models.NewTimeRange(now.Add(-3*time.Hour), now.Add(-30*time.Minute))
	found, filled, skipped, _, err := u.FillGaps(context.Background(), "EURUSD", r, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, found)
	assert.Equal(t, 2, filled)
	assert.Zero(t, skipped)

	// nothing left to find afterwards
	gaps, err := gapscan.New(store).FindGaps(context.Background(), "EURUSD", r, calendar.AlwaysOpen())
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestUpdateAllOutcomePerSymbol(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	pub := &capturePublisher{}
	symbols := []string{"EURUSD", "GBPUSD", "USDJPY"}
	for _, s := range symbols {
		src.seed(s, now.Add(-10*time.Minute), 10)
	}
	u := newTestUpdater(t, store, src, pub, UpdaterConfig{Lookback: 10 * time.Minute, Workers: 2}, now)

	outcomes := u.UpdateAll(context.Background(), symbols, UpdateOptions{})
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, symbols[i], o.Symbol)
		assert.Equal(t, models.StateDone, o.State)
		assert.Equal(t, 10, o.BarsStored)
		assert.False(t, o.Failed())
	}
	assert.Len(t, pub.outcomes, 3)
}

func TestUpdateAllFailedSymbolLeavesSiblingsIntact(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	pub := &capturePublisher{}
	symbols := []string{"EURUSD", "GBPUSD", "USDJPY"}
	for _, s := range symbols {
		src.seed(s, now.Add(-10*time.Minute), 10)
	}
	src.failSymbols["GBPUSD"] = models.ErrUnknownSymbol
	u := newTestUpdater(t, store, src, pub, UpdaterConfig{
		Lookback: 10 * time.Minute,
		Workers:  2,
	}, now)

	outcomes := u.UpdateAll(context.Background(), symbols, UpdateOptions{})
	require.Len(t, outcomes, 3)

	assert.Equal(t, models.StateFailed, outcomes[1].State)
	assert.ErrorIs(t, outcomes[1].Err, models.ErrUnknownSymbol)
	assert.Zero(t, outcomes[1].BarsStored)

	// healthy symbols finish and keep their bars
	for _, i := range []int{0, 2} {
		assert.Equal(t, models.StateDone, outcomes[i].State)
		assert.Equal(t, 10, outcomes[i].BarsStored)
		bars, err := store.ReadBars(context.Background(), outcomes[i].Symbol,
			models.NewTimeRange(now.Add(-10*time.Minute), now))
		require.NoError(t, err)
		assert.Len(t, bars, 10)
	}
	assert.Len(t, pub.outcomes, 3)
}

func TestUpdateAllFailureThresholdAbortsRun(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	src.failuresLeft = -1
	src.failWith = models.ErrUnknownSymbol
	symbols := []string{"AAAUSD", "BBBUSD", "CCCUSD", "DDDUSD", "EEEUSD"}
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{
		Lookback:         10 * time.Minute,
		Workers:          1,
		FailureThreshold: 2,
	}, now)

	outcomes := u.UpdateAll(context.Background(), symbols, UpdateOptions{})
	require.Len(t, outcomes, len(symbols))

	failed, cancelled := 0, 0
	for _, o := range outcomes {
		switch o.State {
		case models.StateFailed:
			failed++
		case models.StateCancelled:
			cancelled++
		}
	}
	assert.Equal(t, 2, failed)
	assert.Equal(t, len(symbols)-2, cancelled)
}

func TestUpdateAllSchemaErrorAbortsRun(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	symbols := []string{"bad name", "EURUSD", "GBPUSD"}
	for _, s := range symbols {
		src.seed(s, now.Add(-10*time.Minute), 10)
	}
	u := newTestUpdater(t, store, src, nil, UpdaterConfig{
		Lookback:         10 * time.Minute,
		Workers:          1,
		FailureThreshold: 100,
	}, now)

	outcomes := u.UpdateAll(context.Background(), symbols, UpdateOptions{})
	require.Len(t, outcomes, 3)
	assert.Equal(t, models.StateFailed, outcomes[0].State)
	var serr *models.SchemaError
	assert.ErrorAs(t, outcomes[0].Err, &serr)
	assert.Equal(t, models.StateCancelled, outcomes[1].State)
	assert.Equal(t, models.StateCancelled, outcomes[2].State)
}

func TestUpdateAllCancelledContext(t *testing.T) {
	now := time.Date(2024, 10, 7, 10, 10, 0, 0, time.UTC)
	u := newTestUpdater(t, repository.NewMemoryStore(), newFakeSource(), nil,
		UpdaterConfig{Lookback: 10 * time.Minute}, now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := u.UpdateAll(ctx, []string{"EURUSD", "GBPUSD"}, UpdateOptions{})
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, models.StateCancelled, o.State)
	}
}

func TestCycleFillsGapsAndPublishes(t *testing.T) {
	now := time.Date(2024, 10, 7, 11, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	src := newFakeSource()
	pub := &capturePublisher{}
	src.seed("EURUSD", now.Add(-time.Hour), 60)
	// store already holds the first half hour except a ten-minute hole
	seedStore(t, store, "EURUSD", now.Add(-time.Hour), 10)
	seedStore(t, store, "EURUSD", now.Add(-40*time.Minute), 10)
	u := newTestUpdater(t, store, src, pub, UpdaterConfig{Lookback: time.Hour, Workers: 1}, now)

	outcomes := u.UpdateAll(context.Background(), []string{"EURUSD"}, UpdateOptions{})
	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.Equal(t, models.StateDone, o.State)
	assert.Equal(t, 1, o.GapsFound)
	assert.Equal(t, 1, o.GapsFilled)
	assert.Zero(t, o.GapsSkipped)

	// the whole lookback window is now contiguous
	gaps, err := gapscan.New(store).FindGaps(context.Background(), "EURUSD",
		models.NewTimeRange(now.Add(-time.Hour), now), calendar.AlwaysOpen())
	require.NoError(t, err)
	assert.Empty(t, gaps)

	require.Len(t, pub.outcomes, 1)
	assert.Equal(t, "EURUSD", pub.outcomes[0].Symbol)
}

func seedStore(t *testing.T, store *repository.MemoryStore, symbol string, from time.Time, minutes int) {
	t.Helper()
	bars := make([]models.Bar, 0, minutes)
	for i := 0; i < minutes; i++ {
		bars = append(bars, models.Bar{
			Symbol: symbol, Timestamp: from.Add(time.Duration(i) * time.Minute),
			Open: 1, High: 1.5, Low: 0.5, Close: 1.2, Volume: 10,
		})
	}
	_, err := store.WriteBars(context.Background(), symbol, bars)
	require.NoError(t, err)
}

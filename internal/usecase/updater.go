package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	domrepo "github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/calendar"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/gapscan"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/logger"
)

// UpdaterConfig holds the knobs of the update cycle. RetryAttempts is
// the total number of fetch calls per request, not the retry count.
type UpdaterConfig struct {
	Lookback         time.Duration
	MaxGapAge        time.Duration
	MaxBarsPerFetch  int
	Workers          int
	RetryAttempts    int
	RetryDelay       time.Duration
	RetryExponential bool
	FailureThreshold int
}

// UpdateOptions overrides per-run settings of UpdateAll. Zero values fall
// back to the updater's configuration.
type UpdateOptions struct {
	Lookback         time.Duration
	MaxGapAge        time.Duration
	Workers          int
	FailureThreshold int
}

// Updater runs the per-symbol update cycle: fetch the latest bars from
// the market source, store them, scan the lookback window for gaps and
// fill the ones still worth fetching. One cycle produces exactly one
// UpdateOutcome.
type Updater struct {
	store     domrepo.BarStore
	source    domrepo.MarketSource
	analyzer  *gapscan.Analyzer
	calendars *calendar.Provider
	pub       domrepo.OutcomePublisher
	metrics   domrepo.Metrics
	l         *logger.Logger
	cfg       UpdaterConfig
	now       func() time.Time
}

func NewUpdater(
	store domrepo.BarStore,
	source domrepo.MarketSource,
	analyzer *gapscan.Analyzer,
	calendars *calendar.Provider,
	pub domrepo.OutcomePublisher,
	metrics domrepo.Metrics,
	l *logger.Logger,
	cfg UpdaterConfig,
) *Updater {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxBarsPerFetch <= 0 {
		cfg.MaxBarsPerFetch = 5000
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Updater{
		store:     store,
		source:    source,
		analyzer:  analyzer,
		calendars: calendars,
		pub:       pub,
		metrics:   metrics,
		l:         l,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock replaces the wall clock. Tests only.
func (u *Updater) SetClock(now func() time.Time) {
	u.now = now
}

// EnsureSymbols registers every configured symbol, creating missing
// partitions and refreshing registry metadata.
func (u *Updater) EnsureSymbols(ctx context.Context, syms []models.Symbol) error {
	for _, s := range syms {
		if err := u.store.EnsureSymbol(ctx, s); err != nil {
			return fmt.Errorf("ensure symbol %s: %w", s.Name, err)
		}
	}
	return nil
}

// UpdateLatest fetches recent one-minute bars for one symbol and upserts
// them. The fetch window starts at the stored maximum plus one minute
// when that is newer than now minus lookback, and always ends before the
// still-forming current minute. Returns bars fetched and bars stored.
func (u *Updater) UpdateLatest(ctx context.Context, symbol string, lookback time.Duration) (int, int, error) {
	if lookback <= 0 {
		lookback = u.cfg.Lookback
	}
	scratch := &models.UpdateOutcome{Symbol: symbol}
	return u.updateLatestCounted(ctx, symbol, lookback, scratch)
}

// FillGaps scans r for missing market-hours minutes and backfills them.
// Gaps whose newest minute is older than maxGapAge are counted as
// skipped and never fetched; a zero maxGapAge disables the cutoff.
// Returns gaps found, filled, skipped and bars stored while filling.
func (u *Updater) FillGaps(ctx context.Context, symbol string, r models.TimeRange, maxGapAge time.Duration) (found, filled, skipped, stored int, err error) {
	scratch := &models.UpdateOutcome{Symbol: symbol}
	return u.fillGapsCounted(ctx, symbol, r, maxGapAge, scratch)
}

// UpdateAll runs one full cycle per symbol on a fixed worker pool. Each
// worker owns one symbol end-to-end; the slice always contains one
// outcome per requested symbol, in request order. The run aborts when
// consecutive full-cycle failures reach the threshold or when any cycle
// hits a schema mismatch.
func (u *Updater) UpdateAll(ctx context.Context, symbols []string, opts UpdateOptions) []models.UpdateOutcome {
	opts = u.applyDefaults(opts)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]models.UpdateOutcome, len(symbols))
	jobs := make(chan int)

	var mu sync.Mutex
	consecutive := 0

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				o := u.runCycle(runCtx, symbols[i], opts)
				outcomes[i] = *o

				mu.Lock()
				if o.State == models.StateFailed {
					consecutive++
					abort := opts.FailureThreshold > 0 && consecutive >= opts.FailureThreshold
					if abort || models.IsFatalForRun(o.Err) {
						cancel()
					}
				} else if o.State == models.StateDone {
					consecutive = 0
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i := range symbols {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Symbols that never reached a worker still get an outcome.
	for i := range outcomes {
		if outcomes[i].Symbol == "" {
			outcomes[i] = models.UpdateOutcome{
				Symbol:     symbols[i],
				State:      models.StateCancelled,
				StartedAt:  u.now().UTC(),
				Err:        runCtx.Err(),
				ErrMessage: "run aborted before cycle started",
			}
		}
	}
	return outcomes
}

// runCycle executes the state machine for one symbol. Outcome states
// walk idle, fetching, storing, gap_scanning, gap_filling, done;
// transient errors pass through retrying, cancellation and failures
// land on their terminal states.
func (u *Updater) runCycle(ctx context.Context, symbol string, opts UpdateOptions) *models.UpdateOutcome {
	o := &models.UpdateOutcome{
		Symbol:    symbol,
		State:     models.StateIdle,
		StartedAt: u.now().UTC(),
	}
	defer func() {
		u.metrics.RecordCycle(symbol, o.State, o.Duration.Seconds())
		if u.pub != nil {
			if err := u.pub.PublishOutcome(context.WithoutCancel(ctx), o); err != nil {
				u.l.Warn("publish outcome", logger.String("symbol", symbol), logger.Error(err))
			}
		}
	}()

	finish := func(state models.CycleState, err error) *models.UpdateOutcome {
		o.Finish(state, err, u.now().UTC())
		if state == models.StateFailed {
			u.metrics.RecordError(errorKind(err))
			u.l.Error("update cycle failed",
				logger.String("symbol", symbol),
				logger.Int("attempts", o.Attempts),
				logger.Error(err))
		}
		return o
	}

	if err := ctx.Err(); err != nil {
		return finish(models.StateCancelled, err)
	}

	o.State = models.StateFetching
	fetched, stored, err := u.updateLatestCounted(ctx, symbol, opts.Lookback, o)
	o.BarsFetched += fetched
	o.BarsStored += stored
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			// Remainder committed; the cycle goes on.
			u.l.Warn("rejected bars during update",
				logger.String("symbol", symbol),
				logger.Int("rejected", len(verr.Rejected)))
		} else if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return finish(models.StateCancelled, err)
		} else {
			return finish(models.StateFailed, err)
		}
	}

	o.State = models.StateGapScanning
	end := u.currentMinute()
	window := models.NewTimeRange(end.Add(-opts.Lookback), end)
	found, filled, skipped, gapStored, err := u.fillGapsCounted(ctx, symbol, window, opts.MaxGapAge, o)
	o.GapsFound = found
	o.GapsFilled = filled
	o.GapsSkipped = skipped
	o.BarsStored += gapStored
	u.metrics.RecordGaps(symbol, found, filled, skipped)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return finish(models.StateCancelled, err)
		}
		return finish(models.StateFailed, err)
	}

	if cov, cerr := u.analyzer.Coverage(ctx, symbol, window, u.calendars.ForSymbol(symbol)); cerr == nil {
		u.metrics.RecordCoverage(symbol, cov)
	}

	u.l.Info("update cycle done",
		logger.String("symbol", symbol),
		logger.Int("fetched", o.BarsFetched),
		logger.Int("stored", o.BarsStored),
		logger.Int("gaps_found", found),
		logger.Int("gaps_filled", filled),
		logger.Int("gaps_skipped", skipped))
	return finish(models.StateDone, nil)
}

// updateLatestCounted mirrors UpdateLatest but accumulates retry
// attempts and state transitions on the outcome.
func (u *Updater) updateLatestCounted(ctx context.Context, symbol string, lookback time.Duration, o *models.UpdateOutcome) (int, int, error) {
	end := u.currentMinute()
	start := end.Add(-lookback)
	maxTS, ok, err := u.store.MaxTimestamp(ctx, symbol)
	if err != nil {
		return 0, 0, fmt.Errorf("max timestamp %s: %w", symbol, err)
	}
	if ok {
		if next := maxTS.Add(time.Minute); next.After(start) {
			start = next
		}
	}
	window := models.NewTimeRange(start, end)
	if window.IsEmpty() {
		return 0, 0, nil
	}

	bars, attempts, err := u.fetchRangeTracked(ctx, symbol, window, o)
	o.Attempts += attempts
	if err != nil {
		return 0, 0, err
	}
	bars = dropFrom(bars, end)
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	o.State = models.StateStoring
	stored, err := u.store.WriteBars(ctx, symbol, bars)
	if stored > 0 {
		u.metrics.RecordBarsStored(symbol, stored)
	}
	return len(bars), stored, err
}

func (u *Updater) fillGapsCounted(ctx context.Context, symbol string, r models.TimeRange, maxGapAge time.Duration, o *models.UpdateOutcome) (found, filled, skipped, stored int, err error) {
	cal := u.calendars.ForSymbol(symbol)
	gaps, err := u.analyzer.FindGaps(ctx, symbol, r, cal)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	found = len(gaps)
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Range.Start.Before(gaps[j].Range.Start) })

	now := u.now().UTC()
	for _, g := range gaps {
		if maxGapAge > 0 && now.Sub(g.Range.End) > maxGapAge {
			skipped++
			continue
		}
		if err = ctx.Err(); err != nil {
			return found, filled, skipped, stored, err
		}
		o.State = models.StateGapFilling
		bars, attempts, ferr := u.fetchRangeTracked(ctx, symbol, g.Range, o)
		o.Attempts += attempts
		if ferr != nil {
			return found, filled, skipped, stored, ferr
		}
		n, werr := u.store.WriteBars(ctx, symbol, bars)
		stored += n
		if n > 0 {
			u.metrics.RecordBarsStored(symbol, n)
		}
		if werr != nil {
			var verr *models.ValidationError
			if !errors.As(werr, &verr) {
				return found, filled, skipped, stored, werr
			}
		}
		filled++
	}
	return found, filled, skipped, stored, nil
}

// fetchRangeTracked pulls one window from the source, chunked so no single
// request asks for more than MaxBarsPerFetch minutes. Transient source
// failures are retried with the configured backoff; UnknownSymbol and
// validation failures are returned as-is.
func (u *Updater) fetchRangeTracked(ctx context.Context, symbol string, r models.TimeRange, o *models.UpdateOutcome) ([]models.Bar, int, error) {
	var out []models.Bar
	attempts := 0
	chunk := time.Duration(u.cfg.MaxBarsPerFetch) * time.Minute

	for start := r.Start; start.Before(r.End); start = start.Add(chunk) {
		end := start.Add(chunk)
		if end.After(r.End) {
			end = r.End
		}
		sub := models.NewTimeRange(start, end)

		var bars []models.Bar
		err := retry.Do(ctx, u.backoff(), func(ctx context.Context) error {
			attempts++
			var ferr error
			bars, ferr = u.source.FetchRange(ctx, symbol, sub)
			if ferr == nil {
				return nil
			}
			if models.IsTransient(ferr) {
				if o != nil {
					o.State = models.StateRetrying
				}
				return retry.RetryableError(ferr)
			}
			return ferr
		})
		if err != nil {
			return out, attempts, fmt.Errorf("fetch %s %s: %w", symbol, sub, err)
		}
		if o != nil {
			o.State = models.StateFetching
		}
		out = append(out, bars...)
	}
	return out, attempts, nil
}

func (u *Updater) backoff() retry.Backoff {
	var b retry.Backoff
	if u.cfg.RetryExponential {
		b = retry.NewExponential(u.cfg.RetryDelay)
	} else {
		b = retry.NewConstant(u.cfg.RetryDelay)
	}
	// RetryAttempts counts total calls, so one attempt means no retries.
	attempts := u.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

func (u *Updater) applyDefaults(opts UpdateOptions) UpdateOptions {
	if opts.Lookback <= 0 {
		opts.Lookback = u.cfg.Lookback
	}
	if opts.MaxGapAge <= 0 {
		opts.MaxGapAge = u.cfg.MaxGapAge
	}
	if opts.Workers <= 0 {
		opts.Workers = u.cfg.Workers
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = u.cfg.FailureThreshold
	}
	return opts
}

// currentMinute is the start of the still-forming minute; bars at or
// after it are never stored.
func (u *Updater) currentMinute() time.Time {
	return u.now().UTC().Truncate(time.Minute)
}

func dropFrom(bars []models.Bar, cutoff time.Time) []models.Bar {
	out := bars[:0]
	for _, b := range bars {
		if b.Timestamp.Before(cutoff) {
			out = append(out, b)
		}
	}
	return out
}

func errorKind(err error) string {
	var (
		verr *models.ValidationError
		serr *models.SchemaError
		ierr *models.StoreIOError
	)
	switch {
	case errors.Is(err, models.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, models.ErrUnknownSymbol):
		return "unknown_symbol"
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &serr):
		return "schema"
	case errors.As(err, &ierr):
		return "store_io"
	default:
		return "cycle"
	}
}

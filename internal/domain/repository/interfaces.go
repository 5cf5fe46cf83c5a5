package repository

import (
	"context"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

// BarStore is the durable per-symbol table of one-minute bars. Writes
// are idempotent upserts keyed by (symbol, timestamp); re-writing a bar
// with different OHLCV values is last-writer-wins by policy, so vendor
// revisions can be applied.
type BarStore interface {
	// EnsureSymbol creates the per-symbol partition and registry row if
	// absent. Idempotent; a name collision with an incompatible table
	// yields *models.SchemaError.
	EnsureSymbol(ctx context.Context, sym models.Symbol) error

	// WriteBars upserts bars and returns how many committed. Bars
	// violating the OHLC invariant are rejected individually via a
	// *models.ValidationError while the valid remainder still commits.
	WriteBars(ctx context.Context, symbol string, bars []models.Bar) (int, error)

	// ReadBars returns bars inside [r.Start, r.End), ascending, unique
	// per timestamp.
	ReadBars(ctx context.Context, symbol string, r models.TimeRange) ([]models.Bar, error)

	// Timestamps returns only the stored timestamps inside r, ascending.
	Timestamps(ctx context.Context, symbol string, r models.TimeRange) ([]time.Time, error)

	// MaxTimestamp reports the latest stored bar time; ok is false for
	// an empty partition.
	MaxTimestamp(ctx context.Context, symbol string) (t time.Time, ok bool, err error)

	// Symbols lists registered symbols.
	Symbols(ctx context.Context) ([]models.Symbol, error)

	Health(ctx context.Context) error
	Close() error
}

// MarketSource is the external market-data connection (the platform
// bridge). Only the contract lives in this repo. Trading hours are not
// part of it; the calendar Provider (internal/service/calendar) is the
// authority for session and holiday schedules, fed from configuration.
type MarketSource interface {
	// FetchRange returns one-minute bars inside [r.Start, r.End),
	// ascending. Fails with models.ErrSourceUnavailable (transient) or
	// models.ErrUnknownSymbol.
	FetchRange(ctx context.Context, symbol string, r models.TimeRange) ([]models.Bar, error)

	// FetchLatest returns up to count most recent one-minute bars,
	// ascending.
	FetchLatest(ctx context.Context, symbol string, count int) ([]models.Bar, error)

	IsSymbolAvailable(ctx context.Context, symbol string) (bool, error)
}

// OutcomePublisher emits one event per finished symbol cycle.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, o *models.UpdateOutcome) error
	Close() error
}

// Metrics records operational measurements for update cycles and reads.
type Metrics interface {
	RecordBarsStored(symbol string, n int)
	RecordGaps(symbol string, found, filled, skipped int)
	RecordCycle(symbol string, state models.CycleState, seconds float64)
	RecordCoverage(symbol string, fraction float64)
	RecordError(kind string)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	pkgch "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/clickhouse"
	applogger "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/logger"
)

// ClickHouseStore keeps one bars_<symbol>_1m table per symbol inside a
// dedicated database. Tables use ReplacingMergeTree keyed by ts with an
// insert-time revision column, so re-writing a timestamp is an upsert
// with last-writer-wins semantics; reads use FINAL to observe exactly
// one row per timestamp regardless of merge progress.
type ClickHouseStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger

	mu      sync.Mutex
	ensured map[string]struct{}
}

// barColumns is the expected partition layout, in order. EnsureSymbol
// compares it against pre-existing tables to detect naming collisions.
var barColumns = []string{"ts", "open", "high", "low", "close", "volume", "revision"}

func NewClickHouseStore(ch *pkgch.Client, database string) *ClickHouseStore {
	return &ClickHouseStore{
		db:       ch.DB(),
		database: database,
		ensured:  make(map[string]struct{}),
	}
}

// SetLogger injects a structured logger.
func (s *ClickHouseStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the database and the symbol registry table (idempotent).
func (s *ClickHouseStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.symbols (
            name String,
            pip_size Float64,
            spread_avg Float64,
            updated_at DateTime('UTC')
        ) ENGINE = ReplacingMergeTree(updated_at) ORDER BY name`, s.database),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &models.StoreIOError{Op: "init", Err: err}
		}
	}
	return nil
}

func (s *ClickHouseStore) table(symbol string) string {
	return fmt.Sprintf("%s.bars_%s_1m", s.database, strings.ToLower(symbol))
}

func (s *ClickHouseStore) EnsureSymbol(ctx context.Context, sym models.Symbol) error {
	if err := checkSymbolName(sym.Name); err != nil {
		return err
	}

	s.mu.Lock()
	_, done := s.ensured[sym.Name]
	s.mu.Unlock()
	if done {
		return nil
	}

	tbl := s.table(sym.Name)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        ts DateTime('UTC'),
        open Float64,
        high Float64,
        low Float64,
        close Float64,
        volume Float64,
        revision UInt64
    ) ENGINE = ReplacingMergeTree(revision) ORDER BY ts`, tbl)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return &models.StoreIOError{Op: "ensure symbol", Err: err}
	}

	// The table may have predated this run with a different layout.
	if err := s.verifyPartition(ctx, sym.Name, tbl); err != nil {
		return err
	}

	// Registry row; ReplacingMergeTree on name makes this an upsert so
	// metadata changes from config take effect.
	q := fmt.Sprintf("INSERT INTO %s.symbols (name, pip_size, spread_avg, updated_at) VALUES (?, ?, ?, ?)", s.database)
	if _, err := s.db.ExecContext(ctx, q, sym.Name, sym.PipSize, sym.SpreadAvg, time.Now().UTC()); err != nil {
		return &models.StoreIOError{Op: "register symbol", Err: err}
	}

	s.mu.Lock()
	s.ensured[sym.Name] = struct{}{}
	s.mu.Unlock()

	if s.l != nil {
		s.l.Info("symbol partition ready",
			applogger.String("symbol", sym.Name),
			applogger.String("table", tbl),
		)
	}
	return nil
}

func (s *ClickHouseStore) verifyPartition(ctx context.Context, symbol, tbl string) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("DESCRIBE TABLE %s", tbl))
	if err != nil {
		return &models.StoreIOError{Op: "describe partition", Err: err}
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		// DESCRIBE returns more columns than we care about; scan the
		// name and discard the rest via a wide select list.
		var name, typ, defKind, defExpr, comment, codec, ttl string
		if err := rows.Scan(&name, &typ, &defKind, &defExpr, &comment, &codec, &ttl); err != nil {
			return &models.StoreIOError{Op: "describe partition", Err: err}
		}
		got = append(got, name)
	}
	if err := rows.Err(); err != nil {
		return &models.StoreIOError{Op: "describe partition", Err: err}
	}

	if len(got) != len(barColumns) {
		return &models.SchemaError{Partition: symbol, Reason: fmt.Sprintf("existing table %s has %d columns, want %d", tbl, len(got), len(barColumns))}
	}
	for i, want := range barColumns {
		if got[i] != want {
			return &models.SchemaError{Partition: symbol, Reason: fmt.Sprintf("existing table %s column %d is %q, want %q", tbl, i, got[i], want)}
		}
	}
	return nil
}

func (s *ClickHouseStore) WriteBars(ctx context.Context, symbol string, bars []models.Bar) (int, error) {
	if err := checkSymbolName(symbol); err != nil {
		return 0, err
	}
	valid, rejected := prepareBatch(bars)
	if len(valid) == 0 {
		return 0, batchError(rejected)
	}

	tbl := s.table(symbol)
	revision := uint64(time.Now().UnixNano())

	// Chunked multi-row VALUES insert to bound statement size.
	const chunkSize = 2000
	stored := 0
	for start := 0; start < len(valid); start += chunkSize {
		end := start + chunkSize
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[start:end]

		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*7)
		for _, b := range chunk {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume, revision)
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, open, high, low, close, volume, revision) VALUES %s", tbl, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse write_bars error",
					applogger.String("symbol", symbol),
					applogger.Int("batch", len(chunk)),
					applogger.Error(err),
				)
			}
			return stored, &models.StoreIOError{Op: "write bars", Err: err}
		}
		stored += len(chunk)
	}
	return stored, batchError(rejected)
}

func (s *ClickHouseStore) ReadBars(ctx context.Context, symbol string, r models.TimeRange) ([]models.Bar, error) {
	if err := checkSymbolName(symbol); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE ts >= ? AND ts < ?
        ORDER BY ts ASC
    `, s.table(symbol))
	rows, err := s.db.QueryContext(ctx, q, r.Start.UTC(), r.End.UTC())
	if err != nil {
		return nil, &models.StoreIOError{Op: "read bars", Err: err}
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		b := models.Bar{Symbol: symbol}
		var ts time.Time
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, &models.StoreIOError{Op: "scan bar", Err: err}
		}
		b.Timestamp = ts.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreIOError{Op: "read bars", Err: err}
	}
	return out, nil
}

func (s *ClickHouseStore) Timestamps(ctx context.Context, symbol string, r models.TimeRange) ([]time.Time, error) {
	if err := checkSymbolName(symbol); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT DISTINCT ts
        FROM %s
        WHERE ts >= ? AND ts < ?
        ORDER BY ts ASC
    `, s.table(symbol))
	rows, err := s.db.QueryContext(ctx, q, r.Start.UTC(), r.End.UTC())
	if err != nil {
		return nil, &models.StoreIOError{Op: "scan timestamps", Err: err}
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, &models.StoreIOError{Op: "scan timestamps", Err: err}
		}
		out = append(out, ts.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreIOError{Op: "scan timestamps", Err: err}
	}
	return out, nil
}

func (s *ClickHouseStore) MaxTimestamp(ctx context.Context, symbol string) (time.Time, bool, error) {
	if err := checkSymbolName(symbol); err != nil {
		return time.Time{}, false, err
	}
	q := fmt.Sprintf("SELECT ts FROM %s ORDER BY ts DESC LIMIT 1", s.table(symbol))
	var ts time.Time
	err := s.db.QueryRowContext(ctx, q).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &models.StoreIOError{Op: "max timestamp", Err: err}
	}
	return ts.UTC(), true, nil
}

func (s *ClickHouseStore) Symbols(ctx context.Context) ([]models.Symbol, error) {
	q := fmt.Sprintf("SELECT name, pip_size, spread_avg FROM %s.symbols FINAL ORDER BY name", s.database)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, &models.StoreIOError{Op: "list symbols", Err: err}
	}
	defer rows.Close()

	var out []models.Symbol
	for rows.Next() {
		var sym models.Symbol
		if err := rows.Scan(&sym.Name, &sym.PipSize, &sym.SpreadAvg); err != nil {
			return nil, &models.StoreIOError{Op: "scan symbol", Err: err}
		}
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreIOError{Op: "list symbols", Err: err}
	}
	return out, nil
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStore) Close() error {
	return nil // pool owned by pkg/clickhouse client
}

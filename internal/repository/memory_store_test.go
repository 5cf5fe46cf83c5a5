package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

func validBar(ts time.Time, close float64) models.Bar {
	return models.Bar{
		Symbol:    "EURUSD",
		Timestamp: ts,
		Open:      close - 0.001,
		High:      close + 0.002,
		Low:       close - 0.002,
		Close:     close,
		Volume:    10,
	}
}

func TestMemoryStoreWriteRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)

	bars := []models.Bar{
		validBar(base, 1.10),
		validBar(base.Add(time.Minute), 1.11),
		validBar(base.Add(2*time.Minute), 1.12),
	}
	n, err := s.WriteBars(ctx, "EURUSD", bars)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// half-open range excludes the end minute
	got, err := s.ReadBars(ctx, "EURUSD", models.NewTimeRange(base, base.Add(2*time.Minute)))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, bars[0], got[0])
	assert.Equal(t, bars[1], got[1])
}

func TestMemoryStoreWriteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	bars := []models.Bar{validBar(base, 1.10), validBar(base.Add(time.Minute), 1.11)}

	for i := 0; i < 3; i++ {
		_, err := s.WriteBars(ctx, "EURUSD", bars)
		require.NoError(t, err)
	}
	got, err := s.ReadBars(ctx, "EURUSD", models.NewTimeRange(base, base.Add(time.Hour)))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryStoreLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)

	_, err := s.WriteBars(ctx, "EURUSD", []models.Bar{validBar(ts, 1.10)})
	require.NoError(t, err)
	revised := validBar(ts, 1.20)
	_, err = s.WriteBars(ctx, "EURUSD", []models.Bar{revised})
	require.NoError(t, err)

	got, err := s.ReadBars(ctx, "EURUSD", models.NewTimeRange(ts, ts.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.20, got[0].Close)
}

func TestMemoryStoreRejectsInvalidIndividually(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)

	bad := validBar(base.Add(time.Minute), 1.11)
	bad.High = bad.Low - 1 // broken OHLC invariant

	n, err := s.WriteBars(ctx, "EURUSD", []models.Bar{validBar(base, 1.10), bad})
	assert.Equal(t, 1, n)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Rejected, 1)

	// the valid remainder still committed
	got, err := s.ReadBars(ctx, "EURUSD", models.NewTimeRange(base, base.Add(time.Hour)))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStoreRejectsUnalignedTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	b := validBar(time.Date(2024, 10, 7, 10, 0, 30, 0, time.UTC), 1.10)

	n, err := s.WriteBars(ctx, "EURUSD", []models.Bar{b})
	assert.Zero(t, n)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestMemoryStoreDuplicateInBatchLastWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)

	n, err := s.WriteBars(ctx, "EURUSD", []models.Bar{validBar(ts, 1.10), validBar(ts, 1.30)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.ReadBars(ctx, "EURUSD", models.NewTimeRange(ts, ts.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.30, got[0].Close)
}

func TestMemoryStoreMaxTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.MaxTimestamp(ctx, "EURUSD")
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	_, err = s.WriteBars(ctx, "EURUSD", []models.Bar{
		validBar(base.Add(5*time.Minute), 1.11),
		validBar(base, 1.10),
	})
	require.NoError(t, err)

	max, ok, err := s.MaxTimestamp(ctx, "EURUSD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base.Add(5*time.Minute), max)
}

func TestMemoryStoreTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)

	_, err := s.WriteBars(ctx, "EURUSD", []models.Bar{
		validBar(base.Add(2*time.Minute), 1.12),
		validBar(base, 1.10),
	})
	require.NoError(t, err)

	ts, err := s.Timestamps(ctx, "EURUSD", models.NewTimeRange(base, base.Add(time.Hour)))
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.True(t, ts[0].Before(ts[1]))
}

func TestMemoryStoreSymbols(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.EnsureSymbol(ctx, models.Symbol{Name: "GBPUSD", PipSize: 0.0001}))
	require.NoError(t, s.EnsureSymbol(ctx, models.Symbol{Name: "EURUSD", PipSize: 0.0001}))
	// re-registering updates metadata in place
	require.NoError(t, s.EnsureSymbol(ctx, models.Symbol{Name: "EURUSD", PipSize: 0.0001, SpreadAvg: 1.2}))

	syms, err := s.Symbols(ctx)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "EURUSD", syms[0].Name)
	assert.Equal(t, 1.2, syms[0].SpreadAvg)
	assert.Equal(t, "GBPUSD", syms[1].Name)
}

func TestEnsureSymbolRejectsBadName(t *testing.T) {
	s := NewMemoryStore()
	var serr *models.SchemaError
	err := s.EnsureSymbol(context.Background(), models.Symbol{Name: "eur/usd; drop", PipSize: 0.0001})
	assert.ErrorAs(t, err, &serr)
}

func TestValidSymbolName(t *testing.T) {
	cases := map[string]bool{
		"EURUSD":            true,
		"XAUUSD":            true,
		"BTCUSD1":           true,
		"E":                 false,
		"1EURUSD":           false,
		"EUR_USD":           false,
		"eur/usd":           false,
		"AVERYLONGSYMBOLXX": false,
	}
	for name, want := range cases {
		assert.Equal(t, want, ValidSymbolName(name), "symbol %q", name)
	}
}

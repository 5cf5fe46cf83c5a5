package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/cache"
)

func TestGetResampledAggregates(t *testing.T) {
	store := repository.NewMemoryStore()
	from := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	seedStore(t, store, "EURUSD", from, 10)

	uc := NewResampledUseCase(store, nil, 0)
	res, err := uc.GetResampled(context.Background(), GetResampledParams{
		Symbol:    "EURUSD",
		From:      from,
		To:        from.Add(10 * time.Minute),
		Timeframe: "5m",
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "EURUSD", res.Symbol)
	assert.Equal(t, "5m", res.Timeframe)
	assert.Equal(t, from, res.Candles[0].Timestamp)
	assert.Equal(t, from.Add(5*time.Minute), res.Candles[1].Timestamp)
	// five minutes of volume 10 each
	assert.InDelta(t, 50, res.Candles[0].Volume, 1e-9)
}

func TestGetResampledValidation(t *testing.T) {
	store := repository.NewMemoryStore()
	uc := NewResampledUseCase(store, nil, 0)
	from := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)

	_, err := uc.GetResampled(context.Background(), GetResampledParams{
		From: from, To: from.Add(time.Hour), Timeframe: "5m",
	})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = uc.GetResampled(context.Background(), GetResampledParams{
		Symbol: "EURUSD", From: from, To: from, Timeframe: "5m",
	})
	assert.ErrorAs(t, err, &verr)

	_, err = uc.GetResampled(context.Background(), GetResampledParams{
		Symbol: "EURUSD", From: from, To: from.Add(time.Hour), Timeframe: "banana",
	})
	assert.Error(t, err)
}

func TestGetResampledLimit(t *testing.T) {
	store := repository.NewMemoryStore()
	from := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	seedStore(t, store, "EURUSD", from, 30)

	uc := NewResampledUseCase(store, nil, 0)
	res, err := uc.GetResampled(context.Background(), GetResampledParams{
		Symbol:    "EURUSD",
		From:      from,
		To:        from.Add(30 * time.Minute),
		Timeframe: "5m",
		Limit:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Len(t, res.Candles, 3)
}

func TestGetResampledServesFromCache(t *testing.T) {
	store := repository.NewMemoryStore()
	from := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	seedStore(t, store, "EURUSD", from, 10)

	uc := NewResampledUseCase(store, cache.NewMemoryCache(), time.Minute)
	params := GetResampledParams{
		Symbol:    "EURUSD",
		From:      from,
		To:        from.Add(10 * time.Minute),
		Timeframe: "5m",
	}
	first, err := uc.GetResampled(context.Background(), params)
	require.NoError(t, err)

	// revised bars landing after the first read are invisible until the
	// cached entry expires
	_, err = store.WriteBars(context.Background(), "EURUSD", []models.Bar{{
		Symbol: "EURUSD", Timestamp: from,
		Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 999,
	}})
	require.NoError(t, err)

	second, err := uc.GetResampled(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, first.Candles, second.Candles)
	assert.InDelta(t, 50, second.Candles[0].Volume, 1e-9)
}

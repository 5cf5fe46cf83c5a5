package resample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

func minuteBar(t time.Time, o, h, l, c, v float64) models.Bar {
	return models.Bar{Symbol: "EURUSD", Timestamp: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestResampleAggregates(t *testing.T) {
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		minuteBar(base, 1.10, 1.12, 1.09, 1.11, 100),
		minuteBar(base.Add(1*time.Minute), 1.11, 1.15, 1.10, 1.14, 50),
		minuteBar(base.Add(2*time.Minute), 1.14, 1.14, 1.05, 1.06, 25),
	}

	buckets, err := Resample(bars, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	got := buckets[0].Bar
	assert.Equal(t, 1.10, got.Open)
	assert.Equal(t, 1.15, got.High)
	assert.Equal(t, 1.05, got.Low)
	assert.Equal(t, 1.06, got.Close)
	assert.Equal(t, 175.0, got.Volume)
	assert.Equal(t, base, got.Timestamp)
	assert.Equal(t, base.Add(5*time.Minute), buckets[0].Range.End)
}

func TestResampleBucketAlignment(t *testing.T) {
	// 10:03 belongs to the 10:00 bucket even when the input starts mid-bucket.
	ts := time.Date(2024, 10, 7, 10, 3, 0, 0, time.UTC)
	buckets, err := Resample([]models.Bar{minuteBar(ts, 1, 1, 1, 1, 1)}, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC), buckets[0].Range.Start)
}

func TestResampleOmitsEmptyBuckets(t *testing.T) {
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		minuteBar(base, 1, 1, 1, 1, 1),
		minuteBar(base.Add(30*time.Minute), 2, 2, 2, 2, 2),
	}

	buckets, err := Resample(bars, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, base, buckets[0].Range.Start)
	assert.Equal(t, base.Add(30*time.Minute), buckets[1].Range.Start)
}

func TestResampleUnsortedInput(t *testing.T) {
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		minuteBar(base.Add(2*time.Minute), 1.14, 1.14, 1.05, 1.06, 25),
		minuteBar(base, 1.10, 1.12, 1.09, 1.11, 100),
	}

	buckets, err := Resample(bars, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 1.10, buckets[0].Bar.Open)
	assert.Equal(t, 1.06, buckets[0].Bar.Close)
	// input slice is left untouched
	assert.Equal(t, base.Add(2*time.Minute), bars[0].Timestamp)
}

func TestResampleWidthOneMinuteIsIdentity(t *testing.T) {
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		minuteBar(base, 1.10, 1.12, 1.09, 1.11, 100),
		minuteBar(base.Add(time.Minute), 1.11, 1.15, 1.10, 1.14, 50),
	}

	buckets, err := Resample(bars, time.Minute)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	for i := range bars {
		assert.Equal(t, bars[i], buckets[i].Bar)
	}
}

func TestResampleRejectsBadWidth(t *testing.T) {
	bars := []models.Bar{minuteBar(time.Now().UTC().Truncate(time.Minute), 1, 1, 1, 1, 1)}

	for _, width := range []time.Duration{0, -time.Minute, 90 * time.Second} {
		_, err := Resample(bars, width)
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr, "width %s", width)
	}
}

func TestResampleEmptyInput(t *testing.T) {
	buckets, err := Resample(nil, 5*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestBarsFlatten(t *testing.T) {
	base := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	buckets, err := Resample([]models.Bar{minuteBar(base, 1, 2, 0.5, 1.5, 10)}, 15*time.Minute)
	require.NoError(t, err)

	flat := Bars(buckets)
	require.Len(t, flat, 1)
	assert.Equal(t, buckets[0].Bar, flat[0])
}

package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidthNamed(t *testing.T) {
	cases := map[Timeframe]time.Duration{
		TF1m:  time.Minute,
		TF5m:  5 * time.Minute,
		TF15m: 15 * time.Minute,
		TF30m: 30 * time.Minute,
		TF1h:  time.Hour,
		TF4h:  4 * time.Hour,
		TF1d:  24 * time.Hour,
	}
	for tf, want := range cases {
		got, err := Width(tf)
		require.NoError(t, err, "timeframe %s", tf)
		assert.Equal(t, want, got, "timeframe %s", tf)
	}
}

func TestWidthRawDurations(t *testing.T) {
	got, err := Width("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, got)

	got, err = Width("2h")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, got)
}

func TestWidthRejectsBadInput(t *testing.T) {
	for _, tf := range []Timeframe{"", "banana", "90s", "-5m", "0m"} {
		_, err := Width(tf)
		assert.Error(t, err, "timeframe %q", tf)
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	assert.Equal(t, TF1m, NormalizeTimeframe(""))
	assert.Equal(t, TF5m, NormalizeTimeframe("5m"))
	assert.Equal(t, Timeframe("90m"), NormalizeTimeframe("90m"))
	assert.Equal(t, TF1m, NormalizeTimeframe("garbage"))
}

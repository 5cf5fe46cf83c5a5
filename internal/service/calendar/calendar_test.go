package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

func weekdayOnly(t *testing.T) *Calendar {
	t.Helper()
	cal, err := New([]SessionSpec{
		{Day: "monday", Open: "00:00", Close: "24:00"},
		{Day: "tuesday", Open: "00:00", Close: "24:00"},
		{Day: "wednesday", Open: "00:00", Close: "24:00"},
		{Day: "thursday", Open: "00:00", Close: "24:00"},
		{Day: "friday", Open: "00:00", Close: "22:00"},
	}, nil)
	require.NoError(t, err)
	return cal
}

func TestIsOpen(t *testing.T) {
	cal := weekdayOnly(t)

	// 2024-10-07 is a Monday
	assert.True(t, cal.IsOpen(time.Date(2024, 10, 7, 12, 0, 0, 0, time.UTC)))
	// Friday after close
	assert.False(t, cal.IsOpen(time.Date(2024, 10, 11, 22, 30, 0, 0, time.UTC)))
	// Saturday
	assert.False(t, cal.IsOpen(time.Date(2024, 10, 12, 12, 0, 0, 0, time.UTC)))
}

func TestIsOpenHoliday(t *testing.T) {
	cal, err := New([]SessionSpec{
		{Day: "wednesday", Open: "00:00", Close: "24:00"},
	}, []string{"2024-12-25"})
	require.NoError(t, err)

	assert.False(t, cal.IsOpen(time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsOpen(time.Date(2024, 12, 18, 10, 0, 0, 0, time.UTC)))
}

func TestOpenWindowsMergesAcrossMidnight(t *testing.T) {
	cal := weekdayOnly(t)

	// Monday noon to Wednesday noon is one contiguous open stretch.
	r := models.NewTimeRange(
		time.Date(2024, 10, 7, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 9, 12, 0, 0, 0, time.UTC),
	)
	windows := cal.OpenWindows(r)
	require.Len(t, windows, 1)
	assert.Equal(t, r.Start, windows[0].Start)
	assert.Equal(t, r.End, windows[0].End)
}

func TestOpenWindowsSplitsAroundWeekend(t *testing.T) {
	cal := weekdayOnly(t)

	// Friday noon through Monday noon: open Friday until 22:00, closed
	// over the weekend, open again Monday from midnight.
	r := models.NewTimeRange(
		time.Date(2024, 10, 11, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC),
	)
	windows := cal.OpenWindows(r)
	require.Len(t, windows, 2)
	assert.Equal(t, time.Date(2024, 10, 11, 22, 0, 0, 0, time.UTC), windows[0].End)
	assert.Equal(t, time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC), windows[1].Start)
}

func TestOpenMinutes(t *testing.T) {
	cal := weekdayOnly(t)

	r := models.NewTimeRange(
		time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 7, 11, 0, 0, 0, time.UTC),
	)
	assert.Equal(t, 60, cal.OpenMinutes(r))

	closed := models.NewTimeRange(
		time.Date(2024, 10, 12, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 12, 11, 0, 0, 0, time.UTC),
	)
	assert.Equal(t, 0, cal.OpenMinutes(closed))
}

func TestAlwaysOpen(t *testing.T) {
	cal := AlwaysOpen()
	assert.True(t, cal.IsOpen(time.Date(2024, 10, 12, 3, 0, 0, 0, time.UTC)))

	r := models.NewTimeRange(
		time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC),
	)
	windows := cal.OpenWindows(r)
	require.Len(t, windows, 1)
	assert.Equal(t, r, windows[0])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New([]SessionSpec{{Day: "someday", Open: "00:00", Close: "24:00"}}, nil)
	assert.Error(t, err)

	_, err = New([]SessionSpec{{Day: "monday", Open: "10:00", Close: "09:00"}}, nil)
	assert.Error(t, err)

	_, err = New([]SessionSpec{{Day: "monday", Open: "25:00", Close: "26:00"}}, nil)
	assert.Error(t, err)

	_, err = New(nil, []string{"25-12-2024"})
	assert.Error(t, err)
}

func TestProviderFallback(t *testing.T) {
	weekday := weekdayOnly(t)
	p := NewProvider(weekday, map[string]*Calendar{"BTCUSD": AlwaysOpen()})

	saturday := time.Date(2024, 10, 12, 12, 0, 0, 0, time.UTC)
	assert.True(t, p.ForSymbol("BTCUSD").IsOpen(saturday))
	assert.False(t, p.ForSymbol("EURUSD").IsOpen(saturday))
}

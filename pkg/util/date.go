package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, YYYY-MM-DD, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t.UTC(), true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t.UTC(), true
    }
    if t, err := time.Parse("2006-01-02", s); err == nil {
        return t.UTC(), true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0).UTC(), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// AlignFromTo widens the range to bucket boundaries for the width: from
// rounds down, to rounds up (exact boundaries stay put). Widths below a
// minute are clamped to one minute.
func AlignFromTo(from, to time.Time, width time.Duration) (time.Time, time.Time) {
    if width < time.Minute {
        width = time.Minute
    }
    f := from.UTC().Truncate(width)
    t := to.UTC().Truncate(width)
    if !t.Equal(to.UTC()) {
        t = t.Add(width)
    }
    return f, t
}

// MinuteFloor rounds down to the start of the minute.
func MinuteFloor(t time.Time) time.Time {
    return t.UTC().Truncate(time.Minute)
}

// MinuteCeil rounds up to the next minute boundary; exact boundaries stay put.
func MinuteCeil(t time.Time) time.Time {
    f := MinuteFloor(t)
    if f.Equal(t.UTC()) {
        return f
    }
    return f.Add(time.Minute)
}

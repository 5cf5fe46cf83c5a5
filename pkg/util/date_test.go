package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestParseTimeDate(t *testing.T) {
    got, ok := ParseTime("2024-10-10")
    if !ok {
        t.Fatalf("expected ok")
    }
    want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
    if !got.Equal(want) {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestAlignFromTo(t *testing.T) {
    from := time.Date(2024, 10, 10, 10, 7, 30, 0, time.UTC)
    to := time.Date(2024, 10, 10, 11, 3, 0, 0, time.UTC)
    af, at := AlignFromTo(from, to, 15*time.Minute)
    if !af.Equal(time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)) {
        t.Fatalf("unexpected from alignment %v", af)
    }
    if !at.Equal(time.Date(2024, 10, 10, 11, 15, 0, 0, time.UTC)) {
        t.Fatalf("unexpected to alignment %v", at)
    }

    // exact boundaries stay put
    _, at = AlignFromTo(from, time.Date(2024, 10, 10, 11, 15, 0, 0, time.UTC), 15*time.Minute)
    if !at.Equal(time.Date(2024, 10, 10, 11, 15, 0, 0, time.UTC)) {
        t.Fatalf("boundary must stay put, got %v", at)
    }

    // sub-minute widths clamp to a minute
    af, _ = AlignFromTo(from, to, time.Second)
    if af.Second() != 0 {
        t.Fatalf("expected minute floor, got %v", af)
    }
}

func TestMinuteCeil(t *testing.T) {
    exact := time.Date(2024, 10, 10, 10, 7, 0, 0, time.UTC)
    if !MinuteCeil(exact).Equal(exact) {
        t.Fatalf("boundary must stay put")
    }
    mid := exact.Add(30 * time.Second)
    if !MinuteCeil(mid).Equal(exact.Add(time.Minute)) {
        t.Fatalf("unexpected ceil %v", MinuteCeil(mid))
    }
}
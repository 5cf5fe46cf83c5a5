package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
)

// span is a half-open [open, close) window in minutes of day; close may
// be 1440 for end-of-day.
type span struct {
	open  int
	close int
}

// SessionSpec is one weekly open window, as configured.
type SessionSpec struct {
	Day   string `yaml:"day" validate:"required"`
	Open  string `yaml:"open" default:"00:00"`
	Close string `yaml:"close" default:"24:00"`
}

// Calendar decides whether a given UTC minute is inside market hours.
// Holiday dates override the weekly schedule and are fully closed.
type Calendar struct {
	sessions [7][]span
	holidays map[string]struct{}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// New builds a calendar from weekly sessions and holiday dates
// (YYYY-MM-DD, interpreted as UTC dates).
func New(sessions []SessionSpec, holidays []string) (*Calendar, error) {
	c := &Calendar{holidays: make(map[string]struct{}, len(holidays))}
	for _, s := range sessions {
		day, ok := weekdays[strings.ToLower(s.Day)]
		if !ok {
			return nil, fmt.Errorf("calendar: unknown weekday %q", s.Day)
		}
		open, err := parseClock(s.Open)
		if err != nil {
			return nil, fmt.Errorf("calendar: session open: %w", err)
		}
		cl, err := parseClock(s.Close)
		if err != nil {
			return nil, fmt.Errorf("calendar: session close: %w", err)
		}
		if cl <= open {
			return nil, fmt.Errorf("calendar: session %s close %s not after open %s", s.Day, s.Close, s.Open)
		}
		c.sessions[day] = append(c.sessions[day], span{open: open, close: cl})
	}
	for _, h := range holidays {
		d, err := time.Parse("2006-01-02", h)
		if err != nil {
			return nil, fmt.Errorf("calendar: holiday %q: %w", h, err)
		}
		c.holidays[d.Format("2006-01-02")] = struct{}{}
	}
	for day := range c.sessions {
		c.sessions[day] = mergeSpans(c.sessions[day])
	}
	return c, nil
}

// AlwaysOpen returns a calendar with no closed time at all.
func AlwaysOpen() *Calendar {
	c := &Calendar{holidays: map[string]struct{}{}}
	for day := range c.sessions {
		c.sessions[day] = []span{{open: 0, close: 24 * 60}}
	}
	return c
}

// parseClock parses "HH:MM" into minutes of day; "24:00" is allowed.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad clock value %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}

func mergeSpans(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].open < spans[j-1].open; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.open <= last.close {
			if s.close > last.close {
				last.close = s.close
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// IsOpen reports whether the market is open at t (UTC).
func (c *Calendar) IsOpen(t time.Time) bool {
	t = t.UTC()
	if _, holiday := c.holidays[t.Format("2006-01-02")]; holiday {
		return false
	}
	mod := t.Hour()*60 + t.Minute()
	for _, s := range c.sessions[t.Weekday()] {
		if mod >= s.open && mod < s.close {
			return true
		}
	}
	return false
}

// OpenWindows intersects r with the calendar's open time and returns
// the maximal contiguous open sub-ranges, ascending. Windows that touch
// across midnight (or across days in a 24h schedule) are merged.
func (c *Calendar) OpenWindows(r models.TimeRange) []models.TimeRange {
	if r.IsEmpty() {
		return nil
	}
	start := r.Start.UTC().Truncate(time.Minute)
	end := r.End.UTC()

	var out []models.TimeRange
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for day.Before(end) {
		if _, holiday := c.holidays[day.Format("2006-01-02")]; !holiday {
			for _, s := range c.sessions[day.Weekday()] {
				w := models.TimeRange{
					Start: day.Add(time.Duration(s.open) * time.Minute),
					End:   day.Add(time.Duration(s.close) * time.Minute),
				}
				w = w.Intersect(models.TimeRange{Start: start, End: end})
				if w.IsEmpty() {
					continue
				}
				if n := len(out); n > 0 && out[n-1].End.Equal(w.Start) {
					out[n-1].End = w.End
					continue
				}
				out = append(out, w)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// OpenMinutes counts the whole open-market minutes inside r.
func (c *Calendar) OpenMinutes(r models.TimeRange) int {
	total := 0
	for _, w := range c.OpenWindows(r) {
		total += w.Minutes()
	}
	return total
}

// Provider resolves a calendar per symbol, falling back to a default.
type Provider struct {
	def       *Calendar
	perSymbol map[string]*Calendar
}

func NewProvider(def *Calendar, perSymbol map[string]*Calendar) *Provider {
	if def == nil {
		def = AlwaysOpen()
	}
	return &Provider{def: def, perSymbol: perSymbol}
}

// ForSymbol returns the calendar governing symbol.
func (p *Provider) ForSymbol(symbol string) *Calendar {
	if c, ok := p.perSymbol[symbol]; ok {
		return c
	}
	return p.def
}

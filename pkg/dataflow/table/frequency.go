package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFrequency indicates a frequency string could not be parsed.
var ErrInvalidFrequency = errors.New("invalid frequency")

// Frequency is a fixed sampling step. Business frequencies skip weekends.
type Frequency struct {
	Step     time.Duration
	Business bool
}

// Minute is a one-minute frequency.
var Minute = Frequency{Step: time.Minute}

// BusinessDay is a one-business-day frequency.
var BusinessDay = Frequency{Step: 24 * time.Hour, Business: true}

var aliases = map[string]Frequency{
	"S":   {Step: time.Second},
	"T":   {Step: time.Minute},
	"MIN": {Step: time.Minute},
	"H":   {Step: time.Hour},
	"D":   {Step: 24 * time.Hour},
	"B":   {Step: 24 * time.Hour, Business: true},
}

// ParseFrequency parses pandas-style aliases ("T", "5min", "H", "D", "B")
// or Go duration strings ("5m", "1h30m").
func ParseFrequency(s string) (Frequency, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Frequency{}, fmt.Errorf("%w: empty", ErrInvalidFrequency)
	}

	digits := 0
	for digits < len(raw) && raw[digits] >= '0' && raw[digits] <= '9' {
		digits++
	}
	mult := 1
	if digits > 0 {
		n, err := strconv.Atoi(raw[:digits])
		if err != nil || n <= 0 {
			return Frequency{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
		}
		mult = n
	}
	if base, ok := aliases[strings.ToUpper(raw[digits:])]; ok {
		if base.Business && mult != 1 {
			return Frequency{}, fmt.Errorf("%w: multiplied business frequency %q", ErrInvalidFrequency, s)
		}
		base.Step *= time.Duration(mult)
		return base, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return Frequency{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return Frequency{Step: d}, nil
}

// MustParseFrequency is like ParseFrequency but panics on error.
func MustParseFrequency(s string) Frequency {
	f, err := ParseFrequency(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Next returns the timestamp following t.
func (f Frequency) Next(t time.Time) time.Time {
	n := t.Add(f.Step)
	if f.Business {
		for isWeekend(n) {
			n = n.Add(f.Step)
		}
	}
	return n
}

// Align returns the first valid timestamp at or after t.
func (f Frequency) Align(t time.Time) time.Time {
	if f.Business {
		for isWeekend(t) {
			t = t.Add(24 * time.Hour)
		}
	}
	return t
}

// Range returns every timestamp from start to end inclusive.
func (f Frequency) Range(start, end time.Time) []time.Time {
	if f.Step <= 0 || end.Before(start) {
		return nil
	}
	var out []time.Time
	for t := f.Align(start); !t.After(end); t = f.Next(t) {
		out = append(out, t)
	}
	return out
}

// Periods returns n timestamps starting at the first valid one at or after start.
func (f Frequency) Periods(start time.Time, n int) []time.Time {
	if f.Step <= 0 || n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	t := f.Align(start)
	for range n {
		out = append(out, t)
		t = f.Next(t)
	}
	return out
}

// String implements fmt.Stringer.
func (f Frequency) String() string {
	if f.Business {
		return "B"
	}
	return f.Step.String()
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

package table

import (
	"fmt"
	"time"
)

// Window is an inclusive [Start, End] time range. A zero bound is
// unbounded on that side.
type Window struct {
	Start time.Time
	End   time.Time
}

// Unbounded returns a window that contains every timestamp.
func Unbounded() Window {
	return Window{}
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// IsEmpty reports whether the window is inverted and can hold no rows.
func (w Window) IsEmpty() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start)
}

// Overlaps reports whether the window intersects [first, last].
func (w Window) Overlaps(first, last time.Time) bool {
	if w.IsEmpty() || last.Before(first) {
		return false
	}
	if !w.Start.IsZero() && last.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && first.After(w.End) {
		return false
	}
	return true
}

// Clamp returns the window with its end bounded by end. A zero end leaves
// the window unchanged.
func (w Window) Clamp(end time.Time) Window {
	if end.IsZero() {
		return w
	}
	if w.End.IsZero() || end.Before(w.End) {
		w.End = end
	}
	return w
}

// Equal reports whether two windows have identical bounds.
func (w Window) Equal(other Window) bool {
	return w.Start.Equal(other.Start) && w.End.Equal(other.End)
}

// String implements fmt.Stringer.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", formatBound(w.Start), formatBound(w.End))
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.Format(time.RFC3339)
}

// Package source provides DataSource nodes: graph roots that lazily load a
// time-windowed table from an injected Origin and cache it.
//
// A DataSource has two cache states. It starts empty; the first Fit or
// Predict loads the effective window from the origin and moves to cached.
// Predict always reuses the cache. Fit reloads only when the effective
// window differs from the one the cache was built for. ResetCurrentTime
// and SetWindow empty the cache.
//
// The effective window is the configured window with its end clamped to
// the current time, when one is set. An empty effective window yields a
// zero-row table that keeps the source's columns.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
)

// Origin produces the data behind a DataSource. Load may return rows
// outside w; the DataSource slices the result. A nil frame or
// ErrNoDataAvailable means there is no data for w. A zero-row frame means
// w is covered but holds no rows, as when it falls in a gap of the series.
type Origin interface {
	Load(ctx context.Context, w table.Window) (*table.Frame, error)
}

// OriginFunc adapts a function to Origin.
type OriginFunc func(ctx context.Context, w table.Window) (*table.Frame, error)

// Load implements Origin.
func (f OriginFunc) Load(ctx context.Context, w table.Window) (*table.Frame, error) {
	return f(ctx, w)
}

// FrameOrigin serves a fixed frame.
func FrameOrigin(df *table.Frame) Origin {
	return OriginFunc(func(context.Context, table.Window) (*table.Frame, error) {
		return df, nil
	})
}

type cacheState int

const (
	cacheEmpty cacheState = iota
	cacheLoaded
)

// DataSource is a node with no inputs that emits a windowed, cached table
// on the canonical output port.
type DataSource struct {
	dataflow.Lifecycle
	origin Origin

	mu        sync.Mutex
	window    table.Window
	now       time.Time
	state     cacheState
	cached    *table.Frame
	cachedFor table.Window
	loads     int
	// columns is the schema of the last non-empty load. It survives
	// invalidation so zero-row windows keep their columns.
	columns []string
}

// New returns a DataSource over origin restricted to window. It performs
// no I/O.
func New(id string, origin Origin, window table.Window) *DataSource {
	return &DataSource{
		Lifecycle: dataflow.NewLifecycle(id),
		origin:    origin,
		window:    window,
	}
}

// Fit loads the effective window unless the cache already holds it.
func (s *DataSource) Fit(ctx dataflow.Context, _ dataflow.Inputs) (dataflow.Outputs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.effectiveWindow()
	if s.state == cacheEmpty || !s.cachedFor.Equal(w) {
		if err := s.load(ctx, w); err != nil {
			return nil, err
		}
	}
	s.MarkFit()
	return dataflow.Single(s.cached), nil
}

// Predict returns the cached table, loading it first if the cache was
// emptied since the last call.
func (s *DataSource) Predict(ctx dataflow.Context, _ dataflow.Inputs) (dataflow.Outputs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.RequireFit(); err != nil {
		return nil, err
	}
	if s.state == cacheEmpty {
		if err := s.load(ctx, s.effectiveWindow()); err != nil {
			return nil, err
		}
	}
	return dataflow.Single(s.cached), nil
}

// load replaces the cache with the origin's data for w. A failed load
// leaves the previous cache untouched.
func (s *DataSource) load(ctx dataflow.Context, w table.Window) error {
	df, err := s.fetch(ctx, w)
	rows := df.Len()
	ctx.Metrics().RecordSourceLoad(ctx, s.ID(), rows, err)
	if err != nil {
		return err
	}
	observability.LogSourceLoad(ctx.Logger(), s.ID(), w.String(), rows)

	if len(df.Columns()) > 0 {
		s.columns = df.Columns()
	}
	s.cached = df
	s.cachedFor = w
	s.state = cacheLoaded
	s.loads++
	return nil
}

func (s *DataSource) fetch(ctx context.Context, w table.Window) (*table.Frame, error) {
	if w.IsEmpty() {
		return s.emptyFrame(ctx), nil
	}
	raw, err := s.origin.Load(ctx, w)
	if errors.Is(err, dataflow.ErrNoDataAvailable) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", w, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: origin returned nothing for %s", dataflow.ErrNoDataAvailable, w)
	}
	first, ok := raw.First()
	if !ok {
		return raw, nil
	}
	last, _ := raw.Last()
	if !w.Overlaps(first, last) {
		return nil, fmt.Errorf("%w: data covers %s, requested %s",
			dataflow.ErrNoDataAvailable, table.Window{Start: first, End: last}, w)
	}
	return raw.Slice(w), nil
}

// emptyFrame returns a zero-row table with the source's columns. The schema
// comes from the last load or, failing that, from one origin query over
// the configured window. A configured window that is itself empty is
// never queried.
func (s *DataSource) emptyFrame(ctx context.Context) *table.Frame {
	if s.columns == nil && !s.window.IsEmpty() {
		if raw, err := s.origin.Load(ctx, s.window); err == nil && raw != nil {
			s.columns = raw.Columns()
		}
	}
	return table.Empty(s.columns...)
}

func (s *DataSource) effectiveWindow() table.Window {
	return s.window.Clamp(s.now)
}

// Window returns the configured window.
func (s *DataSource) Window() table.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// SetWindow changes the configured window and empties the cache.
func (s *DataSource) SetWindow(w table.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = w
	s.invalidate()
}

// SetCurrentTime moves the time cursor. The cache is left as is; call
// ResetCurrentTime first to make the next load see data up to now.
func (s *DataSource) SetCurrentTime(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ResetCurrentTime clears the time cursor and empties the cache.
func (s *DataSource) ResetCurrentTime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = time.Time{}
	s.invalidate()
}

// CurrentTime returns the time cursor, or the zero time when unset.
func (s *DataSource) CurrentTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Loads returns how many times the origin has been queried successfully.
func (s *DataSource) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// Cached reports whether a table is cached.
func (s *DataSource) Cached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == cacheLoaded
}

func (s *DataSource) invalidate() {
	s.state = cacheEmpty
	s.cached = nil
	s.cachedFor = table.Window{}
}

package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2000, time.January, d, 0, 0, 0, 0, time.UTC)
}

// daily returns one row per calendar day from first to last, column "x"
// holding the day of month.
func daily(first, last int) *table.Frame {
	var index []time.Time
	var vals []float64
	for d := first; d <= last; d++ {
		index = append(index, day(d))
		vals = append(vals, float64(d))
	}
	return table.MustNew(index, []string{"x"}, [][]float64{vals})
}

// countingOrigin serves a fixed frame and records every request.
type countingOrigin struct {
	df       *table.Frame
	err      error
	calls    int
	requests []table.Window
}

func (o *countingOrigin) Load(_ context.Context, w table.Window) (*table.Frame, error) {
	o.calls++
	o.requests = append(o.requests, w)
	if o.err != nil {
		return nil, o.err
	}
	return o.df, nil
}

func ctx() dataflow.Context {
	return dataflow.NewContext(context.Background())
}

func TestDataSource_NoIOAtConstruction(t *testing.T) {
	o := &countingOrigin{df: daily(1, 10)}
	s := New("src", o, table.Window{Start: day(3), End: day(5)})

	assert.Equal(t, "src", s.ID())
	assert.Zero(t, o.calls)
	assert.False(t, s.Cached())
}

func TestDataSource_LazyLoadOncePerFit(t *testing.T) {
	o := &countingOrigin{df: daily(1, 10)}
	s := New("src", o, table.Window{Start: day(3), End: day(5)})

	fitOut, err := s.Fit(ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, o.calls)

	for range 3 {
		out, err := s.Predict(ctx(), nil)
		require.NoError(t, err)
		assert.True(t, fitOut.Out().Equal(out.Out()))
	}
	assert.Equal(t, 1, o.calls, "predict reuses the cache")

	_, err = s.Fit(ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, o.calls, "fit on the same window keeps the cache")
	assert.Equal(t, 1, s.Loads())
}

func TestDataSource_InclusiveWindow(t *testing.T) {
	s := New("src", &countingOrigin{df: daily(1, 10)}, table.Window{Start: day(3), End: day(5)})

	out, err := s.Fit(ctx(), nil)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{day(3), day(4), day(5)}, out.Out().Index())
}

func TestDataSource_PredictBeforeFit(t *testing.T) {
	o := &countingOrigin{df: daily(1, 10)}
	s := New("src", o, table.Unbounded())

	_, err := s.Predict(ctx(), nil)

	assert.ErrorIs(t, err, dataflow.ErrInvalidLifecycle)
	assert.Zero(t, o.calls)
}

func TestDataSource_NoDataAvailable(t *testing.T) {
	tests := []struct {
		name   string
		origin *countingOrigin
		window table.Window
	}{
		{"window after data", &countingOrigin{df: daily(1, 10)}, table.Window{Start: day(20), End: day(25)}},
		{"window before data", &countingOrigin{df: daily(10, 20)}, table.Window{Start: day(1), End: day(5)}},
		{"origin returns nil", &countingOrigin{}, table.Unbounded()},
		{"origin reports no data", &countingOrigin{err: dataflow.ErrNoDataAvailable}, table.Unbounded()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("src", tt.origin, tt.window)
			_, err := s.Fit(ctx(), nil)
			assert.ErrorIs(t, err, dataflow.ErrNoDataAvailable)
			assert.False(t, s.Cached())
			assert.False(t, s.IsFit())
		})
	}
}

func TestDataSource_OriginGapIsEmpty(t *testing.T) {
	s := New("src", &countingOrigin{df: table.Empty("x")}, table.Window{Start: day(2), End: day(3)})

	out, err := s.Fit(ctx(), nil)

	require.NoError(t, err)
	assert.Equal(t, 0, out.Out().Len())
	assert.Equal(t, []string{"x"}, out.Out().Columns())
	assert.True(t, s.Cached())
}

func TestDataSource_PartialOverlap(t *testing.T) {
	s := New("src", &countingOrigin{df: daily(10, 20)}, table.Window{Start: day(5), End: day(12)})

	out, err := s.Fit(ctx(), nil)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{day(10), day(11), day(12)}, out.Out().Index())
}

func TestDataSource_EmptyWindowIsNotAnError(t *testing.T) {
	o := &countingOrigin{df: daily(1, 10)}
	s := New("src", o, table.Window{Start: day(5), End: day(4)})

	out, err := s.Fit(ctx(), nil)

	require.NoError(t, err)
	assert.NotNil(t, out.Out())
	assert.True(t, out.Out().IsEmpty())
	assert.Zero(t, o.calls)
}

func TestDataSource_OriginErrorWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	s := New("src", &countingOrigin{err: boom}, table.Unbounded())

	_, err := s.Fit(ctx(), nil)

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, dataflow.ErrNoDataAvailable)
}

func TestDataSource_SetWindowInvalidates(t *testing.T) {
	o := &countingOrigin{df: daily(1, 10)}
	s := New("src", o, table.Window{Start: day(1), End: day(3)})
	_, err := s.Fit(ctx(), nil)
	require.NoError(t, err)

	s.SetWindow(table.Window{Start: day(4), End: day(6)})
	assert.False(t, s.Cached())

	out, err := s.Predict(ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, o.calls)
	assert.Equal(t, []time.Time{day(4), day(5), day(6)}, out.Out().Index())
	assert.Equal(t, table.Window{Start: day(4), End: day(6)}, s.Window())
}

func TestDataSource_TimeCursor(t *testing.T) {
	o := &countingOrigin{df: daily(1, 10)}
	s := New("src", o, table.Window{Start: day(1), End: day(10)})
	_, err := s.Fit(ctx(), nil)
	require.NoError(t, err)

	// Moving the cursor alone keeps the cached view.
	s.SetCurrentTime(day(4))
	assert.Equal(t, day(4), s.CurrentTime())
	out, err := s.Predict(ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Out().Len())
	assert.Equal(t, 1, o.calls)

	// Reset then set yields a fresh view bounded by the cursor.
	s.ResetCurrentTime()
	assert.True(t, s.CurrentTime().IsZero())
	s.SetCurrentTime(day(4))
	out, err = s.Predict(ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, o.calls)
	assert.Equal(t, table.Window{Start: day(1), End: day(4)}, o.requests[1])
	assert.Equal(t, 4, out.Out().Len())

	// A fit at a different cursor reloads; at the same cursor it does not.
	_, err = s.Fit(ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, o.calls)
	s.SetCurrentTime(day(6))
	out, err = s.Fit(ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, o.calls)
	assert.Equal(t, 6, out.Out().Len())
}

func TestDataSource_CursorBeforeStartIsEmpty(t *testing.T) {
	o := &countingOrigin{df: daily(5, 10)}
	s := New("src", o, table.Window{Start: day(5), End: day(10)})
	s.SetCurrentTime(day(2))

	out, err := s.Fit(ctx(), nil)

	require.NoError(t, err)
	assert.True(t, out.Out().IsEmpty())
	assert.Equal(t, []string{"x"}, out.Out().Columns(), "schema is kept")
	assert.Equal(t, 1, o.calls)
}

func TestDataSource_EmptyWindowReusesLoadedSchema(t *testing.T) {
	o := &countingOrigin{df: daily(5, 10)}
	s := New("src", o, table.Window{Start: day(5), End: day(10)})
	_, err := s.Fit(ctx(), nil)
	require.NoError(t, err)

	s.ResetCurrentTime()
	s.SetCurrentTime(day(2))
	out, err := s.Predict(ctx(), nil)

	require.NoError(t, err)
	assert.Equal(t, 0, out.Out().Len())
	assert.Equal(t, []string{"x"}, out.Out().Columns())
	assert.Equal(t, 1, o.calls, "schema comes from the earlier load")
}

func TestDataSource_FailedReloadKeepsCache(t *testing.T) {
	o := &countingOrigin{df: daily(1, 10)}
	s := New("src", o, table.Window{Start: day(1), End: day(10)})
	_, err := s.Fit(ctx(), nil)
	require.NoError(t, err)

	o.err = errors.New("down")
	s.SetCurrentTime(day(3))
	_, err = s.Fit(ctx(), nil)
	require.Error(t, err)

	assert.True(t, s.Cached())
	assert.Equal(t, 1, s.Loads())
	out, err := s.Predict(ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Out().Len())
}

type loadRecorder struct {
	observability.NoopMetrics
	rows []int
	errs []error
}

func (r *loadRecorder) RecordSourceLoad(_ context.Context, _ string, rows int, err error) {
	r.rows = append(r.rows, rows)
	r.errs = append(r.errs, err)
}

func TestDataSource_RecordsLoads(t *testing.T) {
	rec := &loadRecorder{}
	c := dataflow.NewContext(context.Background(), dataflow.WithContextMetrics(rec))

	ok := New("ok", &countingOrigin{df: daily(1, 10)}, table.Window{Start: day(2), End: day(4)})
	_, err := ok.Fit(c, nil)
	require.NoError(t, err)

	bad := New("bad", &countingOrigin{}, table.Unbounded())
	_, err = bad.Fit(c, nil)
	require.Error(t, err)

	assert.Equal(t, []int{3, 0}, rec.rows)
	assert.NoError(t, rec.errs[0])
	assert.ErrorIs(t, rec.errs[1], dataflow.ErrNoDataAvailable)
}

func TestFrameOrigin(t *testing.T) {
	df := daily(1, 3)
	s := New("src", FrameOrigin(df), table.Unbounded())

	out, err := s.Fit(ctx(), nil)
	require.NoError(t, err)
	assert.True(t, df.Equal(out.Out()))
}

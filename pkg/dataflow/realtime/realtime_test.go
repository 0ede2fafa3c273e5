package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/model"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
	"github.com/randalmurphal/dataflow/pkg/dataflow/source"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2010, time.January, 4, h, m, 0, 0, time.UTC)
}

func TestSequence_Immediate(t *testing.T) {
	seq, err := NewSequence(at(9, 30), at(9, 40), time.Minute, nil)
	require.NoError(t, err)

	var got []time.Time
	for ts := range seq.All(context.Background()) {
		got = append(got, ts)
	}
	require.Len(t, got, 10, "end is exclusive")
	assert.Equal(t, at(9, 30), got[0])
	assert.Equal(t, at(9, 39), got[9])
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].After(got[i-1]))
	}

	_, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "exhausted")

	seq.Reset()
	first, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, at(9, 30), first)
}

func TestSequence_EarlyBreakResumes(t *testing.T) {
	seq, err := NewSequence(at(9, 30), at(9, 33), time.Minute, Immediate{})
	require.NoError(t, err)

	for range seq.All(context.Background()) {
		break
	}
	next, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, at(9, 31), next)
}

func TestSequence_Invalid(t *testing.T) {
	_, err := NewSequence(at(9, 30), at(9, 40), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidSequence)
	_, err = NewSequence(at(9, 40), at(9, 30), time.Minute, nil)
	assert.ErrorIs(t, err, ErrInvalidSequence)
}

func TestSequence_CancelledContext(t *testing.T) {
	seq, err := NewSequence(at(9, 30), at(9, 40), time.Minute, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count := 0
	for range seq.All(ctx) {
		count++
	}
	assert.Zero(t, count)
	assert.ErrorIs(t, seq.Err(), context.Canceled)
}

func TestWallClock(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w := &WallClock{now: func() time.Time { return base }}

	assert.NoError(t, w.Wait(context.Background(), base.Add(-time.Second)), "past instants do not block")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Wait(ctx, base.Add(time.Hour)), context.Canceled)

	wall := NewWallClock(0)
	start := time.Now()
	require.NoError(t, wall.Wait(context.Background(), start.Add(20*time.Millisecond)))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestWallClock_PacesSequence(t *testing.T) {
	start := time.Now().Truncate(time.Millisecond)
	seq, err := NewSequence(start, start.Add(20*time.Millisecond), 10*time.Millisecond, NewWallClock(0))
	require.NoError(t, err)

	var got []time.Time
	for ts := range seq.All(context.Background()) {
		got = append(got, ts)
	}
	assert.Len(t, got, 2)
	assert.False(t, time.Now().Before(got[1]))
}

func TestEvery(t *testing.T) {
	every5 := Every(5 * time.Minute)
	assert.True(t, every5(at(9, 30)))
	assert.True(t, every5(at(9, 35)))
	assert.False(t, every5(at(9, 36)))
	assert.False(t, every5(at(9, 35).Add(time.Second)))
	assert.True(t, every5(at(0, 0)))

	assert.False(t, Every(0)(at(9, 30)))
	assert.True(t, Always()(at(9, 31)))
}

func TestBetween(t *testing.T) {
	open := Between(9*time.Hour+30*time.Minute, 16*time.Hour, Always())
	assert.True(t, open(at(9, 30)))
	assert.True(t, open(at(16, 0)))
	assert.False(t, open(at(9, 29)))
	assert.False(t, open(at(16, 1)))
}

// returnsDAG builds rtds -> ret where ret is the first difference of close.
func returnsDAG(t *testing.T) (*dataflow.DAG, *source.DataSource) {
	t.Helper()
	src, err := source.NewRealTimeSynthetic("rtds", source.RealTimeSyntheticConfig{
		Columns: []string{"close", "vol"},
		Start:   at(9, 30),
		End:     at(9, 40),
		Seed:    1,
	})
	require.NoError(t, err)
	ret, err := model.NewColumnTransformer("ret", model.ColumnConfig{Columns: []string{"close"}, Transform: model.ColumnDiff})
	require.NoError(t, err)

	d := dataflow.NewDAG("returns")
	require.NoError(t, d.AddNode(src))
	require.NoError(t, d.AddNode(ret))
	require.NoError(t, d.AddEdge("rtds", "ret"))
	return d, src
}

func fitDAG(t *testing.T, d *dataflow.DAG, src *source.DataSource, now time.Time) {
	t.Helper()
	src.SetCurrentTime(now)
	_, err := d.RunLeqNode(context.Background(), "ret", dataflow.ModeFit)
	require.NoError(t, err)
}

// triggerCounter counts trigger evaluations.
type triggerCounter struct {
	observability.NoopMetrics
	mu     sync.Mutex
	total  int
	firing int
}

func (c *triggerCounter) RecordTrigger(_ context.Context, fired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if fired {
		c.firing++
	}
}

func TestRunner_FiresOnCadence(t *testing.T) {
	d, src := returnsDAG(t)
	fitDAG(t, d, src, at(9, 35))

	metrics := &triggerCounter{}
	r, err := NewRunner(d, WithTrigger(Every(5*time.Minute)), WithMetrics(metrics))
	require.NoError(t, err)
	assert.Equal(t, "ret", r.Sink())

	seq, err := NewSequence(at(9, 30), at(9, 40), time.Minute, nil)
	require.NoError(t, err)
	execs, err := r.Run(context.Background(), seq)
	require.NoError(t, err)

	require.Len(t, execs, 2)
	assert.Equal(t, at(9, 30), execs[0].Now)
	assert.Equal(t, at(9, 35), execs[1].Now)
	assert.Equal(t, 0, execs[0].Outputs.Out().Len(), "one row of close yields no returns")
	assert.Equal(t, 5, execs[1].Outputs.Out().Len())
	last, ok := execs[1].Outputs.Out().Last()
	require.True(t, ok)
	assert.Equal(t, at(9, 35), last, "data visible up to the tick")

	assert.Equal(t, 10, metrics.total)
	assert.Equal(t, 2, metrics.firing)
	assert.Equal(t, at(9, 35), src.CurrentTime())
}

func TestRunner_WarmupIsEmpty(t *testing.T) {
	d, src := returnsDAG(t)
	fitDAG(t, d, src, at(9, 40))

	r, err := NewRunner(d)
	require.NoError(t, err)
	seq, err := NewSequence(at(9, 30), at(9, 31), time.Minute, nil)
	require.NoError(t, err)

	execs, err := r.Run(context.Background(), seq)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, 0, execs[0].Outputs.Out().Len())

	empty, err := NewSequence(at(9, 30), at(9, 30), time.Minute, nil)
	require.NoError(t, err)
	execs, err = r.Run(context.Background(), empty)
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestRunner_ModelBeforeSourceStart(t *testing.T) {
	src, err := source.NewRealTimeSynthetic("rtds", source.RealTimeSyntheticConfig{
		Columns: []string{"a", "b"},
		Start:   at(9, 35),
		End:     at(10, 30),
		Seed:    2,
	})
	require.NoError(t, err)
	tr, err := model.NewPCA(model.PCAConfig{NComponents: 1})
	require.NoError(t, err)
	pca, err := model.NewUnsupervisedModel("pca", []string{"a", "b"}, tr)
	require.NoError(t, err)

	d := dataflow.NewDAG("warmup")
	require.NoError(t, d.AddNode(src))
	require.NoError(t, d.AddNode(pca))
	require.NoError(t, d.AddEdge("rtds", "pca"))
	src.SetCurrentTime(at(9, 45))
	_, err = d.RunLeqNode(context.Background(), "pca", dataflow.ModeFit)
	require.NoError(t, err)

	r, err := NewRunner(d)
	require.NoError(t, err)
	seq, err := NewSequence(at(9, 30), at(9, 37), time.Minute, nil)
	require.NoError(t, err)

	execs, err := r.Run(context.Background(), seq)
	require.NoError(t, err)
	require.Len(t, execs, 7)
	for _, ex := range execs[:5] {
		out := ex.Outputs.Out()
		assert.Equal(t, 0, out.Len(), "no data before %s", at(9, 35))
		assert.Equal(t, []string{"0"}, out.Columns())
	}
	assert.Equal(t, 1, execs[5].Outputs.Out().Len())
	assert.Equal(t, 2, execs[6].Outputs.Out().Len())
}

func TestRunner_HandlerStop(t *testing.T) {
	d, src := returnsDAG(t)
	fitDAG(t, d, src, at(9, 40))

	var seen []time.Time
	r, err := NewRunner(d, WithHandler(func(ex Execution) error {
		seen = append(seen, ex.Now)
		if len(seen) == 2 {
			return ErrStop
		}
		return nil
	}))
	require.NoError(t, err)

	seq, err := NewSequence(at(9, 31), at(9, 40), time.Minute, nil)
	require.NoError(t, err)
	execs, err := r.Run(context.Background(), seq)
	require.NoError(t, err)
	assert.Len(t, execs, 2)
	assert.Equal(t, []time.Time{at(9, 31), at(9, 32)}, seen)
}

func TestRunner_HandlerError(t *testing.T) {
	d, src := returnsDAG(t)
	fitDAG(t, d, src, at(9, 40))

	boom := errors.New("boom")
	r, err := NewRunner(d, WithHandler(func(Execution) error { return boom }))
	require.NoError(t, err)
	seq, err := NewSequence(at(9, 31), at(9, 40), time.Minute, nil)
	require.NoError(t, err)

	execs, err := r.Run(context.Background(), seq)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, execs, 1)
}

func TestRunner_PredictBeforeFit(t *testing.T) {
	d, _ := returnsDAG(t)
	r, err := NewRunner(d)
	require.NoError(t, err)
	seq, err := NewSequence(at(9, 31), at(9, 40), time.Minute, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), seq)
	assert.ErrorIs(t, err, dataflow.ErrInvalidLifecycle)
}

func TestRunner_FitMode(t *testing.T) {
	d, _ := returnsDAG(t)
	r, err := NewRunner(d, WithMode(dataflow.ModeFit), WithSink("rtds"))
	require.NoError(t, err)
	seq, err := NewSequence(at(9, 30), at(9, 33), time.Minute, nil)
	require.NoError(t, err)

	execs, err := r.Run(context.Background(), seq)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	assert.Equal(t, 3, execs[2].Outputs.Out().Len())
}

func TestRunner_Cancelled(t *testing.T) {
	d, src := returnsDAG(t)
	fitDAG(t, d, src, at(9, 40))
	r, err := NewRunner(d)
	require.NoError(t, err)
	seq, err := NewSequence(at(9, 31), at(9, 40), time.Minute, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r.handler = func(Execution) error {
		cancel()
		return nil
	}
	execs, err := r.Run(ctx, seq)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, execs, 1)
}

// staticNode is a source without a time cursor.
type staticNode struct{ dataflow.Lifecycle }

func (n *staticNode) Fit(dataflow.Context, dataflow.Inputs) (dataflow.Outputs, error) {
	return dataflow.Single(table.Empty("x")), nil
}

func (n *staticNode) Predict(dataflow.Context, dataflow.Inputs) (dataflow.Outputs, error) {
	return dataflow.Single(table.Empty("x")), nil
}

func TestNewRunner_Errors(t *testing.T) {
	d, _ := returnsDAG(t)

	_, err := NewRunner(d, WithSink("nope"))
	assert.ErrorIs(t, err, dataflow.ErrUnknownNode)

	_, err = NewRunner(d, WithMode("train"))
	assert.ErrorIs(t, err, dataflow.ErrInvalidMode)

	static := dataflow.NewDAG("static")
	require.NoError(t, static.AddNode(&staticNode{Lifecycle: dataflow.NewLifecycle("s")}))
	_, err = NewRunner(static)
	assert.ErrorIs(t, err, ErrNoCursors)
}

// Package realtime drives repeated scheduler runs from a simulated or
// wall-clock time sequence.
//
// A Sequence yields timestamps at a fixed step. On each tick a Trigger
// decides whether the pipeline cadence is due; when it is, the Runner moves
// the time cursor of the source nodes and runs the DAG up to its sink.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"
)

// ErrInvalidSequence indicates a sequence with a non-positive step or an
// end before its start.
var ErrInvalidSequence = errors.New("invalid time sequence")

// Pacer decides when a tick may be yielded.
type Pacer interface {
	// Wait blocks until t may be yielded or ctx is done.
	Wait(ctx context.Context, t time.Time) error
}

// Immediate yields every tick without waiting. Use it for simulation.
type Immediate struct{}

// Wait returns at once unless ctx is already done.
func (Immediate) Wait(ctx context.Context, _ time.Time) error {
	return ctx.Err()
}

// WallClock yields a tick once the wall clock reaches it. Offset shifts the
// sequence onto the wall clock, which lets a historical sequence be
// replayed in real time.
type WallClock struct {
	Offset time.Duration
	now    func() time.Time
}

// NewWallClock returns a pacer that maps tick t to wall time t+offset.
func NewWallClock(offset time.Duration) *WallClock {
	return &WallClock{Offset: offset, now: time.Now}
}

// Wait blocks on a timer until t+Offset, or until ctx is done.
func (w *WallClock) Wait(ctx context.Context, t time.Time) error {
	now := time.Now
	if w.now != nil {
		now = w.now
	}
	d := t.Add(w.Offset).Sub(now())
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sequence is a lazily evaluated, finite run of timestamps from start up
// to but excluding end at a fixed step. It can be restarted with Reset.
type Sequence struct {
	start, end time.Time
	step       time.Duration
	pacer      Pacer

	mu   sync.Mutex
	next time.Time
	err  error
}

// NewSequence returns a sequence paced by pacer. A nil pacer means
// Immediate.
func NewSequence(start, end time.Time, step time.Duration, pacer Pacer) (*Sequence, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: step %s", ErrInvalidSequence, step)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidSequence, end, start)
	}
	if pacer == nil {
		pacer = Immediate{}
	}
	return &Sequence{start: start, end: end, step: step, pacer: pacer, next: start}, nil
}

// Next waits for and returns the next timestamp. ok is false once the
// sequence is exhausted. A pacer error is returned and the tick is not
// consumed.
func (s *Sequence) Next(ctx context.Context) (t time.Time, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.next.Before(s.end) {
		return time.Time{}, false, nil
	}
	if err := s.pacer.Wait(ctx, s.next); err != nil {
		s.err = err
		return time.Time{}, false, err
	}
	t = s.next
	s.next = s.next.Add(s.step)
	return t, true, nil
}

// Reset restarts the sequence at its start.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = s.start
	s.err = nil
}

// All returns an iterator over the remaining timestamps. Iteration stops
// early if ctx is done; Err reports why.
func (s *Sequence) All(ctx context.Context) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for {
			t, ok, err := s.Next(ctx)
			if err != nil || !ok {
				return
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Err returns the pacer error that stopped the last iteration, if any.
func (s *Sequence) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start returns the first timestamp.
func (s *Sequence) Start() time.Time { return s.start }

// End returns the exclusive upper bound.
func (s *Sequence) End() time.Time { return s.end }

// Step returns the spacing between timestamps.
func (s *Sequence) Step() time.Duration { return s.step }

package tasks

import (
	"context"
	"sync"
)

// Phase is the state of a single fetch unit.
type Phase int

const (
	Idle Phase = iota
	Loading
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "success"
	case Failed:
		return "error"
	default:
		return ""
	}
}

// Snapshot is the observable state of a [Loader].
//
// Data keeps the last successful value while a reload is loading or after it fails.
type Snapshot[T any] struct {
	Phase Phase
	Data  T
	Err   error
	Seq   uint64
}

// Loader tracks one logical fetch through idle → loading → success | error.
//
// Every [Loader.Begin] issues a sequence token and only the newest token may settle the
// loader, so a slow superseded request can never overwrite a newer one. After
// [Loader.Close] every completion is dropped.
type Loader[T any] struct {
	mu       sync.Mutex
	seq      uint64
	snap     Snapshot[T]
	closed   bool
	onChange func(Snapshot[T])
}

// NewLoader creates an idle Loader. onChange, when set, observes every applied transition
// and is called outside the loader's lock.
func NewLoader[T any](onChange func(Snapshot[T])) *Loader[T] {
	return &Loader[T]{onChange: onChange}
}

// Begin moves the loader to loading and returns the token for the new request.
// A closed loader returns 0 and does not change.
func (l *Loader[T]) Begin() uint64 {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0
	}
	l.seq++
	l.snap.Phase = Loading
	l.snap.Err = nil
	l.snap.Seq = l.seq
	snap := l.snap
	l.mu.Unlock()

	l.notify(snap)
	return snap.Seq
}

// Finish settles the request identified by seq. It reports false, leaving the loader
// untouched, when seq has been superseded or the loader is closed.
func (l *Loader[T]) Finish(seq uint64, data T, err error) bool {
	l.mu.Lock()
	if l.closed || seq == 0 || seq != l.seq || l.snap.Phase != Loading {
		l.mu.Unlock()
		return false
	}
	if err != nil {
		l.snap.Phase = Failed
		l.snap.Err = err
	} else {
		l.snap.Phase = Succeeded
		l.snap.Data = data
		l.snap.Err = nil
	}
	snap := l.snap
	l.mu.Unlock()

	l.notify(snap)
	return true
}

// Run begins a request, calls fn and settles with its result. The returned bool is false
// when the result was discarded.
func (l *Loader[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (Snapshot[T], bool) {
	seq := l.Begin()
	if seq == 0 {
		return l.Snapshot(), false
	}

	data, err := fn(ctx)
	applied := l.Finish(seq, data, err)
	return l.Snapshot(), applied
}

// Snapshot returns the current state.
func (l *Loader[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Current reports whether seq is still the newest request of an open loader.
func (l *Loader[T]) Current(seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && seq != 0 && seq == l.seq
}

// Reset returns the loader to idle and discards its data. Requests issued before the reset
// can no longer settle it.
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.seq++
	l.snap = Snapshot[T]{Phase: Idle}
	snap := l.snap
	l.mu.Unlock()

	l.notify(snap)
}

// Close marks the consumer as gone.
func (l *Loader[T]) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *Loader[T]) notify(snap Snapshot[T]) {
	if l.onChange != nil {
		l.onChange(snap)
	}
}

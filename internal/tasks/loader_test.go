package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestPhase(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{Idle, "idle"},
		{Loading, "loading"},
		{Succeeded, "success"},
		{Failed, "error"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestLoader(t *testing.T) {
	t.Run("Starts Idle", func(t *testing.T) {
		l := NewLoader[string](nil)
		if snap := l.Snapshot(); snap.Phase != Idle || snap.Seq != 0 {
			t.Errorf("expected idle snapshot, got %+v", snap)
		}
	})

	t.Run("Success Transition", func(t *testing.T) {
		var phases []Phase
		l := NewLoader(func(s Snapshot[string]) { phases = append(phases, s.Phase) })

		seq := l.Begin()
		if !l.Finish(seq, "matrix", nil) {
			t.Fatal("expected result to be applied")
		}

		snap := l.Snapshot()
		if snap.Phase != Succeeded || snap.Data != "matrix" || snap.Err != nil {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if len(phases) != 2 || phases[0] != Loading || phases[1] != Succeeded {
			t.Errorf("expected loading then success, got %v", phases)
		}
	})

	t.Run("Error Keeps Previous Data", func(t *testing.T) {
		l := NewLoader[string](nil)
		l.Finish(l.Begin(), "first", nil)

		boom := errors.New("catalog unavailable")
		l.Finish(l.Begin(), "", boom)

		snap := l.Snapshot()
		if snap.Phase != Failed || !errors.Is(snap.Err, boom) {
			t.Errorf("expected failed snapshot, got %+v", snap)
		}
		if snap.Data != "first" {
			t.Errorf("expected previous data to survive, got %q", snap.Data)
		}
	})

	t.Run("Reload Clears Error", func(t *testing.T) {
		l := NewLoader[int](nil)
		l.Finish(l.Begin(), 0, errors.New("boom"))
		l.Begin()
		if snap := l.Snapshot(); snap.Phase != Loading || snap.Err != nil {
			t.Errorf("expected clean loading snapshot, got %+v", snap)
		}
	})

	t.Run("Superseded Result Is Ignored", func(t *testing.T) {
		l := NewLoader[string](nil)
		first := l.Begin()
		second := l.Begin()

		if l.Finish(first, "stale", nil) {
			t.Error("stale result should not apply")
		}
		if snap := l.Snapshot(); snap.Phase != Loading {
			t.Errorf("expected loader to still be loading, got %v", snap.Phase)
		}

		if !l.Finish(second, "fresh", nil) {
			t.Error("newest result should apply")
		}
		if l.Finish(first, "stale", nil) {
			t.Error("stale result should not apply after newer completion")
		}
		if got := l.Snapshot().Data; got != "fresh" {
			t.Errorf("expected fresh data, got %q", got)
		}
	})

	t.Run("Finish Twice Is Ignored", func(t *testing.T) {
		l := NewLoader[string](nil)
		seq := l.Begin()
		l.Finish(seq, "once", nil)
		if l.Finish(seq, "twice", nil) {
			t.Error("second completion should not apply")
		}
	})

	t.Run("Closed Loader Drops Completions", func(t *testing.T) {
		calls := 0
		l := NewLoader(func(Snapshot[string]) { calls++ })
		seq := l.Begin()
		l.Close()

		if l.Finish(seq, "late", nil) {
			t.Error("completion after close should not apply")
		}
		if l.Begin() != 0 {
			t.Error("closed loader should not issue tokens")
		}
		if l.Current(seq) {
			t.Error("closed loader should not report current tokens")
		}
		if calls != 1 {
			t.Errorf("expected only the initial loading notification, got %d", calls)
		}
	})

	t.Run("Run", func(t *testing.T) {
		l := NewLoader[int](nil)
		snap, ok := l.Run(context.Background(), func(ctx context.Context) (int, error) {
			return 7, nil
		})
		if !ok || snap.Phase != Succeeded || snap.Data != 7 {
			t.Errorf("unexpected run result %+v applied=%v", snap, ok)
		}
	})

	t.Run("Run Superseded Mid Flight", func(t *testing.T) {
		l := NewLoader[string](nil)
		started := make(chan struct{})
		release := make(chan struct{})

		var wg sync.WaitGroup
		wg.Add(1)
		var applied bool
		go func() {
			defer wg.Done()
			_, applied = l.Run(context.Background(), func(ctx context.Context) (string, error) {
				close(started)
				<-release
				return "slow", nil
			})
		}()

		<-started
		l.Finish(l.Begin(), "fast", nil)
		close(release)
		wg.Wait()

		if applied {
			t.Error("superseded run should report discarded result")
		}
		if got := l.Snapshot().Data; got != "fast" {
			t.Errorf("expected fast data, got %q", got)
		}
	})
}

func TestLoaderReset(t *testing.T) {
	l := NewLoader[string](nil)
	stale := l.Begin()
	l.Reset()

	if snap := l.Snapshot(); snap.Phase != Idle || snap.Data != "" {
		t.Errorf("expected idle snapshot, got %+v", snap)
	}
	if l.Finish(stale, "stale", nil) {
		t.Error("request issued before reset should not apply")
	}

	next := l.Begin()
	if next <= stale {
		t.Errorf("expected token after reset to advance, got %d after %d", next, stale)
	}
	if !l.Finish(next, "fresh", nil) {
		t.Error("request issued after reset should apply")
	}
}

package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/course-platform/services/player/internal/domain"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestLoop_RunsInPostOrder(t *testing.T) {
	l, _ := startLoop(t)
	var got []int
	for i := 0; i < 10; i++ {
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", got)
		}
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 calls, got %d", len(got))
	}
}

func TestLoop_RecoversPanic(t *testing.T) {
	l, _ := startLoop(t)
	if err := l.Do(context.Background(), func() { panic("boom") }); err != nil {
		t.Fatalf("expected Do to return after a panic, got %v", err)
	}
	ran := false
	if err := l.Do(context.Background(), func() { ran = true }); err != nil || !ran {
		t.Fatalf("expected loop to keep running, err=%v", err)
	}
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()
	<-l.Done()
	if l.Post(func() {}) {
		t.Fatal("expected Post to fail on a stopped loop")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("expected ErrLoopStopped, got %v", err)
	}
}

func TestLoop_AfterFuncRunsOnLoop(t *testing.T) {
	l, _ := startLoop(t)
	fired := make(chan struct{})
	l.AfterFunc(5*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	stopped := l.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	if !stopped.Stop() {
		t.Fatal("expected Stop to report an active timer")
	}
}

func TestLoop_GoDeliversResultOnLoop(t *testing.T) {
	l, _ := startLoop(t)
	result := make(chan domain.ProgressResult, 1)
	l.Go(func(ctx context.Context) (domain.ProgressResult, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on store calls")
		}
		return domain.ProgressResult{Enrollment: domain.Enrollment{Progress: 42}}, nil
	}, func(res domain.ProgressResult, err error) {
		if err != nil {
			t.Error(err)
		}
		result <- res
	})
	select {
	case res := <-result:
		if res.Enrollment.Progress != 42 {
			t.Fatalf("unexpected result %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("result not delivered")
	}
}

func TestLoop_WaitCallsOutlivesLoop(t *testing.T) {
	l, cancel := startLoop(t)
	release := make(chan struct{})
	finished := false
	l.Go(func(context.Context) (domain.ProgressResult, error) {
		<-release
		finished = true
		return domain.ProgressResult{}, nil
	}, func(domain.ProgressResult, error) {})

	cancel()
	<-l.Done()

	ctx, stop := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer stop()
	if err := l.WaitCalls(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected WaitCalls to block on the open call, got %v", err)
	}

	close(release)
	if err := l.WaitCalls(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !finished {
		t.Fatal("expected the call to finish")
	}
}

func TestLoop_WaitCallsCoversCallsStartedFromResults(t *testing.T) {
	l, _ := startLoop(t)
	var chained bool
	l.Go(func(context.Context) (domain.ProgressResult, error) {
		return domain.ProgressResult{}, nil
	}, func(domain.ProgressResult, error) {
		l.Go(func(context.Context) (domain.ProgressResult, error) {
			time.Sleep(20 * time.Millisecond)
			return domain.ProgressResult{}, nil
		}, func(domain.ProgressResult, error) { chained = true })
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.WaitCalls(ctx); err != nil {
		t.Fatal(err)
	}
	done := make(chan bool, 1)
	if err := l.Do(ctx, func() { done <- chained }); err != nil {
		t.Fatal(err)
	}
	if !<-done {
		t.Fatal("expected WaitCalls to wait for the chained call")
	}
}

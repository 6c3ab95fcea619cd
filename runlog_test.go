package filetransfer

import (
	"sync"
	"testing"
	"time"
)

func TestRunLogLifecycle(t *testing.T) {
	runLog := NewRunLog()
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	runLog.Begin("a", started)
	runLog.Append("Request 1: DONE.")
	if got := runLog.Last(); got.RunID != "" || len(got.Lines) != 0 {
		t.Fatalf("expected nothing published yet, got %+v", got)
	}
	runLog.Publish(started.Add(time.Second))

	runLog.Begin("b", started.Add(time.Minute))
	runLog.Appendf("Request %d: FAILED -> %s", 2, "denied")
	if current := runLog.Current(); len(current) != 1 {
		t.Fatalf("expected working buffer to be reset, got %q", current)
	}
	if got := runLog.Last(); got.RunID != "a" || got.Text() != "Request 1: DONE.\n" {
		t.Fatalf("expected previous run to stay visible, got %+v", got)
	}

	published := runLog.Publish(started.Add(2 * time.Minute))
	if published.RunID != "b" || published.Text() != "Request 2: FAILED -> denied\n" {
		t.Fatalf("unexpected published run %+v", published)
	}
	if !published.FinishedAt.After(published.StartedAt) {
		t.Fatalf("expected finish after start")
	}
}

func TestRunLogLastIsCopy(t *testing.T) {
	runLog := NewRunLog()
	runLog.Begin("a", time.Now())
	runLog.Append("x")
	runLog.Publish(time.Now())

	last := runLog.Last()
	last.Lines[0] = "mutated"
	if runLog.Last().Lines[0] != "x" {
		t.Fatalf("expected Last to return a copy")
	}
}

func TestRunLogConcurrentReaders(t *testing.T) {
	runLog := NewRunLog()
	runLog.Begin("a", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = runLog.Last().Text()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		runLog.Append("line")
	}
	runLog.Publish(time.Now())
	wg.Wait()

	if len(runLog.Last().Lines) != 100 {
		t.Fatalf("expected 100 lines")
	}
}

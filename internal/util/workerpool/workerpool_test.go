package workerpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExecutesAllTasks(t *testing.T) {
	p := New(4)
	var done atomic.Int32

	for i := 0; i < 20; i++ {
		p.Run(func() {
			done.Add(1)
		})
	}
	p.Join()

	if done.Load() != 20 {
		t.Fatalf("expected 20 tasks run, got %d", done.Load())
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	p := New(2)
	var current, maxSeen atomic.Int32

	for i := 0; i < 10; i++ {
		p.Run(func() {
			n := current.Add(1)
			for {
				old := maxSeen.Load()
				if n <= old || maxSeen.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		})
	}
	p.Join()

	if maxSeen.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", maxSeen.Load())
	}
}

func TestJoinReturnsWhenEmpty(t *testing.T) {
	p := New(1)
	p.Join() // must not block on an empty pool
}

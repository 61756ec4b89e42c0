package export

import (
	"sync/atomic"
	"testing"
)

func TestPoolRunsAllWork(t *testing.T) {
	p := newWorkerPool(4)
	defer p.close()

	var n atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { n.Add(1) }
	}
	p.executeAll(work)
	if got := n.Load(); got != 100 {
		t.Errorf("ran %d jobs, want 100", got)
	}
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	p := newWorkerPool(2)
	p.close()
	p.close()

	// A closed pool ignores new work instead of hanging.
	p.executeAll([]func(){func() { t.Error("work ran on closed pool") }})
}

func TestPoolSingleWorkerOrdering(t *testing.T) {
	p := newWorkerPool(1)
	defer p.close()

	var got []int
	work := make([]func(), 10)
	for i := range work {
		i := i
		work[i] = func() { got = append(got, i) }
	}
	p.executeAll(work)
	if len(got) != 10 {
		t.Fatalf("ran %d jobs, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("single worker ran out of order: %v", got)
		}
	}
}

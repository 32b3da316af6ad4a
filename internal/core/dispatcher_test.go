package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDispatcherProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var got []Job
	done := make(chan struct{}, 1)

	d := NewDispatcher(2, 4, func(_ context.Context, job Job) {
		mu.Lock()
		got = append(got, job)
		if len(got) == 3 {
			done <- struct{}{}
		}
		mu.Unlock()
	}, zap.NewNop())
	defer d.Stop()

	for _, id := range []uint64{1, 2, 3} {
		if !d.Enqueue(Job{User: "alice", HistoryID: id}) {
			t.Fatalf("Enqueue(%d) rejected", id)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("processed %d jobs, want 3", len(got))
	}
}

func TestDispatcherSerializesPerUser(t *testing.T) {
	var mu sync.Mutex
	var order []uint64
	done := make(chan struct{})

	d := NewDispatcher(4, 8, func(_ context.Context, job Job) {
		// Uneven sleeps would reorder concurrent execution; FIFO per user
		// means order still matches enqueue order.
		time.Sleep(time.Duration(3-job.HistoryID) * 10 * time.Millisecond)
		mu.Lock()
		order = append(order, job.HistoryID)
		if len(order) == 3 {
			close(done)
		}
		mu.Unlock()
	}, zap.NewNop())
	defer d.Stop()

	for _, id := range []uint64{1, 2, 3} {
		if !d.Enqueue(Job{User: "alice", HistoryID: id}) {
			t.Fatalf("Enqueue(%d) rejected", id)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range order {
		if id != uint64(i+1) {
			t.Fatalf("order = %v, want FIFO per user", order)
		}
	}
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(1, 1, func(_ context.Context, _ Job) {
		<-block
	}, zap.NewNop())
	defer func() {
		close(block)
		d.Stop()
	}()

	// First job occupies the worker, second fills the queue; eventually the
	// queue stays full and Enqueue must refuse rather than block.
	accepted := 0
	for i := 0; i < 10; i++ {
		if d.Enqueue(Job{User: "alice", HistoryID: uint64(i)}) {
			accepted++
		}
		time.Sleep(5 * time.Millisecond)
	}
	if accepted == 10 {
		t.Error("expected at least one rejection with a full queue")
	}
}

func TestDispatcherReapsIdleQueues(t *testing.T) {
	processed := make(chan Job, 4)
	d := NewDispatcher(2, 4, func(_ context.Context, job Job) {
		processed <- job
	}, zap.NewNop())
	defer d.Stop()
	d.idleAfter = 10 * time.Millisecond

	if !d.Enqueue(Job{User: "alice", HistoryID: 1}) {
		t.Fatal("Enqueue rejected")
	}
	<-processed

	deadline := time.Now().Add(2 * time.Second)
	for d.queueCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("queue count = %d, idle queue never reaped", d.queueCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A reaped user is served again by a fresh queue.
	if !d.Enqueue(Job{User: "alice", HistoryID: 2}) {
		t.Fatal("Enqueue after reap rejected")
	}
	select {
	case job := <-processed:
		if job.HistoryID != 2 {
			t.Errorf("job = %+v", job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job after reap")
	}
}

func TestDispatcherStopWaitsForWorkers(t *testing.T) {
	started := make(chan struct{})
	d := NewDispatcher(1, 4, func(ctx context.Context, _ Job) {
		close(started)
		<-ctx.Done()
	}, zap.NewNop())

	d.Enqueue(Job{User: "alice", HistoryID: 1})
	<-started

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

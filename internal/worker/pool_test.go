package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	p := NewPool(2, 4, 32, time.Minute)

	const jobs = 20
	var done int64
	var wg sync.WaitGroup
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		err := p.Submit(Job{
			MaterialID: int64(i),
			Run: func() {
				atomic.AddInt64(&done, 1)
				wg.Done()
			},
		})
		if err != nil {
			t.Fatalf("Submit job %d: %v", i, err)
		}
	}

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		t.Fatalf("jobs did not finish: %d/%d", atomic.LoadInt64(&done), jobs)
	}
}

func TestPoolRejectsNilRun(t *testing.T) {
	p := NewPool(1, 1, 4, time.Minute)
	if err := p.Submit(Job{MaterialID: 1}); err == nil {
		t.Fatalf("expected error for job without Run")
	}
}

func TestPoolReportsQueueFull(t *testing.T) {
	p := NewPool(1, 1, 1, time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	// Occupy the single worker.
	if err := p.Submit(Job{Run: func() {
		close(started)
		<-release
	}}); err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}
	<-started

	// The dispatcher drains one more job while waiting for a free worker;
	// give it time to do so, then saturate the queue.
	if err := p.Submit(Job{Run: func() {}}); err != nil {
		t.Fatalf("Submit second: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := p.Submit(Job{Run: func() {}}); err != nil {
		t.Fatalf("Submit third: %v", err)
	}

	err := p.Submit(Job{Run: func() {}})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Submit = %v, want ErrQueueFull", err)
	}
	close(release)
}

func TestPoolScalesUpToMax(t *testing.T) {
	p := NewPool(1, 3, 16, time.Minute)

	release := make(chan struct{})
	var running int64
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		err := p.Submit(Job{Run: func() {
			atomic.AddInt64(&running, 1)
			wg.Done()
			<-release
		}})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		t.Fatalf("pool did not scale: %d jobs running", atomic.LoadInt64(&running))
	}
	close(release)
}

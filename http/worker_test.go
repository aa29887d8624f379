package http

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freekieb7/staticd/test"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int](0)
	for i := range 100 {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	test.AssertEqual(t, 100, q.Len())

	for i := range 100 {
		v, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		test.AssertEqual(t, i, v)
	}
	test.AssertEqual(t, 0, q.Len())
}

func TestQueue_WrapAroundAndGrow(t *testing.T) {
	q := NewQueue[int](0)
	next := 0
	want := 0

	// Interleave so head moves before the buffer has to grow.
	for round := 0; round < 10; round++ {
		for i := 0; i < 12; i++ {
			q.Enqueue(next)
			next++
		}
		for i := 0; i < 7; i++ {
			v, _ := q.Dequeue()
			test.AssertEqual(t, want, v)
			want++
		}
	}
	for q.Len() > 0 {
		v, _ := q.Dequeue()
		test.AssertEqual(t, want, v)
		want++
	}
	test.AssertEqual(t, next, want)
}

func TestQueue_Bounded(t *testing.T) {
	q := NewQueue[string](2)
	test.AssertNoError(t, q.Enqueue("a"))
	test.AssertNoError(t, q.Enqueue("b"))

	if err := q.Enqueue("c"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	v, _ := q.Dequeue()
	test.AssertEqual(t, "a", v)
	test.AssertNoError(t, q.Enqueue("c"))
}

func TestQueue_CloseWakesConsumers(t *testing.T) {
	q := NewQueue[int](0)
	q.Enqueue(1)

	errs := make(chan error, 3)
	var got atomic.Int32
	for range 3 {
		go func() {
			_, err := q.Dequeue()
			if err == nil {
				got.Add(1)
				_, err = q.Dequeue()
			}
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()

	for range 3 {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrQueueClosed) {
				t.Errorf("expected ErrQueueClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("consumer was not woken by Close")
		}
	}
	test.AssertEqual(t, int32(1), got.Load())

	if err := q.Enqueue(2); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed after close, got %v", err)
	}
}

func TestQueue_Drain(t *testing.T) {
	q := NewQueue[int](0)
	q.Enqueue(1)
	q.Enqueue(2)

	items := q.Drain()
	test.AssertEqual(t, 2, len(items))
	test.AssertEqual(t, 0, q.Len())

	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestNewWorkerPool_InvalidSize(t *testing.T) {
	if _, err := NewWorkerPool(0, 0, func(*RequestCtx, int) {}); !errors.Is(err, ErrInvalidPoolSize) {
		t.Errorf("expected ErrInvalidPoolSize, got %v", err)
	}
}

// No more than Cap() jobs may run at once, and nothing submitted is dropped.
func TestWorkerPool_BoundedConcurrency(t *testing.T) {
	const workers = 3
	const jobs = 20

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		done    sync.WaitGroup
	)
	done.Add(jobs)

	wp, err := NewWorkerPool(workers, 0, func(slot *RequestCtx, job int) {
		defer done.Done()
		n := active.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
	})
	test.AssertNoError(t, err)
	wp.Start()

	for i := range jobs {
		test.AssertNoError(t, wp.Submit(i))
	}
	done.Wait()

	if maxSeen.Load() > workers {
		t.Errorf("observed %d concurrent jobs, pool size is %d", maxSeen.Load(), workers)
	}

	select {
	case <-wp.Stop():
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
	test.AssertEqual(t, 0, wp.Running())
}

func TestWorkerPool_FIFOWithSingleWorker(t *testing.T) {
	var (
		mu    sync.Mutex
		order []int
	)

	wp, err := NewWorkerPool(1, 0, func(slot *RequestCtx, job int) {
		mu.Lock()
		order = append(order, job)
		mu.Unlock()
	})
	test.AssertNoError(t, err)

	// Queue everything before any worker runs.
	for i := range 10 {
		test.AssertNoError(t, wp.Submit(i))
	}
	test.AssertEqual(t, 10, wp.Queued())

	wp.Start()
	<-wp.Stop()

	test.AssertEqual(t, 10, len(order))
	for i, v := range order {
		test.AssertEqual(t, i, v)
	}
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	wp, err := NewWorkerPool(1, 0, func(*RequestCtx, int) {})
	test.AssertNoError(t, err)
	wp.Start()
	<-wp.Stop()

	if err := wp.Submit(1); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestWorkerPool_PanicKeepsWorker(t *testing.T) {
	var recovered atomic.Int32
	var served atomic.Int32

	wp, err := NewWorkerPool(1, 0, func(slot *RequestCtx, job int) {
		if job == 0 {
			panic("boom")
		}
		served.Add(1)
	})
	test.AssertNoError(t, err)
	wp.OnPanic = func(any) { recovered.Add(1) }
	wp.Start()

	wp.Submit(0)
	wp.Submit(1)
	<-wp.Stop()

	test.AssertEqual(t, int32(1), recovered.Load())
	test.AssertEqual(t, int32(1), served.Load())
	test.AssertEqual(t, 0, wp.Running())
}

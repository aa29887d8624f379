package http

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull       = errors.New("http: connection queue is full")
	ErrQueueClosed     = errors.New("http: connection queue is closed")
	ErrPoolClosed      = errors.New("http: worker pool is closed")
	ErrInvalidPoolSize = errors.New("http: worker pool size must be positive")
)

// Queue is a FIFO ring buffer that grows on demand. A positive limit caps the
// number of queued items; zero means unbounded. Many goroutines may enqueue and
// dequeue concurrently.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buffer []T
	head   int
	size   int
	limit  int
	closed bool
}

func NewQueue[T any](limit int) *Queue[T] {
	capacity := 16
	if limit > 0 && limit < capacity {
		capacity = limit
	}

	q := &Queue[T]{
		buffer: make([]T, capacity),
		limit:  limit,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends val and wakes one waiting consumer.
func (q *Queue[T]) Enqueue(val T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.limit > 0 && q.size >= q.limit {
		return ErrQueueFull
	}

	if q.size == len(q.buffer) {
		q.grow()
	}
	q.buffer[(q.head+q.size)%len(q.buffer)] = val
	q.size++

	q.cond.Signal()
	return nil
}

// Dequeue blocks until an item is available and returns the oldest one. Once the
// queue is closed, remaining items are still handed out; after that Dequeue
// returns ErrQueueClosed.
func (q *Queue[T]) Dequeue() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}

	var zero T
	if q.size == 0 {
		return zero, ErrQueueClosed
	}

	val := q.buffer[q.head]
	q.buffer[q.head] = zero
	q.head = (q.head + 1) % len(q.buffer)
	q.size--
	return val, nil
}

// Close rejects further Enqueue calls and wakes every waiting consumer.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cond.Broadcast()
}

// Drain closes the queue and removes everything still in it.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	q.closed = true

	var zero T
	items := make([]T, 0, q.size)
	for q.size > 0 {
		items = append(items, q.buffer[q.head])
		q.buffer[q.head] = zero
		q.head = (q.head + 1) % len(q.buffer)
		q.size--
	}
	q.mu.Unlock()

	q.cond.Broadcast()
	return items
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *Queue[T]) grow() {
	capacity := len(q.buffer) * 2
	if q.limit > 0 && capacity > q.limit {
		capacity = q.limit
	}

	buf := make([]T, capacity)
	for i := 0; i < q.size; i++ {
		buf[i] = q.buffer[(q.head+i)%len(q.buffer)]
	}
	q.buffer = buf
	q.head = 0
}

// WorkerPool runs a fixed number of workers. Each worker owns one RequestCtx
// slot and processes one job at a time, in submission order.
type WorkerPool[T any] struct {
	Pool  []*RequestCtx
	Ready *Queue[T]

	// OnPanic, if set, receives the value recovered from a panicking job. The worker
	// keeps running either way.
	OnPanic func(recovered any)

	handle  func(slot *RequestCtx, job T)
	running atomic.Int32
	started atomic.Bool
	wg      sync.WaitGroup
	done    chan struct{}
}

func NewWorkerPool[T any](size, queueSize int, handle func(slot *RequestCtx, job T)) (*WorkerPool[T], error) {
	if size <= 0 {
		return nil, ErrInvalidPoolSize
	}

	wp := &WorkerPool[T]{
		Pool:   make([]*RequestCtx, size),
		Ready:  NewQueue[T](queueSize),
		handle: handle,
		done:   make(chan struct{}),
	}
	for i := range wp.Pool {
		wp.Pool[i] = NewRequestCtx()
	}
	return wp, nil
}

// Start launches the workers. Calling it more than once has no effect.
func (wp *WorkerPool[T]) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		return
	}

	wp.wg.Add(len(wp.Pool))
	for _, slot := range wp.Pool {
		go wp.work(slot)
	}

	go func() {
		wp.wg.Wait()
		close(wp.done)
	}()
}

// Submit queues job for the next free worker. It never blocks.
func (wp *WorkerPool[T]) Submit(job T) error {
	err := wp.Ready.Enqueue(job)
	if errors.Is(err, ErrQueueClosed) {
		return ErrPoolClosed
	}
	return err
}

// Stop closes the queue. Workers finish queued and in-flight jobs, then exit;
// the returned channel is closed once they all have.
func (wp *WorkerPool[T]) Stop() <-chan struct{} {
	wp.Ready.Close()
	if !wp.started.Load() {
		wp.Start()
	}
	return wp.done
}

func (wp *WorkerPool[T]) Cap() int {
	return len(wp.Pool)
}

func (wp *WorkerPool[T]) Running() int {
	return int(wp.running.Load())
}

func (wp *WorkerPool[T]) Queued() int {
	return wp.Ready.Len()
}

func (wp *WorkerPool[T]) work(slot *RequestCtx) {
	defer wp.wg.Done()

	for {
		job, err := wp.Ready.Dequeue()
		if err != nil {
			return
		}

		wp.run(slot, job)
	}
}

func (wp *WorkerPool[T]) run(slot *RequestCtx, job T) {
	wp.running.Add(1)
	defer func() {
		wp.running.Add(-1)
		if recovered := recover(); recovered != nil && wp.OnPanic != nil {
			wp.OnPanic(recovered)
		}
	}()

	wp.handle(slot, job)
}

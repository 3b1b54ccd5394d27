package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions configures batching for AsyncWriter.
type AsyncOptions struct {
	BufferSize     int           // Max events queued before Store falls back to a synchronous write
	BatchSize      int           // Events per StoreBatch call
	BatchTimeout   time.Duration // Max time a partial batch waits before flushing
	StorageTimeout time.Duration // Per-batch storage timeout
}

// AsyncWriter batches events in a background goroutine. Store does not wait
// for the write; errors from the backend are reported through OnError.
type AsyncWriter struct {
	storage BatchStorage
	events  chan Event
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex // held for writing only while closing
	closed  bool
	wg      sync.WaitGroup
	options AsyncOptions
	onError func(error)
}

// NewAsyncWriter starts the background worker. Call Close on shutdown to flush.
func NewAsyncWriter(storage BatchStorage, opts AsyncOptions, onError func(error)) *AsyncWriter {
	if storage == nil {
		panic("audit: batch storage cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}
	if onError == nil {
		onError = func(error) {}
	}

	w := &AsyncWriter{
		storage: storage,
		events:  make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
		options: opts,
		onError: onError,
	}

	w.wg.Add(1)
	go w.worker()
	return w
}

// Store queues the event. When the buffer is full, or the writer is closed,
// the event is written synchronously so nothing is dropped.
func (w *AsyncWriter) Store(ctx context.Context, event Event) error {
	w.mu.RLock()
	if !w.closed {
		select {
		case w.events <- event:
			w.mu.RUnlock()
			return nil
		default:
		}
	}
	w.mu.RUnlock()

	return w.storage.StoreBatch(ctx, []Event{event})
}

func (w *AsyncWriter) worker() {
	defer w.wg.Done()

	batch := make([]Event, 0, w.options.BatchSize)
	ticker := time.NewTicker(w.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Detached from request contexts so a cancelled request does not lose its events.
		ctx, cancel := context.WithTimeout(context.Background(), w.options.StorageTimeout)
		defer cancel()

		if err := w.storage.StoreBatch(ctx, batch); err != nil {
			w.onError(err)
		}
		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-w.events:
			batch = append(batch, e)
			if len(batch) >= w.options.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			for {
				select {
				case e := <-w.events:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops the worker after draining queued events. Events stored after
// Close are written synchronously.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.done)
		w.mu.Unlock()
	})

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

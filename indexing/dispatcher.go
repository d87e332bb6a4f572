package indexing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type job struct {
	url  string
	kind Kind
}

// Dispatcher runs notifications on a background worker so that request
// handlers never wait for, or see errors from, a notifier.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

// NewDispatcher starts the worker. size bounds the queue; timeout bounds
// each notification.
func NewDispatcher(n Notifier, size int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		notifier: n,
		timeout:  timeout,
		log:      log,
		queue:    make(chan job, size),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue schedules a notification and returns immediately. When the queue
// is full or the dispatcher is closed the job is dropped with a warning.
func (d *Dispatcher) Enqueue(url string, kind Kind) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("indexing dispatcher closed, dropping notification", zap.String("url", url))
		return
	}
	select {
	case d.queue <- job{url: url, kind: kind}:
	default:
		d.log.Warn("indexing queue full, dropping notification",
			zap.String("url", url), zap.String("kind", string(kind)))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		d.notify(j)
	}
}

func (d *Dispatcher) notify(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("indexing notifier panicked", zap.Any("panic", r), zap.String("url", j.url))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	start := time.Now()
	if err := d.notifier.Notify(ctx, j.url, j.kind); err != nil {
		d.log.Warn("indexing notification failed",
			zap.String("url", j.url),
			zap.String("kind", string(j.kind)),
			zap.Error(err))
		return
	}
	d.log.Debug("indexing notification sent",
		zap.String("url", j.url),
		zap.String("kind", string(j.kind)),
		zap.Duration("took", time.Since(start)))
}

// Close stops accepting jobs and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

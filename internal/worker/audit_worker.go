// Package worker runs background consumers of domain events.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/letter-service/internal/events"
)

// Recorder persists one event.
type Recorder interface {
	Record(ctx context.Context, event events.Event) error
}

// AuditWorker moves audit recording off the request path. Events are queued by a
// dispatcher subscription and recorded in order by a single goroutine.
type AuditWorker struct {
	recorder Recorder
	logger   *zap.Logger
	queue    chan events.Event

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewAuditWorker subscribes to every event on dispatcher. A full queue drops the event
// with a warning rather than blocking the publisher.
func NewAuditWorker(recorder Recorder, dispatcher events.Dispatcher, buffer int, logger *zap.Logger) *AuditWorker {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &AuditWorker{
		recorder: recorder,
		logger:   logger.Named("audit_worker"),
		queue:    make(chan events.Event, buffer),
		done:     make(chan struct{}),
	}
	if dispatcher != nil {
		dispatcher.Subscribe(events.AnyEvent, w.enqueue)
	}
	return w
}

func (w *AuditWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("audit queue full, event dropped",
			zap.String("event_type", string(event.Type)), zap.String("subject", event.Subject))
	}
	return nil
}

// Start consumes the queue until Stop is called.
func (w *AuditWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for event := range w.queue {
			if err := w.recorder.Record(context.WithoutCancel(ctx), event); err != nil {
				w.logger.Warn("audit record failed", zap.String("event_id", event.ID), zap.Error(err))
			}
		}
	}()
}

// Stop closes the queue and waits for queued events to be recorded.
func (w *AuditWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}

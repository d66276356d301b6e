package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/metrics"
)

// deliveryTimeout bounds one sink delivery.
const deliveryTimeout = 5 * time.Second

// Sink receives events from the notifier.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event *domain.Event) error
}

// Notifier fans events out to its sinks on a fixed-size pool of goroutines.
// Notify never blocks; when the queue is full the event is dropped.
type Notifier struct {
	size   int
	queue  chan *domain.Event
	sinks  []Sink
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier with size workers and a queue of queueSize events.
func NewNotifier(size, queueSize int, sinks []Sink, logger *zap.Logger) *Notifier {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Notifier{
		size:   size,
		queue:  make(chan *domain.Event, queueSize),
		sinks:  sinks,
		logger: logger,
	}
}

// Start launches all worker goroutines. They exit when ctx is cancelled.
// Call Stop to wait for them to finish.
func (n *Notifier) Start(ctx context.Context) {
	n.logger.Info("Starting notifier pool",
		zap.Int("pool_size", n.size),
		zap.Int("queue_size", cap(n.queue)),
		zap.Int("sinks", len(n.sinks)),
	)

	for i := 0; i < n.size; i++ {
		n.wg.Add(1)
		go n.worker(ctx, i)
	}
}

// Stop waits for all workers to exit.
func (n *Notifier) Stop() {
	n.wg.Wait()
	n.logger.Info("Notifier pool stopped")
}

// Run starts the pool and blocks until ctx is cancelled and every worker has exited.
func (n *Notifier) Run(ctx context.Context) error {
	n.Start(ctx)
	<-ctx.Done()
	n.Stop()
	return nil
}

// Notify queues an event for delivery and reports whether it was accepted.
func (n *Notifier) Notify(event *domain.Event) bool {
	select {
	case n.queue <- event:
		return true
	default:
		metrics.NotificationsDropped.Inc()
		n.logger.Warn("Notifier queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("job_id", event.JobID),
		)
		return false
	}
}

func (n *Notifier) worker(ctx context.Context, id int) {
	defer n.wg.Done()

	n.logger.Debug("Notifier worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			n.logger.Debug("Notifier worker shutting down", zap.Int("worker_id", id))
			return
		case event := <-n.queue:
			metrics.NotifyWorkersActive.Inc()
			for _, sink := range n.sinks {
				n.deliver(ctx, id, sink, event)
			}
			metrics.NotifyWorkersActive.Dec()
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, id int, sink Sink, event *domain.Event) {
	deliverCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if err := safeDeliver(deliverCtx, sink, event); err != nil {
		metrics.NotificationsTotal.WithLabelValues(sink.Name(), "error").Inc()
		n.logger.Error("Event delivery failed",
			zap.Int("worker_id", id),
			zap.String("sink", sink.Name()),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(sink.Name(), "ok").Inc()
}

// safeDeliver turns a panicking sink into an error so the worker survives.
func safeDeliver(ctx context.Context, sink Sink, event *domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify: sink %s panicked: %v", sink.Name(), r)
		}
	}()
	return sink.Deliver(ctx, event)
}

package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	publishTimeout = 5 * time.Second
)

// Dispatcher hands account events to a fixed set of workers sharded by user
// id, so events for one user reach the sink in the order they were published.
// It implements ports.EventPublisher and never blocks the caller.
type Dispatcher struct {
	workers []chan domain.AccountEvent
	sink    ports.EventPublisher
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink ports.EventPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AccountEvent, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AccountEvent, channelBuffer)
	}
	return d
}

// Start launches the worker goroutines. Cancelling ctx abandons queued events;
// Stop drains them instead.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Publish queues evt for its user's worker. A full queue drops the event with
// a warning. Events published after Stop are dropped as well.
func (d *Dispatcher) Publish(_ context.Context, evt domain.AccountEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.log.Warn().Str("event", string(evt.Type)).Int64("user_id", evt.UserID).Msg("dispatcher stopped, event dropped")
		metrics.AccountEventsPublishedTotal.WithLabelValues("dropped").Inc()
		return nil
	}

	idx := d.shardIndex(evt.UserID)
	select {
	case d.workers[idx] <- evt:
		metrics.AccountEventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.log.Warn().Str("event", string(evt.Type)).Int64("user_id", evt.UserID).Msg("event queue full, event dropped")
		metrics.AccountEventsPublishedTotal.WithLabelValues("dropped").Inc()
	}
	return nil
}

// Stop closes the queues and waits for the workers to flush what is queued.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID int64) int {
	n := int64(len(d.workers))
	return int(((userID % n) + n) % n)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AccountEvent) {
	defer d.wg.Done()
	depth := metrics.AccountEventsQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			depth.Set(float64(len(ch)))
			d.deliver(ctx, id, evt)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, workerID int, evt domain.AccountEvent) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := d.sink.Publish(pubCtx, evt); err != nil {
		d.log.Error().Err(err).
			Str("event", string(evt.Type)).
			Int64("user_id", evt.UserID).
			Int("worker_id", workerID).
			Msg("account event publish failed")
		metrics.AccountEventsPublishedTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.AccountEventsPublishedTotal.WithLabelValues("published").Inc()
}

package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

type delivery struct {
	clientID string
	event    domain.NotificationEvent
}

// Dispatcher moves notification events off the goroutine that raised them
// and hands them to the downstream sink. Events of one client always go to
// the same worker, so a client sees them in the order they were raised.
type Dispatcher struct {
	workers []chan delivery
	sink    ports.EventSink
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink ports.EventSink, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan delivery, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan delivery, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Deliver implements ports.EventSink. It never blocks: when the worker of
// clientID is saturated the event is dropped, since the client can still
// read the list over HTTP.
func (d *Dispatcher) Deliver(clientID string, ev domain.NotificationEvent) {
	idx := d.shardIndex(clientID)
	select {
	case d.workers[idx] <- delivery{clientID: clientID, event: ev}:
		metrics.DeliveryQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.log.Warn().
			Str("client_id", clientID).
			Str("notification_id", ev.Notification.ID).
			Int("worker_id", idx).
			Msg("delivery queue full, event dropped")
	}
}

// shardIndex maps a client id deterministically to a worker index.
func (d *Dispatcher) shardIndex(clientID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan delivery) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-ch:
			if !ok {
				return
			}
			metrics.DeliveryQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.sink.Deliver(item.clientID, item.event)
		}
	}
}

// Package fanout delivers post-commit events to external sinks without
// blocking the request path.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

var metrics = struct {
	Published *prometheus.CounterVec
	Dropped   prometheus.Counter
	Delivered *prometheus.CounterVec
	Failed    *prometheus.CounterVec
}{
	Published: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapmeet_fanout_published_total",
		Help: "Events accepted into the fan-out queue.",
	}, []string{"type"}),
	Dropped: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swapmeet_fanout_dropped_total",
		Help: "Events dropped because the queue was full or closed.",
	}),
	Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapmeet_fanout_delivered_total",
		Help: "Successful sink deliveries.",
	}, []string{"sink"}),
	Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapmeet_fanout_failed_total",
		Help: "Failed sink deliveries.",
	}, []string{"sink"}),
}

func init() {
	prometheus.MustRegister(metrics.Published, metrics.Dropped, metrics.Delivered, metrics.Failed)
}

type Options struct {
	Buffer         int
	Workers        int
	DeliverTimeout time.Duration
}

// Dispatcher implements domain.Publisher over a bounded queue drained by
// worker goroutines. Publish never blocks; a full queue drops the event.
type Dispatcher struct {
	sinks   []domain.Sink
	queue   chan domain.Event
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ domain.Publisher = (*Dispatcher)(nil)

func New(opts Options, sinks ...domain.Sink) *Dispatcher {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.DeliverTimeout <= 0 {
		opts.DeliverTimeout = 5 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan domain.Event, opts.Buffer),
		workers: opts.Workers,
		timeout: opts.DeliverTimeout,
	}
}

// Publish enqueues evt for delivery.
func (d *Dispatcher) Publish(evt domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.Dropped.Inc()
		return
	}
	select {
	case d.queue <- evt:
		metrics.Published.WithLabelValues(string(evt.Type)).Inc()
	default:
		metrics.Dropped.Inc()
		log.Warn().Str("event", string(evt.Type)).Str("recipient", evt.RecipientID).Msg("fan-out queue full, dropping event")
	}
}

// Start launches the workers. They exit once Close has drained the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for evt := range d.queue {
				if err := d.deliver(ctx, evt); err != nil {
					log.Warn().Err(err).Str("event", string(evt.Type)).Str("recipient", evt.RecipientID).Msg("fan-out delivery failed")
				}
			}
		}()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// deliver hands evt to every sink and aggregates their failures.
func (d *Dispatcher) deliver(ctx context.Context, evt domain.Event) error {
	var result *multierror.Error
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		err := s.Deliver(sctx, evt)
		cancel()
		if err != nil {
			metrics.Failed.WithLabelValues(s.Name()).Inc()
			result = multierror.Append(result, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		metrics.Delivered.WithLabelValues(s.Name()).Inc()
	}
	return result.ErrorOrNil()
}

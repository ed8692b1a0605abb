// Package events streams committed ride lifecycle events to a durable sink.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cabride/internal/domain"
	"cabride/internal/observability"
)

// Lifecycle event names. The AMQP routing key is "ride.<name>".
const (
	RideRequested = "requested"
	RideAccepted  = "accepted"
	RideStatus    = "status"
	RideCancelled = "cancelled"
	RidePaid      = "paid"
	FinePaid      = "fine_paid"
)

// LifecycleEvent is one committed change to a ride.
type LifecycleEvent struct {
	Name       string            `json:"event"`
	RideID     string            `json:"rideId,omitempty"`
	CustomerID string            `json:"customerId,omitempty"`
	DriverID   string            `json:"driverId,omitempty"`
	Status     domain.RideStatus `json:"status,omitempty"`
	Fine       float64           `json:"fine,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Key partitions events so one ride's events stay ordered.
func (e LifecycleEvent) Key() string {
	if e.RideID != "" {
		return e.RideID
	}
	return e.CustomerID + e.DriverID
}

// Sink writes lifecycle events somewhere durable.
type Sink interface {
	Name() string
	Write(ctx context.Context, e LifecycleEvent) error
	Close() error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Name() string                                { return "none" }
func (NopSink) Write(context.Context, LifecycleEvent) error { return nil }
func (NopSink) Close() error                                { return nil }

// Dispatcher hands events to a Sink from a single background worker so
// callers never wait on the broker. Events are written in Emit order.
type Dispatcher struct {
	sink    Sink
	queue   chan LifecycleEvent
	timeout time.Duration
	logger  *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewDispatcher creates a Dispatcher and starts its worker.
func NewDispatcher(sink Sink, buffer int, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan LifecycleEvent, buffer),
		timeout: 5 * time.Second,
		logger:  logger,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Emit queues e. A full queue drops the event and logs it.
func (d *Dispatcher) Emit(e LifecycleEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- e:
	default:
		observability.EventsPublished.WithLabelValues(d.sink.Name(), "dropped").Inc()
		d.logger.Warn("event sink queue full, event dropped", "event", e.Name, "ride_id", e.RideID)
	}
}

// Close drains queued events and closes the sink.
func (d *Dispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		d.wg.Wait()
		err = d.sink.Close()
	})
	return err
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sink.Write(ctx, e)
		cancel()

		if err != nil {
			observability.EventsPublished.WithLabelValues(d.sink.Name(), "error").Inc()
			d.logger.Error("write lifecycle event", "sink", d.sink.Name(), "event", e.Name, "ride_id", e.RideID, "error", err)
			continue
		}
		observability.EventsPublished.WithLabelValues(d.sink.Name(), "ok").Inc()
	}
}

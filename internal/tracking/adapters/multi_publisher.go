package adapters

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/services"
)

// ErrPublisherClosed is returned by Publish after Close
var ErrPublisherClosed = errors.New("publisher closed")

// MultiPublisher hands each event to every publisher in order
type MultiPublisher []services.EventPublisher

// Publish returns the joined errors of all publishers
func (m MultiPublisher) Publish(ctx context.Context, event *models.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncPublisher decouples slow sinks (push, SMS, storage) from the tracking
// store. Events are queued and delivered by a fixed set of workers; when the
// queue is full the event is dropped and logged.
type AsyncPublisher struct {
	next   services.EventPublisher
	queue  chan *models.Event
	logger *slog.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncPublisher creates a publisher with the given queue size
func NewAsyncPublisher(next services.EventPublisher, queueSize int, logger *slog.Logger) *AsyncPublisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncPublisher{
		next:   next,
		queue:  make(chan *models.Event, queueSize),
		logger: logger.With(slog.String("component", "async_publisher")),
	}
}

// Start launches workers that run until the queue is closed by Close
func (p *AsyncPublisher) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for event := range p.queue {
				if err := p.next.Publish(ctx, event); err != nil {
					p.logger.Warn("async publish failed",
						slog.String("event_id", event.ID.String()),
						slog.String("type", string(event.Type)),
						slog.String("error", err.Error()),
					)
				}
			}
		}()
	}
}

// Publish enqueues the event without blocking
func (p *AsyncPublisher) Publish(_ context.Context, event *models.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- event:
	default:
		p.logger.Warn("event queue full, dropping event",
			slog.String("event_id", event.ID.String()),
			slog.String("type", string(event.Type)),
		)
	}
	return nil
}

// Close stops accepting events and waits for queued ones to drain
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

var (
	_ services.EventPublisher = MultiPublisher(nil)
	_ services.EventPublisher = (*AsyncPublisher)(nil)
)

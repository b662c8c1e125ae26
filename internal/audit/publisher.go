package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Publisher hands events to a Sink. With an async buffer, Emit never blocks
// the request path: events are written by a background goroutine and
// dropped with a warning when the buffer is full.
type Publisher struct {
	sink    Sink
	logger  *slog.Logger
	now     func() time.Time
	dropped prometheus.Counter

	async  bool
	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

type PublisherOption func(*Publisher)

func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithDroppedCounter counts events lost to a full buffer or a failing sink.
func WithDroppedCounter(c prometheus.Counter) PublisherOption {
	return func(p *Publisher) {
		p.dropped = c
	}
}

func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for e := range p.events {
		p.write(context.Background(), e)
	}
}

func (p *Publisher) write(ctx context.Context, e Event) {
	if err := p.sink.Write(ctx, e); err != nil {
		p.drop(e, "sink write failed", err)
	}
}

func (p *Publisher) drop(e Event, msg string, err error) {
	if p.dropped != nil {
		p.dropped.Inc()
	}
	if p.logger != nil {
		args := []any{"action", string(e.Action), "user_id", e.UserID}
		if err != nil {
			args = append(args, "error", err)
		}
		p.logger.Warn(msg, args...)
	}
}

// Emit records e. Failures are logged and never returned to the caller.
func (p *Publisher) Emit(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = p.now().UTC()
	}
	if !p.async {
		p.write(ctx, e)
		return
	}
	select {
	case p.events <- e:
	default:
		p.drop(e, "audit buffer full, event dropped", nil)
	}
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.async {
			close(p.events)
			p.wg.Wait()
		}
	})
}

// Package eventbus provides an in-process pub/sub bus for complaint status
// events. Services publish after commit; subscribers and live watchers of a
// tracking code receive events asynchronously.
package eventbus

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Event types.
const (
	TypeStatusUpdate = "status_update"
	TypeSLAWarning   = "sla_warning"
	TypeEscalation   = "escalation"
)

// Event is a structured status update keyed by tracking code.
type Event struct {
	Type         string    `json:"type"`
	TrackingCode string    `json:"tracking_code"`
	Status       string    `json:"status,omitempty"`
	Category     string    `json:"category,omitempty"`
	RiskLevel    string    `json:"risk_level,omitempty"`
	Department   string    `json:"department,omitempty"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

// Handler processes an event. Implementations must be safe for
// concurrent calls from different goroutines.
type Handler interface {
	HandleEvent(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Bus is an in-process event bus. Events are published to a buffered
// channel and dispatched by a single consumer goroutine.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	watchers    map[string]map[*Subscription]struct{}
	closed      bool

	events chan Event
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus with the given channel buffer size.
func New(bufSize int, logger *slog.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		watchers: make(map[string]map[*Subscription]struct{}),
		events:   make(chan Event, bufSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Subscribe registers a named handler for every event.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Subscription delivers the events of one tracking code.
type Subscription struct {
	C    <-chan Event
	c    chan Event
	code string
	bus  *Bus
	once sync.Once
}

// Close stops delivery and releases the subscription.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if subs := s.bus.watchers[s.code]; subs != nil {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.bus.watchers, s.code)
			}
		}
		close(s.c)
	})
}

// Watch subscribes to the events of one tracking code. A slow watcher
// misses events rather than blocking the bus.
func (b *Bus) Watch(trackingCode string) *Subscription {
	code := strings.ToUpper(trackingCode)
	c := make(chan Event, 16)
	sub := &Subscription{C: c, c: c, code: code, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(c)
		sub.once.Do(func() {})
		return sub
	}
	if b.watchers[code] == nil {
		b.watchers[code] = make(map[*Subscription]struct{})
	}
	b.watchers[code][sub] = struct{}{}
	return sub
}

// Watchers returns the number of live watchers of a tracking code.
func (b *Bus) Watchers(trackingCode string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.watchers[strings.ToUpper(trackingCode)])
}

// Publish sends an event to the bus. Non-blocking: if the buffer is full
// the event is dropped and a warning is logged.
func (b *Bus) Publish(_ context.Context, evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	evt.TrackingCode = strings.ToUpper(evt.TrackingCode)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- evt:
	default:
		b.logger.Warn("eventbus buffer full, dropping event", "type", evt.Type, "tracking_code", evt.TrackingCode)
	}
}

// Start begins the consumer goroutine. It processes events until Stop is
// called, draining whatever is buffered.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for evt := range b.events {
			b.dispatch(ctx, evt)
		}
	}()
}

// Stop rejects further events, drains the buffer and waits for the
// consumer goroutine to finish. Open subscriptions are closed.
func (b *Bus) Stop() {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.events)
		b.mu.Unlock()
		<-b.done

		b.mu.Lock()
		for code, subs := range b.watchers {
			for s := range subs {
				s.once.Do(func() { close(s.c) })
			}
			delete(b.watchers, code)
		}
		b.mu.Unlock()
	})
}

func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := b.subscribers
	for s := range b.watchers[evt.TrackingCode] {
		select {
		case s.c <- evt:
		default:
			b.logger.Debug("watcher too slow, dropping event", "tracking_code", evt.TrackingCode)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.logger.Warn("eventbus handler error", "handler", s.name, "type", evt.Type, "error", err)
		}
	}
}

// LogConsumer logs every event for observability.
type LogConsumer struct {
	logger *slog.Logger
}

// NewLogConsumer creates a LogConsumer.
func NewLogConsumer(logger *slog.Logger) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{logger: logger}
}

// HandleEvent implements Handler.
func (c *LogConsumer) HandleEvent(_ context.Context, evt Event) error {
	c.logger.Info("event", "type", evt.Type, "tracking_code", evt.TrackingCode, "status", evt.Status)
	return nil
}

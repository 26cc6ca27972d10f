package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Subscriber receives hub events. A returned error is reported to the hub's
// logger and otherwise ignored.
type Subscriber func(Event) error

// Hub fans run events out to subscribers. Publish never blocks: every
// subscription owns an unbounded mailbox drained by its own goroutine, so a
// slow subscriber only delays itself. Events from a single publisher reach
// each subscriber in publish order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	logger *log.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger that receives subscriber errors and panics.
func WithHubLogger(logger *log.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{subs: make(map[uint64]*Subscription)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	id  uint64
	hub *Hub
	fn  Subscriber

	mu     sync.Mutex
	queue  []Event
	signal chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// callMu is held for the duration of each callback so Unsubscribe can
	// wait for an in-flight delivery.
	callMu sync.Mutex
	closed atomic.Bool
}

// Subscribe registers fn and starts its delivery goroutine. Subscribing to a
// closed hub returns an already-unsubscribed subscription.
func (h *Hub) Subscribe(fn Subscriber) *Subscription {
	return h.subscribe(func(<-chan struct{}) Subscriber { return fn })
}

// subscribe builds the callback with access to the subscription's stop
// channel so blocking callbacks can bail out on Unsubscribe.
func (h *Hub) subscribe(build func(stop <-chan struct{}) Subscriber) *Subscription {
	s := &Subscription{
		hub:    h,
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.fn = build(s.stop)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.closed.Store(true)
		close(s.stop)
		close(s.done)
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	h.mu.Unlock()

	go s.drain()
	return s
}

// Publish enqueues ev for every current subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.enqueue(ev)
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes every subscriber. Later Subscribe calls return closed
// subscriptions and Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

// Channel forwards hub events to the returned channel until ctx is done or
// the hub is closed, after which the channel is closed. A full channel
// applies backpressure to this subscription only.
func (h *Hub) Channel(ctx context.Context, buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	s := h.subscribe(func(stop <-chan struct{}) Subscriber {
		return func(ev Event) error {
			select {
			case ch <- ev:
			case <-ctx.Done():
			case <-stop:
			}
			return nil
		}
	})
	go func() {
		select {
		case <-ctx.Done():
		case <-s.stop:
		}
		s.Unsubscribe()
		close(ch)
	}()
	return ch
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Unsubscribe stops delivery. When it returns no further callbacks will run
// for this subscription; an in-flight callback is waited for. It must not be
// called from inside the subscription's own callback. Calling it more than
// once is safe.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
		s.hub.remove(s.id)
	})
	s.callMu.Lock()
	//nolint:staticcheck // empty critical section waits for in-flight callback
	s.callMu.Unlock()
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) enqueue(ev Event) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) drain() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			batch := s.queue
			s.queue = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				if !s.deliver(ev) {
					return
				}
			}
		}
	}
}

// deliver invokes the callback for ev. It returns false once the
// subscription has been closed.
func (s *Subscription) deliver(ev Event) bool {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	if s.closed.Load() {
		return false
	}
	if err := s.safeCall(ev); err != nil {
		s.hub.warn("subscriber error", "subscription", s.id, "run", ev.RunID, "error", err)
	}
	return true
}

// safeCall runs the callback, converting a panic into an error.
func (s *Subscription) safeCall(ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hub: subscriber panicked: %v", r)
		}
	}()
	return s.fn(ev)
}

func (h *Hub) warn(msg string, kvs ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Warn(msg, kvs...)
}

package fanout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
	"github.com/solar-surv/coldwatch/internal/logger"
)

// Subscriber consumes device-state updates at its own pace. Send blocks as
// long as the underlying delivery is in flight; a non-nil error means the
// subscriber is gone and triggers automatic unsubscription.
type Subscriber interface {
	Send(state telemetry.DeviceState) error
}

// Handle identifies a registered subscriber for later removal.
type Handle string

// DefaultQueueCapacity is used when the bus is created with a non-positive
// capacity.
const DefaultQueueCapacity = 64

// Bus decouples one producer from N subscribers with independent consumption
// rates. Each subscriber owns a bounded queue drained by its own delivery
// goroutine; a full queue drops the oldest pending frame for that subscriber
// only, so a slow or dead subscriber never blocks Publish or its peers.
type Bus struct {
	// capacity is the per-subscriber pending queue size.
	capacity int
	// dropped counts frames discarded across all subscribers.
	dropped atomic.Uint64

	// mu protects subs.
	mu   sync.RWMutex
	subs map[Handle]*subscription
}

// subscription pairs a subscriber with its delivery queue and stop signal.
type subscription struct {
	handle Handle
	sub    Subscriber

	// enqueueMu serializes enqueue's full-queue handling so two publishers
	// cannot both pop the same slot.
	enqueueMu sync.Mutex
	frames    chan telemetry.DeviceState

	stopOnce sync.Once
	done     chan struct{}
}

// NewBus creates a bus with the given per-subscriber queue capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &Bus{
		capacity: capacity,
		subs:     make(map[Handle]*subscription),
	}
}

// Subscribe registers the subscriber and starts its delivery goroutine.
// The context is used for delivery logging and does not bound the
// subscription lifetime.
func (b *Bus) Subscribe(ctx context.Context, sub Subscriber) Handle {
	s := &subscription{
		handle: Handle(uuid.NewString()),
		sub:    sub,
		frames: make(chan telemetry.DeviceState, b.capacity),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[s.handle] = s
	b.mu.Unlock()

	go b.deliver(ctx, s)

	logger.DebugKV(ctx, "Subscriber registered", "handle", s.handle, "subscribers", b.SubscriberCount())

	return s.handle
}

// Unsubscribe removes the subscriber and stops its delivery goroutine. It is
// safe to call concurrently with an in-flight Send and with itself.
func (b *Bus) Unsubscribe(handle Handle) {
	b.mu.Lock()
	s, ok := b.subs[handle]
	delete(b.subs, handle)
	b.mu.Unlock()

	if ok {
		s.stop()
	}
}

// Publish appends the state to every registered subscriber's queue. It never
// blocks beyond the bounded enqueue; delivery happens asynchronously.
func (b *Bus) Publish(state telemetry.DeviceState) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if s.enqueue(state) {
			b.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Dropped returns the total number of frames discarded because a subscriber
// queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close unsubscribes everyone. Pending frames are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[Handle]*subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

// deliver drains the subscription queue and forwards frames to the
// subscriber. A send failure unsubscribes the subscriber; other subscribers
// and the publisher are unaffected.
func (b *Bus) deliver(ctx context.Context, s *subscription) {
	for {
		select {
		case <-s.done:
			return
		case state := <-s.frames:
			// Re-check cancellation so an unsubscribe racing with a queued
			// frame does not produce a late send.
			select {
			case <-s.done:
				return
			default:
			}

			if err := s.sub.Send(state); err != nil {
				logger.DebugKV(ctx, "Subscriber send failed, unsubscribing",
					"handle", s.handle, "error", err)
				b.Unsubscribe(s.handle)

				return
			}
		}
	}
}

// enqueue adds the state to the queue, evicting the oldest pending frame when
// full. It reports whether an eviction happened.
func (s *subscription) enqueue(state telemetry.DeviceState) bool {
	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()

	evicted := false

	for {
		select {
		case s.frames <- state:
			return evicted
		default:
		}

		// Queue full: drop the oldest frame and retry. The delivery goroutine
		// may have consumed one in between, in which case the retry succeeds
		// without eviction.
		select {
		case <-s.frames:
			evicted = true
		default:
		}
	}
}

// stop signals the delivery goroutine to exit. Idempotent.
func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

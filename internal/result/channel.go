// Package result implements the broadcast stream a sensor session publishes
// its progress, readings and errors on.
//
// Delivery is live only: a subscriber sees envelopes published after it
// subscribed and nothing earlier. Each subscriber has its own bounded buffer
// that drops the oldest envelope when the subscriber falls behind, so
// publishing never blocks.
package result

import (
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
)

// DefaultBuffer is the per-subscriber buffer size used when none is given.
const DefaultBuffer = 32

// Channel is a multi-subscriber broadcast of envelopes.
type Channel[T any] struct {
	subs     *hashmap.Map[uint64, *Subscription[T]]
	nextID   atomic.Uint64
	capacity int
	closed   atomic.Bool

	// publishMu keeps a single producer per subscriber ring and orders envelopes.
	publishMu sync.Mutex
}

// NewChannel creates a channel whose subscribers buffer up to capacity envelopes.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		capacity = DefaultBuffer
	}
	return &Channel[T]{
		subs:     hashmap.New[uint64, *Subscription[T]](),
		capacity: capacity,
	}
}

// Subscribe registers a new listener. Subscribing to a closed channel returns
// a subscription whose C() is already closed.
func (c *Channel[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		id:    c.nextID.Add(1),
		ring:  NewRingChannel[Envelope[T]](c.capacity),
		owner: c,
	}
	if c.closed.Load() {
		sub.close()
		return sub
	}

	c.subs.Set(sub.id, sub)
	if c.closed.Load() {
		// lost a race with Close
		c.subs.Del(sub.id)
		sub.close()
	}
	return sub
}

// Publish delivers env to every current subscriber and returns how many received it.
func (c *Channel[T]) Publish(env Envelope[T]) int {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	if c.closed.Load() {
		return 0
	}

	delivered := 0
	c.subs.Range(func(_ uint64, sub *Subscription[T]) bool {
		if sub.deliver(env) {
			delivered++
		}
		return true
	})
	return delivered
}

// Subscribers returns the number of active subscriptions.
func (c *Channel[T]) Subscribers() int {
	return c.subs.Len()
}

// Close closes every subscription. Later publishes are dropped. Idempotent.
func (c *Channel[T]) Close() {
	if c.closed.Swap(true) {
		return
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	var ids []uint64
	c.subs.Range(func(id uint64, sub *Subscription[T]) bool {
		sub.close()
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		c.subs.Del(id)
	}
}

// Subscription is one listener on a Channel.
type Subscription[T any] struct {
	id    uint64
	ring  *RingChannel[Envelope[T]]
	owner *Channel[T]

	mu     sync.Mutex
	closed bool
}

// C returns the envelope stream. It is closed by Unsubscribe or Channel.Close.
func (s *Subscription[T]) C() <-chan Envelope[T] {
	return s.ring.C()
}

// Dropped returns how many envelopes were discarded because the subscriber fell behind.
func (s *Subscription[T]) Dropped() int64 {
	return s.ring.GetMetrics().Overwritten
}

// Unsubscribe detaches the subscription and closes C(). Idempotent.
func (s *Subscription[T]) Unsubscribe() {
	s.owner.subs.Del(s.id)
	s.close()
}

func (s *Subscription[T]) deliver(env Envelope[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.ring.Send(env)
	return true
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.ring.Close()
}

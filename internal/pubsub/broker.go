// Package pubsub decouples the stream transport from its consumers: the
// connection manager publishes typed events, the reducer and TUI subscribe.
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 64

// Broker fans events out to subscribers without ever blocking the publisher.
// Delivery is best effort: a subscriber that falls behind its channel buffer
// loses events, counted in Dropped.
type Broker[T any] struct {
	mu      sync.RWMutex
	subs    map[chan T]struct{}
	done    chan struct{}
	buffer  int
	dropped atomic.Int64
}

func NewBroker[T any]() *Broker[T] {
	return NewBrokerBuffered[T](defaultBuffer)
}

func NewBrokerBuffered[T any](buffer int) *Broker[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker[T]{
		subs:   make(map[chan T]struct{}),
		done:   make(chan struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for future events. The returned channel closes when
// ctx is done or the broker shuts down. Subscribing to a shut-down broker
// yields an already-closed channel.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan T)
		close(ch)
		return ch
	default:
	}

	ch := make(chan T, b.buffer)
	b.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}()

	return ch
}

// Publish delivers ev to every current subscriber, skipping full buffers.
// The read lock is held across the sends: closing a channel takes the write
// lock, so a concurrent unsubscribe can never close one mid-send.
func (b *Broker[T]) Publish(ev T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Shutdown closes the broker and every subscriber channel. Safe to call
// more than once.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}
	for ch := range b.subs {
		close(ch)
	}
	clear(b.subs)
}

// Dropped returns the number of events skipped for slow subscribers.
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribers returns the current subscriber count.
func (b *Broker[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Package messaging implements the messaging capability: a producer host
// guests publish through and a server host that dispatches broker
// arrivals into the guest as events.
package messaging

import (
	"context"
	"sync"

	"github.com/augentic/yetti/capabilities"
)

// Handler receives one delivered message.
type Handler func(ctx context.Context, topic string, msg capabilities.Message)

// Broker is the backend contract. Subscriptions receive every published
// topic; topic selection happens in the guest dispatcher.
type Broker interface {
	Publish(ctx context.Context, topic string, msg capabilities.Message) error

	// Subscribe registers a handler and returns a cancel function.
	// Delivery order per subscriber matches publish order.
	Subscribe(ctx context.Context, h Handler) (func(), error)
}

type delivery struct {
	topic string
	msg   capabilities.Message
}

type subscriber struct {
	ch   chan delivery
	done chan struct{}
}

// MemoryBroker is the in-process Broker. Each subscriber drains its own
// buffered queue on a dedicated goroutine, so a slow handler delays only
// its own subscription.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[*subscriber]struct{})}
}

// Publish delivers msg to every live subscriber. A full subscriber
// queue stalls only this publish; the lock is never held across a send,
// so Subscribe, cancel, and Close stay reachable under back-pressure.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, msg capabilities.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	subs := make([]*subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- delivery{topic: topic, msg: msg}:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe starts a delivery loop for h. The loop stops when the cancel
// function is called, ctx is cancelled, or the broker closes.
func (b *MemoryBroker) Subscribe(ctx context.Context, h Handler) (func(), error) {
	sub := &subscriber{
		ch:   make(chan delivery, 64),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.done)
		})
	}

	go func() {
		for {
			select {
			case d := <-sub.ch:
				h(ctx, d.topic, d.msg)
			case <-sub.done:
				return
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()

	return cancel, nil
}

// Close drops all subscribers.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*subscriber]struct{})
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
	return nil
}

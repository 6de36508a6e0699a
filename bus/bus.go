// Package bus provides the synchronous topic-based messaging fabric
// shared by systems, plugins and embedding applications. Delivery is
// immediate on the publisher's goroutine, in subscription order, with
// no buffering: a message reaches exactly the handlers subscribed at
// publish time.
package bus

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Message is one published event
type Message struct {
	// Topic is the exact-match routing key
	Topic string

	// Payload is the opaque message body; consumers type-assert
	Payload any

	// Sender identifies the publisher for tracing and filtering
	Sender string
}

// Handler consumes messages on a subscribed topic. Handlers run
// synchronously on the publisher's goroutine and may subscribe or
// cancel reentrantly; such changes take effect for the next publish.
type Handler func(Message)

// Subscription is the cancellable handle returned by Subscribe
type Subscription struct {
	// ID uniquely identifies this subscription
	ID uuid.UUID

	// Topic is the subscribed routing key
	Topic string

	bus     *Bus
	handler Handler
}

// Bus routes messages from publishers to topic subscribers.
//
// Thread-Safety:
//   - Subscribe/Cancel/Publish: safe for concurrent use
//   - Handlers are invoked without bus locks held
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]*Subscription
}

// New creates an empty bus
func New() *Bus {
	return &Bus{
		topics: make(map[string][]*Subscription),
	}
}

// Subscribe registers a handler for a topic and returns its handle.
// Multiple subscriptions per topic are invoked in subscription order.
func (b *Bus) Subscribe(topic string, fn Handler) *Subscription {
	sub := &Subscription{
		ID:      uuid.New(),
		Topic:   topic,
		bus:     b,
		handler: fn,
	}
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], sub)
	b.mu.Unlock()
	return sub
}

// Cancel removes the subscription. Cancelling twice is a no-op. A
// publish already in flight still delivers to this handler.
func (s *Subscription) Cancel() {
	b := s.bus
	if b == nil {
		return
	}
	s.bus = nil

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[s.Topic]
	for i, candidate := range subs {
		if candidate == s {
			b.topics[s.Topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[s.Topic]) == 0 {
		delete(b.topics, s.Topic)
	}
}

// Publish delivers a message to every current subscriber of the exact
// topic, in subscription order, and returns the number of handlers
// invoked. The subscriber list is copied before invocation so handlers
// can mutate subscriptions freely.
func (b *Bus) Publish(topic string, payload any, sender string) int {
	b.mu.RLock()
	subs := b.topics[topic]
	handlers := make([]Handler, len(subs))
	for i, sub := range subs {
		handlers[i] = sub.handler
	}
	b.mu.RUnlock()

	msg := Message{Topic: topic, Payload: payload, Sender: sender}
	for _, fn := range handlers {
		fn(msg)
	}
	return len(handlers)
}

// SubscriberCount returns the number of subscriptions on a topic
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Topics returns the topics with at least one subscriber, sorted
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.topics))
	for topic := range b.topics {
		names = append(names, topic)
	}
	sort.Strings(names)
	return names
}

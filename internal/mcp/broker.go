package mcp

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const subscriberBufferSize = 16

// Subscriber is one notification listener. Messages are pre-marshaled
// JSON-RPC notifications.
type Subscriber struct {
	id string
	ch chan []byte
}

// ID returns the subscriber's identifier.
func (s *Subscriber) ID() string { return s.id }

// Messages returns the subscriber's notification channel. It is closed when
// the subscriber is removed.
func (s *Subscriber) Messages() <-chan []byte { return s.ch }

// Broker fans notifications out to subscribers. Sends are non-blocking: a
// subscriber that cannot keep up is dropped rather than stalling the rest.
// Sends and channel closes both happen under the broker mutex, so a
// concurrent Unsubscribe can never close a channel mid-send.
type Broker struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	logger *slog.Logger
}

// NewBroker creates an empty notification broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		subs:   make(map[*Subscriber]struct{}),
		logger: logger.With("component", "mcp.broker"),
	}
}

// Subscribe registers a new notification listener.
func (b *Broker) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan []byte, subscriberBufferSize),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Info("subscriber added", "subscriber", sub.id, "subscribers", count)
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Info("subscriber removed", "subscriber", sub.id, "subscribers", count)
}

// Count returns the number of active subscribers.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Broadcast sends one notification to every subscriber. Subscribers whose
// buffers are full are removed.
func (b *Broker) Broadcast(method string, params any) {
	payload, err := json.Marshal(JSONRPCNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		b.logger.Error("notification marshal failed", "method", method, "error", err)
		return
	}

	b.mu.Lock()
	var dropped []*Subscriber
	for sub := range b.subs {
		select {
		case sub.ch <- payload:
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		delete(b.subs, sub)
		close(sub.ch)
	}
	delivered := len(b.subs)
	b.mu.Unlock()

	for _, sub := range dropped {
		b.logger.Warn("subscriber dropped, buffer full", "subscriber", sub.id, "method", method)
	}

	b.logger.Debug("notification broadcast",
		"method", method,
		"subscribers", delivered)
}

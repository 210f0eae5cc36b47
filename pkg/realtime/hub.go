// Package realtime implements the in-process broadcast fabric: a
// topic-addressed publish/subscribe hub plus an ephemeral presence tracker.
//
// Topics are plain strings built by models.WorkspaceTopic and
// models.PageTopic. Delivery is at-most-once: a subscriber that cannot keep
// up has events dropped rather than stalling the publisher or other
// subscribers. Within one topic, events a subscriber does receive arrive in
// publish order.
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/notehub-io/notehub/pkg/models"
)

// subscriptionBuffer is the per-subscription channel capacity. A full
// buffer means the subscriber is too slow and loses the event.
const subscriptionBuffer = 64

// Subscription is one subscriber's attachment to a topic. Events arrive on
// C in publish order. Close detaches the subscription; the hub also closes
// C when the whole hub shuts down.
type Subscription struct {
	C chan models.Event

	hub   *Hub
	topic string
	id    int
}

// Close detaches the subscription from its topic. Safe to call more than
// once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub routes events to topic subscribers. Every server carries exactly one
// reachable from its App; it is plumbed through explicitly rather than held
// in a package-level variable so tests can run hubs side by side.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[int]*Subscription
	nextID int
	closed bool
	log    zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[int]*Subscription),
		log:    log,
	}
}

// Subscribe attaches a new subscription to a topic. Subscribing to an
// unknown topic is fine; the topic exists while it has subscribers.
func (h *Hub) Subscribe(topic string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		C:     make(chan models.Event, subscriptionBuffer),
		hub:   h,
		topic: topic,
		id:    h.nextID,
	}
	h.nextID++

	if h.closed {
		close(sub.C)
		return sub
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[int]*Subscription)
		h.topics[topic] = subs
	}
	subs[sub.id] = sub
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
	close(sub.C)
}

// Publish delivers an event to every current subscriber of the topic.
// Malformed events are rejected here so subscribers never see them. The
// send never blocks: a subscriber with a full buffer misses the event.
func (h *Hub) Publish(topic string, event models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}
	for _, sub := range h.topics[topic] {
		select {
		case sub.C <- event:
		default:
			h.log.Warn().
				Str("topic", topic).
				Str("event_id", event.ID).
				Str("kind", string(event.Kind)).
				Msg("subscriber buffer full, dropping event")
		}
	}
	return nil
}

// Topics returns the topics that currently have subscribers.
func (h *Hub) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.topics))
	for t := range h.topics {
		out = append(out, t)
	}
	return out
}

// SubscriberCount returns how many subscriptions a topic has.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close shuts the hub down: all subscription channels are closed and later
// publishes become no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.topics {
		for _, sub := range subs {
			close(sub.C)
		}
	}
	h.topics = make(map[string]map[int]*Subscription)
}

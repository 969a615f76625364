// Package application fans order status events out to live subscribers.
package application

import (
	"log/slog"
	"sync"
	"sync/atomic"

	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
)

func OrderTopic(orderID string) string { return "order:" + orderID }
func ShopTopic(shopID string) string   { return "shop:" + shopID }

// Message is what a subscriber receives.
type Message struct {
	Topic string            `json:"topic"`
	Event order.StatusEvent `json:"event"`
}

// Hub delivers messages to the handlers subscribed to a topic. Each
// subscriber gets its own bounded queue drained by its own goroutine, so
// delivery per subscriber is FIFO and a slow subscriber only loses its own
// messages. Delivery is at most once.
type Hub struct {
	log       *slog.Logger
	queueSize int

	mu     sync.RWMutex
	topics map[string]map[string]*subscriber
	closed bool

	dropped atomic.Int64
}

func NewHub(log *slog.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{log: log, queueSize: queueSize, topics: map[string]map[string]*subscriber{}}
}

type subscriber struct {
	topic   string
	key     string
	queue   chan Message
	handler func(Message)
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case m := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(m)
		}
	}
}

// Subscription is the handle returned by Subscribe. Callers must Unsubscribe
// when they stop listening.
type Subscription struct {
	hub *Hub
	sub *subscriber
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.sub == nil {
		return
	}
	s.hub.remove(s.sub)
}

// Subscribe registers handler on topic under key. A second subscription with
// the same key on the same topic replaces the first one.
func (h *Hub) Subscribe(topic, key string, handler func(Message)) *Subscription {
	sub := &subscriber{
		topic:   topic,
		key:     key,
		queue:   make(chan Message, h.queueSize),
		handler: handler,
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.stop()
		return &Subscription{hub: h, sub: sub}
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = map[string]*subscriber{}
		h.topics[topic] = subs
	}
	if prev, ok := subs[key]; ok {
		prev.stop()
	}
	subs[key] = sub
	h.mu.Unlock()

	go sub.run()
	return &Subscription{hub: h, sub: sub}
}

func (h *Hub) SubscribeOrder(orderID, key string, handler func(Message)) *Subscription {
	return h.Subscribe(OrderTopic(orderID), key, handler)
}

func (h *Hub) SubscribeShop(shopID, key string, handler func(Message)) *Subscription {
	return h.Subscribe(ShopTopic(shopID), key, handler)
}

func (h *Hub) remove(sub *subscriber) {
	sub.stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[sub.topic]
	if subs[sub.key] == sub {
		delete(subs, sub.key)
		if len(subs) == 0 {
			delete(h.topics, sub.topic)
		}
	}
}

// Publish enqueues ev for every subscriber of topic and returns how many
// accepted it.
func (h *Hub) Publish(topic string, ev order.StatusEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := Message{Topic: topic, Event: ev}
	delivered := 0
	for _, sub := range h.topics[topic] {
		select {
		case sub.queue <- msg:
			delivered++
		default:
			h.dropped.Add(1)
			h.log.Warn("subscriber queue full, event dropped", "topic", topic, "subscriber", sub.key, "order_id", ev.OrderID)
		}
	}
	return delivered
}

// PublishStatusChange delivers ev to the order's topic and to its shop's topic.
func (h *Hub) PublishStatusChange(ev order.StatusEvent) {
	h.Publish(OrderTopic(ev.OrderID), ev)
	h.Publish(ShopTopic(ev.ShopID), ev)
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close stops every subscriber. Later subscriptions are inert.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for topic, subs := range h.topics {
		for _, sub := range subs {
			sub.stop()
		}
		delete(h.topics, topic)
	}
}

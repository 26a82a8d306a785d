/*
Package chat contains the public chat room: the append-only message log service, the hub that
fans new messages out to every live subscriber, and the WebSocket client pumps.

This file defines the Hub, the single goroutine that owns the subscriber set. Every message it
receives is delivered exactly once, in arrival order, to every subscriber registered at that
moment, the author's own connections included.
*/
package chat

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"blip/internal/pkg/logx"
)

const (
	// broadcastChannelBuffer is the capacity of the hub's inbound message queue.
	broadcastChannelBuffer = 1024

	// SubscriptionBuffer is how many undelivered messages a subscriber may lag behind before
	// the hub drops it.
	SubscriptionBuffer = 256
)

// Subscription is one live listener on the hub.
type Subscription struct {
	id   uint64
	hub  *Hub
	send chan Message

	dropped   atomic.Bool
	closeOnce sync.Once
}

// ID returns the subscription's hub-unique sequence number.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Messages returns the delivery channel. It is closed when the subscription is released,
// dropped for lagging, or the hub stops.
func (s *Subscription) Messages() <-chan Message {
	return s.send
}

// Dropped reports whether the hub released the subscription because its buffer filled up.
func (s *Subscription) Dropped() bool {
	return s.dropped.Load()
}

// Close releases the subscription. It is safe to call more than once and after the hub stopped.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.stopChan:
		}
	})
}

// Hub coordinates the live subscribers of the public chat.
type Hub struct {
	// subscribers is owned by the Run goroutine; mu only guards reads from other goroutines.
	subscribers map[*Subscription]struct{}
	mu          sync.RWMutex

	broadcast  chan Message
	register   chan *Subscription
	unregister chan *Subscription

	// stopChan signals Run to exit; stopped is closed once it has.
	stopChan chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	nextID atomic.Uint64

	logger zerolog.Logger
}

// NewHub creates a Hub. Call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		broadcast:   make(chan Message, broadcastChannelBuffer),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		stopChan:    make(chan struct{}),
		stopped:     make(chan struct{}),
		logger:      logx.Component("Hub"),
	}
}

// Subscribe registers a new subscription. After the hub stopped, the returned subscription's
// channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:   h.nextID.Add(1),
		hub:  h,
		send: make(chan Message, SubscriptionBuffer),
	}

	select {
	case h.register <- sub:
	case <-h.stopChan:
		close(sub.send)
	}

	return sub
}

// Publish queues m for delivery. It blocks while the queue is full and returns false once
// the hub stopped.
func (h *Hub) Publish(m Message) bool {
	select {
	case <-h.stopChan:
		return false
	default:
	}

	select {
	case h.broadcast <- m:
		return true
	case <-h.stopChan:
		return false
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}

// Stop terminates the Run loop and closes every subscription. It waits for Run to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.logger.Info().Msg("Received stop signal. Stopping hub.")
		close(h.stopChan)
	})
	<-h.stopped
}

// Run is the hub event loop: registration, release and fan-out.
func (h *Hub) Run() {
	defer close(h.stopped)

	defer func() {
		h.mu.Lock()
		for sub := range h.subscribers {
			close(sub.send)
			delete(h.subscribers, sub)
		}
		h.mu.Unlock()

		h.logger.Info().Msg("Hub Run loop finished.")
	}()

	h.logger.Info().Msg("Hub Run loop started.")

	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = struct{}{}
			total := len(h.subscribers)
			h.mu.Unlock()

			h.logger.Debug().
				Uint64("subscription_id", sub.id).
				Int("total_subscribers", total).
				Msg("Subscriber joined.")

		case sub := <-h.unregister:
			h.remove(sub, "Subscriber left.")

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-h.stopChan:
			h.logger.Info().Msg("Hub forced stop initiated.")
			return
		}
	}
}

// fanOut delivers message to every subscriber. A subscriber whose buffer is full is dropped
// instead of blocking delivery for everyone else.
func (h *Hub) fanOut(message Message) {
	var lagging []*Subscription

	h.mu.RLock()
	for sub := range h.subscribers {
		select {
		case sub.send <- message:
		default:
			lagging = append(lagging, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range lagging {
		h.logger.Warn().
			Uint64("subscription_id", sub.id).
			Str("message_id", message.ID).
			Msg("Subscriber send buffer full, dropping subscriber.")
		sub.dropped.Store(true)
		h.remove(sub, "Lagging subscriber dropped.")
	}
}

// remove deletes sub and closes its channel. Only the Run goroutine calls it.
func (h *Hub) remove(sub *Subscription, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}

	delete(h.subscribers, sub)
	close(sub.send)

	h.logger.Debug().
		Uint64("subscription_id", sub.id).
		Int("total_subscribers", len(h.subscribers)).
		Msg(reason)
}

// Package sse implements the server-sent-events fan-out registry described
// in spec.md §4.2: a non-blocking broadcaster with automatic pruning of
// dropped subscribers and a periodic keepalive sweep.
package sse

import (
	"sync"
	"time"
)

const (
	subscriberQueueSize = 64
	keepaliveInterval   = 30 * time.Second
	// IdleTimeout is how long a subscriber's send loop waits for a
	// message before writing a keepalive comment frame.
	IdleTimeout = 15 * time.Second
)

// KeepaliveFrame is the comment frame written on idle timeout and by the
// sweeper, per spec.md §4.2.
var KeepaliveFrame = []byte(": keepalive\n\n")

// Frame wraps a JSON payload as a single "data: <json>\n\n" SSE frame, per
// spec.md §4.2/§6.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out
}

// Metrics receives subscriber count observations. Implemented by
// internal/telemetry.Registry; may be nil.
type Metrics interface {
	SubscriberConnected()
	SubscriberDisconnected()
}

// Subscriber is a single SSE client's outbound message channel.
type Subscriber struct {
	id uint64
	ch chan []byte
}

// Messages returns the channel the connection handler should drain.
func (s *Subscriber) Messages() <-chan []byte {
	return s.ch
}

// Hub is the registry of subscriber channels. One Hub serves the whole
// process; the registry lock is distinct from the state store's lock, per
// spec.md §5.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscriber
	nextID  uint64
	metrics Metrics

	stopSweep chan struct{}
}

// NewHub constructs an empty Hub. metrics may be nil.
func NewHub(metrics Metrics) *Hub {
	return &Hub{
		subs:      make(map[uint64]*Subscriber),
		metrics:   metrics,
		stopSweep: make(chan struct{}),
	}
}

// Subscribe registers a new subscriber and returns it. Callers must call
// Unsubscribe when the connection ends.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscriber{id: h.nextID, ch: make(chan []byte, subscriberQueueSize)}
	h.subs[sub.id] = sub
	if h.metrics != nil {
		h.metrics.SubscriberConnected()
	}
	return sub
}

// Unsubscribe removes a subscriber from the registry. Safe to call more
// than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub.id]
	if ok {
		delete(h.subs, sub.id)
	}
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.SubscriberDisconnected()
	}
}

// Broadcast attempts to enqueue msg on every subscriber's channel. Any
// subscriber whose channel is full (no receiver keeping up) is dropped from
// the registry in the same pass. Never blocks.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	var dropped []*Subscriber
	for id, sub := range h.subs {
		select {
		case sub.ch <- msg:
		default:
			delete(h.subs, id)
			dropped = append(dropped, sub)
		}
	}
	h.mu.Unlock()

	if h.metrics != nil {
		for range dropped {
			h.metrics.SubscriberDisconnected()
		}
	}
}

// SubscriberCount returns the number of currently registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// StartSweeper launches the keepalive sweeper goroutine: every 30s it
// broadcasts a keepalive comment frame to all subscribers, pruning any that
// have gone silently dead at the channel level. Call Stop to end it.
func (h *Hub) StartSweeper() {
	go func() {
		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stopSweep:
				return
			case <-ticker.C:
				h.Broadcast(KeepaliveFrame)
			}
		}
	}()
}

// Stop ends the sweeper goroutine. Idempotent is not guaranteed; call once.
func (h *Hub) Stop() {
	close(h.stopSweep)
}

// Package changefeed fans document changes out to live subscriptions.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Change describes one write. Before is nil for inserts and After is nil for deletes.
type Change struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
}

// Feed publishes changes and hands out listeners.
type Feed interface {
	// Publish announces a change to every listener.
	Publish(ctx context.Context, c Change) error
	// Listen registers a new listener. Callers must Close it.
	Listen() *Listener
	// Close stops the feed and ends every listener.
	Close() error
}

// Encode serializes a change for transport.
func Encode(c Change) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change: %w", err)
	}
	return data, nil
}

// Decode parses a change produced by Encode.
func Decode(data []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		return Change{}, fmt.Errorf("failed to decode change: %w", err)
	}
	if c.Collection == "" || c.ID == "" {
		return Change{}, fmt.Errorf("change is missing collection or id")
	}
	return c, nil
}

// Hub is the in-process feed.
type Hub struct {
	mu        sync.Mutex
	listeners map[*Listener]struct{}
	closed    bool
}

// NewHub creates an empty in-process feed.
func NewHub() *Hub {
	return &Hub{listeners: make(map[*Listener]struct{})}
}

// Publish queues the change on every registered listener. It never blocks on slow listeners.
func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("change feed is closed")
	}
	for l := range h.listeners {
		l.push(c)
	}
	return nil
}

// Listen registers a listener.
func (h *Hub) Listen() *Listener {
	l := &Listener{
		hub:   h,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(l.done)
		return l
	}
	h.listeners[l] = struct{}{}
	return l
}

// Close ends every listener.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for l := range h.listeners {
		l.end()
		delete(h.listeners, l)
	}
	return nil
}

func (h *Hub) remove(l *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.listeners[l]; ok {
		delete(h.listeners, l)
		l.end()
	}
}

// Listener buffers changes for one consumer without bound, so no change is lost.
type Listener struct {
	hub      *Hub
	mu       sync.Mutex
	queue    []Change
	ready    chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// Ready is signalled whenever changes are waiting to be drained.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Done is closed when the listener or its feed is closed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Drain returns and clears the queued changes.
func (l *Listener) Drain() []Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.queue
	l.queue = nil
	return out
}

// Close unregisters the listener.
func (l *Listener) Close() {
	if l.hub != nil {
		l.hub.remove(l)
		return
	}
	l.end()
}

func (l *Listener) push(c Change) {
	l.mu.Lock()
	l.queue = append(l.queue, c)
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *Listener) end() {
	l.doneOnce.Do(func() { close(l.done) })
}

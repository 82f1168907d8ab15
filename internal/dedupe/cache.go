// ABOUTME: TTL window for suppressing redelivered inbound channel messages
// ABOUTME: Channel providers re-send webhooks on slow acks; the window drops echoes before they reach the store

package dedupe

import (
	"container/list"
	"sync"
	"time"

	"github.com/impulsalab/crm-core/internal/store"
)

// entry stores the arrival time and list element for a seen delivery key.
type entry struct {
	at   time.Time
	elem *list.Element
}

// Window tracks channel-native delivery IDs seen within a TTL, bounded in
// size. Unlike the per-conversation transcript dedup, the window may forget:
// providers stop re-sending long before the TTL, so eviction is safe here.
// Insertion order lives in a linked list for O(1) eviction of the oldest key.
type Window struct {
	mu      sync.RWMutex
	seen    map[string]*entry
	order   *list.List // oldest key at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewWindow creates a dedupe window. A background goroutine sweeps expired
// keys periodically.
func NewWindow(ttl time.Duration, maxSize int) *Window {
	w := &Window{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go w.sweepLoop()
	return w
}

// DeliveryKey builds the dedupe key for one inbound delivery. Native IDs are
// only unique within a channel, so the channel is part of the key.
func DeliveryKey(channel store.Channel, nativeID string) string {
	return string(channel) + ":" + nativeID
}

// Duplicate atomically checks whether the key was already seen within the
// TTL and marks it if not. Returns true for the echo, false for the first
// delivery. The single-lock check-and-mark avoids the race of separate
// check and mark calls.
func (w *Window) Duplicate(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.seen[key]; ok && time.Since(e.at) < w.ttl {
		return true
	}
	w.markLocked(key)
	return false
}

// Seen reports whether the key is present and unexpired, without marking.
func (w *Window) Seen(key string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	e, ok := w.seen[key]
	return ok && time.Since(e.at) < w.ttl
}

// markLocked records a key. Must be called with mu held.
func (w *Window) markLocked(key string) {
	now := time.Now()

	if e, ok := w.seen[key]; ok {
		e.at = now
		w.order.MoveToBack(e.elem)
		return
	}

	if len(w.seen) >= w.maxSize {
		w.evictOldest()
	}

	elem := w.order.PushBack(key)
	w.seen[key] = &entry{at: now, elem: elem}
}

// evictOldest drops the front of the insertion list. Must be called with mu
// held.
func (w *Window) evictOldest() {
	front := w.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	w.order.Remove(front)
	delete(w.seen, key)
}

// sweepLoop periodically removes expired keys until Close.
func (w *Window) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.done:
			return
		}
	}
}

// sweep removes all expired keys.
func (w *Window) sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for key, e := range w.seen {
		if now.Sub(e.at) > w.ttl {
			w.order.Remove(e.elem)
			delete(w.seen, key)
		}
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}

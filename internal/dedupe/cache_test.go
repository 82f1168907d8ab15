// ABOUTME: Tests for the delivery dedupe window
// ABOUTME: TTL expiry, size-bound eviction, atomic check-and-mark under contention

package dedupe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/impulsalab/crm-core/internal/store"
)

func TestDeliveryKey_ScopedByChannel(t *testing.T) {
	// The same native ID on different channels must not collide
	wa := DeliveryKey(store.ChannelWhatsApp, "wamid.123")
	web := DeliveryKey(store.ChannelWebchat, "wamid.123")
	assert.NotEqual(t, wa, web)
}

func TestWindow_FirstDeliveryThenEcho(t *testing.T) {
	w := NewWindow(5*time.Minute, 100)
	defer w.Close()

	key := DeliveryKey(store.ChannelWhatsApp, "wamid.abc")
	assert.False(t, w.Duplicate(key), "first delivery must pass")
	assert.True(t, w.Duplicate(key), "redelivery must be suppressed")
	assert.True(t, w.Seen(key))
	assert.False(t, w.Seen(DeliveryKey(store.ChannelWhatsApp, "wamid.other")))
}

func TestWindow_ExpiryReopensKey(t *testing.T) {
	w := NewWindow(10*time.Millisecond, 100)
	defer w.Close()

	assert.False(t, w.Duplicate("k"))
	assert.True(t, w.Duplicate("k"))

	time.Sleep(20 * time.Millisecond)

	// Expired keys behave like new deliveries
	assert.False(t, w.Seen("k"))
	assert.False(t, w.Duplicate("k"))
}

func TestWindow_EvictsOldestAtCapacity(t *testing.T) {
	w := NewWindow(5*time.Minute, 3)
	defer w.Close()

	for _, k := range []string{"k1", "k2", "k3"} {
		w.Duplicate(k)
		time.Sleep(time.Millisecond)
	}
	w.Duplicate("k4")

	assert.False(t, w.Seen("k1"), "oldest key evicted first")
	assert.True(t, w.Seen("k2"))
	assert.True(t, w.Seen("k3"))
	assert.True(t, w.Seen("k4"))

	w.Duplicate("k5")
	assert.False(t, w.Seen("k2"))
}

func TestWindow_SweepRemovesExpired(t *testing.T) {
	w := NewWindow(10*time.Millisecond, 100)
	defer w.Close()

	w.Duplicate("a")
	w.Duplicate("b")
	time.Sleep(20 * time.Millisecond)

	w.sweep()

	w.mu.RLock()
	remaining := len(w.seen)
	w.mu.RUnlock()
	assert.Equal(t, 0, remaining)
}

func TestWindow_DuplicateIsAtomic(t *testing.T) {
	w := NewWindow(5*time.Minute, 100)
	defer w.Close()

	const goroutines = 100
	var mu sync.Mutex
	var winners int
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if !w.Duplicate("contested") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one delivery wins the race")
}

func TestWindow_CloseIsIdempotent(t *testing.T) {
	w := NewWindow(5*time.Minute, 100)
	w.Duplicate("k")
	w.Close()
	w.Close()
	assert.True(t, w.Seen("k"))
}

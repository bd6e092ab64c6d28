package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	c := NewClient("c1", nil)
	for i := 0; i < sendQueueSize; i++ {
		assert.True(t, c.Enqueue([]byte("x")))
	}
	assert.False(t, c.Enqueue([]byte("overflow")))
	assert.Len(t, c.send, sendQueueSize)
}

func TestEnqueueRefusesAfterClose(t *testing.T) {
	c := NewClient("c1", nil)
	c.Close()
	assert.False(t, c.Enqueue([]byte("x")))
	c.Close() // idempotent
}

func TestEnqueueSafeDuringRebind(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", nil)
	r.Register(c, "alice")
	for i := 0; i < sendQueueSize; i++ {
		c.Enqueue([]byte("x"))
	}

	// emission keeps hammering the full queue while the connection is
	// re-bound to another user
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.Enqueue([]byte("y"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if i%2 == 0 {
				r.Register(c, "bob")
			} else {
				r.Register(c, "alice")
			}
		}
	}()
	wg.Wait()
}

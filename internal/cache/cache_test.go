package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTTL_FreshAndExpired(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	c := New[int](30*time.Second, clk.Now)

	_, ok := c.Get("event:1")
	assert.False(t, ok, "empty cache misses")

	c.Set("event:1", 5)
	v, ok := c.Get("event:1")
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	clk.Advance(29 * time.Second)
	_, ok = c.Get("event:1")
	assert.True(t, ok, "entry still fresh just before the TTL")

	clk.Advance(time.Second)
	_, ok = c.Get("event:1")
	assert.False(t, ok, "entry expires at the TTL")
}

func TestTTL_Invalidate(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	c := New[string](time.Minute, clk.Now)

	c.Set("k", "v")
	c.Invalidate("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", n)
				c.Get("k")
			}
		}(i)
	}
	wg.Wait()
}

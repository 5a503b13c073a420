package sqlcompose

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountCache(t *testing.T) {
	c := NewCountCache()

	_, ok := c.Get("SELECT 1")
	assert.False(t, ok)

	c.Set("SELECT 1", 42)
	n, ok := c.Get("SELECT 1")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCountCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCountCache(WithTTL(time.Minute))
	c.now = func() time.Time { return now }

	c.Set("SELECT 1", 7)

	now = now.Add(30 * time.Second)
	n, ok := c.Get("SELECT 1")
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	now = now.Add(time.Minute)
	_, ok = c.Get("SELECT 1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size(), "expired entries are removed on read")
}

func TestCountCache_Concurrent(t *testing.T) {
	c := NewCountCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("SELECT 1", int64(i))
			c.Get("SELECT 1")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Size())
}

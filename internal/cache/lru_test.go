package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string](2, 0)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b should be evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := NewLRUCache[int](10, time.Minute)
	c.now = clk.now

	c.Set("k", 42)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUZeroTTLNeverExpires(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](10, 0)
	c.now = clk.now

	c.Set("k", 1)
	clk.t = clk.t.Add(24 * 365 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 0, c.CleanExpired())
}

func TestLRUCleanExpired(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](10, time.Second)
	c.now = clk.now

	c.Set("old1", 1)
	c.Set("old2", 2)
	clk.t = clk.t.Add(2 * time.Second)
	c.Set("new", 3)

	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
}

func TestLRUStats(t *testing.T) {
	c := NewLRUCache[int](10, 0)
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")
	c.Delete("a")

	assert.Equal(t, Stats{Size: 0, Hits: 2, Misses: 1}, c.Stats())
}

func TestManagerCleanAllAndStop(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](10, time.Second)
	c.now = clk.now
	c.Set("a", 1)
	clk.t = clk.t.Add(time.Hour)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 1, m.CleanAll())

	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
